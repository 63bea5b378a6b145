package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/crm-pay/internal/logger"
	"github.com/crm-pay/internal/provider"
	"github.com/crm-pay/internal/queue"
	"github.com/crm-pay/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskTenantActivateSMS, c.handleTenantActivateSMS)
	mux.HandleFunc(queue.TaskPaymentTimeoutClose, c.handlePaymentTimeoutClose)
}

func (c *Consumer) handleTenantActivateSMS(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_tenant_activate_sms_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TenantActivateSMSPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_tenant_activate_sms_unmarshal_failed", "error", err)
		return err
	}
	if payload.TenantID == 0 || strings.TrimSpace(payload.Phone) == "" {
		logger.Debugw("worker_tenant_activate_sms_skip_invalid_payload", "tenant_id", payload.TenantID)
		return nil
	}
	if c.SMSService == nil {
		logger.Warnw("worker_tenant_activate_sms_skip_sms_service_nil", "tenant_id", payload.TenantID)
		return nil
	}
	if err := c.SMSService.SendActivateNotice(ctx, payload.Phone, payload.LicenseKey); err != nil {
		logger.Warnw("worker_tenant_activate_sms_send_failed",
			"tenant_id", payload.TenantID,
			"phone", payload.Phone,
			"error", err,
		)
		return err
	}
	return nil
}

func (c *Consumer) handlePaymentTimeoutClose(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_timeout_close_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentTimeoutClosePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_timeout_close_unmarshal_failed", "error", err)
		return err
	}
	orderNo := strings.TrimSpace(payload.OrderNo)
	if orderNo == "" {
		logger.Debugw("worker_payment_timeout_close_skip_invalid_payload")
		return nil
	}
	if c.PaymentService == nil {
		logger.Warnw("worker_payment_timeout_close_skip_payment_service_nil", "order_no", orderNo)
		return nil
	}
	if err := c.PaymentService.CloseOrder(orderNo, "timeout"); err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentOrderNotFound):
			logger.Debugw("worker_payment_timeout_close_skip_order_not_found", "order_no", orderNo)
			return nil
		case errors.Is(err, service.ErrPaymentOrderNotPending):
			// 到点前已支付，属于正常竞态
			logger.Debugw("worker_payment_timeout_close_skip_not_pending", "order_no", orderNo)
			return nil
		default:
			logger.Warnw("worker_payment_timeout_close_failed", "order_no", orderNo, "error", err)
			return err
		}
	}
	return nil
}
