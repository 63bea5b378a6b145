package queue

import (
	"encoding/json"

	"github.com/crm-pay/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskTenantActivateSMS 租户激活通知短信任务
	TaskTenantActivateSMS = constants.TaskTenantActivateSMS
	// TaskPaymentTimeoutClose 支付单超时关闭任务
	TaskPaymentTimeoutClose = constants.TaskPaymentCloseExpire
)

// TenantActivateSMSPayload 租户激活短信任务载荷
type TenantActivateSMSPayload struct {
	TenantID   uint   `json:"tenant_id"`
	Phone      string `json:"phone"`
	LicenseKey string `json:"license_key"`
}

// PaymentTimeoutClosePayload 支付单超时关闭任务载荷
type PaymentTimeoutClosePayload struct {
	OrderNo string `json:"order_no"`
}

// NewTenantActivateSMSTask 创建租户激活短信任务
func NewTenantActivateSMSTask(payload TenantActivateSMSPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTenantActivateSMS, body), nil
}

// NewPaymentTimeoutCloseTask 创建支付单超时关闭任务
func NewPaymentTimeoutCloseTask(payload PaymentTimeoutClosePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentTimeoutClose, body), nil
}
