package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	handlershared "github.com/crm-pay/internal/http/handlers/shared"
	"github.com/crm-pay/internal/http/response"
	"github.com/crm-pay/internal/repository"
	"github.com/crm-pay/internal/service"

	"github.com/gin-gonic/gin"
)

// ListPaymentOrders 支付单列表。
func (h *Handler) ListPaymentOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	filter := repository.PaymentOrderListFilter{
		Page:     page,
		PageSize: pageSize,
		PayType:  strings.TrimSpace(c.Query("pay_type")),
		Status:   strings.TrimSpace(c.Query("status")),
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
	}
	if tenantID, err := strconv.ParseUint(c.Query("tenant_id"), 10, 64); err == nil {
		filter.TenantID = uint(tenantID)
	}
	if packageID, err := strconv.ParseUint(c.Query("package_id"), 10, 64); err == nil {
		filter.PackageID = uint(packageID)
	}
	if mockRaw := strings.TrimSpace(c.Query("mock")); mockRaw != "" {
		if mock, err := strconv.ParseBool(mockRaw); err == nil {
			filter.Mock = &mock
		}
	}
	if from := parseAdminTimeQuery(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseAdminTimeQuery(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}

	orders, total, err := h.PaymentOrderRepo.ListAdmin(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "查询支付单失败", err)
		return
	}
	response.SuccessWithPage(c, orders, response.BuildPagination(page, pageSize, total))
}

// ListPaymentLogs 支付日志列表。
func (h *Handler) ListPaymentLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	logs, total, err := h.PaymentLogRepo.ListAdmin(repository.PaymentLogListFilter{
		Page:     page,
		PageSize: pageSize,
		OrderNo:  strings.TrimSpace(c.Query("order_no")),
		Action:   strings.TrimSpace(c.Query("action")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "查询支付日志失败", err)
		return
	}
	response.SuccessWithPage(c, logs, response.BuildPagination(page, pageSize, total))
}

// ClosePaymentOrder 手工关闭支付单，对已终态订单幂等。
func (h *Handler) ClosePaymentOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "订单号无效", nil)
		return
	}
	if err := h.PaymentService.CloseOrder(orderNo, "manual"); err != nil {
		if errors.Is(err, service.ErrPaymentOrderNotFound) {
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
			return
		}
		if errors.Is(err, service.ErrPaymentOrderNotPending) {
			respondError(c, response.CodeBadRequest, "支付单已支付，不能关闭", nil)
			return
		}
		respondError(c, response.CodeInternal, "关闭支付单失败", err)
		return
	}
	requestLog(c).Infow("admin_payment_order_closed", "order_no", orderNo)
	response.Success(c, gin.H{"order_no": orderNo, "closed": true})
}

// MockPayOrder 模拟支付，仅在非生产模式开放。
func (h *Handler) MockPayOrder(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "订单号无效", nil)
		return
	}
	order, err := h.PaymentService.MockPay(orderNo)
	if err != nil {
		if errors.Is(err, service.ErrPaymentOrderNotFound) {
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
			return
		}
		if errors.Is(err, service.ErrPaymentOrderNotPending) {
			respondError(c, response.CodeBadRequest, "支付单已不在待支付状态", nil)
			return
		}
		respondError(c, response.CodeInternal, "模拟支付失败", err)
		return
	}
	requestLog(c).Infow("admin_payment_mock_paid", "order_no", orderNo)
	response.Success(c, gin.H{
		"order_no": order.OrderNo,
		"status":   order.Status,
		"trade_no": order.TradeNo,
		"paid_at":  order.PaidAt,
	})
}

func parseAdminTimeQuery(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return &parsed
		}
	}
	return nil
}
