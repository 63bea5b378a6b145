package public

import (
	"errors"
	"strings"

	"github.com/crm-pay/internal/http/response"
	"github.com/crm-pay/internal/models"
	"github.com/crm-pay/internal/service"

	"github.com/gin-gonic/gin"
)

// CreatePaymentRequest 创建支付单请求
type CreatePaymentRequest struct {
	TenantID     uint         `json:"tenant_id"`
	PackageID    uint         `json:"package_id" binding:"required"`
	Amount       models.Money `json:"amount"`
	PayType      string       `json:"pay_type" binding:"required"`
	ContactName  string       `json:"contact_name" binding:"required"`
	ContactPhone string       `json:"contact_phone" binding:"required"`
	ContactEmail string       `json:"contact_email"`
}

// CreatePayment 创建支付单并向渠道下单。
func (h *Handler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数无效", err)
		return
	}

	order, err := h.PaymentService.CreateOrder(service.CreateOrderInput{
		TenantID:     req.TenantID,
		PackageID:    req.PackageID,
		Amount:       req.Amount,
		PayType:      req.PayType,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ClientIP:     c.ClientIP(),
		Context:      c.Request.Context(),
	})
	if err != nil {
		respondWithMappedError(c, err, paymentCreateErrorRules, response.CodeInternal, "创建支付单失败")
		return
	}

	response.Success(c, gin.H{
		"order_id":   order.ID,
		"order_no":   order.OrderNo,
		"pay_type":   order.PayType,
		"amount":     order.Amount,
		"status":     order.Status,
		"mock":       order.Mock,
		"pay_url":    order.PayURL,
		"qr_code":    order.QRCode,
		"expired_at": order.ExpiredAt,
	})
}

// QueryPayment 查询支付单状态，供购买页轮询。
func (h *Handler) QueryPayment(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	detail, err := h.PaymentService.QueryOrderDetail(orderNo)
	if err != nil {
		if errors.Is(err, service.ErrPaymentOrderNotFound) {
			respondError(c, response.CodeNotFound, "支付单不存在", nil)
			return
		}
		respondError(c, response.CodeInternal, "查询支付单失败", err)
		return
	}

	order := detail.Order
	resp := gin.H{
		"order_no":   order.OrderNo,
		"status":     order.Status,
		"pay_type":   order.PayType,
		"amount":     order.Amount,
		"mock":       order.Mock,
		"paid_at":    order.PaidAt,
		"expired_at": order.ExpiredAt,
	}
	if detail.LicenseKey != "" {
		resp["tenant_code"] = detail.TenantCode
		resp["license_key"] = detail.LicenseKey
	}
	response.Success(c, resp)
}

// ListPackages 套餐列表，供购买页展示。
func (h *Handler) ListPackages(c *gin.Context) {
	packages, err := h.PlanPackageRepo.ListEnabled()
	if err != nil {
		respondError(c, response.CodeInternal, "查询套餐失败", err)
		return
	}
	response.Success(c, gin.H{"packages": packages})
}
