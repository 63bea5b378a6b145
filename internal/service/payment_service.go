package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/logger"
	"github.com/crm-pay/internal/models"
	"github.com/crm-pay/internal/payconfig"
	"github.com/crm-pay/internal/payment"
	"github.com/crm-pay/internal/queue"
	"github.com/crm-pay/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService 支付编排与对账服务
type PaymentService struct {
	orderRepo     repository.PaymentOrderRepository
	logRepo       repository.PaymentLogRepository
	tenantRepo    repository.TenantRepository
	packageRepo   repository.PlanPackageRepository
	configChain   payconfig.Provider
	activationSvc *ActivationService
	queueClient   *queue.Client
	cfg           *config.Config
}

// NewPaymentService 创建支付服务
func NewPaymentService(orderRepo repository.PaymentOrderRepository, logRepo repository.PaymentLogRepository, tenantRepo repository.TenantRepository, packageRepo repository.PlanPackageRepository, configChain payconfig.Provider, activationSvc *ActivationService, queueClient *queue.Client, cfg *config.Config) *PaymentService {
	return &PaymentService{
		orderRepo:     orderRepo,
		logRepo:       logRepo,
		tenantRepo:    tenantRepo,
		packageRepo:   packageRepo,
		configChain:   configChain,
		activationSvc: activationSvc,
		queueClient:   queueClient,
		cfg:           cfg,
	}
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// CreateOrderInput 创建支付单请求
type CreateOrderInput struct {
	TenantID     uint
	PackageID    uint
	Amount       models.Money
	PayType      string
	ContactName  string
	ContactPhone string
	ContactEmail string
	ClientIP     string
	Context      context.Context
}

// OrderDetail 支付单查询结果
type OrderDetail struct {
	Order      *models.PaymentOrder
	TenantCode string
	LicenseKey string
}

const orderNoCreateAttempts = 3

// CreateOrder 创建待支付的支付单并向渠道下单。
// 商户配置缺失且非生产模式时自动降级为模拟支付。
func (s *PaymentService) CreateOrder(input CreateOrderInput) (*models.PaymentOrder, error) {
	payType := strings.ToLower(strings.TrimSpace(input.PayType))
	if payType != constants.PayTypeWechat && payType != constants.PayTypeAlipay {
		return nil, fmt.Errorf("%w: %s", ErrPayTypeInvalid, input.PayType)
	}
	if input.PackageID == 0 {
		return nil, ErrPaymentInvalid
	}
	if strings.TrimSpace(input.ContactName) == "" || strings.TrimSpace(input.ContactPhone) == "" {
		return nil, fmt.Errorf("%w: contact is required", ErrPaymentInvalid)
	}
	if input.Amount.Decimal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", ErrPaymentInvalid)
	}

	// 租户可以为空：无租户的支付单照常结算，只是没有激活副作用
	var tenant *models.Tenant
	if input.TenantID != 0 {
		loaded, err := s.tenantRepo.GetByID(input.TenantID)
		if err != nil {
			return nil, ErrPaymentCreateFailed
		}
		if loaded == nil {
			return nil, ErrTenantNotFound
		}
		if loaded.Status == constants.TenantStatusDisabled {
			return nil, ErrTenantDisabled
		}
		tenant = loaded
	}

	pkg, err := s.packageRepo.GetByID(input.PackageID)
	if err != nil {
		return nil, ErrPaymentCreateFailed
	}
	if pkg == nil {
		return nil, ErrPackageNotFound
	}
	if !pkg.Enabled {
		return nil, ErrPackageDisabled
	}

	now := time.Now()
	expireAt := now.Add(s.expireDuration())
	order := &models.PaymentOrder{
		ID:           uuid.NewString(),
		TenantID:     input.TenantID,
		PackageID:    pkg.ID,
		PackageName:  pkg.Name,
		Subject:      pkg.Name,
		Amount:       input.Amount,
		Currency:     "CNY",
		PayType:      payType,
		Status:       constants.PaymentOrderStatusPending,
		ContactName:  strings.TrimSpace(input.ContactName),
		ContactPhone: strings.TrimSpace(input.ContactPhone),
		ContactEmail: strings.TrimSpace(input.ContactEmail),
		ExpiredAt:    &expireAt,
	}
	if tenant != nil {
		order.TenantName = tenant.Name
	}

	// 订单号撞库概率极低，循环重试仅兜底
	for i := 0; i < orderNoCreateAttempts; i++ {
		order.OrderNo = generateOrderNo()
		err = s.orderRepo.Create(order)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateOrderNo) {
			return nil, ErrPaymentCreateFailed
		}
	}
	if err != nil {
		return nil, ErrPaymentCreateFailed
	}

	log := paymentLogger(
		"order_no", order.OrderNo,
		"tenant_id", input.TenantID,
		"package_id", pkg.ID,
		"pay_type", payType,
	)

	adapter, isMock, err := s.selectAdapter(payType)
	if err != nil {
		return nil, err
	}

	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	result, err := adapter.CreateOrder(ctx, payment.CreateInput{
		OrderNo:   order.OrderNo,
		Amount:    order.Amount.String(),
		Subject:   order.Subject,
		ClientIP:  input.ClientIP,
		NotifyURL: s.notifyURL(payType),
	})
	if err != nil {
		// 渠道下单失败时支付单保持 pending，可手动关闭或等超时任务兜底
		log.Warnw("payment_provider_create_failed", "adapter", adapter.Name(), "error", err)
		s.writePaymentLog(order.OrderNo, payType, constants.PaymentLogActionCreate, models.JSON{
			"adapter": adapter.Name(),
			"error":   err.Error(),
		}, constants.PaymentLogResultFail, "", log)
		return nil, err
	}

	order.PayURL = result.PayURL
	order.QRCode = result.QRCode
	if err := s.orderRepo.SetGatewayResult(order.OrderNo, order.PayURL, order.QRCode); err != nil {
		return nil, ErrPaymentCreateFailed
	}
	if isMock {
		order.Mock = true
		if err := s.orderRepo.MarkMock(order.OrderNo); err != nil {
			return nil, ErrPaymentCreateFailed
		}
	}

	s.writePaymentLog(order.OrderNo, payType, constants.PaymentLogActionCreate, models.JSON{
		"adapter": adapter.Name(),
		"amount":  order.Amount.String(),
		"subject": order.Subject,
		"mock":    order.Mock,
	}, constants.PaymentLogResultSuccess, "", log)
	s.enqueueTimeoutCloseAsync(order.OrderNo, time.Until(expireAt), log)

	log.Infow("payment_order_created", "adapter", adapter.Name(), "mock", order.Mock, "amount", order.Amount.String())
	return order, nil
}

// QueryOrder 查询支付单。
func (s *PaymentService) QueryOrder(orderNo string) (*models.PaymentOrder, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, ErrPaymentOrderNotFound
	}
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrPaymentOrderNotFound
	}
	return order, nil
}

// QueryOrderDetail 查询支付单及已支付订单的授权信息。
func (s *PaymentService) QueryOrderDetail(orderNo string) (*OrderDetail, error) {
	order, err := s.QueryOrder(orderNo)
	if err != nil {
		return nil, err
	}
	detail := &OrderDetail{Order: order}
	if order.Status != constants.PaymentOrderStatusPaid || order.TenantID == 0 {
		return detail, nil
	}
	tenant, err := s.tenantRepo.GetByID(order.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant != nil {
		detail.TenantCode = tenant.Code
		detail.LicenseKey = tenant.LicenseKey
	}
	return detail, nil
}

// CloseOrder 关闭支付单。
// 已关闭的支付单视为幂等成功；已支付的支付单拒绝关闭，避免掩盖真实支付。
func (s *PaymentService) CloseOrder(orderNo, reason string) error {
	_, err := s.closeIfPending(orderNo, reason)
	return err
}

func (s *PaymentService) closeIfPending(orderNo, reason string) (bool, error) {
	order, err := s.QueryOrder(orderNo)
	if err != nil {
		return false, err
	}

	won, err := s.orderRepo.TransitionIfPending(order.OrderNo, constants.PaymentOrderStatusClosed, "", nil, time.Now())
	if err != nil {
		return false, err
	}
	log := paymentLogger("order_no", order.OrderNo, "reason", reason)
	if !won {
		// 输掉条件更新后重读状态：关单期间支付成功的必须报错而不是静默吞掉
		current, err := s.QueryOrder(order.OrderNo)
		if err != nil {
			return false, err
		}
		if current.Status == constants.PaymentOrderStatusPaid {
			return false, fmt.Errorf("%w: %s", ErrPaymentOrderNotPending, current.Status)
		}
		log.Infow("payment_close_noop", "status", current.Status)
		return false, nil
	}

	s.writePaymentLog(order.OrderNo, order.PayType, constants.PaymentLogActionClose, models.JSON{
		"reason": reason,
	}, constants.PaymentLogResultSuccess, reason, log)
	log.Infow("payment_order_closed")
	return true, nil
}

// CloseExpiredOrders 批量关闭已过期的待支付支付单，返回成功关闭数量。
// 延时任务丢失时由 worker 周期扫描兜底调用。
func (s *PaymentService) CloseExpiredOrders(now time.Time, limit int) (int, error) {
	orders, err := s.orderRepo.ListExpiredPending(now, limit)
	if err != nil {
		return 0, err
	}
	closed := 0
	for i := range orders {
		won, err := s.closeIfPending(orders[i].OrderNo, "expired")
		if err != nil {
			// 扫描窗口内刚被支付或删除的支付单直接跳过
			if errors.Is(err, ErrPaymentOrderNotFound) || errors.Is(err, ErrPaymentOrderNotPending) {
				continue
			}
			return closed, err
		}
		if won {
			closed++
		}
	}
	return closed, nil
}

// MockPay 模拟支付成功，仅在非生产模式可用。
func (s *PaymentService) MockPay(orderNo string) (*models.PaymentOrder, error) {
	if !s.mockAllowed() {
		// 生产环境下隐藏该入口
		return nil, ErrPaymentOrderNotFound
	}
	order, err := s.QueryOrder(orderNo)
	if err != nil {
		return nil, err
	}

	won, err := s.settleOrderPaid(order, "MOCK"+order.OrderNo, models.JSON{
		"mock":         true,
		"out_trade_no": order.OrderNo,
	}, constants.PaymentLogActionMockPay)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, fmt.Errorf("%w: %s", ErrPaymentOrderNotPending, order.Status)
	}
	return s.QueryOrder(order.OrderNo)
}

// settleOrderPaid 原子完成 pending→paid 流转，赢者在同一事务内落日志并激活租户。
// 返回 false 表示支付单已被其他回调处理过，调用方应按幂等成功处理。
func (s *PaymentService) settleOrderPaid(order *models.PaymentOrder, tradeNo string, payload models.JSON, action string) (bool, error) {
	log := paymentLogger(
		"order_no", order.OrderNo,
		"pay_type", order.PayType,
		"trade_no", tradeNo,
		"action", action,
	)
	payload = redactPayload(payload)

	// 套餐读取放在事务外，避免 sqlite 单连接下的自锁
	var pkg *models.PlanPackage
	if order.PackageID != 0 {
		resolved, err := s.packageRepo.GetByID(order.PackageID)
		if err != nil {
			return false, err
		}
		pkg = resolved
	}

	now := time.Now()
	won := false
	var activation *ActivationResult
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		w, err := orderRepo.TransitionIfPending(order.OrderNo, constants.PaymentOrderStatusPaid, tradeNo, payload, now)
		if err != nil {
			return err
		}
		if !w {
			return nil
		}
		won = true

		logRepo := s.logRepo.WithTx(tx)
		if err := logRepo.Create(&models.PaymentLog{
			OrderNo: order.OrderNo,
			PayType: order.PayType,
			Action:  action,
			Payload: payload,
			Result:  constants.PaymentLogResultSuccess,
		}); err != nil {
			return err
		}

		activation, err = s.activationSvc.Activate(tx, order, pkg, now)
		return err
	})
	if err != nil {
		return false, err
	}
	if !won {
		log.Infow("payment_settle_duplicate_ignored")
		return false, nil
	}

	log.Infow("payment_order_paid", "tenant_activated", activation != nil && activation.Activated)
	s.activationSvc.NotifyAsync(activation, log)
	return true, nil
}

// selectAdapter 按支付方式选择渠道适配器。
// 配置链上无商户配置时返回模拟适配器，生产模式下则报错。
func (s *PaymentService) selectAdapter(payType string) (payment.Adapter, bool, error) {
	switch payType {
	case constants.PayTypeWechat:
		cfg, present, err := s.configChain.WechatConfig()
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrPaymentConfigInvalid, err)
		}
		if present {
			return payment.NewWechatAdapter(cfg), false, nil
		}
	case constants.PayTypeAlipay:
		cfg, present, err := s.configChain.AlipayConfig()
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", ErrPaymentConfigInvalid, err)
		}
		if present {
			return payment.NewAlipayAdapter(cfg), false, nil
		}
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrPayTypeInvalid, payType)
	}
	if !s.mockAllowed() {
		return nil, false, fmt.Errorf("%w: %s provider is not configured", ErrPaymentConfigInvalid, payType)
	}
	return payment.NewMockAdapter(payType), true, nil
}

func (s *PaymentService) mockAllowed() bool {
	return s.cfg == nil || !s.cfg.Server.IsRelease()
}

func (s *PaymentService) expireDuration() time.Duration {
	minutes := 30
	if s.cfg != nil && s.cfg.Payment.ExpireMinutes > 0 {
		minutes = s.cfg.Payment.ExpireMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *PaymentService) notifyURL(payType string) string {
	base := "http://127.0.0.1:8080"
	if s.cfg != nil && strings.TrimSpace(s.cfg.Payment.NotifyBaseURL) != "" {
		base = strings.TrimSpace(s.cfg.Payment.NotifyBaseURL)
	}
	return strings.TrimRight(base, "/") + "/api/v1/payment/" + payType + "/notify"
}

func (s *PaymentService) writePaymentLog(orderNo, payType, action string, payload models.JSON, result, remark string, log *zap.SugaredLogger) {
	err := s.logRepo.Create(&models.PaymentLog{
		OrderNo: orderNo,
		PayType: payType,
		Action:  action,
		Payload: redactPayload(payload),
		Result:  result,
		Remark:  remark,
	})
	if err != nil {
		log.Warnw("payment_log_write_failed", "log_action", action, "error", err)
	}
}

func (s *PaymentService) enqueueTimeoutCloseAsync(orderNo string, delay time.Duration, log *zap.SugaredLogger) {
	err := s.queueClient.EnqueuePaymentTimeoutClose(queue.PaymentTimeoutClosePayload{OrderNo: orderNo}, delay)
	if err != nil {
		log.Warnw("payment_timeout_close_enqueue_failed", "error", err)
	}
}

// redactPayload 从落库报文中剥离签名与密钥字段
func redactPayload(payload models.JSON) models.JSON {
	if payload == nil {
		return nil
	}
	redacted := make(models.JSON, len(payload))
	for k, v := range payload {
		switch strings.ToLower(k) {
		case "sign", "sign_type", "key", "private_key", "public_key":
			continue
		}
		redacted[k] = v
	}
	return redacted
}

const orderNoRandomChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateOrderNo 生成商户订单号：PAY + 秒级时间戳 + 6 位随机字符。
func generateOrderNo() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败时退化为纳秒时间戳后缀
		return "PAY" + time.Now().Format("20060102150405") + fmt.Sprintf("%06d", time.Now().UnixNano()%1000000)
	}
	for i := range buf {
		buf[i] = orderNoRandomChars[int(buf[i])%len(orderNoRandomChars)]
	}
	return "PAY" + time.Now().Format("20060102150405") + string(buf)
}
