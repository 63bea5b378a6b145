package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateOrderNo 订单号唯一索引冲突
var ErrDuplicateOrderNo = errors.New("duplicate order no")

// PaymentOrderRepository 支付单数据访问接口
type PaymentOrderRepository interface {
	Create(order *models.PaymentOrder) error
	GetByID(id string) (*models.PaymentOrder, error)
	GetByOrderNo(orderNo string) (*models.PaymentOrder, error)
	SetGatewayResult(orderNo string, payURL, qrCode string) error
	MarkMock(orderNo string) error
	TransitionIfPending(orderNo, newStatus, tradeNo string, payload models.JSON, at time.Time) (bool, error)
	ListAdmin(filter PaymentOrderListFilter) ([]models.PaymentOrder, int64, error)
	ListExpiredPending(now time.Time, limit int) ([]models.PaymentOrder, error)
	WithTx(tx *gorm.DB) *GormPaymentOrderRepository
}

// GormPaymentOrderRepository GORM 实现
type GormPaymentOrderRepository struct {
	db *gorm.DB
}

// NewPaymentOrderRepository 创建支付单仓库
func NewPaymentOrderRepository(db *gorm.DB) *GormPaymentOrderRepository {
	return &GormPaymentOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentOrderRepository) WithTx(tx *gorm.DB) *GormPaymentOrderRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentOrderRepository{db: tx}
}

// Create 创建支付单
func (r *GormPaymentOrderRepository) Create(order *models.PaymentOrder) error {
	if err := r.db.Create(order).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOrderNo
		}
		return err
	}
	return nil
}

// GetByID 根据 ID 获取支付单
func (r *GormPaymentOrderRepository) GetByID(id string) (*models.PaymentOrder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var order models.PaymentOrder
	if err := r.db.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNo 根据订单号获取支付单
func (r *GormPaymentOrderRepository) GetByOrderNo(orderNo string) (*models.PaymentOrder, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.PaymentOrder
	result := r.db.Where("order_no = ?", orderNo).Limit(1).Find(&order)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &order, nil
}

// SetGatewayResult 回写网关下单结果
func (r *GormPaymentOrderRepository) SetGatewayResult(orderNo string, payURL, qrCode string) error {
	return r.db.Model(&models.PaymentOrder{}).
		Where("order_no = ?", orderNo).
		Updates(map[string]interface{}{
			"pay_url": payURL,
			"qr_code": qrCode,
		}).Error
}

// MarkMock 标记为模拟支付单
func (r *GormPaymentOrderRepository) MarkMock(orderNo string) error {
	return r.db.Model(&models.PaymentOrder{}).
		Where("order_no = ?", orderNo).
		Update("mock", true).Error
}

// TransitionIfPending 待支付状态条件流转。
// 单条条件 UPDATE 是并发回调下的唯一互斥手段：影响行数为 1 的调用方赢得流转，
// 其余调用方视为重复通知，返回 false 且不报错。
func (r *GormPaymentOrderRepository) TransitionIfPending(orderNo, newStatus, tradeNo string, payload models.JSON, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":      newStatus,
		"callback_at": at,
	}
	if tradeNo != "" {
		updates["trade_no"] = tradeNo
	}
	if payload != nil {
		updates["provider_payload"] = payload
	}
	switch newStatus {
	case constants.PaymentOrderStatusPaid:
		updates["paid_at"] = at
	case constants.PaymentOrderStatusClosed:
		updates["closed_at"] = at
	}

	result := r.db.Model(&models.PaymentOrder{}).
		Where("order_no = ? AND status = ?", orderNo, constants.PaymentOrderStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListAdmin 管理端支付单列表
func (r *GormPaymentOrderRepository) ListAdmin(filter PaymentOrderListFilter) ([]models.PaymentOrder, int64, error) {
	query := r.db.Model(&models.PaymentOrder{})

	if filter.TenantID != 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.PackageID != 0 {
		query = query.Where("package_id = ?", filter.PackageID)
	}
	if filter.PayType != "" {
		query = query.Where("pay_type = ?", filter.PayType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.Mock != nil {
		query = query.Where("mock = ?", *filter.Mock)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.PaymentOrder
	if err := query.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListExpiredPending 获取已超时的待支付单
func (r *GormPaymentOrderRepository) ListExpiredPending(now time.Time, limit int) ([]models.PaymentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.PaymentOrder
	if err := r.db.
		Where("status = ? AND expired_at IS NOT NULL AND expired_at <= ?", constants.PaymentOrderStatusPending, now).
		Order("expired_at asc").Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// isUniqueViolation 判断数据库唯一约束冲突（sqlite/postgres 报文不同）
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint") ||
		strings.Contains(message, "duplicate key")
}
