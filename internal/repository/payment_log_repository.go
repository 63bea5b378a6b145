package repository

import (
	"github.com/crm-pay/internal/models"

	"gorm.io/gorm"
)

// PaymentLogRepository 支付日志数据访问接口
type PaymentLogRepository interface {
	Create(log *models.PaymentLog) error
	ListByOrderNo(orderNo string) ([]models.PaymentLog, error)
	ListAdmin(filter PaymentLogListFilter) ([]models.PaymentLog, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentLogRepository
}

// GormPaymentLogRepository GORM 实现
type GormPaymentLogRepository struct {
	db *gorm.DB
}

// NewPaymentLogRepository 创建支付日志仓库
func NewPaymentLogRepository(db *gorm.DB) *GormPaymentLogRepository {
	return &GormPaymentLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentLogRepository) WithTx(tx *gorm.DB) *GormPaymentLogRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentLogRepository{db: tx}
}

// Create 追加支付日志
func (r *GormPaymentLogRepository) Create(log *models.PaymentLog) error {
	return r.db.Create(log).Error
}

// ListByOrderNo 获取订单的全部支付日志
func (r *GormPaymentLogRepository) ListByOrderNo(orderNo string) ([]models.PaymentLog, error) {
	var logs []models.PaymentLog
	if err := r.db.Where("order_no = ?", orderNo).Order("id asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// ListAdmin 管理端支付日志列表
func (r *GormPaymentLogRepository) ListAdmin(filter PaymentLogListFilter) ([]models.PaymentLog, int64, error) {
	query := r.db.Model(&models.PaymentLog{})

	if filter.OrderNo != "" {
		query = query.Where("order_no = ?", filter.OrderNo)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.PaymentLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
