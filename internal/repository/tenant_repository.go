package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"

	"gorm.io/gorm"
)

// TenantRepository 租户数据访问接口
type TenantRepository interface {
	Create(tenant *models.Tenant) error
	Update(tenant *models.Tenant) error
	GetByID(id uint) (*models.Tenant, error)
	GetByPhone(phone string) (*models.Tenant, error)
	ActivateIfInactive(id uint, packageID uint, licenseKey string, expireAt *time.Time, at time.Time) (bool, error)
	List(filter TenantListFilter) ([]models.Tenant, int64, error)
	WithTx(tx *gorm.DB) *GormTenantRepository
}

// GormTenantRepository GORM 实现
type GormTenantRepository struct {
	db *gorm.DB
}

// NewTenantRepository 创建租户仓库
func NewTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTenantRepository) WithTx(tx *gorm.DB) *GormTenantRepository {
	if tx == nil {
		return r
	}
	return &GormTenantRepository{db: tx}
}

// Create 创建租户
func (r *GormTenantRepository) Create(tenant *models.Tenant) error {
	return r.db.Create(tenant).Error
}

// Update 更新租户
func (r *GormTenantRepository) Update(tenant *models.Tenant) error {
	return r.db.Save(tenant).Error
}

// GetByID 根据 ID 获取租户
func (r *GormTenantRepository) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

// GetByPhone 根据手机号获取租户
func (r *GormTenantRepository) GetByPhone(phone string) (*models.Tenant, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, nil
	}
	var tenant models.Tenant
	result := r.db.Where("phone = ?", phone).Limit(1).Find(&tenant)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &tenant, nil
}

// ActivateIfInactive 未激活状态条件激活。
// 与支付单流转同一套条件 UPDATE 手法，保证同一租户只会被激活一次。
func (r *GormTenantRepository) ActivateIfInactive(id uint, packageID uint, licenseKey string, expireAt *time.Time, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":       constants.TenantStatusActive,
		"package_id":   packageID,
		"license_key":  licenseKey,
		"activated_at": at,
	}
	if expireAt != nil {
		updates["expire_at"] = *expireAt
	}

	result := r.db.Model(&models.Tenant{}).
		Where("id = ? AND status = ?", id, constants.TenantStatusInactive).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// List 租户列表
func (r *GormTenantRepository) List(filter TenantListFilter) ([]models.Tenant, int64, error) {
	query := r.db.Model(&models.Tenant{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("name LIKE ? OR phone LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var tenants []models.Tenant
	if err := query.Order("id desc").Find(&tenants).Error; err != nil {
		return nil, 0, err
	}
	return tenants, total, nil
}
