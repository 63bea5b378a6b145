package repository

import (
	"errors"

	"github.com/crm-pay/internal/models"

	"gorm.io/gorm"
)

// PlanPackageRepository 套餐数据访问接口
type PlanPackageRepository interface {
	Create(pkg *models.PlanPackage) error
	Update(pkg *models.PlanPackage) error
	GetByID(id uint) (*models.PlanPackage, error)
	ListEnabled() ([]models.PlanPackage, error)
}

// GormPlanPackageRepository GORM 实现
type GormPlanPackageRepository struct {
	db *gorm.DB
}

// NewPlanPackageRepository 创建套餐仓库
func NewPlanPackageRepository(db *gorm.DB) *GormPlanPackageRepository {
	return &GormPlanPackageRepository{db: db}
}

// Create 创建套餐
func (r *GormPlanPackageRepository) Create(pkg *models.PlanPackage) error {
	return r.db.Create(pkg).Error
}

// Update 更新套餐
func (r *GormPlanPackageRepository) Update(pkg *models.PlanPackage) error {
	return r.db.Save(pkg).Error
}

// GetByID 根据 ID 获取套餐
func (r *GormPlanPackageRepository) GetByID(id uint) (*models.PlanPackage, error) {
	var pkg models.PlanPackage
	if err := r.db.First(&pkg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pkg, nil
}

// ListEnabled 获取已上架套餐
func (r *GormPlanPackageRepository) ListEnabled() ([]models.PlanPackage, error) {
	var pkgs []models.PlanPackage
	if err := r.db.Where("enabled = ?", true).Order("sort_order asc, id asc").Find(&pkgs).Error; err != nil {
		return nil, err
	}
	return pkgs, nil
}
