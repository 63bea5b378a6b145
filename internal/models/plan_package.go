package models

import (
	"time"

	"gorm.io/gorm"
)

// PlanPackage 套餐
type PlanPackage struct {
	ID            uint           `gorm:"primarykey" json:"id"`                      // 主键
	Name          string         `gorm:"size:128;not null" json:"name"`             // 套餐名称
	Price         Money          `gorm:"type:decimal(20,2);not null" json:"price"`  // 套餐价格
	DurationDays  int            `gorm:"not null;default:365" json:"duration_days"` // 有效期天数
	MaxUsers      int            `gorm:"not null;default:0" json:"max_users"`       // 用户数上限（0 不限）
	Enabled       bool           `gorm:"not null;default:true" json:"enabled"`      // 是否上架
	SortOrder     int            `gorm:"index;not null;default:0" json:"sort_order"` // 排序权重
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间
}

// TableName 指定表名
func (PlanPackage) TableName() string {
	return "plan_packages"
}
