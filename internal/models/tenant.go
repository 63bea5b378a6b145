package models

import (
	"time"

	"gorm.io/gorm"
)

// Tenant 租户
type Tenant struct {
	ID          uint           `gorm:"primarykey" json:"id"`                    // 主键
	Code        string         `gorm:"uniqueIndex;size:32;not null" json:"code"` // 租户编码
	Name        string         `gorm:"size:128;not null" json:"name"`           // 租户名称
	Phone       string         `gorm:"uniqueIndex;size:32;not null" json:"phone"` // 联系手机号
	Status      string         `gorm:"index;not null" json:"status"`            // 状态（inactive/active/disabled）
	PackageID   uint           `gorm:"index" json:"package_id"`                 // 当前套餐ID
	LicenseKey  string         `gorm:"index;size:64" json:"license_key"`        // 激活授权码
	ActivatedAt *time.Time     `gorm:"index" json:"activated_at"`               // 激活时间
	ExpireAt    *time.Time     `gorm:"index" json:"expire_at"`                  // 套餐到期时间
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                 // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                 // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                          // 软删除时间
}

// TableName 指定表名
func (Tenant) TableName() string {
	return "tenants"
}
