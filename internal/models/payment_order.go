package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentOrder 支付单
type PaymentOrder struct {
	ID              string         `gorm:"primarykey;size:36" json:"id"`              // 主键（UUID）
	OrderNo         string         `gorm:"uniqueIndex;size:32;not null" json:"order_no"` // 商户订单号
	TenantID        uint           `gorm:"index;not null" json:"tenant_id"`           // 租户ID
	TenantName      string         `gorm:"size:128" json:"tenant_name"`               // 租户名称快照
	PackageID       uint           `gorm:"index;not null" json:"package_id"`          // 套餐ID
	PackageName     string         `gorm:"size:128" json:"package_name"`              // 套餐名称快照
	Subject         string         `gorm:"size:256;not null" json:"subject"`          // 订单标题
	ContactName     string         `gorm:"size:64" json:"contact_name"`               // 联系人
	ContactPhone    string         `gorm:"size:32" json:"contact_phone"`              // 联系电话
	ContactEmail    string         `gorm:"size:128" json:"contact_email"`             // 联系邮箱
	Amount          Money          `gorm:"type:decimal(20,2);not null" json:"amount"` // 支付金额
	Currency        string         `gorm:"size:8;not null" json:"currency"`           // 币种
	PayType         string         `gorm:"index;not null" json:"pay_type"`            // 支付方式（wechat/alipay）
	Status          string         `gorm:"index;not null" json:"status"`              // 支付单状态
	Mock            bool           `gorm:"not null;default:false" json:"mock"`        // 是否模拟支付
	TradeNo         string         `gorm:"index" json:"trade_no"`                     // 第三方流水号
	PayURL          string         `gorm:"type:text" json:"pay_url"`                  // 跳转链接
	QRCode          string         `gorm:"type:text" json:"qr_code"`                  // 二维码内容
	ProviderPayload JSON           `gorm:"type:json" json:"provider_payload"`         // 第三方回调数据
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`                   // 更新时间
	PaidAt          *time.Time     `gorm:"index" json:"paid_at"`                      // 支付时间
	ClosedAt        *time.Time     `gorm:"index" json:"closed_at"`                    // 关闭时间
	ExpiredAt       *time.Time     `gorm:"index" json:"expired_at"`                   // 过期时间
	CallbackAt      *time.Time     `gorm:"index" json:"callback_at"`                  // 回调时间
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`                            // 软删除时间
}

// TableName 指定表名
func (PaymentOrder) TableName() string {
	return "payment_orders"
}
