package models

import "time"

// PaymentLog 支付流水日志（只追加）
type PaymentLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`             // 主键
	OrderNo   string    `gorm:"index;size:32;not null" json:"order_no"` // 商户订单号
	PayType   string    `gorm:"index" json:"pay_type"`            // 支付方式
	Action    string    `gorm:"index;not null" json:"action"`     // 动作（create/notify/close/mock_pay）
	Payload   JSON      `gorm:"type:json" json:"payload"`         // 脱敏后的报文
	Result    string    `gorm:"index;size:16" json:"result"`      // 结果（success/fail）
	Remark    string    `gorm:"size:256" json:"remark"`           // 备注
	CreatedAt time.Time `gorm:"index" json:"created_at"`          // 创建时间
}

// TableName 指定表名
func (PaymentLog) TableName() string {
	return "payment_logs"
}
