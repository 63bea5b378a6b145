package repository

import "time"

// PaymentOrderListFilter 查询支付单列表的过滤条件
type PaymentOrderListFilter struct {
	Page        int
	PageSize    int
	TenantID    uint
	PackageID   uint
	PayType     string
	Status      string
	OrderNo     string
	Mock        *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// PaymentLogListFilter 查询支付日志列表的过滤条件
type PaymentLogListFilter struct {
	Page     int
	PageSize int
	OrderNo  string
	Action   string
}

// TenantListFilter 查询租户列表的过滤条件
type TenantListFilter struct {
	Page     int
	PageSize int
	Status   string
	Search   string
}
