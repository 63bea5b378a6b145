package constants

// 支付单状态常量
const (
	PaymentOrderStatusPending = "pending"
	PaymentOrderStatusPaid    = "paid"
	PaymentOrderStatusClosed  = "closed"
)

// 支付方式常量
const (
	PayTypeWechat = "wechat"
	PayTypeAlipay = "alipay"
)

// 支付日志动作常量
const (
	PaymentLogActionCreate  = "create"
	PaymentLogActionNotify  = "notify"
	PaymentLogActionClose   = "close"
	PaymentLogActionMockPay = "mock_pay"
)

// 支付日志结果常量
const (
	PaymentLogResultSuccess = "success"
	PaymentLogResultFail    = "fail"
)

// 微信支付回调常量
const (
	WechatReturnCodeSuccess = "SUCCESS"
	WechatReturnCodeFail    = "FAIL"
	WechatResultCodeSuccess = "SUCCESS"
	WechatSignTypeMD5       = "MD5"
	WechatTradeTypeNative   = "NATIVE"
)

// 支付宝回调常量
const (
	AlipayTradeStatusSuccess  = "TRADE_SUCCESS"
	AlipayTradeStatusFinished = "TRADE_FINISHED"
	AlipayCallbackSuccess     = "success"
	AlipayCallbackFail        = "fail"
	AlipaySignTypeRSA2        = "RSA2"
	AlipaySignTypeRSA         = "RSA"
)

// 模拟支付常量
const (
	MockWechatPayURLPrefix = "weixin://wxpay/bizpayurl?pr="
	MockQRCodePrefix       = "mock://"
)

// 租户状态常量
const (
	TenantStatusInactive = "inactive"
	TenantStatusActive   = "active"
	TenantStatusDisabled = "disabled"
)

// 短信验证码用途常量
const (
	SmsPurposeRegister = "register"
	SmsPurposeActivate = "activate"
)

// 队列常量
const (
	QueueDefault           = "default"
	TaskTenantActivateSMS  = "tenant:activate_sms"
	TaskPaymentCloseExpire = "payment:timeout_close"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "crmpay"
)

// 设置键常量
const (
	SettingKeyWechatPayConfig = "payment_wechat_config"
	SettingKeyAlipayConfig    = "payment_alipay_config"
	SettingKeySiteConfig      = "site_config"
)
