package service

import "errors"

// 服务层哨兵错误,handler 层通过 errors.Is 映射为响应码。
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantDisabled       = errors.New("tenant disabled")
	ErrTenantPhoneExists    = errors.New("tenant phone exists")
	ErrPackageNotFound      = errors.New("package not found")
	ErrPackageDisabled      = errors.New("package disabled")
	ErrPayTypeInvalid       = errors.New("pay type invalid")
	ErrPaymentInvalid       = errors.New("payment invalid")
	ErrPaymentCreateFailed  = errors.New("payment create failed")
	ErrPaymentConfigInvalid = errors.New("payment config invalid")

	ErrPaymentOrderNotFound   = errors.New("payment order not found")
	ErrPaymentOrderNotPending = errors.New("payment order not pending")

	ErrCallbackSignatureInvalid = errors.New("callback signature invalid")
	ErrCallbackAmountMismatch   = errors.New("callback amount mismatch")
	ErrCallbackPayloadInvalid   = errors.New("callback payload invalid")

	ErrSmsCodeInvalid  = errors.New("sms code invalid")
	ErrSmsSendTooOften = errors.New("sms send too often")
	ErrSmsDisabled     = errors.New("sms disabled")
)
