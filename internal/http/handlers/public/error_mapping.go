package public

import (
	"errors"

	"github.com/crm-pay/internal/http/response"
	"github.com/crm-pay/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrPayTypeInvalid, code: response.CodeBadRequest, msg: "不支持的支付方式"},
	{target: service.ErrPaymentInvalid, code: response.CodeBadRequest, msg: "支付请求参数无效"},
	{target: service.ErrTenantNotFound, code: response.CodeNotFound, msg: "租户不存在"},
	{target: service.ErrTenantDisabled, code: response.CodeBadRequest, msg: "租户已停用"},
	{target: service.ErrPackageNotFound, code: response.CodeNotFound, msg: "套餐不存在"},
	{target: service.ErrPackageDisabled, code: response.CodeBadRequest, msg: "套餐已下架"},
	{target: service.ErrPaymentConfigInvalid, code: response.CodeBadRequest, msg: "支付渠道配置无效"},
	{target: service.ErrPaymentCreateFailed, code: response.CodeInternal, msg: "支付下单失败，请稍后重试"},
}

var smsSendErrorRules = []mappedHandlerError{
	{target: service.ErrSmsSendTooOften, code: response.CodeTooManyRequests, msg: "发送过于频繁，请稍后再试"},
	{target: service.ErrSmsCodeInvalid, code: response.CodeBadRequest, msg: "请求参数无效"},
	{target: service.ErrSmsDisabled, code: response.CodeBadRequest, msg: "短信服务未启用"},
}

var smsVerifyErrorRules = []mappedHandlerError{
	{target: service.ErrSmsCodeInvalid, code: response.CodeBadRequest, msg: "验证码错误或已失效"},
}
