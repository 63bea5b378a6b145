package mock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/crm-pay/internal/constants"
)

// 模拟支付：商户配置缺失时的本地替身，不发起任何外部请求。
// 返回的链接带 mock:// 前缀，前端据此提示这是演示环境。

var ErrUnsupportedPayType = errors.New("mock unsupported pay type")

// CreateInput 模拟下单输入。
type CreateInput struct {
	OrderNo string
	Amount  string
	Subject string
}

// CreateResult 模拟下单返回。
type CreateResult struct {
	PayURL  string
	QRCode  string
	TradeNo string
	Raw     map[string]interface{}
}

// CreatePayment 生成模拟支付凭据。
func CreatePayment(payType string, input CreateInput) (*CreateResult, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		return nil, fmt.Errorf("%w: order_no is required", ErrUnsupportedPayType)
	}
	result := &CreateResult{
		TradeNo: "MOCK" + orderNo,
		Raw: map[string]interface{}{
			"mock":         true,
			"out_trade_no": orderNo,
			"amount":       strings.TrimSpace(input.Amount),
		},
	}
	switch strings.ToLower(strings.TrimSpace(payType)) {
	case constants.PayTypeWechat:
		result.PayURL = constants.MockWechatPayURLPrefix + orderNo
		result.QRCode = constants.MockQRCodePrefix + constants.PayTypeWechat + "/" + orderNo
	case constants.PayTypeAlipay:
		result.PayURL = constants.MockQRCodePrefix + constants.PayTypeAlipay + "/" + orderNo
		result.QRCode = result.PayURL
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPayType, payType)
	}
	return result, nil
}
