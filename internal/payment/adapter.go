package payment

import (
	"context"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/payment/alipay"
	"github.com/crm-pay/internal/payment/mock"
	"github.com/crm-pay/internal/payment/wechat"
)

// CreateInput 渠道下单输入
type CreateInput struct {
	OrderNo   string
	Amount    string
	Subject   string
	ClientIP  string
	NotifyURL string
}

// CreateResult 渠道下单结果
type CreateResult struct {
	PayURL  string
	QRCode  string
	TradeNo string
	Raw     map[string]interface{}
}

// Adapter 支付渠道适配器。
// 真实渠道内部不做任何 mock 分支，模拟支付是独立实现。
type Adapter interface {
	Name() string
	CreateOrder(ctx context.Context, input CreateInput) (*CreateResult, error)
}

type wechatAdapter struct {
	cfg *wechat.Config
}

// NewWechatAdapter 创建微信渠道适配器
func NewWechatAdapter(cfg *wechat.Config) Adapter {
	return &wechatAdapter{cfg: cfg}
}

func (a *wechatAdapter) Name() string {
	return constants.PayTypeWechat
}

func (a *wechatAdapter) CreateOrder(ctx context.Context, input CreateInput) (*CreateResult, error) {
	result, err := wechat.CreatePayment(ctx, a.cfg, wechat.CreateInput{
		OrderNo:   input.OrderNo,
		Amount:    input.Amount,
		Body:      input.Subject,
		ClientIP:  input.ClientIP,
		NotifyURL: input.NotifyURL,
	})
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		PayURL: result.CodeURL,
		QRCode: result.CodeURL,
		Raw:    result.Raw,
	}, nil
}

type alipayAdapter struct {
	cfg *alipay.Config
}

// NewAlipayAdapter 创建支付宝渠道适配器
func NewAlipayAdapter(cfg *alipay.Config) Adapter {
	return &alipayAdapter{cfg: cfg}
}

func (a *alipayAdapter) Name() string {
	return constants.PayTypeAlipay
}

func (a *alipayAdapter) CreateOrder(_ context.Context, input CreateInput) (*CreateResult, error) {
	// 支付宝页面支付是确定性 URL 构造，没有网络往返
	result, err := alipay.CreatePayment(a.cfg, alipay.CreateInput{
		OrderNo:   input.OrderNo,
		Amount:    input.Amount,
		Subject:   input.Subject,
		NotifyURL: input.NotifyURL,
	})
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		PayURL: result.PayURL,
		QRCode: result.PayURL,
		Raw:    result.Raw,
	}, nil
}

type mockAdapter struct {
	payType string
}

// NewMockAdapter 创建模拟渠道适配器，商户配置缺失时由服务层选用。
func NewMockAdapter(payType string) Adapter {
	return &mockAdapter{payType: payType}
}

func (a *mockAdapter) Name() string {
	return "mock-" + a.payType
}

func (a *mockAdapter) CreateOrder(_ context.Context, input CreateInput) (*CreateResult, error) {
	result, err := mock.CreatePayment(a.payType, mock.CreateInput{
		OrderNo: input.OrderNo,
		Amount:  input.Amount,
		Subject: input.Subject,
	})
	if err != nil {
		return nil, err
	}
	return &CreateResult{
		PayURL:  result.PayURL,
		QRCode:  result.QRCode,
		TradeNo: result.TradeNo,
		Raw:     result.Raw,
	}, nil
}
