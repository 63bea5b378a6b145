package service

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"
	"github.com/crm-pay/internal/payment/alipay"
	"github.com/crm-pay/internal/payment/wechat"

	"github.com/shopspring/decimal"
)

const (
	callbackLookupAttempts = 3
	callbackLookupInterval = 200 * time.Millisecond
)

// lookupOrderForCallback 带短暂重试的支付单查找。
// 渠道回调可能先于本地写入可见，查不到时重试几次再让渠道重发。
func (s *PaymentService) lookupOrderForCallback(orderNo string) (*models.PaymentOrder, error) {
	var lastErr error
	for i := 0; i < callbackLookupAttempts; i++ {
		if i > 0 {
			time.Sleep(callbackLookupInterval)
		}
		order, err := s.QueryOrder(orderNo)
		if err == nil {
			return order, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// HandleWechatNotify 处理微信支付异步通知。
// 验签或金额不符返回错误，调用方应答 FAIL；重复通知视为幂等成功。
func (s *PaymentService) HandleWechatNotify(body []byte) error {
	cfg, present, err := s.configChain.WechatConfig()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentConfigInvalid, err)
	}
	if !present {
		// 未配置商户却收到通知，一律拒绝
		return fmt.Errorf("%w: wechat provider is not configured", ErrPaymentConfigInvalid)
	}

	params, err := wechat.VerifyNotify(cfg, body)
	if err != nil {
		paymentLogger("pay_type", constants.PayTypeWechat).Warnw("payment_notify_verify_failed", "error", err)
		return fmt.Errorf("%w: %v", ErrCallbackSignatureInvalid, err)
	}

	orderNo := strings.TrimSpace(params["out_trade_no"])
	order, err := s.lookupOrderForCallback(orderNo)
	if err != nil {
		return err
	}
	if order.PayType != constants.PayTypeWechat {
		return fmt.Errorf("%w: pay_type mismatch", ErrCallbackPayloadInvalid)
	}

	totalFee, err := strconv.ParseInt(strings.TrimSpace(params["total_fee"]), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: total_fee is invalid", ErrCallbackPayloadInvalid)
	}
	expectedFee := order.Amount.Decimal.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	if totalFee != expectedFee {
		paymentLogger(
			"order_no", order.OrderNo,
			"pay_type", constants.PayTypeWechat,
		).Warnw("payment_notify_amount_mismatch", "expected_fee", expectedFee, "total_fee", totalFee)
		return fmt.Errorf("%w: total_fee %d != %d", ErrCallbackAmountMismatch, totalFee, expectedFee)
	}

	payload := make(models.JSON, len(params))
	for k, v := range params {
		payload[k] = v
	}
	_, err = s.settleOrderPaid(order, strings.TrimSpace(params["transaction_id"]), payload, constants.PaymentLogActionNotify)
	return err
}

// HandleAlipayNotify 处理支付宝异步通知。
// 非终态的交易状态直接幂等应答，不做任何流转。
func (s *PaymentService) HandleAlipayNotify(form url.Values) error {
	cfg, present, err := s.configChain.AlipayConfig()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentConfigInvalid, err)
	}
	if !present {
		return fmt.Errorf("%w: alipay provider is not configured", ErrPaymentConfigInvalid)
	}

	if err := alipay.VerifyCallback(cfg, form); err != nil {
		paymentLogger("pay_type", constants.PayTypeAlipay).Warnw("payment_notify_verify_failed", "error", err)
		return fmt.Errorf("%w: %v", ErrCallbackSignatureInvalid, err)
	}

	appID := strings.TrimSpace(form.Get("app_id"))
	if appID != "" && appID != strings.TrimSpace(cfg.AppID) {
		return fmt.Errorf("%w: app_id mismatch", ErrCallbackPayloadInvalid)
	}

	orderNo := strings.TrimSpace(form.Get("out_trade_no"))
	order, err := s.lookupOrderForCallback(orderNo)
	if err != nil {
		return err
	}
	if order.PayType != constants.PayTypeAlipay {
		return fmt.Errorf("%w: pay_type mismatch", ErrCallbackPayloadInvalid)
	}

	tradeStatus := strings.TrimSpace(form.Get("trade_status"))
	if !alipay.IsPaidTradeStatus(tradeStatus) {
		paymentLogger(
			"order_no", order.OrderNo,
			"pay_type", constants.PayTypeAlipay,
		).Infow("payment_notify_status_ignored", "trade_status", tradeStatus)
		return nil
	}

	totalAmount, err := decimal.NewFromString(strings.TrimSpace(form.Get("total_amount")))
	if err != nil {
		return fmt.Errorf("%w: total_amount is invalid", ErrCallbackPayloadInvalid)
	}
	if !totalAmount.Round(2).Equal(order.Amount.Decimal.Round(2)) {
		paymentLogger(
			"order_no", order.OrderNo,
			"pay_type", constants.PayTypeAlipay,
		).Warnw("payment_notify_amount_mismatch", "expected", order.Amount.String(), "total_amount", totalAmount.StringFixed(2))
		return fmt.Errorf("%w: total_amount %s != %s", ErrCallbackAmountMismatch, totalAmount.StringFixed(2), order.Amount.String())
	}

	payload := make(models.JSON, len(form))
	for k := range form {
		payload[k] = form.Get(k)
	}
	_, err = s.settleOrderPaid(order, strings.TrimSpace(form.Get("trade_no")), payload, constants.PaymentLogActionNotify)
	return err
}
