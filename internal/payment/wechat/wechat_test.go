package wechat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func buildTestConfig(unifiedOrderURL string) *Config {
	return &Config{
		AppID:           "wx2026010100000001",
		MchID:           "1900000001",
		Key:             "0123456789abcdef0123456789abcdef",
		UnifiedOrderURL: unifiedOrderURL,
		NotifyURL:       "https://example.com/api/v1/payment/notify/wechat",
	}
}

func TestSignSortsKeysAndSkipsEmpty(t *testing.T) {
	key := "testkey"
	params := map[string]string{
		"b":      "2",
		"a":      "1",
		"empty":  "",
		"sign":   "should-be-ignored",
		"out_no": "PAY1",
		"zlast":  "z",
	}
	// 手工展开同一套规则，确认排序、跳过空值与 sign 字段
	content := buildSignContent(params)
	if content != "a=1&b=2&out_no=PAY1&zlast=z" {
		t.Fatalf("unexpected sign content: %s", content)
	}
	sign := Sign(params, key)
	if sign != strings.ToUpper(sign) {
		t.Fatalf("sign should be uppercase hex: %s", sign)
	}
	if len(sign) != 32 {
		t.Fatalf("sign should be 32 hex chars, got %d", len(sign))
	}
	// 参与签名的值变化时签名必须变化
	params["a"] = "changed"
	if Sign(params, key) == sign {
		t.Fatalf("sign should change when params change")
	}
}

func TestXMLRoundTrip(t *testing.T) {
	params := map[string]string{
		"appid":        "wx2026010100000001",
		"mch_id":       "1900000001",
		"out_trade_no": "PAY20260101120000AB12CD",
		"total_fee":    "19900",
		"body":         "专业版套餐 <含升级>",
	}
	encoded := EncodeXML(params)
	decoded, err := DecodeXML(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(params) {
		t.Fatalf("decoded len want %d got %d", len(params), len(decoded))
	}
	for k, v := range params {
		if decoded[k] != v {
			t.Fatalf("key %s want %q got %q", k, v, decoded[k])
		}
	}
}

func TestDecodeXMLWithoutCDATA(t *testing.T) {
	raw := "<xml><return_code>SUCCESS</return_code><return_msg>OK</return_msg><unknown_tag>abc</unknown_tag></xml>"
	decoded, err := DecodeXML([]byte(raw))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["return_code"] != "SUCCESS" {
		t.Fatalf("return_code want SUCCESS got %q", decoded["return_code"])
	}
	if decoded["unknown_tag"] != "abc" {
		t.Fatalf("unknown tags should pass through, got %q", decoded["unknown_tag"])
	}
}

func TestDecodeXMLRejectsGarbage(t *testing.T) {
	if _, err := DecodeXML([]byte("not xml at all")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestConvertAmountToFen(t *testing.T) {
	fen, err := convertAmountToFen("199.00")
	if err != nil {
		t.Fatalf("convert failed: %v", err)
	}
	if fen != 19900 {
		t.Fatalf("fen want 19900 got %d", fen)
	}
	if _, err := convertAmountToFen("0.001"); err == nil {
		t.Fatalf("sub-fen precision should be rejected")
	}
	if _, err := convertAmountToFen("-1"); err == nil {
		t.Fatalf("negative amount should be rejected")
	}
}

func TestCreatePaymentUnifiedOrder(t *testing.T) {
	cfg := buildTestConfig("")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected post request, got %s", r.Method)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read request body failed: %v", err)
		}
		request, err := DecodeXML(body)
		if err != nil {
			t.Fatalf("decode request failed: %v", err)
		}
		if request["out_trade_no"] != "PAY20260101120000AB12CD" {
			t.Fatalf("unexpected out_trade_no: %s", request["out_trade_no"])
		}
		if request["total_fee"] != "19900" {
			t.Fatalf("unexpected total_fee: %s", request["total_fee"])
		}
		if request["trade_type"] != "NATIVE" {
			t.Fatalf("unexpected trade_type: %s", request["trade_type"])
		}
		if !strings.EqualFold(Sign(request, cfg.Key), request["sign"]) {
			t.Fatalf("request sign mismatch")
		}
		response := map[string]string{
			"return_code": "SUCCESS",
			"result_code": "SUCCESS",
			"appid":       cfg.AppID,
			"mch_id":      cfg.MchID,
			"prepay_id":   "wx20260101120000abcdef",
			"trade_type":  "NATIVE",
			"code_url":    "weixin://wxpay/bizpayurl?pr=abcdef",
		}
		response["sign"] = Sign(response, cfg.Key)
		_, _ = w.Write(EncodeXML(response))
	}))
	defer server.Close()
	cfg.UnifiedOrderURL = server.URL

	result, err := CreatePayment(context.Background(), cfg, CreateInput{
		OrderNo:  "PAY20260101120000AB12CD",
		Amount:   "199.00",
		Body:     "专业版套餐",
		ClientIP: "203.0.113.10",
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if result.CodeURL != "weixin://wxpay/bizpayurl?pr=abcdef" {
		t.Fatalf("unexpected code_url: %s", result.CodeURL)
	}
	if result.PrepayID != "wx20260101120000abcdef" {
		t.Fatalf("unexpected prepay_id: %s", result.PrepayID)
	}
}

func TestCreatePaymentBusinessFailure(t *testing.T) {
	cfg := buildTestConfig("")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"return_code":  "SUCCESS",
			"result_code":  "FAIL",
			"err_code":     "ORDERPAID",
			"err_code_des": "商户订单已支付",
		}
		_, _ = w.Write(EncodeXML(response))
	}))
	defer server.Close()
	cfg.UnifiedOrderURL = server.URL

	_, err := CreatePayment(context.Background(), cfg, CreateInput{
		OrderNo: "PAY20260101120000FL0001",
		Amount:  "1.00",
	})
	if err == nil {
		t.Fatalf("expected create payment error")
	}
	if !strings.Contains(err.Error(), "订单已支付") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreatePaymentTamperedResponseSign(t *testing.T) {
	cfg := buildTestConfig("")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"return_code": "SUCCESS",
			"result_code": "SUCCESS",
			"appid":       cfg.AppID,
			"mch_id":      cfg.MchID,
			"code_url":    "weixin://wxpay/bizpayurl?pr=abcdef",
		}
		response["sign"] = Sign(response, cfg.Key)
		response["code_url"] = "weixin://wxpay/bizpayurl?pr=tampered"
		_, _ = w.Write(EncodeXML(response))
	}))
	defer server.Close()
	cfg.UnifiedOrderURL = server.URL

	_, err := CreatePayment(context.Background(), cfg, CreateInput{
		OrderNo: "PAY20260101120000TP0001",
		Amount:  "1.00",
	})
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestVerifyNotifySuccess(t *testing.T) {
	cfg := buildTestConfig("")
	notify := map[string]string{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"appid":          cfg.AppID,
		"mch_id":         cfg.MchID,
		"out_trade_no":   "PAY20260101120000NT0001",
		"transaction_id": "4200001234567890",
		"total_fee":      "19900",
		"time_end":       "20260101120500",
	}
	notify["sign"] = Sign(notify, cfg.Key)

	params, err := VerifyNotify(cfg, EncodeXML(notify))
	if err != nil {
		t.Fatalf("verify notify failed: %v", err)
	}
	if params["out_trade_no"] != "PAY20260101120000NT0001" {
		t.Fatalf("unexpected out_trade_no: %s", params["out_trade_no"])
	}
	if params["transaction_id"] != "4200001234567890" {
		t.Fatalf("unexpected transaction_id: %s", params["transaction_id"])
	}
}

func TestVerifyNotifyRejectsTamperedFee(t *testing.T) {
	cfg := buildTestConfig("")
	notify := map[string]string{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"out_trade_no":   "PAY20260101120000NT0002",
		"transaction_id": "4200009876543210",
		"total_fee":      "19900",
	}
	notify["sign"] = Sign(notify, cfg.Key)
	// 签名之后再篡改金额
	notify["total_fee"] = "1"

	if _, err := VerifyNotify(cfg, EncodeXML(notify)); err == nil {
		t.Fatalf("expected verify error for tampered fee")
	}
}

func TestVerifyNotifyRejectsMissingSign(t *testing.T) {
	cfg := buildTestConfig("")
	notify := map[string]string{
		"return_code":  "SUCCESS",
		"result_code":  "SUCCESS",
		"out_trade_no": "PAY20260101120000NT0003",
	}
	if _, err := VerifyNotify(cfg, EncodeXML(notify)); err == nil {
		t.Fatalf("expected verify error for missing sign")
	}
}

func TestAckPayloads(t *testing.T) {
	if AckSuccess() != "<xml><return_code>SUCCESS</return_code><return_msg>OK</return_msg></xml>" {
		t.Fatalf("unexpected success ack: %s", AckSuccess())
	}
	if !strings.Contains(AckFail("签名校验失败"), "签名校验失败") {
		t.Fatalf("fail ack should carry message")
	}
	if !strings.Contains(AckFail(""), "FAIL") {
		t.Fatalf("fail ack should default message")
	}
}
