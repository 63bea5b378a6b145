package wechat

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/crm-pay/internal/constants"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid    = errors.New("wechat config invalid")
	ErrRequestFailed    = errors.New("wechat request failed")
	ErrResponseInvalid  = errors.New("wechat response invalid")
	ErrSignatureInvalid = errors.New("wechat signature invalid")
)

const defaultUnifiedOrderURL = "https://api.mch.weixin.qq.com/pay/unifiedorder"

// Config 微信支付 v2 商户配置。
type Config struct {
	AppID           string `json:"app_id"`
	MchID           string `json:"mch_id"`
	Key             string `json:"key"`
	UnifiedOrderURL string `json:"unified_order_url"`
	NotifyURL       string `json:"notify_url"`
}

// CreateInput 微信下单输入。
type CreateInput struct {
	OrderNo   string
	Amount    string
	Body      string
	ClientIP  string
	NotifyURL string
}

// CreateResult 微信下单返回。
type CreateResult struct {
	CodeURL    string
	PrepayID   string
	OutTradeNo string
	Raw        map[string]interface{}
}

// ParseConfig 解析配置。
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig 校验配置完整性。
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return fmt.Errorf("%w: app_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.MchID) == "" {
		return fmt.Errorf("%w: mch_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.Key) == "" {
		return fmt.Errorf("%w: key is required", ErrConfigInvalid)
	}
	return nil
}

// CreatePayment 调用统一下单接口，返回扫码支付的 code_url。
func CreatePayment(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	input.OrderNo = strings.TrimSpace(input.OrderNo)
	if input.OrderNo == "" {
		return nil, fmt.Errorf("%w: order_no is required", ErrConfigInvalid)
	}
	totalFee, err := convertAmountToFen(input.Amount)
	if err != nil {
		return nil, err
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		body = input.OrderNo
	}
	clientIP := strings.TrimSpace(input.ClientIP)
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	notifyURL := strings.TrimSpace(input.NotifyURL)
	if notifyURL == "" {
		notifyURL = cfg.NotifyURL
	}
	if notifyURL == "" {
		return nil, fmt.Errorf("%w: notify_url is required", ErrConfigInvalid)
	}

	params := map[string]string{
		"appid":            cfg.AppID,
		"mch_id":           cfg.MchID,
		"nonce_str":        newNonce(),
		"body":             body,
		"out_trade_no":     input.OrderNo,
		"total_fee":        fmt.Sprintf("%d", totalFee),
		"spbill_create_ip": clientIP,
		"notify_url":       notifyURL,
		"trade_type":       constants.WechatTradeTypeNative,
		"sign_type":        constants.WechatSignTypeMD5,
	}
	params["sign"] = Sign(params, cfg.Key)

	responseBody, err := postXML(ctx, cfg.UnifiedOrderURL, EncodeXML(params))
	if err != nil {
		return nil, err
	}
	response, err := DecodeXML(responseBody)
	if err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}

	// return_code 是通信层结果，result_code 才是业务结果，二者都必须是 SUCCESS
	if response["return_code"] != constants.WechatReturnCodeSuccess {
		message := strings.TrimSpace(response["return_msg"])
		if message == "" {
			message = "return_code=" + response["return_code"]
		}
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, message)
	}
	if sign := strings.TrimSpace(response["sign"]); sign != "" {
		if !strings.EqualFold(Sign(response, cfg.Key), sign) {
			return nil, fmt.Errorf("%w: response sign mismatch", ErrSignatureInvalid)
		}
	}
	if response["result_code"] != constants.WechatResultCodeSuccess {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, providerErrorMessage(response))
	}

	codeURL := strings.TrimSpace(response["code_url"])
	if codeURL == "" {
		return nil, fmt.Errorf("%w: code_url is empty", ErrResponseInvalid)
	}

	raw := make(map[string]interface{}, len(response))
	for key, value := range response {
		raw[key] = value
	}
	return &CreateResult{
		CodeURL:    codeURL,
		PrepayID:   strings.TrimSpace(response["prepay_id"]),
		OutTradeNo: input.OrderNo,
		Raw:        raw,
	}, nil
}

// VerifyNotify 解析并验签微信异步通知报文。
// 验签通过且 return_code/result_code 均为 SUCCESS 才返回参数。
func VerifyNotify(cfg *Config, body []byte) (map[string]string, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: notify body is empty", ErrSignatureInvalid)
	}
	params, err := DecodeXML(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode notify failed", ErrSignatureInvalid)
	}
	sign := strings.TrimSpace(params["sign"])
	if sign == "" {
		return nil, fmt.Errorf("%w: sign is required", ErrSignatureInvalid)
	}
	if !strings.EqualFold(Sign(params, cfg.Key), sign) {
		return nil, fmt.Errorf("%w: sign mismatch", ErrSignatureInvalid)
	}
	if params["return_code"] != constants.WechatReturnCodeSuccess {
		return nil, fmt.Errorf("%w: return_code is %s", ErrResponseInvalid, params["return_code"])
	}
	if params["result_code"] != constants.WechatResultCodeSuccess {
		return nil, fmt.Errorf("%w: result_code is %s", ErrResponseInvalid, params["result_code"])
	}
	if strings.TrimSpace(params["out_trade_no"]) == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrResponseInvalid)
	}
	return params, nil
}

// 业务错误码的中文释义，兜底取 err_code_des/return_msg 原文。
var providerErrorMessages = map[string]string{
	"ORDERPAID":         "订单已支付",
	"ORDERCLOSED":       "订单已关闭",
	"OUT_TRADE_NO_USED": "商户订单号重复",
	"NOTENOUGH":         "用户余额不足",
	"SYSTEMERROR":       "微信系统异常，请稍后重试",
	"SIGNERROR":         "签名错误",
	"PARAM_ERROR":       "请求参数错误",
	"APPID_NOT_EXIST":   "APPID 不存在",
	"MCHID_NOT_EXIST":   "商户号不存在",
	"NOAUTH":            "商户无此接口权限",
}

func providerErrorMessage(response map[string]string) string {
	errCode := strings.TrimSpace(response["err_code"])
	if message, ok := providerErrorMessages[errCode]; ok {
		return message
	}
	if message := strings.TrimSpace(response["err_code_des"]); message != "" {
		return message
	}
	if message := strings.TrimSpace(response["return_msg"]); message != "" {
		return message
	}
	if errCode != "" {
		return errCode
	}
	return "result_code=" + response["result_code"]
}

// Sign 计算 v2 MD5 签名：按键名字典序拼接 k=v，追加 &key=密钥，取大写十六进制。
func Sign(params map[string]string, key string) string {
	content := buildSignContent(params) + "&key=" + key
	sum := md5.Sum([]byte(content))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// AckSuccess 回调成功应答报文。
func AckSuccess() string {
	return "<xml><return_code>SUCCESS</return_code><return_msg>OK</return_msg></xml>"
}

// AckFail 回调失败应答报文。
func AckFail(message string) string {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "FAIL"
	}
	return fmt.Sprintf("<xml><return_code>FAIL</return_code><return_msg>%s</return_msg></xml>", message)
}

func buildSignContent(params map[string]string) string {
	var keys []string
	for k, v := range params {
		if v == "" {
			continue
		}
		if k == "sign" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, params[k]))
	}
	return strings.Join(pairs, "&")
}

func convertAmountToFen(amount string) (int64, error) {
	amountDec, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if amountDec.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	fen := amountDec.Mul(decimal.NewFromInt(100))
	if !fen.Equal(fen.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision exceeds fen", ErrConfigInvalid)
	}
	return fen.IntPart(), nil
}

func newNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func postXML(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultUnifiedOrderURL
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http request failed", ErrRequestFailed)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrResponseInvalid, resp.StatusCode)
	}
	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrRequestFailed)
	}
	return responseBody, nil
}

func (c *Config) normalize() {
	c.AppID = strings.TrimSpace(c.AppID)
	c.MchID = strings.TrimSpace(c.MchID)
	c.Key = strings.TrimSpace(c.Key)
	c.UnifiedOrderURL = strings.TrimSpace(c.UnifiedOrderURL)
	c.NotifyURL = strings.TrimSpace(c.NotifyURL)
	if c.UnifiedOrderURL == "" {
		c.UnifiedOrderURL = defaultUnifiedOrderURL
	}
}
