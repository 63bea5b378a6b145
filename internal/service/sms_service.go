package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/crm-pay/internal/cache"
	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/logger"
)

// SmsSender 短信发送通道。
// 真实短信服务商是外部协作方，默认实现只写日志，便于开发环境联调。
type SmsSender interface {
	Send(ctx context.Context, phone, content string) error
}

// LogSender 日志短信通道
type LogSender struct{}

// Send 将短信内容写入日志
func (LogSender) Send(_ context.Context, phone, content string) error {
	logger.SW("phone", phone).Infow("sms_log_sender_send", "content", content)
	return nil
}

// SMSService 短信服务
type SMSService struct {
	codeStore cache.CodeStore
	sender    SmsSender
	cfg       *config.Config
}

// NewSMSService 创建短信服务
func NewSMSService(codeStore cache.CodeStore, sender SmsSender, cfg *config.Config) *SMSService {
	if sender == nil {
		sender = LogSender{}
	}
	return &SMSService{
		codeStore: codeStore,
		sender:    sender,
		cfg:       cfg,
	}
}

// SendVerifyCode 生成并下发验证码，受发送间隔限制。
func (s *SMSService) SendVerifyCode(ctx context.Context, phone, purpose string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone is required", ErrSmsCodeInvalid)
	}
	if purpose != constants.SmsPurposeRegister && purpose != constants.SmsPurposeActivate {
		return fmt.Errorf("%w: purpose is invalid", ErrSmsCodeInvalid)
	}

	code := generateVerifyCode(s.codeLength())
	err := s.codeStore.Save(ctx, phone, purpose, code, s.codeTTL(), s.sendInterval())
	if err != nil {
		if errors.Is(err, cache.ErrSendTooOften) {
			return ErrSmsSendTooOften
		}
		return err
	}

	content := fmt.Sprintf("验证码 %s，%d 分钟内有效，请勿泄露。", code, int(s.codeTTL().Minutes()))
	if err := s.sender.Send(ctx, phone, content); err != nil {
		logger.SW("phone", phone, "purpose", purpose).Warnw("sms_send_failed", "error", err)
		return err
	}
	logger.SW("phone", phone, "purpose", purpose).Infow("sms_verify_code_sent")
	return nil
}

// VerifyCode 校验并消费验证码。
func (s *SMSService) VerifyCode(ctx context.Context, phone, purpose, code string) error {
	err := s.codeStore.Verify(ctx, phone, strings.TrimSpace(purpose), code, s.maxAttempts())
	if err != nil {
		if errors.Is(err, cache.ErrCodeNotFound) || errors.Is(err, cache.ErrCodeMismatch) || errors.Is(err, cache.ErrTooManyAttempts) {
			return fmt.Errorf("%w: %v", ErrSmsCodeInvalid, err)
		}
		return err
	}
	return nil
}

// SendActivateNotice 下发租户激活通知，由队列 worker 调用。
func (s *SMSService) SendActivateNotice(ctx context.Context, phone, licenseKey string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" || strings.TrimSpace(licenseKey) == "" {
		return fmt.Errorf("%w: phone/license_key is required", ErrSmsCodeInvalid)
	}
	content := fmt.Sprintf("您的服务已开通，授权码：%s。请登录管理后台完成初始化。", licenseKey)
	if err := s.sender.Send(ctx, phone, content); err != nil {
		return err
	}
	logger.SW("phone", phone).Infow("sms_activate_notice_sent")
	return nil
}

func (s *SMSService) codeLength() int {
	if s.cfg != nil && s.cfg.SMS.VerifyCode.Length > 0 {
		return s.cfg.SMS.VerifyCode.Length
	}
	return 6
}

func (s *SMSService) codeTTL() time.Duration {
	minutes := 5
	if s.cfg != nil && s.cfg.SMS.VerifyCode.ExpireMinutes > 0 {
		minutes = s.cfg.SMS.VerifyCode.ExpireMinutes
	}
	return time.Duration(minutes) * time.Minute
}

func (s *SMSService) sendInterval() time.Duration {
	seconds := 60
	if s.cfg != nil && s.cfg.SMS.VerifyCode.SendIntervalSeconds > 0 {
		seconds = s.cfg.SMS.VerifyCode.SendIntervalSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (s *SMSService) maxAttempts() int {
	if s.cfg != nil && s.cfg.SMS.VerifyCode.MaxAttempts > 0 {
		return s.cfg.SMS.VerifyCode.MaxAttempts
	}
	return 5
}

func generateVerifyCode(length int) string {
	var builder strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand 失败时退化为时间戳取模
			builder.WriteByte(byte('0' + time.Now().UnixNano()%10))
			continue
		}
		builder.WriteByte(byte('0' + n.Int64()))
	}
	return builder.String()
}
