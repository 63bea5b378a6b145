package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/crm-pay/internal/cache"
	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/constants"
)

type captureSender struct {
	mu       sync.Mutex
	messages []string
}

func (s *captureSender) Send(_ context.Context, phone, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, phone+"|"+content)
	return nil
}

func (s *captureSender) last(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		t.Fatalf("no sms captured")
	}
	return s.messages[len(s.messages)-1]
}

func setupSMSServiceTest(t *testing.T) (*SMSService, *captureSender) {
	t.Helper()
	cfg := &config.Config{}
	cfg.SMS.VerifyCode.Length = 6
	cfg.SMS.VerifyCode.ExpireMinutes = 5
	cfg.SMS.VerifyCode.SendIntervalSeconds = 1
	cfg.SMS.VerifyCode.MaxAttempts = 3
	sender := &captureSender{}
	return NewSMSService(cache.NewMemoryCodeStore(), sender, cfg), sender
}

func TestSendVerifyCodeAndConsumeOnce(t *testing.T) {
	svc, sender := setupSMSServiceTest(t)
	ctx := context.Background()

	if err := svc.SendVerifyCode(ctx, "13800138000", constants.SmsPurposeRegister); err != nil {
		t.Fatalf("send verify code failed: %v", err)
	}
	message := sender.last(t)
	code := extractVerifyCode(t, message)
	if len(code) != 6 {
		t.Fatalf("code length want 6 got %d", len(code))
	}

	if err := svc.VerifyCode(ctx, "13800138000", constants.SmsPurposeRegister, code); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	// 验证码是一次性的
	if err := svc.VerifyCode(ctx, "13800138000", constants.SmsPurposeRegister, code); !errors.Is(err, ErrSmsCodeInvalid) {
		t.Fatalf("code should be single-use, got %v", err)
	}
}

func TestSendVerifyCodeIntervalLimit(t *testing.T) {
	svc, _ := setupSMSServiceTest(t)
	ctx := context.Background()

	if err := svc.SendVerifyCode(ctx, "13900139000", constants.SmsPurposeRegister); err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if err := svc.SendVerifyCode(ctx, "13900139000", constants.SmsPurposeRegister); !errors.Is(err, ErrSmsSendTooOften) {
		t.Fatalf("expected interval limit, got %v", err)
	}
}

func TestVerifyCodeWrongPurpose(t *testing.T) {
	svc, sender := setupSMSServiceTest(t)
	ctx := context.Background()

	if err := svc.SendVerifyCode(ctx, "13700137000", constants.SmsPurposeRegister); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	code := extractVerifyCode(t, sender.last(t))
	if err := svc.VerifyCode(ctx, "13700137000", constants.SmsPurposeActivate, code); !errors.Is(err, ErrSmsCodeInvalid) {
		t.Fatalf("other purpose should not verify, got %v", err)
	}
}

func TestSendActivateNotice(t *testing.T) {
	svc, sender := setupSMSServiceTest(t)

	if err := svc.SendActivateNotice(context.Background(), "13800138000", "LIC-ABCDEF01-00000000-00000000-00000000"); err != nil {
		t.Fatalf("send activate notice failed: %v", err)
	}
	message := sender.last(t)
	if !strings.Contains(message, "LIC-ABCDEF01") {
		t.Fatalf("notice should carry license key, got %s", message)
	}

	if err := svc.SendActivateNotice(context.Background(), "", "LIC-X"); err == nil {
		t.Fatalf("empty phone should fail")
	}
}

func extractVerifyCode(t *testing.T, message string) string {
	t.Helper()
	start := strings.Index(message, "验证码 ")
	if start < 0 {
		t.Fatalf("verify code not found in %s", message)
	}
	rest := message[start+len("验证码 "):]
	end := strings.Index(rest, "，")
	if end < 0 {
		t.Fatalf("verify code not terminated in %s", message)
	}
	return rest[:end]
}
