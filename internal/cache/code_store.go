package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrCodeNotFound    = errors.New("verify code not found or expired")
	ErrCodeMismatch    = errors.New("verify code mismatch")
	ErrTooManyAttempts = errors.New("verify code attempts exceeded")
	ErrSendTooOften    = errors.New("verify code send too often")
)

// codeState 验证码快照
// attempts 记录已消耗的校验次数，sent_at 用于发送间隔限制
type codeState struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
	SentAt   int64  `json:"sent_at"`
	ExpireAt int64  `json:"expire_at"`
}

// CodeStore 短信验证码存取接口
type CodeStore interface {
	Save(ctx context.Context, phone, purpose, code string, ttl, sendInterval time.Duration) error
	Verify(ctx context.Context, phone, purpose, code string, maxAttempts int) error
}

// NewCodeStore 按缓存可用性选择实现：Redis 可用时多实例共享，否则退化为进程内存。
func NewCodeStore() CodeStore {
	if Enabled() {
		return &RedisCodeStore{}
	}
	return NewMemoryCodeStore()
}

func verifyCodeKey(phone, purpose string) string {
	return fmt.Sprintf("sms:code:%s:%s", strings.TrimSpace(purpose), strings.TrimSpace(phone))
}

// RedisCodeStore Redis 实现
type RedisCodeStore struct{}

// Save 写入验证码，发送间隔内重复请求会被拒绝
func (s *RedisCodeStore) Save(ctx context.Context, phone, purpose, code string, ttl, sendInterval time.Duration) error {
	key := verifyCodeKey(phone, purpose)
	now := time.Now()

	var existing codeState
	hit, err := GetJSON(ctx, key, &existing)
	if err != nil {
		return err
	}
	if hit && sendInterval > 0 && now.Unix()-existing.SentAt < int64(sendInterval.Seconds()) {
		return ErrSendTooOften
	}

	state := codeState{
		Code:     strings.TrimSpace(code),
		SentAt:   now.Unix(),
		ExpireAt: now.Add(ttl).Unix(),
	}
	return SetJSON(ctx, key, &state, ttl)
}

// Verify 校验并消费验证码，成功后立即删除
func (s *RedisCodeStore) Verify(ctx context.Context, phone, purpose, code string, maxAttempts int) error {
	key := verifyCodeKey(phone, purpose)

	var state codeState
	hit, err := GetJSON(ctx, key, &state)
	if err != nil {
		return err
	}
	if !hit || time.Now().Unix() > state.ExpireAt {
		return ErrCodeNotFound
	}
	if maxAttempts > 0 && state.Attempts >= maxAttempts {
		_ = Del(ctx, key)
		return ErrTooManyAttempts
	}
	if strings.TrimSpace(code) == "" || state.Code != strings.TrimSpace(code) {
		state.Attempts++
		remaining := time.Until(time.Unix(state.ExpireAt, 0))
		if remaining > 0 {
			_ = SetJSON(ctx, key, &state, remaining)
		}
		return ErrCodeMismatch
	}
	return Del(ctx, key)
}

// MemoryCodeStore 进程内实现，开发与测试环境使用
type MemoryCodeStore struct {
	mu     sync.Mutex
	states map[string]*codeState
}

// NewMemoryCodeStore 创建内存验证码存储
func NewMemoryCodeStore() *MemoryCodeStore {
	return &MemoryCodeStore{states: make(map[string]*codeState)}
}

// Save 写入验证码
func (s *MemoryCodeStore) Save(_ context.Context, phone, purpose, code string, ttl, sendInterval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	key := verifyCodeKey(phone, purpose)
	now := time.Now()
	if existing, ok := s.states[key]; ok && sendInterval > 0 && now.Unix()-existing.SentAt < int64(sendInterval.Seconds()) {
		return ErrSendTooOften
	}
	s.states[key] = &codeState{
		Code:     strings.TrimSpace(code),
		SentAt:   now.Unix(),
		ExpireAt: now.Add(ttl).Unix(),
	}
	return nil
}

// Verify 校验并消费验证码
func (s *MemoryCodeStore) Verify(_ context.Context, phone, purpose, code string, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()

	key := verifyCodeKey(phone, purpose)
	state, ok := s.states[key]
	if !ok || time.Now().Unix() > state.ExpireAt {
		delete(s.states, key)
		return ErrCodeNotFound
	}
	if maxAttempts > 0 && state.Attempts >= maxAttempts {
		delete(s.states, key)
		return ErrTooManyAttempts
	}
	if strings.TrimSpace(code) == "" || state.Code != strings.TrimSpace(code) {
		state.Attempts++
		return ErrCodeMismatch
	}
	delete(s.states, key)
	return nil
}

func (s *MemoryCodeStore) sweepLocked() {
	now := time.Now().Unix()
	for key, state := range s.states {
		if now > state.ExpireAt {
			delete(s.states, key)
		}
	}
}
