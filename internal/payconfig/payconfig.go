package payconfig

import (
	"strings"

	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/payment/alipay"
	"github.com/crm-pay/internal/payment/wechat"
	"github.com/crm-pay/internal/repository"
)

// Provider 商户配置来源。
// present=false 表示该来源没有配置，是合法状态而非错误，调用方据此降级为模拟支付。
type Provider interface {
	WechatConfig() (cfg *wechat.Config, present bool, err error)
	AlipayConfig() (cfg *alipay.Config, present bool, err error)
}

// EnvProvider 从应用配置文件/环境变量读取商户配置
type EnvProvider struct {
	cfg *config.Config
}

// NewEnvProvider 创建文件配置来源
func NewEnvProvider(cfg *config.Config) *EnvProvider {
	return &EnvProvider{cfg: cfg}
}

// WechatConfig 读取微信商户配置
func (p *EnvProvider) WechatConfig() (*wechat.Config, bool, error) {
	if p.cfg == nil {
		return nil, false, nil
	}
	raw := p.cfg.Payment.Wechat
	if strings.TrimSpace(raw.AppID) == "" && strings.TrimSpace(raw.MchID) == "" && strings.TrimSpace(raw.Key) == "" {
		return nil, false, nil
	}
	cfg := &wechat.Config{
		AppID: raw.AppID,
		MchID: raw.MchID,
		Key:   raw.Key,
	}
	if err := wechat.ValidateConfig(cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// AlipayConfig 读取支付宝商户配置
func (p *EnvProvider) AlipayConfig() (*alipay.Config, bool, error) {
	if p.cfg == nil {
		return nil, false, nil
	}
	raw := p.cfg.Payment.Alipay
	if strings.TrimSpace(raw.AppID) == "" && strings.TrimSpace(raw.PrivateKey) == "" {
		return nil, false, nil
	}
	cfg := &alipay.Config{
		AppID:           raw.AppID,
		PrivateKey:      raw.PrivateKey,
		AlipayPublicKey: raw.AliPublicKey,
		GatewayURL:      raw.Gateway,
		SignType:        raw.SignType,
	}
	if err := alipay.ValidateConfig(cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// StoreProvider 从 settings 表读取商户配置
type StoreProvider struct {
	settingRepo repository.SettingRepository
}

// NewStoreProvider 创建 settings 表配置来源
func NewStoreProvider(settingRepo repository.SettingRepository) *StoreProvider {
	return &StoreProvider{settingRepo: settingRepo}
}

// WechatConfig 读取微信商户配置
func (p *StoreProvider) WechatConfig() (*wechat.Config, bool, error) {
	if p.settingRepo == nil {
		return nil, false, nil
	}
	setting, err := p.settingRepo.GetByKey(constants.SettingKeyWechatPayConfig)
	if err != nil {
		return nil, false, err
	}
	if setting == nil || len(setting.ValueJSON) == 0 {
		return nil, false, nil
	}
	cfg, err := wechat.ParseConfig(setting.ValueJSON)
	if err != nil {
		return nil, true, err
	}
	if err := wechat.ValidateConfig(cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// AlipayConfig 读取支付宝商户配置
func (p *StoreProvider) AlipayConfig() (*alipay.Config, bool, error) {
	if p.settingRepo == nil {
		return nil, false, nil
	}
	setting, err := p.settingRepo.GetByKey(constants.SettingKeyAlipayConfig)
	if err != nil {
		return nil, false, err
	}
	if setting == nil || len(setting.ValueJSON) == 0 {
		return nil, false, nil
	}
	cfg, err := alipay.ParseConfig(setting.ValueJSON)
	if err != nil {
		return nil, true, err
	}
	if err := alipay.ValidateConfig(cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// Chain 按顺序取第一个有配置的来源
type Chain struct {
	providers []Provider
}

// NewChain 组合多个配置来源
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// WechatConfig 读取微信商户配置
func (c *Chain) WechatConfig() (*wechat.Config, bool, error) {
	for _, provider := range c.providers {
		cfg, present, err := provider.WechatConfig()
		if err != nil {
			return nil, present, err
		}
		if present {
			return cfg, true, nil
		}
	}
	return nil, false, nil
}

// AlipayConfig 读取支付宝商户配置
func (c *Chain) AlipayConfig() (*alipay.Config, bool, error) {
	for _, provider := range c.providers {
		cfg, present, err := provider.AlipayConfig()
		if err != nil {
			return nil, present, err
		}
		if present {
			return cfg, true, nil
		}
	}
	return nil, false, nil
}
