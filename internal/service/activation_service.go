package service

import (
	"strings"
	"time"

	"github.com/crm-pay/internal/models"
	"github.com/crm-pay/internal/queue"
	"github.com/crm-pay/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActivationService 租户激活服务。
// 激活是支付成功后的下游副作用，由 pending→paid 流转的赢者在同一事务内触发，
// ActivateIfInactive 的条件更新保证授权码全局只生成一次。
type ActivationService struct {
	tenantRepo  repository.TenantRepository
	queueClient *queue.Client
}

// NewActivationService 创建租户激活服务
func NewActivationService(tenantRepo repository.TenantRepository, queueClient *queue.Client) *ActivationService {
	return &ActivationService{
		tenantRepo:  tenantRepo,
		queueClient: queueClient,
	}
}

// ActivationResult 激活结果
type ActivationResult struct {
	Activated  bool
	TenantID   uint
	Phone      string
	LicenseKey string
}

// Activate 在事务内尝试激活支付单关联的租户。
// 租户已激活时返回 Activated=false，不生成新授权码。
func (s *ActivationService) Activate(tx *gorm.DB, order *models.PaymentOrder, pkg *models.PlanPackage, at time.Time) (*ActivationResult, error) {
	if order.TenantID == 0 {
		return &ActivationResult{Activated: false}, nil
	}
	tenantRepo := s.tenantRepo.WithTx(tx)
	tenant, err := tenantRepo.GetByID(order.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return &ActivationResult{Activated: false, TenantID: order.TenantID}, nil
	}

	licenseKey := NewLicenseKey()
	var expireAt *time.Time
	if pkg != nil && pkg.DurationDays > 0 {
		t := at.AddDate(0, 0, pkg.DurationDays)
		expireAt = &t
	}
	activated, err := tenantRepo.ActivateIfInactive(tenant.ID, order.PackageID, licenseKey, expireAt, at)
	if err != nil {
		return nil, err
	}
	if !activated {
		licenseKey = tenant.LicenseKey
	}
	return &ActivationResult{
		Activated:  activated,
		TenantID:   tenant.ID,
		Phone:      tenant.Phone,
		LicenseKey: licenseKey,
	}, nil
}

// NotifyAsync 投递激活通知短信任务，失败只告警不回滚支付结果。
func (s *ActivationService) NotifyAsync(result *ActivationResult, log *zap.SugaredLogger) {
	if result == nil || !result.Activated {
		return
	}
	err := s.queueClient.EnqueueTenantActivateSMS(queue.TenantActivateSMSPayload{
		TenantID:   result.TenantID,
		Phone:      result.Phone,
		LicenseKey: result.LicenseKey,
	})
	if err != nil {
		log.Warnw("tenant_activate_sms_enqueue_failed", "error", err)
	}
}

// NewLicenseKey 生成租户授权码：LIC- 前缀 + 分组的大写 uuid。
func NewLicenseKey() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "LIC-" + raw[0:8] + "-" + raw[8:16] + "-" + raw[16:24] + "-" + raw[24:32]
}
