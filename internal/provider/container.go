package provider

import (
	"github.com/crm-pay/internal/cache"
	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/logger"
	"github.com/crm-pay/internal/models"
	"github.com/crm-pay/internal/payconfig"
	"github.com/crm-pay/internal/queue"
	"github.com/crm-pay/internal/repository"
	"github.com/crm-pay/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	CodeStore   cache.CodeStore

	// Repositories
	PaymentOrderRepo repository.PaymentOrderRepository
	PaymentLogRepo   repository.PaymentLogRepository
	TenantRepo       repository.TenantRepository
	PlanPackageRepo  repository.PlanPackageRepository
	SettingRepo      repository.SettingRepository

	// Services
	PaymentService    *service.PaymentService
	ActivationService *service.ActivationService
	SMSService        *service.SMSService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		CodeStore:   cache.NewCodeStore(),
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.PaymentOrderRepo = repository.NewPaymentOrderRepository(db)
	c.PaymentLogRepo = repository.NewPaymentLogRepository(db)
	c.TenantRepo = repository.NewTenantRepository(db)
	c.PlanPackageRepo = repository.NewPlanPackageRepository(db)
	c.SettingRepo = repository.NewSettingRepository(db)
}

func (c *Container) initServices() {
	// 支付配置解析链：环境配置优先，设置表兜底。
	configChain := payconfig.NewChain(
		payconfig.NewEnvProvider(c.Config),
		payconfig.NewStoreProvider(c.SettingRepo),
	)

	c.ActivationService = service.NewActivationService(c.TenantRepo, c.QueueClient)
	c.PaymentService = service.NewPaymentService(
		c.PaymentOrderRepo,
		c.PaymentLogRepo,
		c.TenantRepo,
		c.PlanPackageRepo,
		configChain,
		c.ActivationService,
		c.QueueClient,
		c.Config,
	)
	c.SMSService = service.NewSMSService(c.CodeStore, nil, c.Config)
}
