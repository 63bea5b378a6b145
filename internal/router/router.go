package router

import (
	"fmt"
	"strings"

	"github.com/crm-pay/internal/cache"
	"github.com/crm-pay/internal/config"
	adminhandlers "github.com/crm-pay/internal/http/handlers/admin"
	publichandlers "github.com/crm-pay/internal/http/handlers/public"
	"github.com/crm-pay/internal/logger"
	"github.com/crm-pay/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "crmpay"
	}
	redisClient := cache.Client()
	smsRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:sms", redisPrefix),
		WindowSeconds: cfg.Security.SmsRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.SmsRateLimit.MaxAttempts,
		Message:       "发送过于频繁，请稍后再试",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/packages", publicHandler.ListPackages)

		// 支付接口
		payment := apiV1.Group("/payment")
		{
			payment.POST("/create", publicHandler.CreatePayment)
			payment.GET("/query/:order_no", publicHandler.QueryPayment)
			payment.POST("/wechat/notify", publicHandler.HandleWechatNotify)
			payment.POST("/alipay/notify", publicHandler.HandleAlipayNotify)

			// 管理端操作
			guarded := payment.Group("")
			guarded.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey))
			{
				guarded.POST("/close/:order_no", adminHandler.ClosePaymentOrder)
				guarded.POST("/mock-pay/:order_no", adminHandler.MockPayOrder)
			}
		}

		// 短信接口
		sms := apiV1.Group("/sms")
		{
			sms.POST("/send-code", RateLimitMiddleware(redisClient, smsRule, KeyByIPAndJSONField("phone")), publicHandler.SendSmsCode)
			sms.POST("/verify-code", publicHandler.VerifySmsCode)
		}

		// 管理端接口
		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey))
		{
			admin.GET("/payment/orders", adminHandler.ListPaymentOrders)
			admin.GET("/payment/logs", adminHandler.ListPaymentLogs)
			admin.GET("/tenants", adminHandler.ListTenants)
			admin.GET("/tenants/:id", adminHandler.GetTenant)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
