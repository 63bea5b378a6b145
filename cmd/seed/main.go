package main

import (
	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/logger"
	"github.com/crm-pay/internal/models"

	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 套餐
	packages := []models.PlanPackage{
		{
			Name:         "基础版",
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
			DurationDays: 365,
			MaxUsers:     10,
			Enabled:      true,
			SortOrder:    10,
		},
		{
			Name:         "专业版",
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(599)),
			DurationDays: 365,
			MaxUsers:     50,
			Enabled:      true,
			SortOrder:    20,
		},
		{
			Name:         "旗舰版",
			Price:        models.NewMoneyFromDecimal(decimal.NewFromInt(1299)),
			DurationDays: 365,
			MaxUsers:     0,
			Enabled:      true,
			SortOrder:    30,
		},
	}

	for _, pkg := range packages {
		var existing models.PlanPackage
		if err := models.DB.Where("name = ?", pkg.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&pkg).Error; err != nil {
				stdLog.Printf("Failed to create package %s: %v", pkg.Name, err)
			} else {
				stdLog.Printf("Created package: %s", pkg.Name)
			}
		} else {
			stdLog.Printf("Package already exists: %s", pkg.Name)
		}
	}

	// 演示租户（未激活，等待支付开通）
	tenant := models.Tenant{
		Code:   "T0001",
		Name:   "演示租户",
		Phone:  "13800138000",
		Status: constants.TenantStatusInactive,
	}
	var existingTenant models.Tenant
	if err := models.DB.Where("code = ?", tenant.Code).First(&existingTenant).Error; err != nil {
		if err := models.DB.Create(&tenant).Error; err != nil {
			stdLog.Printf("Failed to create tenant %s: %v", tenant.Code, err)
		} else {
			stdLog.Printf("Created tenant: %s", tenant.Code)
		}
	} else {
		stdLog.Printf("Tenant already exists: %s", tenant.Code)
	}

	stdLog.Println("Seed finished")
}
