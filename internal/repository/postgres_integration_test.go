//go:build integration
// +build integration

package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupPostgresIntegrationDB 初始化 PostgreSQL 集成测试数据库。
func setupPostgresIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("skip postgres integration test: TEST_POSTGRES_DSN is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open postgres failed: %v", err)
	}

	cleanupModels := []interface{}{
		&models.PaymentLog{},
		&models.PaymentOrder{},
		&models.Tenant{},
		&models.PlanPackage{},
		&models.Setting{},
	}
	_ = db.Migrator().DropTable(cleanupModels...)

	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.PlanPackage{},
		&models.PaymentOrder{},
		&models.PaymentLog{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("migrate postgres models failed: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Migrator().DropTable(cleanupModels...)
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func TestPostgresPaymentOrderTransitionIfPending(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	repo := NewPaymentOrderRepository(db)
	order := &models.PaymentOrder{
		ID:       uuid.NewString(),
		OrderNo:  "PAY20260101120000PGTEST",
		TenantID: 1,
		Amount:   models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
		PayType:  constants.PayTypeWechat,
		Status:   constants.PaymentOrderStatusPending,
		Subject:  "基础版",
	}
	if err := repo.Create(order); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	won, err := repo.TransitionIfPending(order.OrderNo, constants.PaymentOrderStatusPaid, "PGTRADENO", nil, time.Now())
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if !won {
		t.Fatalf("first transition should win")
	}

	won, err = repo.TransitionIfPending(order.OrderNo, constants.PaymentOrderStatusClosed, "", nil, time.Now())
	if err != nil {
		t.Fatalf("second transition failed: %v", err)
	}
	if won {
		t.Fatalf("second transition should lose")
	}

	stored, err := repo.GetByOrderNo(order.OrderNo)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Status != constants.PaymentOrderStatusPaid || stored.TradeNo != "PGTRADENO" {
		t.Fatalf("order should stay paid with trade no, got %s/%s", stored.Status, stored.TradeNo)
	}
}

func TestPostgresTenantActivateIfInactive(t *testing.T) {
	db := setupPostgresIntegrationDB(t)

	repo := NewTenantRepository(db)
	tenant := &models.Tenant{
		Code:   "TPG001",
		Name:   "PG 集成租户",
		Phone:  "13800138099",
		Status: constants.TenantStatusInactive,
	}
	if err := repo.Create(tenant); err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}

	expire := time.Now().AddDate(1, 0, 0)
	won, err := repo.ActivateIfInactive(tenant.ID, 1, "LIC-PG", &expire, time.Now())
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	if !won {
		t.Fatalf("first activation should win")
	}

	won, err = repo.ActivateIfInactive(tenant.ID, 2, "LIC-OTHER", &expire, time.Now())
	if err != nil {
		t.Fatalf("second activate failed: %v", err)
	}
	if won {
		t.Fatalf("second activation should lose")
	}

	stored, err := repo.GetByID(tenant.ID)
	if err != nil {
		t.Fatalf("get tenant failed: %v", err)
	}
	if stored.Status != constants.TenantStatusActive || stored.LicenseKey != "LIC-PG" {
		t.Fatalf("tenant should keep first activation, got %s/%s", stored.Status, stored.LicenseKey)
	}
}
