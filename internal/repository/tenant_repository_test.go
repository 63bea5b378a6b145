package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupTenantRepositoryTest(t *testing.T) (*GormTenantRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:tenant_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Tenant{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewTenantRepository(db), db
}

func TestTenantRepositoryActivateIfInactiveWinsOnce(t *testing.T) {
	repo, _ := setupTenantRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)

	tenant := &models.Tenant{
		Code:      "T20260101A",
		Name:      "测试门店",
		Phone:     "13800138000",
		Status:    constants.TenantStatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(tenant); err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}

	expireAt := now.AddDate(1, 0, 0)
	won, err := repo.ActivateIfInactive(tenant.ID, 2, "LIC-0001", &expireAt, now)
	if err != nil {
		t.Fatalf("first activate failed: %v", err)
	}
	if !won {
		t.Fatalf("first activate should win")
	}

	// 同一支付单的重复回调不允许二次激活
	won, err = repo.ActivateIfInactive(tenant.ID, 3, "LIC-0002", &expireAt, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second activate failed: %v", err)
	}
	if won {
		t.Fatalf("second activate should not win")
	}

	got, err := repo.GetByID(tenant.ID)
	if err != nil {
		t.Fatalf("get tenant failed: %v", err)
	}
	if got.Status != constants.TenantStatusActive {
		t.Fatalf("status want active got %s", got.Status)
	}
	if got.LicenseKey != "LIC-0001" {
		t.Fatalf("license key want LIC-0001 got %s", got.LicenseKey)
	}
	if got.PackageID != 2 {
		t.Fatalf("package id want 2 got %d", got.PackageID)
	}
	if got.ActivatedAt == nil {
		t.Fatalf("activated_at should be set")
	}
}

func TestTenantRepositoryGetByPhone(t *testing.T) {
	repo, _ := setupTenantRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)

	tenant := &models.Tenant{
		Code:      "T20260101B",
		Name:      "另一家门店",
		Phone:     "13900139000",
		Status:    constants.TenantStatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(tenant); err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}

	got, err := repo.GetByPhone("13900139000")
	if err != nil {
		t.Fatalf("get by phone failed: %v", err)
	}
	if got == nil || got.ID != tenant.ID {
		t.Fatalf("tenant not found by phone")
	}

	missing, err := repo.GetByPhone("13700000000")
	if err != nil {
		t.Fatalf("get missing phone failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing phone should return nil")
	}
}
