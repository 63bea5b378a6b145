package repository

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPaymentOrderRepositoryTest(t *testing.T) (*GormPaymentOrderRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_order_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.PlanPackage{},
		&models.PaymentOrder{},
		&models.PaymentLog{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewPaymentOrderRepository(db), db
}

func newTestPaymentOrder(orderNo string, now time.Time) *models.PaymentOrder {
	return &models.PaymentOrder{
		ID:        uuid.NewString(),
		OrderNo:   orderNo,
		TenantID:  1,
		PackageID: 1,
		Subject:   "专业版套餐",
		Amount:    models.NewMoneyFromDecimal(decimal.NewFromInt(199)),
		Currency:  "CNY",
		PayType:   constants.PayTypeWechat,
		Status:    constants.PaymentOrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPaymentOrderRepositoryCreateDuplicateOrderNo(t *testing.T) {
	repo, _ := setupPaymentOrderRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)

	if err := repo.Create(newTestPaymentOrder("PAY20260101120000AB12CD", now)); err != nil {
		t.Fatalf("create first order failed: %v", err)
	}
	err := repo.Create(newTestPaymentOrder("PAY20260101120000AB12CD", now))
	if !errors.Is(err, ErrDuplicateOrderNo) {
		t.Fatalf("want ErrDuplicateOrderNo got %v", err)
	}
}

func TestPaymentOrderRepositoryTransitionIfPendingWinsOnce(t *testing.T) {
	repo, _ := setupPaymentOrderRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	orderNo := "PAY20260101120000XY34ZW"

	if err := repo.Create(newTestPaymentOrder(orderNo, now)); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	payload := models.JSON{"transaction_id": "4200001234567890"}
	won, err := repo.TransitionIfPending(orderNo, constants.PaymentOrderStatusPaid, "4200001234567890", payload, now)
	if err != nil {
		t.Fatalf("first transition failed: %v", err)
	}
	if !won {
		t.Fatalf("first transition should win")
	}

	// 重复通知与迟到的关单都不应再次流转
	for _, status := range []string{constants.PaymentOrderStatusPaid, constants.PaymentOrderStatusClosed} {
		won, err := repo.TransitionIfPending(orderNo, status, "", nil, now.Add(time.Minute))
		if err != nil {
			t.Fatalf("repeat transition to %s failed: %v", status, err)
		}
		if won {
			t.Fatalf("repeat transition to %s should not win", status)
		}
	}

	order, err := repo.GetByOrderNo(orderNo)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order == nil {
		t.Fatalf("order not found after transition")
	}
	if order.Status != constants.PaymentOrderStatusPaid {
		t.Fatalf("status want paid got %s", order.Status)
	}
	if order.TradeNo != "4200001234567890" {
		t.Fatalf("trade no want 4200001234567890 got %s", order.TradeNo)
	}
	if order.PaidAt == nil {
		t.Fatalf("paid_at should be set")
	}
	if order.ClosedAt != nil {
		t.Fatalf("closed_at should stay empty after paid")
	}
}

func TestPaymentOrderRepositoryTransitionIfPendingConcurrent(t *testing.T) {
	repo, db := setupPaymentOrderRepositoryTest(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db failed: %v", err)
	}
	// 共享内存库多连接并发写会报 busy，单连接即可，竞争点在条件更新本身
	sqlDB.SetMaxOpenConns(1)

	now := time.Now().UTC().Truncate(time.Second)
	orderNo := "PAY20260101120000CC16AA"
	if err := repo.Create(newTestPaymentOrder(orderNo, now)); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// 支付回调与关单任务同时抢同一笔 pending，条件更新只允许一个赢
	const workers = 16
	var (
		wg   sync.WaitGroup
		wins int32
	)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			status := constants.PaymentOrderStatusPaid
			tradeNo := fmt.Sprintf("TRADE%04d", n)
			if n%2 == 1 {
				status = constants.PaymentOrderStatusClosed
				tradeNo = ""
			}
			won, err := repo.TransitionIfPending(orderNo, status, tradeNo, nil, time.Now())
			if err != nil {
				errs <- err
				return
			}
			if won {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent transition failed: %v", err)
	}
	if wins != 1 {
		t.Fatalf("winners want exactly 1 got %d", wins)
	}

	order, err := repo.GetByOrderNo(orderNo)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	switch order.Status {
	case constants.PaymentOrderStatusPaid:
		if order.TradeNo == "" || order.PaidAt == nil {
			t.Fatalf("paid winner must record trade_no and paid_at, got trade_no=%q", order.TradeNo)
		}
	case constants.PaymentOrderStatusClosed:
		if order.TradeNo != "" || order.ClosedAt == nil {
			t.Fatalf("closed winner must not carry trade_no, got %q", order.TradeNo)
		}
	default:
		t.Fatalf("status must be terminal, got %s", order.Status)
	}
}

func TestPaymentOrderRepositoryTransitionClose(t *testing.T) {
	repo, _ := setupPaymentOrderRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	orderNo := "PAY20260101120000CL05ED"

	if err := repo.Create(newTestPaymentOrder(orderNo, now)); err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	won, err := repo.TransitionIfPending(orderNo, constants.PaymentOrderStatusClosed, "", nil, now)
	if err != nil {
		t.Fatalf("close transition failed: %v", err)
	}
	if !won {
		t.Fatalf("close transition should win")
	}

	// 关单之后到达的支付成功通知必须被拒绝
	won, err = repo.TransitionIfPending(orderNo, constants.PaymentOrderStatusPaid, "late-trade-no", nil, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("late paid transition failed: %v", err)
	}
	if won {
		t.Fatalf("late paid transition should not win")
	}

	order, err := repo.GetByOrderNo(orderNo)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order.Status != constants.PaymentOrderStatusClosed {
		t.Fatalf("status want closed got %s", order.Status)
	}
	if order.ClosedAt == nil {
		t.Fatalf("closed_at should be set")
	}
	if order.TradeNo != "" {
		t.Fatalf("trade no should stay empty got %s", order.TradeNo)
	}
}

func TestPaymentOrderRepositoryListExpiredPending(t *testing.T) {
	repo, db := setupPaymentOrderRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)

	expired := newTestPaymentOrder("PAY20260101120000EXP001", now)
	expiredAt := now.Add(-time.Minute)
	expired.ExpiredAt = &expiredAt
	if err := db.Create(expired).Error; err != nil {
		t.Fatalf("create expired order failed: %v", err)
	}

	alive := newTestPaymentOrder("PAY20260101120000ALV001", now)
	aliveAt := now.Add(time.Hour)
	alive.ExpiredAt = &aliveAt
	if err := db.Create(alive).Error; err != nil {
		t.Fatalf("create alive order failed: %v", err)
	}

	noDeadline := newTestPaymentOrder("PAY20260101120000NOD001", now)
	if err := db.Create(noDeadline).Error; err != nil {
		t.Fatalf("create no-deadline order failed: %v", err)
	}

	rows, err := repo.ListExpiredPending(now, 10)
	if err != nil {
		t.Fatalf("list expired pending failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows len want 1 got %d", len(rows))
	}
	if rows[0].OrderNo != expired.OrderNo {
		t.Fatalf("unexpected expired order: %s", rows[0].OrderNo)
	}
}

func TestPaymentOrderRepositorySetGatewayResult(t *testing.T) {
	repo, _ := setupPaymentOrderRepositoryTest(t)
	now := time.Now().UTC().Truncate(time.Second)
	orderNo := "PAY20260101120000GW0001"

	if err := repo.Create(newTestPaymentOrder(orderNo, now)); err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if err := repo.SetGatewayResult(orderNo, "https://pay.example.com/page", "weixin://wxpay/bizpayurl?pr=abc"); err != nil {
		t.Fatalf("set gateway result failed: %v", err)
	}

	order, err := repo.GetByOrderNo(orderNo)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if order.PayURL != "https://pay.example.com/page" {
		t.Fatalf("pay url not written: %s", order.PayURL)
	}
	if order.QRCode != "weixin://wxpay/bizpayurl?pr=abc" {
		t.Fatalf("qr code not written: %s", order.QRCode)
	}
}
