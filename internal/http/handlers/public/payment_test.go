package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/crm-pay/internal/cache"
	"github.com/crm-pay/internal/config"
	"github.com/crm-pay/internal/constants"
	"github.com/crm-pay/internal/models"
	"github.com/crm-pay/internal/payconfig"
	"github.com/crm-pay/internal/provider"
	"github.com/crm-pay/internal/queue"
	"github.com/crm-pay/internal/repository"
	"github.com/crm-pay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type publicHandlerFixture struct {
	handler *Handler
	tenant  *models.Tenant
	pkg     *models.PlanPackage
}

func setupPublicHandlerTest(t *testing.T) *publicHandlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.PlanPackage{},
		&models.PaymentOrder{},
		&models.PaymentLog{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.Payment.ExpireMinutes = 15
	cfg.Payment.NotifyBaseURL = "http://127.0.0.1:8080"

	now := time.Now()
	tenant := &models.Tenant{
		Code:   fmt.Sprintf("T%d", now.UnixNano()%1000000),
		Name:   "演示门店",
		Phone:  fmt.Sprintf("139%08d", now.UnixNano()%100000000),
		Status: constants.TenantStatusInactive,
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("create tenant failed: %v", err)
	}
	price, err := models.NewMoneyFromString("199.00")
	if err != nil {
		t.Fatalf("parse price failed: %v", err)
	}
	pkg := &models.PlanPackage{
		Name:         "专业版",
		Price:        price,
		DurationDays: 365,
		Enabled:      true,
	}
	if err := db.Create(pkg).Error; err != nil {
		t.Fatalf("create package failed: %v", err)
	}

	orderRepo := repository.NewPaymentOrderRepository(db)
	logRepo := repository.NewPaymentLogRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	packageRepo := repository.NewPlanPackageRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("create queue client failed: %v", err)
	}
	chain := payconfig.NewChain(payconfig.NewEnvProvider(cfg), payconfig.NewStoreProvider(settingRepo))
	activationSvc := service.NewActivationService(tenantRepo, queueClient)
	paymentSvc := service.NewPaymentService(orderRepo, logRepo, tenantRepo, packageRepo, chain, activationSvc, queueClient, cfg)
	smsSvc := service.NewSMSService(cache.NewMemoryCodeStore(), nil, cfg)

	container := &provider.Container{
		Config:            cfg,
		QueueClient:       queueClient,
		PaymentOrderRepo:  orderRepo,
		PaymentLogRepo:    logRepo,
		TenantRepo:        tenantRepo,
		PlanPackageRepo:   packageRepo,
		SettingRepo:       settingRepo,
		PaymentService:    paymentSvc,
		ActivationService: activationSvc,
		SMSService:        smsSvc,
	}

	return &publicHandlerFixture{
		handler: New(container),
		tenant:  tenant,
		pkg:     pkg,
	}
}

type envelope struct {
	StatusCode int                    `json:"status_code"`
	Msg        string                 `json:"msg"`
	Data       map[string]interface{} `json:"data"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var resp envelope
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal envelope failed: %v", err)
	}
	return resp
}

func TestCreatePaymentAndQueryEndpoints(t *testing.T) {
	f := setupPublicHandlerTest(t)

	payload := fmt.Sprintf(
		`{"tenant_id":%d,"package_id":%d,"amount":"199.00","pay_type":"wechat","contact_name":"张三","contact_phone":"13800138000"}`,
		f.tenant.ID, f.pkg.ID,
	)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payment/create", strings.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	f.handler.CreatePayment(c)

	if w.Code != http.StatusOK {
		t.Fatalf("create status want 200 got %d", w.Code)
	}
	resp := decodeEnvelope(t, w.Body.Bytes())
	if resp.StatusCode != 0 {
		t.Fatalf("create status_code want 0 got %d, msg=%s", resp.StatusCode, resp.Msg)
	}
	orderNo, _ := resp.Data["order_no"].(string)
	if len(orderNo) != 23 || !strings.HasPrefix(orderNo, "PAY") {
		t.Fatalf("unexpected order_no: %q", orderNo)
	}
	if mock, _ := resp.Data["mock"].(bool); !mock {
		t.Fatalf("missing merchant config should fall back to mock payment")
	}
	if payURL, _ := resp.Data["pay_url"].(string); payURL == "" {
		t.Fatalf("pay_url should not be empty")
	}

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodGet, "/api/v1/payment/query/"+orderNo, nil)
	c2.Params = gin.Params{{Key: "order_no", Value: orderNo}}

	f.handler.QueryPayment(c2)

	resp2 := decodeEnvelope(t, w2.Body.Bytes())
	if resp2.StatusCode != 0 {
		t.Fatalf("query status_code want 0 got %d", resp2.StatusCode)
	}
	if status, _ := resp2.Data["status"].(string); status != constants.PaymentOrderStatusPending {
		t.Fatalf("status want pending got %v", resp2.Data["status"])
	}
	if _, exists := resp2.Data["license_key"]; exists {
		t.Fatalf("pending order must not expose license key")
	}
}

func TestCreatePaymentWithoutTenant(t *testing.T) {
	f := setupPublicHandlerTest(t)

	// tenant_id 不是必填字段，缺省时照常下单
	payload := fmt.Sprintf(
		`{"package_id":%d,"amount":"199.00","pay_type":"wechat","contact_name":"张三","contact_phone":"13800138000"}`,
		f.pkg.ID,
	)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payment/create", strings.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	f.handler.CreatePayment(c)

	resp := decodeEnvelope(t, w.Body.Bytes())
	if resp.StatusCode != 0 {
		t.Fatalf("create status_code want 0 got %d, msg=%s", resp.StatusCode, resp.Msg)
	}
	orderNo, _ := resp.Data["order_no"].(string)
	if len(orderNo) != 23 || !strings.HasPrefix(orderNo, "PAY") {
		t.Fatalf("unexpected order_no: %q", orderNo)
	}
}

func TestQueryPaymentNotFound(t *testing.T) {
	f := setupPublicHandlerTest(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/payment/query/PAYUNKNOWN", nil)
	c.Params = gin.Params{{Key: "order_no", Value: "PAYUNKNOWN"}}

	f.handler.QueryPayment(c)

	resp := decodeEnvelope(t, w.Body.Bytes())
	if resp.StatusCode != 404 {
		t.Fatalf("status_code want 404 got %d", resp.StatusCode)
	}
}

func TestCreatePaymentRejectsUnknownPayType(t *testing.T) {
	f := setupPublicHandlerTest(t)

	payload := fmt.Sprintf(
		`{"tenant_id":%d,"package_id":%d,"amount":"199.00","pay_type":"paypal","contact_name":"张三","contact_phone":"13800138000"}`,
		f.tenant.ID, f.pkg.ID,
	)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/payment/create", strings.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")

	f.handler.CreatePayment(c)

	resp := decodeEnvelope(t, w.Body.Bytes())
	if resp.StatusCode != 400 {
		t.Fatalf("status_code want 400 got %d", resp.StatusCode)
	}
}

func TestListPackagesEndpoint(t *testing.T) {
	f := setupPublicHandlerTest(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/packages", nil)

	f.handler.ListPackages(c)

	resp := decodeEnvelope(t, w.Body.Bytes())
	if resp.StatusCode != 0 {
		t.Fatalf("status_code want 0 got %d", resp.StatusCode)
	}
	packages, _ := resp.Data["packages"].([]interface{})
	if len(packages) != 1 {
		t.Fatalf("packages want 1 got %d", len(packages))
	}
}
