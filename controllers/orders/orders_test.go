package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/globalconnect024/backend/models"
	"github.com/globalconnect024/backend/utils"
)

type fakeGateway struct {
	resp  *utils.STKPushResponse
	err   error
	calls int
}

func (f *fakeGateway) InitiateSTKPush(ctx context.Context, phone string, amount decimal.Decimal) (*utils.STKPushResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}, &models.Referral{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB) models.Product {
	t.Helper()
	vendor := models.User{Username: "vendor1", Email: "vendor1@example.com", Password: "x", Role: models.RoleVendor, IsActive: true}
	if err := db.Create(&vendor).Error; err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	product := models.Product{
		VendorID: vendor.ID,
		Name:     "Starter Pack",
		Price:    decimal.NewFromInt(1000),
		Stock:    10,
		Approved: true,
		IsActive: true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

func seedAffiliate(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	affiliate := models.User{Username: "affiliate1", Email: "affiliate1@example.com", Password: "x", Role: models.RoleUser, IsActive: true}
	if err := db.Create(&affiliate).Error; err != nil {
		t.Fatalf("seed affiliate: %v", err)
	}
	return affiliate
}

func checkoutBody(productID uint, affiliate string) *bytes.Buffer {
	m := map[string]interface{}{
		"product": productID,
		"amount":  "1000",
		"phone":   "254712345678",
	}
	if affiliate != "" {
		m["affiliate"] = affiliate
	}
	raw, _ := json.Marshal(m)
	return bytes.NewBuffer(raw)
}

func TestCheckoutAcceptLeavesOrderPending(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	gw := &fakeGateway{resp: &utils.STKPushResponse{
		MerchantRequestID: "m-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
		CustomerMessage:   "Success. Request accepted for processing",
	}}
	ctrl := NewOrderController(db, gw)

	req := httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(product.ID, ""))
	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Message           string `json:"message"`
		OrderID           uint   `json:"order_id"`
		CheckoutRequestID string `json:"checkout_request_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("correlation id not returned: %+v", resp)
	}
	if resp.Message != "Success. Request accepted for processing" {
		t.Fatalf("gateway customer message not surfaced, got %q", resp.Message)
	}

	var order models.Order
	if err := db.First(&order, resp.OrderID).Error; err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if order.Status != models.OrderPending {
		t.Fatalf("accepted push must leave order pending, got %s", order.Status)
	}
	if order.CheckoutRequestID == nil || *order.CheckoutRequestID != "ws_CO_1" {
		t.Fatal("checkout_request_id not persisted")
	}
}

func TestCheckoutAffiliateAttribution(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	affiliate := seedAffiliate(t, db)
	gw := &fakeGateway{resp: &utils.STKPushResponse{
		MerchantRequestID: "m-1",
		CheckoutRequestID: "ws_CO_1",
		ResponseCode:      "0",
	}}
	ctrl := NewOrderController(db, gw)

	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(product.ID, affiliate.Username)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var order models.Order
	db.First(&order)
	if order.AffiliateID == nil || *order.AffiliateID != affiliate.ID {
		t.Fatal("affiliate not attributed on order")
	}

	// Referral links may carry the numeric user id instead of the username.
	db.Exec("DELETE FROM orders")
	rec = httptest.NewRecorder()
	ctrl.Checkout(rec, httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(product.ID, fmt.Sprintf("%d", affiliate.ID))))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var byID models.Order
	db.First(&byID)
	if byID.AffiliateID == nil || *byID.AffiliateID != affiliate.ID {
		t.Fatal("affiliate not attributed by numeric id")
	}

	// An unknown referrer is dropped silently, not an error.
	db.Exec("DELETE FROM orders")
	rec = httptest.NewRecorder()
	ctrl.Checkout(rec, httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(product.ID, "nobody")))
	if rec.Code != http.StatusOK {
		t.Fatalf("unknown affiliate must not fail checkout, got %d", rec.Code)
	}
	var second models.Order
	db.First(&second)
	if second.AffiliateID != nil {
		t.Fatal("unknown affiliate should leave affiliate_id null")
	}
}

func TestCheckoutUnknownProduct(t *testing.T) {
	db := setupDB(t)
	gw := &fakeGateway{}
	ctrl := NewOrderController(db, gw)

	req := httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(999, ""))
	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if gw.calls != 0 {
		t.Fatal("gateway must not be called for unknown product")
	}
	var count int64
	db.Model(&models.Order{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no orders, got %d", count)
	}
}

func TestCheckoutInvalidPhone(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	ctrl := NewOrderController(db, &fakeGateway{})

	raw, _ := json.Marshal(map[string]interface{}{
		"product": product.ID,
		"amount":  "1000",
		"phone":   "0712345678",
	})
	req := httptest.NewRequest("POST", "/api/orders/checkout", bytes.NewBuffer(raw))
	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed phone, got %d", rec.Code)
	}
}

func TestCheckoutRejectionMarksOrderFailed(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	gw := &fakeGateway{err: &utils.STKRejection{Code: "1", Detail: "Insufficient funds"}}
	ctrl := NewOrderController(db, gw)

	req := httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(product.ID, ""))
	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var order models.Order
	if err := db.First(&order).Error; err != nil {
		t.Fatalf("order not persisted: %v", err)
	}
	if order.Status != models.OrderFailed {
		t.Fatalf("rejected push must fail the order, got %s", order.Status)
	}
}

func TestCheckoutUpstreamErrorMarksOrderFailed(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	gw := &fakeGateway{err: &utils.UpstreamError{Op: "stkpush", Cause: fmt.Errorf("connection refused")}}
	ctrl := NewOrderController(db, gw)

	req := httptest.NewRequest("POST", "/api/orders/checkout", checkoutBody(product.ID, ""))
	rec := httptest.NewRecorder()
	ctrl.Checkout(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var order models.Order
	if err := db.First(&order).Error; err != nil {
		t.Fatalf("order must still be persisted after gateway error: %v", err)
	}
	if order.Status != models.OrderFailed {
		t.Fatalf("gateway error must fail the order, got %s", order.Status)
	}
}

func callbackBody(checkoutID string, resultCode int) *bytes.Buffer {
	raw, _ := json.Marshal(map[string]interface{}{
		"Body": map[string]interface{}{
			"stkCallback": map[string]interface{}{
				"MerchantRequestID": "m-1",
				"CheckoutRequestID": checkoutID,
				"ResultCode":        resultCode,
				"ResultDesc":        "desc",
			},
		},
	})
	return bytes.NewBuffer(raw)
}

func pendingOrder(t *testing.T, db *gorm.DB, product models.Product, affiliateID *uint) models.Order {
	t.Helper()
	order := models.Order{
		ProductID:         product.ID,
		AffiliateID:       affiliateID,
		Amount:            decimal.NewFromInt(1000),
		Status:            models.OrderPending,
		CheckoutRequestID: utils.StrPtr("ws_CO_1"),
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestCallbackPaidCreatesReferral(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	affiliate := seedAffiliate(t, db)
	order := pendingOrder(t, db, product, utils.UintPtr(affiliate.ID))
	ctrl := NewOrderController(db, &fakeGateway{})

	req := httptest.NewRequest("POST", "/api/orders/mpesa/callback", callbackBody("ws_CO_1", 0))
	rec := httptest.NewRecorder()
	ctrl.MpesaCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d: %s", rec.Code, rec.Body.String())
	}

	var got models.Order
	db.First(&got, order.ID)
	if got.Status != models.OrderPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}

	var referral models.Referral
	if err := db.Where("order_id = ?", order.ID).First(&referral).Error; err != nil {
		t.Fatalf("referral not created: %v", err)
	}
	if !referral.CommissionEarned.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected commission 100.00, got %s", referral.CommissionEarned)
	}
	if referral.IsApproved || referral.IsPaid {
		t.Fatal("new referral must start unapproved and unpaid")
	}
}

func TestCallbackFailureResultCode(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	order := pendingOrder(t, db, product, nil)
	ctrl := NewOrderController(db, &fakeGateway{})

	req := httptest.NewRequest("POST", "/api/orders/mpesa/callback", callbackBody("ws_CO_1", 1032))
	rec := httptest.NewRecorder()
	ctrl.MpesaCallback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack even for failed payment, got %d", rec.Code)
	}
	var got models.Order
	db.First(&got, order.ID)
	if got.Status != models.OrderFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	var count int64
	db.Model(&models.Referral{}).Count(&count)
	if count != 0 {
		t.Fatal("failed payment must not create a referral")
	}
}

func TestCallbackDuplicateDoesNotOverwrite(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	affiliate := seedAffiliate(t, db)
	order := pendingOrder(t, db, product, utils.UintPtr(affiliate.ID))
	ctrl := NewOrderController(db, &fakeGateway{})

	first := httptest.NewRecorder()
	ctrl.MpesaCallback(first, httptest.NewRequest("POST", "/api/orders/mpesa/callback", callbackBody("ws_CO_1", 0)))
	if first.Code != http.StatusOK {
		t.Fatalf("first callback: expected 200, got %d", first.Code)
	}

	// Conflicting retry claims the payment failed; the terminal state wins.
	second := httptest.NewRecorder()
	ctrl.MpesaCallback(second, httptest.NewRequest("POST", "/api/orders/mpesa/callback", callbackBody("ws_CO_1", 1)))
	if second.Code != http.StatusOK {
		t.Fatalf("duplicate callback must still be acknowledged, got %d", second.Code)
	}

	var got models.Order
	db.First(&got, order.ID)
	if got.Status != models.OrderPaid {
		t.Fatalf("terminal state overwritten by duplicate callback: %s", got.Status)
	}

	var referrals int64
	db.Model(&models.Referral{}).Where("order_id = ?", order.ID).Count(&referrals)
	if referrals != 1 {
		t.Fatalf("expected exactly one referral, got %d", referrals)
	}
}

func TestCallbackUnknownCheckoutID(t *testing.T) {
	db := setupDB(t)
	ctrl := NewOrderController(db, &fakeGateway{})

	req := httptest.NewRequest("POST", "/api/orders/mpesa/callback", callbackBody("ws_CO_unknown", 0))
	rec := httptest.NewRecorder()
	ctrl.MpesaCallback(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var count int64
	db.Model(&models.Order{}).Count(&count)
	if count != 0 {
		t.Fatal("unknown callback must never create an order")
	}
}

func TestCallbackMalformedBody(t *testing.T) {
	db := setupDB(t)
	ctrl := NewOrderController(db, &fakeGateway{})

	for _, body := range []string{
		"not json",
		`{}`,
		`{"Body":{}}`,
		`{"Body":{"stkCallback":{"ResultDesc":"no ids"}}}`,
	} {
		req := httptest.NewRequest("POST", "/api/orders/mpesa/callback", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		ctrl.MpesaCallback(rec, req)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("body %q: expected 500, got %d", body, rec.Code)
		}
	}
}

func TestCheckStatus(t *testing.T) {
	db := setupDB(t)
	product := seedProduct(t, db)
	order := pendingOrder(t, db, product, nil)
	ctrl := NewOrderController(db, &fakeGateway{})

	req := httptest.NewRequest("GET", fmt.Sprintf("/api/orders/check-status/%d", order.ID), nil)
	req = mux.SetURLVars(req, map[string]string{"order_id": fmt.Sprintf("%d", order.ID)})
	rec := httptest.NewRecorder()
	ctrl.CheckStatus(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		OrderID uint   `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OrderID != order.ID || resp.Status != models.OrderPending {
		t.Fatalf("unexpected status payload: %+v", resp)
	}
}

func TestCheckStatusNotFound(t *testing.T) {
	db := setupDB(t)
	ctrl := NewOrderController(db, &fakeGateway{})

	req := httptest.NewRequest("GET", "/api/orders/check-status/42", nil)
	req = mux.SetURLVars(req, map[string]string{"order_id": "42"})
	rec := httptest.NewRecorder()
	ctrl.CheckStatus(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestExpirePendingRequiresCronKey(t *testing.T) {
	t.Setenv("CRON_API_KEY", "cron-secret")
	db := setupDB(t)
	ctrl := NewOrderController(db, &fakeGateway{})

	req := httptest.NewRequest("POST", "/api/cron/expire-pending", nil)
	rec := httptest.NewRecorder()
	ctrl.ExpirePending(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
}

func TestExpirePendingFailsOldOrders(t *testing.T) {
	t.Setenv("CRON_API_KEY", "cron-secret")
	t.Setenv("ORDER_PENDING_MAX_AGE_MIN", "30")
	db := setupDB(t)
	product := seedProduct(t, db)
	order := pendingOrder(t, db, product, nil)
	// Age the order past the cutoff.
	db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("created_at", time.Now().Add(-2*time.Hour))

	ctrl := NewOrderController(db, &fakeGateway{})
	req := httptest.NewRequest("POST", "/api/cron/expire-pending", nil)
	req.Header.Set("X-CRON-KEY", "cron-secret")
	rec := httptest.NewRecorder()
	ctrl.ExpirePending(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got models.Order
	db.First(&got, order.ID)
	if got.Status != models.OrderFailed {
		t.Fatalf("stale pending order should be failed, got %s", got.Status)
	}
}
