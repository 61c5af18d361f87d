package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/redisx"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/testutil"
)

const testPhone = "+919876543210"

var otpPattern = regexp.MustCompile(`\b(\d{6})\b`)

type inboxSMS struct {
	mu   sync.Mutex
	last map[string]string
}

func (s *inboxSMS) SendSMS(_ context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = map[string]string{}
	}
	s.last[to] = body
	return nil
}

func (s *inboxSMS) code(t *testing.T, phone string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	m := otpPattern.FindStringSubmatch(s.last[phone])
	require.Len(t, m, 2, "no code in %q", s.last[phone])
	return m[1]
}

type testServer struct {
	app *fiber.App
	db  *gorm.DB
	sms *inboxSMS
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewDB(t)
	sms := &inboxSMS{}
	logger := zap.NewNop()

	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr(), "")
	t.Cleanup(func() { _ = rdb.Close() })

	auth := services.NewAuthService(db, sms, nil, services.AuthConfig{
		JWTSecret: "routes-secret",
		HashCost:  bcrypt.MinCost,
	}, logger)
	notifier := &services.Notifier{SMS: sms, Logger: logger}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	app.Use(middleware.Metrics())
	Register(app, Deps{
		DB:          db,
		Auth:        auth,
		Orders:      services.NewOrderService(db, notifier, "test_secret", logger),
		Payments:    services.NewPaymentService(nil, "test_secret", logger),
		Addresses:   services.NewAddressService(db),
		Catalog:     services.NewCatalogService(db, nil, logger),
		Admin:       services.NewAdminService(db),
		Idempotency: redisx.NewOrderIdempotency(rdb),
		Logger:      logger,
	})

	return &testServer{app: app, db: db, sms: sms}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (s *testServer) login(t *testing.T, phone string) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{"phoneNumber": phone})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "OTP sent successfully", body["message"])

	resp, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{
		"phoneNumber": phone,
		"otp":         s.sms.code(t, phone),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (s *testServer) makeAdmin(t *testing.T, phone string) {
	t.Helper()
	require.NoError(t, s.db.Model(&models.Customer{}).Where("phone_number = ?", phone).Update("is_admin", true).Error)
}

func addressBody() map[string]any {
	return map[string]any{
		"fullName":      "Asha Rao",
		"phoneNumber":   testPhone,
		"streetAddress": "12 MG Road",
		"city":          "Bengaluru",
		"state":         "KA",
		"pincode":       "560001",
		"isDefault":     true,
	}
}

func TestAuth_RequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "No token, authorization denied", body["message"])

	resp, body = s.do(t, http.MethodGet, "/api/auth/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Token is not valid", body["message"])
}

func TestAuth_LoginAndProfile(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, testPhone)

	resp, body := s.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"name": "Asha", "email": "asha@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Asha", body["name"])

	resp, body = s.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testPhone, body["phoneNumber"])
	assert.Equal(t, []any{}, body["addresses"])
	assert.Equal(t, []any{}, body["orders"])
}

func TestAuth_WrongCode(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{"phoneNumber": testPhone})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	wrong := "000000"
	if s.sms.code(t, testPhone) == wrong {
		wrong = "999999"
	}
	resp, body := s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"phoneNumber": testPhone, "otp": wrong})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid OTP", body["message"])
}

func TestOrders_PlaceWithIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, testPhone)
	product := testutil.CreateProduct(t, s.db, "Kettle", "100", "0", 5)

	resp, address := s.do(t, http.MethodPost, "/api/customers/addresses", token, addressBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode, address)

	order := map[string]any{
		"products":        []map[string]any{{"productId": product.ID.String(), "quantity": 2}},
		"deliveryAddress": address["id"],
		"paymentMethod":   "COD",
	}

	resp, first := s.do(t, http.MethodPost, "/api/orders", token, order, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode, first)
	assert.Equal(t, "PLACED", first["orderStatus"])

	resp, replay := s.do(t, http.MethodPost, "/api/orders", token, order, "Idempotency-Key", "retry-1")
	require.Equal(t, http.StatusOK, resp.StatusCode, replay)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, first["id"], replay["id"])

	assert.Equal(t, 3, testutil.ReloadProduct(t, s.db, product).Stock)

	resp, got := s.do(t, http.MethodGet, "/api/orders/"+first["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first["orderId"], got["orderId"])
}

func TestOrders_FailureReleasesIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, testPhone)
	product := testutil.CreateProduct(t, s.db, "Kettle", "100", "0", 1)

	resp, address := s.do(t, http.MethodPost, "/api/customers/addresses", token, addressBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	order := map[string]any{
		"products":        []map[string]any{{"productId": product.ID.String(), "quantity": 2}},
		"deliveryAddress": address["id"],
		"paymentMethod":   "COD",
	}
	resp, body := s.do(t, http.MethodPost, "/api/orders", token, order, "Idempotency-Key", "k")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Insufficient stock for Kettle", body["message"])

	order["products"] = []map[string]any{{"productId": product.ID.String(), "quantity": 1}}
	resp, body = s.do(t, http.MethodPost, "/api/orders", token, order, "Idempotency-Key", "k")
	assert.Equal(t, http.StatusCreated, resp.StatusCode, body)
}

func TestOrders_NotVisibleToOtherCustomers(t *testing.T) {
	s := newTestServer(t)
	owner := s.login(t, testPhone)
	other := s.login(t, "+919000000001")
	product := testutil.CreateProduct(t, s.db, "Kettle", "100", "0", 5)

	_, address := s.do(t, http.MethodPost, "/api/customers/addresses", owner, addressBody())
	resp, order := s.do(t, http.MethodPost, "/api/orders", owner, map[string]any{
		"products":        []map[string]any{{"productId": product.ID.String(), "quantity": 1}},
		"deliveryAddress": address["id"],
		"paymentMethod":   "COD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, order)

	resp, body := s.do(t, http.MethodGet, "/api/orders/"+order["id"].(string), other, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Order not found", body["message"])
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, testPhone)

	resp, body := s.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Access denied. Admin required.", body["message"])

	resp, _ = s.do(t, http.MethodGet, "/api/orders/admin/all", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	s.makeAdmin(t, testPhone)

	resp, body = s.do(t, http.MethodGet, "/api/admin/stats", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["totalCustomers"])

	resp, _ = s.do(t, http.MethodGet, "/api/orders/admin/all?status=LOST", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/api/categories", token, map[string]string{"name": "Kitchen"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "Kitchen", body["name"])
}

func TestPaymentVerify_BadSignature(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, testPhone)

	resp, body := s.do(t, http.MethodPost, "/api/payment/verify", token, map[string]string{
		"razorpay_order_id":   "order_Abc123",
		"razorpay_payment_id": "pay_Xyz789",
		"razorpay_signature":  "deadbeef",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Payment verification failed", body["message"])

	resp, body = s.do(t, http.MethodPost, "/api/payment/verify", token, map[string]string{
		"razorpay_order_id":   "order_Abc123",
		"razorpay_payment_id": "pay_Xyz789",
		"razorpay_signature":  services.SignPayment("test_secret", "order_Abc123", "pay_Xyz789"),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestPublicCatalogAndHealth(t *testing.T) {
	s := newTestServer(t)
	testutil.CreateProduct(t, s.db, "Kettle", "100", "0", 5)

	resp, body := s.do(t, http.MethodGet, "/api/products?search=kett", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, body = s.do(t, http.MethodGet, "/api/products/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Product not found", body["message"])

	resp, body = s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestAddresses_DeleteAfterOrder(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, testPhone)
	product := testutil.CreateProduct(t, s.db, "Kettle", "100", "0", 5)

	_, address := s.do(t, http.MethodPost, "/api/customers/addresses", token, addressBody())
	resp, order := s.do(t, http.MethodPost, "/api/orders", token, map[string]any{
		"products":        []map[string]any{{"productId": product.ID.String(), "quantity": 1}},
		"deliveryAddress": address["id"],
		"paymentMethod":   "COD",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, order)

	resp, body := s.do(t, http.MethodDelete, "/api/customers/addresses/"+address["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Address deleted successfully", body["message"])

	resp, body = s.do(t, http.MethodGet, "/api/orders/"+order["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	delivery, _ := body["deliveryAddress"].(map[string]any)
	assert.Equal(t, address["id"], delivery["id"])
}
