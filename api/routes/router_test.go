package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/commerce"
	"github.com/angelmondragon/storefront-checkout/internal/financing"
	"github.com/angelmondragon/storefront-checkout/internal/review"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubCarts struct{}

func (stubCarts) GetCart(_ context.Context, cartID string) (*commerce.Cart, error) {
	return &commerce.Cart{ID: cartID}, nil
}

type stubReview struct {
	completions int
	sessions    []string
}

func (s *stubReview) View(context.Context, string, *commerce.Cart) (*review.View, error) {
	return &review.View{}, nil
}

func (s *stubReview) Complete(_ context.Context, in review.CompleteInput) (*review.Completion, error) {
	s.completions++
	s.sessions = append(s.sessions, in.SessionID)
	return &review.Completion{OrderID: "order_1", RedirectURL: "/order/confirmed/order_1"}, nil
}

func (s *stubReview) FinancingSnapshot(context.Context, string, string) (*financing.Breakdown, error) {
	return nil, nil
}

func (s *stubReview) Attempts(context.Context, string, int) ([]models.CheckoutCompletion, error) {
	return []models.CheckoutCompletion{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev", Port: "8080"},
		Checkout: config.CheckoutConfig{
			SessionCookie:  "checkout_session",
			AllowedOrigins: []string{"http://localhost:8000"},
		},
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: "debug", Output: io.Discard})
}

func newTestRouter(t *testing.T, dbP stubPinger, rev *stubReview) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = redisClient.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetrics(reg)
	m.IncShippingSelection(true)

	router := NewRouter(testConfig(), testLogger(), dbP, redisClient, reg, Services{
		Carts:  stubCarts{},
		Review: rev,
	})
	return router
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, &stubReview{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-Checkout-Env") != "dev" {
		t.Fatalf("expected env header, got %q", resp.Header().Get("X-Checkout-Env"))
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	router := newTestRouter(t, stubPinger{err: errors.New("connection refused")}, &stubReview{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "connection refused") {
		t.Fatalf("expected failing dependency in details, got %s", resp.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, &stubReview{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "shipping_selection_total") {
		t.Fatalf("expected checkout metrics exposed, got %s", resp.Body.String())
	}
}

func TestCheckoutRoutesIssueSession(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, &stubReview{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/checkout/cart_1/review", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	issued := resp.Header().Get(middleware.CheckoutSessionHeader)
	if issued == "" {
		t.Fatalf("expected checkout session header")
	}
	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "checkout_session" || cookies[0].Value != issued || !cookies[0].HttpOnly {
		t.Fatalf("unexpected session cookies %+v", cookies)
	}
}

func TestCompleteRequiresIdempotencyKeyAndReplays(t *testing.T) {
	rev := &stubReview{}
	router := newTestRouter(t, stubPinger{}, rev)
	const session = "6f1c2a4e-8d7b-4c55-9a0e-0c1d2e3f4a5b"

	missing := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/cart_1/review/complete", nil)
	missing.Header.Set(middleware.CheckoutSessionHeader, session)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, missing)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", resp.Code)
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/cart_1/review/complete", nil)
		req.Header.Set(middleware.CheckoutSessionHeader, session)
		req.Header.Set("Idempotency-Key", "complete-1")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200 got %d: %s", i, resp.Code, resp.Body.String())
		}
		if !strings.Contains(resp.Body.String(), "/order/confirmed/order_1") {
			t.Fatalf("attempt %d: expected redirect in body, got %s", i, resp.Body.String())
		}
		if replayed := resp.Header().Get("Idempotent-Replayed") == "true"; replayed != (i == 1) {
			t.Fatalf("attempt %d: unexpected Idempotent-Replayed=%q", i, resp.Header().Get("Idempotent-Replayed"))
		}
	}
	if rev.completions != 1 {
		t.Fatalf("expected a single completion, got %d", rev.completions)
	}

	reused := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/cart_1/review/complete", strings.NewReader(`{"note":"changed"}`))
	reused.Header.Set(middleware.CheckoutSessionHeader, session)
	reused.Header.Set("Idempotency-Key", "complete-1")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, reused)
	if resp.Code != http.StatusConflict || rev.completions != 1 {
		t.Fatalf("expected 409 for a reused key with a different body, got %d (%d completions)", resp.Code, rev.completions)
	}
	if rev.sessions[0] != session {
		t.Fatalf("expected header session to be used, got %q", rev.sessions[0])
	}
}
