package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kiranalabs/kirana-client/pkg/config"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.APIConfig{
		BaseURL:        server.URL,
		Timeout:        5 * time.Second,
		TunnelBypass:   true,
		RequestLogSize: 10,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(config.APIConfig{BaseURL: "not a url", Timeout: time.Second}, testLogger()); err == nil {
		t.Fatal("expected error for relative base url")
	}
	if _, err := NewClient(config.APIConfig{BaseURL: "http://localhost", Timeout: 0}, testLogger()); err == nil {
		t.Fatal("expected error for zero timeout")
	}
	if _, err := NewClient(config.APIConfig{BaseURL: "http://localhost", Timeout: time.Second}, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
}

func TestGetCartRequestShape(t *testing.T) {
	ctx := context.Background()
	var captured *http.Request
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"itemId":"p1","name":"Milk","price":50,"quantity":2}]`)
	}))

	items, err := client.GetCart(ctx, "buyer 1")
	if err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if len(items) != 1 || items[0].ItemID != "p1" || items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", items)
	}

	if captured.URL.Path != "/buyer/cart/buyer%201" && captured.URL.EscapedPath() != "/buyer/cart/buyer%201" {
		t.Fatalf("buyer id not path-escaped: %q", captured.URL.String())
	}
	if captured.Header.Get("Accept") != "application/json" {
		t.Fatal("missing accept header")
	}
	if captured.Header.Get("ngrok-skip-browser-warning") != "true" {
		t.Fatal("missing tunnel bypass header")
	}
	if captured.Header.Get("Idempotency-Key") != "" {
		t.Fatal("GET requests must not carry an idempotency key")
	}
}

func TestMutationCarriesIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	var key string
	var body map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type on %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))

	err := client.UpdateCartQuantity(ctx, "u1", "p1", 3)
	if err != nil {
		t.Fatalf("UpdateCartQuantity failed: %v", err)
	}
	if !strings.HasPrefix(key, "update_cart_quantity-") {
		t.Fatalf("unexpected idempotency key %q", key)
	}
	if body["itemId"] != "p1" || body["newQuantity"] != float64(3) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestErrorMapping(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"cart not found"}`)
	}))

	_, err := client.GetCart(ctx, "u1")
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if typed.Message() != "cart not found" {
		t.Fatalf("backend message must pass through, got %q", typed.Message())
	}
	details, ok := typed.Details().(map[string]any)
	if !ok || details["status"] != http.StatusNotFound {
		t.Fatalf("unexpected details %v", typed.Details())
	}
}

func TestErrorMappingWithoutBody(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := client.ClearCart(ctx, "u1")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestDecodeError(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{not json`)
	}))

	_, err := client.GetStores(ctx, StoreListParams{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDecode {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTransportErrorIsDependency(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewClient(config.APIConfig{BaseURL: server.URL, Timeout: time.Second}, testLogger())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	healthErr := client.Health(ctx)
	typed := pkgerrors.As(healthErr)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("unexpected error %v", healthErr)
	}
}

func TestCouponDecisionPassThrough(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["couponCode"] != "SAVE10" {
			t.Errorf("unexpected coupon payload %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"valid":true,"coupon":{"code":"SAVE10","discountPercentage":10,"discountAmount":20}}`)
	}))

	decision, err := client.ValidateCoupon(ctx, "u1", "SAVE10")
	if err != nil {
		t.Fatalf("ValidateCoupon failed: %v", err)
	}
	if !decision.Valid || decision.Coupon == nil || decision.Coupon.DiscountAmount != 20 {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestQueryParamsEncoded(t *testing.T) {
	ctx := context.Background()
	var query string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		io.WriteString(w, `{"success":true,"products":[]}`)
	}))

	_, err := client.GetProducts(ctx, ProductListParams{Category: "fruits", Limit: 20, SortBy: "price"})
	if err != nil {
		t.Fatalf("GetProducts failed: %v", err)
	}
	for _, want := range []string{"category=fruits", "limit=20", "sortBy=price"} {
		if !strings.Contains(query, want) {
			t.Fatalf("query %q missing %q", query, want)
		}
	}
}

func TestMonitorObservesRequests(t *testing.T) {
	ctx := context.Background()
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `[]`)
	}))

	if _, err := client.GetCart(ctx, "u1"); err != nil {
		t.Fatalf("GetCart failed: %v", err)
	}
	if _, err := client.GetCart(ctx, "u2"); err == nil {
		t.Fatal("expected error from 500")
	}

	monitor := client.Monitor()
	if monitor.Total() != 2 {
		t.Fatalf("unexpected total %d", monitor.Total())
	}
	log := monitor.Log()
	if len(log) != 2 {
		t.Fatalf("unexpected log length %d", len(log))
	}
	// Route templates keep user ids out of the log.
	if log[0].Path != "/buyer/cart/{buyerId}" {
		t.Fatalf("unexpected logged path %q", log[0].Path)
	}
	if log[1].Status != http.StatusInternalServerError {
		t.Fatalf("unexpected logged status %d", log[1].Status)
	}

	summary, err := monitor.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !strings.Contains(summary, "total requests: 2") {
		t.Fatalf("unexpected summary:\n%s", summary)
	}
	if !strings.Contains(summary, "kirana_api_request_failures_total") {
		t.Fatalf("failure counter missing from summary:\n%s", summary)
	}

	monitor.Reset()
	if monitor.Total() != 0 || len(monitor.Log()) != 0 {
		t.Fatal("Reset did not clear the monitor")
	}
}

func TestMonitorLogIsBounded(t *testing.T) {
	monitor := NewMonitor(3)
	for i := 0; i < 10; i++ {
		monitor.Observe(http.MethodGet, "/health", http.StatusOK)
	}
	if len(monitor.Log()) != 3 {
		t.Fatalf("log not bounded: %d entries", len(monitor.Log()))
	}
	if monitor.Total() != 10 {
		t.Fatalf("unexpected total %d", monitor.Total())
	}
}

func TestNewIdempotencyKeyPrefix(t *testing.T) {
	client := &Client{}
	key := client.NewIdempotencyKey(" ")
	if !strings.HasPrefix(key, "kirana-") {
		t.Fatalf("unexpected fallback prefix in %q", key)
	}
	key = client.NewIdempotencyKey("checkout")
	if !strings.HasPrefix(key, "checkout-") {
		t.Fatalf("unexpected key %q", key)
	}
}
