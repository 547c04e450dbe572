// Package api is the REST client for the storefront backend. It centralizes
// transport configuration, structured request logging, idempotency keys, and
// the mapping of backend HTTP statuses onto domain error codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranalabs/kirana-client/pkg/config"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

// tunnelBypassHeader skips the tunnel proxy's interstitial warning page.
// Artifact of the dev environment, not part of the backend contract.
const tunnelBypassHeader = "ngrok-skip-browser-warning"

const maxResponseBytes = 4 << 20

// Client talks to the storefront backend over HTTP/JSON.
type Client struct {
	http         *http.Client
	baseURL      *url.URL
	tunnelBypass bool
	logg         *logger.Logger
	monitor      *Monitor
}

// NewClient validates the configuration and builds the backend client.
func NewClient(cfg config.APIConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, fmt.Errorf("api logger is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute: %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("api timeout must be positive")
	}
	return &Client{
		http:         &http.Client{Timeout: cfg.Timeout},
		baseURL:      base,
		tunnelBypass: cfg.TunnelBypass,
		logg:         logg,
		monitor:      NewMonitor(cfg.RequestLogSize),
	}, nil
}

// Monitor exposes the request monitor for diagnostics surfaces.
func (c *Client) Monitor() *Monitor {
	return c.monitor
}

// NewIdempotencyKey returns a unique key for mutation requests.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "kirana"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

type call struct {
	op     string
	method string
	route  string // route template, used for metrics and logs
	path   string // concrete request path
	query  url.Values
	body   any
	out    any
}

func (c *Client) do(ctx context.Context, req call) error {
	var payload io.Reader
	if req.body != nil {
		encoded, err := json.Marshal(req.body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("encoding %s request", req.op))
		}
		payload = bytes.NewReader(encoded)
	}

	target := *c.baseURL
	target.Path = strings.TrimRight(target.Path, "/") + req.path
	if len(req.query) > 0 {
		target.RawQuery = req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("building %s request", req.op))
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.tunnelBypass {
		httpReq.Header.Set(tunnelBypassHeader, "true")
	}
	if req.method != http.MethodGet {
		httpReq.Header.Set("Idempotency-Key", c.NewIdempotencyKey(req.op))
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"operation": req.op,
		"method":    req.method,
		"route":     req.route,
	})
	c.logg.Debug(ctx, "backend request")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.monitor.Observe(req.method, req.route, 0)
		c.logg.Error(ctx, "backend request failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s failed", req.op))
	}
	defer resp.Body.Close()
	c.monitor.Observe(req.method, req.route, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logg.Error(ctx, "reading backend response", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("reading %s response", req.op))
	}

	if resp.StatusCode >= 400 {
		message := backendMessage(raw)
		if message == "" {
			message = fmt.Sprintf("%s returned status %d", req.op, resp.StatusCode)
		}
		c.logg.Warn(c.logg.WithField(ctx, "status", resp.StatusCode), "backend rejected request")
		return pkgerrors.New(pkgerrors.CodeForStatus(resp.StatusCode), message).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	if req.out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, req.out); err != nil {
			c.logg.Error(ctx, "decoding backend response", err)
			return pkgerrors.Wrap(pkgerrors.CodeDecode, err, fmt.Sprintf("decoding %s response", req.op))
		}
	}
	return nil
}

func backendMessage(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.text()
}

// --- Auth ---

// BuyerLogin returns the raw login payload; the session manager normalizes the
// backend's heterogeneous response shapes.
func (c *Client) BuyerLogin(ctx context.Context, req LoginRequest) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, call{
		op: "buyer_login", method: http.MethodPost,
		route: "/buyer/login", path: "/buyer/login",
		body: req, out: &out,
	})
	return out, err
}

func (c *Client) BuyerSignUp(ctx context.Context, req SignUpRequest) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, call{
		op: "buyer_signup", method: http.MethodPost,
		route: "/buyer/signUp", path: "/buyer/signUp",
		body: req, out: &out,
	})
	return out, err
}

// --- Cart ---

func (c *Client) GetCart(ctx context.Context, buyerID string) ([]CartItem, error) {
	var out []CartItem
	err := c.do(ctx, call{
		op: "get_cart", method: http.MethodGet,
		route: "/buyer/cart/{buyerId}",
		path:  "/buyer/cart/" + url.PathEscape(buyerID),
		out:   &out,
	})
	return out, err
}

func (c *Client) AddToCart(ctx context.Context, buyerID string, item CartItem) error {
	return c.do(ctx, call{
		op: "add_to_cart", method: http.MethodPost,
		route: "/buyer/cart/{buyerId}",
		path:  "/buyer/cart/" + url.PathEscape(buyerID),
		body:  item,
	})
}

func (c *Client) RemoveFromCart(ctx context.Context, buyerID, itemID string) error {
	return c.do(ctx, call{
		op: "remove_from_cart", method: http.MethodDelete,
		route: "/buyer/cart/{buyerId}/remove",
		path:  "/buyer/cart/" + url.PathEscape(buyerID) + "/remove",
		body:  map[string]string{"itemId": itemID},
	})
}

func (c *Client) UpdateCartQuantity(ctx context.Context, buyerID, itemID string, quantity int) error {
	return c.do(ctx, call{
		op: "update_cart_quantity", method: http.MethodPut,
		route: "/buyer/cart/{buyerId}/quantity",
		path:  "/buyer/cart/" + url.PathEscape(buyerID) + "/quantity",
		body:  map[string]any{"itemId": itemID, "newQuantity": quantity},
	})
}

func (c *Client) ClearCart(ctx context.Context, buyerID string) error {
	return c.do(ctx, call{
		op: "clear_cart", method: http.MethodDelete,
		route: "/buyer/cart/{buyerId}/clear",
		path:  "/buyer/cart/" + url.PathEscape(buyerID) + "/clear",
	})
}

func (c *Client) ValidateCoupon(ctx context.Context, buyerID, code string) (*CouponDecision, error) {
	var out CouponDecision
	err := c.do(ctx, call{
		op: "validate_coupon", method: http.MethodPost,
		route: "/buyer/cart/{buyerId}/coupons/validate",
		path:  "/buyer/cart/" + url.PathEscape(buyerID) + "/coupons/validate",
		body:  map[string]string{"couponCode": code},
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ApplyCoupon(ctx context.Context, buyerID, code string) (*CouponDecision, error) {
	var out CouponDecision
	err := c.do(ctx, call{
		op: "apply_coupon", method: http.MethodPost,
		route: "/buyer/cart/{buyerId}/coupons/apply",
		path:  "/buyer/cart/" + url.PathEscape(buyerID) + "/coupons/apply",
		body:  map[string]string{"couponCode": code},
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveCoupon(ctx context.Context, buyerID string) error {
	return c.do(ctx, call{
		op: "remove_coupon", method: http.MethodDelete,
		route: "/buyer/cart/{buyerId}/coupons/remove",
		path:  "/buyer/cart/" + url.PathEscape(buyerID) + "/coupons/remove",
	})
}

// --- Wishlist ---

func (c *Client) GetWishlist(ctx context.Context, buyerID string) ([]WishlistItem, error) {
	var out []WishlistItem
	err := c.do(ctx, call{
		op: "get_wishlist", method: http.MethodGet,
		route: "/buyer/wishlist/{buyerId}",
		path:  "/buyer/wishlist/" + url.PathEscape(buyerID),
		out:   &out,
	})
	return out, err
}

func (c *Client) AddToWishlist(ctx context.Context, buyerID string, item WishlistItem) error {
	return c.do(ctx, call{
		op: "add_to_wishlist", method: http.MethodPost,
		route: "/buyer/wishlist/{buyerId}/add",
		path:  "/buyer/wishlist/" + url.PathEscape(buyerID) + "/add",
		body:  item,
	})
}

func (c *Client) RemoveFromWishlist(ctx context.Context, buyerID, itemID string) error {
	return c.do(ctx, call{
		op: "remove_from_wishlist", method: http.MethodDelete,
		route: "/buyer/wishlist/{buyerId}/remove/{itemId}",
		path:  "/buyer/wishlist/" + url.PathEscape(buyerID) + "/remove/" + url.PathEscape(itemID),
	})
}

// --- Catalog ---

type StoreListParams struct {
	Limit  int
	SortBy string
}

func (p StoreListParams) values() url.Values {
	q := url.Values{}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	return q
}

func (c *Client) GetStores(ctx context.Context, params StoreListParams) (*StoresResponse, error) {
	var out StoresResponse
	err := c.do(ctx, call{
		op: "get_stores", method: http.MethodGet,
		route: "/buyer/stores", path: "/buyer/stores",
		query: params.values(), out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetStore(ctx context.Context, storeID string) (*StoreResponse, error) {
	var out StoreResponse
	err := c.do(ctx, call{
		op: "get_store", method: http.MethodGet,
		route: "/buyer/stores/{storeId}",
		path:  "/buyer/stores/" + url.PathEscape(storeID),
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type ProductListParams struct {
	Category string
	Limit    int
	SortBy   string
	Search   string
}

func (p ProductListParams) values() url.Values {
	q := url.Values{}
	if p.Category != "" {
		q.Set("category", p.Category)
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.SortBy != "" {
		q.Set("sortBy", p.SortBy)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	return q
}

func (c *Client) GetProducts(ctx context.Context, params ProductListParams) (*ProductsResponse, error) {
	var out ProductsResponse
	err := c.do(ctx, call{
		op: "get_products", method: http.MethodGet,
		route: "/buyer/products", path: "/buyer/products",
		query: params.values(), out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetProduct(ctx context.Context, productID string) (*ProductResponse, error) {
	var out ProductResponse
	err := c.do(ctx, call{
		op: "get_product", method: http.MethodGet,
		route: "/buyer/products/{productId}",
		path:  "/buyer/products/" + url.PathEscape(productID),
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Orders ---

func (c *Client) GetOrders(ctx context.Context, buyerID string) (*OrdersResponse, error) {
	var out OrdersResponse
	err := c.do(ctx, call{
		op: "get_orders", method: http.MethodGet,
		route: "/buyer/orders/{buyerId}",
		path:  "/buyer/orders/" + url.PathEscape(buyerID),
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, buyerID string, req CreateOrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	err := c.do(ctx, call{
		op: "create_order", method: http.MethodPost,
		route: "/buyer/orders/{buyerId}",
		path:  "/buyer/orders/" + url.PathEscape(buyerID),
		body:  req, out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetOrder(ctx context.Context, buyerID, orderID string) (*OrderResponse, error) {
	var out OrderResponse
	err := c.do(ctx, call{
		op: "get_order", method: http.MethodGet,
		route: "/buyer/orders/{buyerId}/{orderId}",
		path:  "/buyer/orders/" + url.PathEscape(buyerID) + "/" + url.PathEscape(orderID),
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, buyerID, orderID string) (*OrderResponse, error) {
	var out OrderResponse
	err := c.do(ctx, call{
		op: "cancel_order", method: http.MethodPut,
		route: "/buyer/orders/{buyerId}/{orderId}/cancel",
		path:  "/buyer/orders/" + url.PathEscape(buyerID) + "/" + url.PathEscape(orderID) + "/cancel",
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TrackOrder(ctx context.Context, buyerID, orderID string) (*TrackResponse, error) {
	var out TrackResponse
	err := c.do(ctx, call{
		op: "track_order", method: http.MethodGet,
		route: "/buyer/orders/{buyerId}/{orderId}/track",
		path:  "/buyer/orders/" + url.PathEscape(buyerID) + "/" + url.PathEscape(orderID) + "/track",
		out:   &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Notifications ---

func (c *Client) GetNotifications(ctx context.Context, buyerID string, limit int) ([]Notification, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []Notification
	err := c.do(ctx, call{
		op: "get_notifications", method: http.MethodGet,
		route: "/buyer/notifications/{buyerId}",
		path:  "/buyer/notifications/" + url.PathEscape(buyerID),
		query: q, out: &out,
	})
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, buyerID, notificationID string) error {
	return c.do(ctx, call{
		op: "mark_notification_read", method: http.MethodPut,
		route: "/buyer/notifications/{buyerId}/{notificationId}/read",
		path:  "/buyer/notifications/" + url.PathEscape(buyerID) + "/" + url.PathEscape(notificationID) + "/read",
	})
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, buyerID string) error {
	return c.do(ctx, call{
		op: "mark_all_notifications_read", method: http.MethodPut,
		route: "/buyer/notifications/{buyerId}/read-all",
		path:  "/buyer/notifications/" + url.PathEscape(buyerID) + "/read-all",
	})
}

func (c *Client) DeleteNotification(ctx context.Context, buyerID, notificationID string) error {
	return c.do(ctx, call{
		op: "delete_notification", method: http.MethodDelete,
		route: "/buyer/notifications/{buyerId}/{notificationId}",
		path:  "/buyer/notifications/" + url.PathEscape(buyerID) + "/" + url.PathEscape(notificationID),
	})
}

// Health checks backend reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{
		op: "health", method: http.MethodGet,
		route: "/health", path: "/health",
	})
}
