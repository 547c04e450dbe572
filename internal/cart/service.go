// Package cart is the session-gated cart: a local mirror of the backend cart
// with serialized mutations, uniform re-fetch after every mutation, and
// coupon validation/application.
package cart

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/collection"
	"github.com/kiranalabs/kirana-client/internal/storage"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
	"github.com/shopspring/decimal"
)

// API is the backend surface the cart depends on.
type API interface {
	GetCart(ctx context.Context, buyerID string) ([]api.CartItem, error)
	AddToCart(ctx context.Context, buyerID string, item api.CartItem) error
	RemoveFromCart(ctx context.Context, buyerID, itemID string) error
	UpdateCartQuantity(ctx context.Context, buyerID, itemID string, quantity int) error
	ClearCart(ctx context.Context, buyerID string) error
	ValidateCoupon(ctx context.Context, buyerID, code string) (*api.CouponDecision, error)
	ApplyCoupon(ctx context.Context, buyerID, code string) (*api.CouponDecision, error)
	RemoveCoupon(ctx context.Context, buyerID string) error
}

// ServiceParams groups dependencies for the cart service.
type ServiceParams struct {
	API      API
	Sessions collection.SessionSource
	Storage  storage.Store
	Logger   *logger.Logger
}

// Service owns cart state and its backend synchronization.
type Service struct {
	api      API
	sessions collection.SessionSource
	store    storage.Store
	logg     *logger.Logger
	core     *collection.Core[Item]

	mu        sync.Mutex
	coupon    *AppliedCoupon
	listeners map[int]func(State)
	nextID    int
}

// NewService builds the cart service and its collection core.
func NewService(params ServiceParams) (*Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart api is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart session source is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart logger is required")
	}

	s := &Service{
		api:       params.API,
		sessions:  params.Sessions,
		store:     params.Storage,
		logg:      params.Logger,
		listeners: map[int]func(State){},
	}

	core, err := collection.New(collection.Config[Item]{
		Name:     "cart",
		Key:      storage.KeyCartItems,
		Storage:  params.Storage,
		Sessions: params.Sessions,
		Logger:   params.Logger,
		Fetch: func(ctx context.Context, userID string) ([]Item, error) {
			wire, err := s.api.GetCart(ctx, userID)
			if err != nil {
				return nil, err
			}
			items := make([]Item, 0, len(wire))
			for _, w := range wire {
				items = append(items, itemFromWire(w))
			}
			return items, nil
		},
		Aggregate: subtotal,
		OnChange:  func() { s.fanout() },
	})
	if err != nil {
		return nil, err
	}
	s.core = core
	return s, nil
}

// Subscribe registers a state listener; it fires synchronously after every
// cart transition. Returns the unsubscribe function.
func (s *Service) Subscribe(listener func(State)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// State returns the current cart view.
func (s *Service) State() State {
	snap := s.core.Snapshot()
	s.mu.Lock()
	coupon := s.coupon
	s.mu.Unlock()
	return State{Items: snap.Items, Total: snap.Total, Loading: snap.Loading, AppliedCoupon: coupon}
}

// Restore loads persisted cart items and coupon for cold-start rendering.
func (s *Service) Restore(ctx context.Context) error {
	if err := s.core.Restore(ctx); err != nil {
		return err
	}
	if s.store == nil {
		return nil
	}
	raw, ok, err := s.store.Get(ctx, storage.KeyCartCoupon)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var coupon AppliedCoupon
	if err := json.Unmarshal([]byte(raw), &coupon); err != nil {
		s.logg.Warn(ctx, "discarding unreadable coupon snapshot")
		return nil
	}
	s.mu.Lock()
	s.coupon = &coupon
	s.mu.Unlock()
	s.fanout()
	return nil
}

// Sync replaces local cart state with the backend's.
func (s *Service) Sync(ctx context.Context) error {
	return s.core.Sync(ctx)
}

// Add puts an item in the cart. Quantities below one default to one.
func (s *Service) Add(ctx context.Context, item api.CartItem) error {
	if strings.TrimSpace(item.ItemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		return s.api.AddToCart(ctx, userID, item)
	})
}

// Remove deletes an item from the cart.
func (s *Service) Remove(ctx context.Context, itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		return s.api.RemoveFromCart(ctx, userID, itemID)
	})
}

// UpdateQuantity sets an item's quantity. A quantity of zero or less is a
// removal; that translation is policy, not a convenience.
func (s *Service) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return s.Remove(ctx, itemID)
	}
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		return s.api.UpdateCartQuantity(ctx, userID, itemID, quantity)
	})
}

// Clear empties the cart on the backend and re-syncs.
func (s *Service) Clear(ctx context.Context) error {
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		return s.api.ClearCart(ctx, userID)
	})
}

// ValidateCoupon previews a coupon without committing it.
func (s *Service) ValidateCoupon(ctx context.Context, code string) (*api.CouponDecision, error) {
	userID, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.ValidateCoupon(ctx, userID, normalizeCoupon(code))
}

// ApplyCoupon commits a coupon. A rejection leaves no coupon applied and the
// backend's message is passed through verbatim.
func (s *Service) ApplyCoupon(ctx context.Context, code string) (*api.CouponDecision, error) {
	userID, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := s.api.ApplyCoupon(ctx, userID, normalizeCoupon(code))
	if err != nil {
		return nil, err
	}
	if !decision.Valid || decision.Coupon == nil {
		s.setCoupon(ctx, nil)
		return decision, nil
	}

	s.setCoupon(ctx, &AppliedCoupon{
		Code:               decision.Coupon.Code,
		DiscountPercentage: decision.Coupon.DiscountPercentage,
		DiscountAmount:     decision.Coupon.DiscountAmount,
		AppliedAt:          time.Now(),
	})
	if err := s.Sync(ctx); err != nil {
		return decision, err
	}
	return decision, nil
}

// RemoveCoupon detaches the coupon on the backend, clears it locally, and
// re-syncs so server-side totals cannot drift before order placement.
func (s *Service) RemoveCoupon(ctx context.Context) error {
	userID, err := s.requireSession(ctx)
	if err != nil {
		return err
	}
	if err := s.api.RemoveCoupon(ctx, userID); err != nil {
		return err
	}
	s.setCoupon(ctx, nil)
	return s.Sync(ctx)
}

// ClearCouponLocal drops the coupon from local state only.
func (s *Service) ClearCouponLocal(ctx context.Context) {
	s.setCoupon(ctx, nil)
}

// Totals computes the checkout breakdown from the current state.
func (s *Service) Totals(deliveryFee decimal.Decimal) Totals {
	state := s.State()
	discount := decimal.Zero
	if state.AppliedCoupon != nil {
		discount = decimal.NewFromFloat(state.AppliedCoupon.DiscountAmount)
	}
	return Totals{
		Subtotal:    state.Total,
		DeliveryFee: deliveryFee,
		Discount:    discount,
		Total:       state.Total.Add(deliveryFee).Sub(discount),
	}
}

func (s *Service) setCoupon(ctx context.Context, coupon *AppliedCoupon) {
	s.mu.Lock()
	s.coupon = coupon
	s.mu.Unlock()

	if s.store != nil {
		if coupon == nil {
			if err := s.store.Delete(ctx, storage.KeyCartCoupon); err != nil {
				s.logg.Error(ctx, "clearing coupon snapshot", err)
			}
		} else if encoded, err := json.Marshal(coupon); err == nil {
			if err := s.store.Set(ctx, storage.KeyCartCoupon, string(encoded)); err != nil {
				s.logg.Error(ctx, "persisting coupon snapshot", err)
			}
		}
	}
	s.fanout()
}

func (s *Service) requireSession(ctx context.Context) (string, error) {
	sess := s.sessions.Current(ctx)
	if sess.UserID() == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "you must be logged in")
	}
	return sess.UserID(), nil
}

func (s *Service) fanout() {
	state := s.State()
	s.mu.Lock()
	listeners := make([]func(State), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l(state)
	}
}

func normalizeCoupon(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
