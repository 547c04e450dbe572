// Package wishlist mirrors the backend wishlist through the shared
// session-gated collection core.
package wishlist

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/collection"
	"github.com/kiranalabs/kirana-client/internal/storage"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

// Item is the local wishlist item shape.
type Item struct {
	ItemID      string  `json:"itemId"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Image       string  `json:"image,omitempty"`
	Unit        string  `json:"unit,omitempty"`
	StoreID     string  `json:"storeId"`
	StoreName   string  `json:"storeName"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	InStock     bool    `json:"inStock"`
	Rating      float64 `json:"rating,omitempty"`
	AddedAt     int64   `json:"addedAt,omitempty"`
}

// State is the wishlist view handed to subscribers.
type State = collection.State[Item]

// API is the backend surface the wishlist depends on.
type API interface {
	GetWishlist(ctx context.Context, buyerID string) ([]api.WishlistItem, error)
	AddToWishlist(ctx context.Context, buyerID string, item api.WishlistItem) error
	RemoveFromWishlist(ctx context.Context, buyerID, itemID string) error
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	API      API
	Sessions collection.SessionSource
	Storage  storage.Store
	Logger   *logger.Logger
}

type Service struct {
	api  API
	core *collection.Core[Item]

	mu        sync.Mutex
	listeners map[int]func(State)
	nextID    int
}

// NewService builds the wishlist service and its collection core.
func NewService(params ServiceParams) (*Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist api is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist session source is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist logger is required")
	}

	s := &Service{
		api:       params.API,
		listeners: map[int]func(State){},
	}

	core, err := collection.New(collection.Config[Item]{
		Name:     "wishlist",
		Key:      storage.KeyWishlist,
		Storage:  params.Storage,
		Sessions: params.Sessions,
		Logger:   params.Logger,
		Fetch: func(ctx context.Context, userID string) ([]Item, error) {
			wire, err := s.api.GetWishlist(ctx, userID)
			if err != nil {
				return nil, err
			}
			items := make([]Item, 0, len(wire))
			for _, w := range wire {
				items = append(items, itemFromWire(w))
			}
			return items, nil
		},
		OnChange: func() { s.fanout() },
	})
	if err != nil {
		return nil, err
	}
	s.core = core
	return s, nil
}

// Subscribe registers a state listener and returns its unsubscribe function.
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

// State returns the current wishlist view.
func (s *Service) State() State {
	return s.core.Snapshot()
}

// Restore loads the persisted wishlist snapshot for cold-start rendering.
func (s *Service) Restore(ctx context.Context) error {
	return s.core.Restore(ctx)
}

// Sync replaces local wishlist state with the backend's.
func (s *Service) Sync(ctx context.Context) error {
	return s.core.Sync(ctx)
}

// Add puts an item on the wishlist.
func (s *Service) Add(ctx context.Context, item api.WishlistItem) error {
	if strings.TrimSpace(item.ItemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		return s.api.AddToWishlist(ctx, userID, item)
	})
}

// Remove drops an item from the wishlist.
func (s *Service) Remove(ctx context.Context, itemID string) error {
	if strings.TrimSpace(itemID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		return s.api.RemoveFromWishlist(ctx, userID, itemID)
	})
}

// Contains reports whether the item is currently wishlisted.
func (s *Service) Contains(itemID string) bool {
	for _, item := range s.core.Snapshot().Items {
		if item.ItemID == itemID {
			return true
		}
	}
	return false
}

// Clear removes every item. The backend has no wishlist clear endpoint, so
// this issues one removal per item before the trailing re-sync.
func (s *Service) Clear(ctx context.Context) error {
	items := s.core.Snapshot().Items
	return s.core.Mutate(ctx, func(ctx context.Context, userID string) error {
		for _, item := range items {
			if err := s.api.RemoveFromWishlist(ctx, userID, item.ItemID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ItemsByStore groups the wishlist by owning store.
func (s *Service) ItemsByStore() map[string][]Item {
	grouped := map[string][]Item{}
	for _, item := range s.core.Snapshot().Items {
		grouped[item.StoreID] = append(grouped[item.StoreID], item)
	}
	return grouped
}

// ItemsByCategory groups the wishlist by product category.
func (s *Service) ItemsByCategory() map[string][]Item {
	grouped := map[string][]Item{}
	for _, item := range s.core.Snapshot().Items {
		grouped[item.Category] = append(grouped[item.Category], item)
	}
	return grouped
}

func (s *Service) fanout() {
	state := s.core.Snapshot()
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

func itemFromWire(w api.WishlistItem) Item {
	item := Item{
		ItemID:      w.ItemID,
		Name:        w.Name,
		Price:       w.Price,
		Image:       w.Image,
		Unit:        w.Unit,
		StoreID:     w.StoreID,
		StoreName:   w.StoreName,
		Category:    w.Category,
		Description: w.Description,
		InStock:     w.InStock,
		Rating:      w.Rating,
	}
	if w.AddedAt != "" {
		if ts, err := time.Parse(time.RFC3339, w.AddedAt); err == nil {
			item.AddedAt = ts.UnixMilli()
		}
	}
	return item
}

// ItemFromProduct builds the wishlist payload for a catalog product.
func ItemFromProduct(p api.Product) api.WishlistItem {
	image := p.ImageURL
	if image == "" {
		image = p.Image
	}
	return api.WishlistItem{
		ItemID:      p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Image:       image,
		Unit:        p.Unit,
		StoreID:     p.StoreID,
		StoreName:   p.StoreName,
		Category:    p.Category,
		Description: p.Description,
		InStock:     true,
	}
}
