// Package catalog serves store and product data with a short-lived response
// cache and client-side product search.
package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/pkg/config"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
	"go.uber.org/multierr"
)

// API is the backend surface the catalog depends on.
type API interface {
	GetStores(ctx context.Context, params api.StoreListParams) (*api.StoresResponse, error)
	GetStore(ctx context.Context, storeID string) (*api.StoreResponse, error)
	GetProducts(ctx context.Context, params api.ProductListParams) (*api.ProductsResponse, error)
	GetProduct(ctx context.Context, productID string) (*api.ProductResponse, error)
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	API    API
	Logger *logger.Logger
	Config config.CatalogConfig
}

type Service struct {
	api   API
	logg  *logger.Logger
	cfg   config.CatalogConfig
	cache *ttlCache
}

// NewService builds the catalog service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog api is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog logger is required")
	}
	cfg := params.Config
	if cfg.StoreLimit <= 0 {
		cfg.StoreLimit = 100
	}
	if cfg.ProductLimit <= 0 {
		cfg.ProductLimit = 1000
	}
	return &Service{
		api:   params.API,
		logg:  params.Logger,
		cfg:   cfg,
		cache: newTTLCache(cfg.CacheTTL),
	}, nil
}

// Stores lists stores, served from cache within the TTL.
func (s *Service) Stores(ctx context.Context, params api.StoreListParams) ([]api.Store, error) {
	key := cacheKey("stores", params)
	if cached, ok := s.cache.get(key); ok {
		return cached.([]api.Store), nil
	}
	resp, err := s.api.GetStores(ctx, params)
	if err != nil {
		return nil, err
	}
	s.cache.set(key, resp.Stores)
	return resp.Stores, nil
}

// Store fetches one store with its inventory.
func (s *Service) Store(ctx context.Context, storeID string) (*api.Store, error) {
	if strings.TrimSpace(storeID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id is required")
	}
	key := cacheKey("store", storeID)
	if cached, ok := s.cache.get(key); ok {
		return cached.(*api.Store), nil
	}
	resp, err := s.api.GetStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if resp.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	s.cache.set(key, resp.Store)
	return resp.Store, nil
}

// Products lists products, served from cache within the TTL. Every product's
// Image field is normalized to prefer the CDN image url.
func (s *Service) Products(ctx context.Context, params api.ProductListParams) ([]api.Product, error) {
	key := cacheKey("products", params)
	if cached, ok := s.cache.get(key); ok {
		return cached.([]api.Product), nil
	}
	resp, err := s.api.GetProducts(ctx, params)
	if err != nil {
		return nil, err
	}
	products := make([]api.Product, len(resp.Products))
	for i, p := range resp.Products {
		if p.ImageURL != "" {
			p.Image = p.ImageURL
		}
		products[i] = p
	}
	s.cache.set(key, products)
	return products, nil
}

// Product fetches one product.
func (s *Service) Product(ctx context.Context, productID string) (*api.Product, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	key := cacheKey("product", productID)
	if cached, ok := s.cache.get(key); ok {
		return cached.(*api.Product), nil
	}
	resp, err := s.api.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if resp.Product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.cache.set(key, resp.Product)
	return resp.Product, nil
}

// Search filters the full product set by free-text query and category.
// An empty query with no category returns nothing, matching the search
// screen's behavior.
func (s *Service) Search(ctx context.Context, query, category string) ([]api.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" && category == "" {
		return nil, nil
	}
	all, err := s.Products(ctx, api.ProductListParams{Limit: s.cfg.ProductLimit})
	if err != nil {
		return nil, err
	}

	lowered := strings.ToLower(query)
	var matches []api.Product
	for _, p := range all {
		if !matchesQuery(p, lowered) {
			continue
		}
		if !matchesCategory(p, category) {
			continue
		}
		matches = append(matches, p)
	}
	return matches, nil
}

// Refresh busts the cache and re-primes stores and products together.
func (s *Service) Refresh(ctx context.Context) error {
	s.cache.clear()

	var (
		wg         sync.WaitGroup
		storesErr  error
		productErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, storesErr = s.Stores(ctx, api.StoreListParams{Limit: s.cfg.StoreLimit})
	}()
	go func() {
		defer wg.Done()
		_, productErr = s.Products(ctx, api.ProductListParams{Limit: s.cfg.ProductLimit})
	}()
	wg.Wait()

	return multierr.Combine(storesErr, productErr)
}

func matchesQuery(p api.Product, lowered string) bool {
	if lowered == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), lowered) ||
		strings.Contains(strings.ToLower(p.Description), lowered) ||
		strings.Contains(strings.ToLower(p.StoreName), lowered)
}

func matchesCategory(p api.Product, category string) bool {
	if category == "" || strings.EqualFold(category, "all") {
		return true
	}
	return strings.EqualFold(p.Category, category)
}
