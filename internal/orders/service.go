// Package orders places and tracks buyer orders. Orders are backend-owned;
// nothing is cached locally beyond the call results.
package orders

import (
	"context"
	"strings"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/collection"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

// API is the backend surface orders depend on.
type API interface {
	GetOrders(ctx context.Context, buyerID string) (*api.OrdersResponse, error)
	CreateOrder(ctx context.Context, buyerID string, req api.CreateOrderRequest) (*api.OrderResponse, error)
	GetOrder(ctx context.Context, buyerID, orderID string) (*api.OrderResponse, error)
	CancelOrder(ctx context.Context, buyerID, orderID string) (*api.OrderResponse, error)
	TrackOrder(ctx context.Context, buyerID, orderID string) (*api.TrackResponse, error)
}

// ServiceParams groups dependencies for the orders service.
type ServiceParams struct {
	API      API
	Sessions collection.SessionSource
	Logger   *logger.Logger
}

type Service struct {
	api      API
	sessions collection.SessionSource
	logg     *logger.Logger
}

// NewService builds the orders service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders api is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders session source is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "orders logger is required")
	}
	return &Service{api: params.API, sessions: params.Sessions, logg: params.Logger}, nil
}

// Place submits the order.
func (s *Service) Place(ctx context.Context, req api.CreateOrderRequest) (*api.Order, error) {
	buyerID, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	resp, err := s.api.CreateOrder(ctx, buyerID, req)
	if err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDecode, "order missing from backend response")
	}
	s.logg.Info(s.logg.WithField(ctx, "order_id", resp.Order.ID), "order placed")
	return resp.Order, nil
}

// List returns the buyer's orders.
func (s *Service) List(ctx context.Context) ([]api.Order, error) {
	buyerID, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.api.GetOrders(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID string) (*api.Order, error) {
	buyerID, err := s.requireOrderCall(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp, err := s.api.GetOrder(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return resp.Order, nil
}

// Cancel cancels one order.
func (s *Service) Cancel(ctx context.Context, orderID string) (*api.Order, error) {
	buyerID, err := s.requireOrderCall(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp, err := s.api.CancelOrder(ctx, buyerID, orderID)
	if err != nil {
		return nil, err
	}
	return resp.Order, nil
}

// Track returns the delivery progress for one order.
func (s *Service) Track(ctx context.Context, orderID string) (*api.TrackResponse, error) {
	buyerID, err := s.requireOrderCall(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.api.TrackOrder(ctx, buyerID, orderID)
}

func (s *Service) requireOrderCall(ctx context.Context, orderID string) (string, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	return s.requireSession(ctx)
}

func (s *Service) requireSession(ctx context.Context) (string, error) {
	sess := s.sessions.Current(ctx)
	if sess.UserID() == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "you must be logged in")
	}
	return sess.UserID(), nil
}
