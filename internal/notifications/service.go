// Package notifications reads and manages the buyer's notification feed.
package notifications

import (
	"context"
	"strings"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/collection"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

// API is the backend surface notifications depend on.
type API interface {
	GetNotifications(ctx context.Context, buyerID string, limit int) ([]api.Notification, error)
	MarkNotificationRead(ctx context.Context, buyerID, notificationID string) error
	MarkAllNotificationsRead(ctx context.Context, buyerID string) error
	DeleteNotification(ctx context.Context, buyerID, notificationID string) error
}

// ServiceParams groups dependencies for the notifications service.
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

// NewService builds the notifications service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notifications api is required")
	}
	if params.Sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notifications session source is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notifications logger is required")
	}
	return &Service{api: params.API, sessions: params.Sessions, logg: params.Logger}, nil
}

// List returns the feed, newest first per the backend's ordering.
func (s *Service) List(ctx context.Context, limit int) ([]api.Notification, error) {
	buyerID, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.GetNotifications(ctx, buyerID, limit)
}

// MarkRead flags one notification as read.
func (s *Service) MarkRead(ctx context.Context, notificationID string) error {
	buyerID, err := s.requireNotificationCall(ctx, notificationID)
	if err != nil {
		return err
	}
	return s.api.MarkNotificationRead(ctx, buyerID, notificationID)
}

// MarkAllRead flags the whole feed as read.
func (s *Service) MarkAllRead(ctx context.Context) error {
	buyerID, err := s.requireSession(ctx)
	if err != nil {
		return err
	}
	return s.api.MarkAllNotificationsRead(ctx, buyerID)
}

// Delete removes one notification.
func (s *Service) Delete(ctx context.Context, notificationID string) error {
	buyerID, err := s.requireNotificationCall(ctx, notificationID)
	if err != nil {
		return err
	}
	return s.api.DeleteNotification(ctx, buyerID, notificationID)
}

func (s *Service) requireNotificationCall(ctx context.Context, notificationID string) (string, error) {
	if strings.TrimSpace(notificationID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "notification id is required")
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
