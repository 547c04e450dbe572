package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/kiranalabs/kirana-client/internal/session"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

type fakeSessions struct {
	sess *session.Session
}

func (f *fakeSessions) Current(context.Context) *session.Session {
	return f.sess
}

func buyerSession(id string) *session.Session {
	return &session.Session{ID: id, Role: session.RoleBuyer, Token: id, User: session.User{ID: id}}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubAPI struct {
	feed    []api.Notification
	limit   int
	read    []string
	readAll int
	deleted []string
}

func (s *stubAPI) GetNotifications(_ context.Context, _ string, limit int) ([]api.Notification, error) {
	s.limit = limit
	return s.feed, nil
}

func (s *stubAPI) MarkNotificationRead(_ context.Context, _ string, notificationID string) error {
	s.read = append(s.read, notificationID)
	return nil
}

func (s *stubAPI) MarkAllNotificationsRead(context.Context, string) error {
	s.readAll++
	return nil
}

func (s *stubAPI) DeleteNotification(_ context.Context, _ string, notificationID string) error {
	s.deleted = append(s.deleted, notificationID)
	return nil
}

func newTestService(t *testing.T, stub *stubAPI, sessions *fakeSessions) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{API: stub, Sessions: sessions, Logger: testLogger()})
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

func TestListPassesLimit(t *testing.T) {
	ctx := context.Background()
	stub := &stubAPI{feed: []api.Notification{{ID: "n1", Title: "Order delivered"}}}
	svc := newTestService(t, stub, &fakeSessions{sess: buyerSession("u1")})

	feed, err := svc.List(ctx, 25)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(feed) != 1 || feed[0].ID != "n1" {
		t.Fatalf("unexpected feed %+v", feed)
	}
	if stub.limit != 25 {
		t.Fatalf("limit not forwarded, got %d", stub.limit)
	}
}

func TestListRequiresSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &stubAPI{}, &fakeSessions{})

	_, err := svc.List(ctx, 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestMarkReadRequiresID(t *testing.T) {
	ctx := context.Background()
	stub := &stubAPI{}
	svc := newTestService(t, stub, &fakeSessions{sess: buyerSession("u1")})

	err := svc.MarkRead(ctx, "  ")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	if len(stub.read) != 0 {
		t.Fatal("empty id must not reach the backend")
	}
}

func TestMarkReadAndDelete(t *testing.T) {
	ctx := context.Background()
	stub := &stubAPI{}
	svc := newTestService(t, stub, &fakeSessions{sess: buyerSession("u1")})

	if err := svc.MarkRead(ctx, "n1"); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if err := svc.MarkAllRead(ctx); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if err := svc.Delete(ctx, "n2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(stub.read) != 1 || stub.read[0] != "n1" {
		t.Fatalf("unexpected reads %+v", stub.read)
	}
	if stub.readAll != 1 {
		t.Fatalf("unexpected readAll count %d", stub.readAll)
	}
	if len(stub.deleted) != 1 || stub.deleted[0] != "n2" {
		t.Fatalf("unexpected deletions %+v", stub.deleted)
	}
}
