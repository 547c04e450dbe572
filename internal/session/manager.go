package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kiranalabs/kirana-client/internal/storage"
	pkgerrors "github.com/kiranalabs/kirana-client/pkg/errors"
	"github.com/kiranalabs/kirana-client/pkg/logger"
)

// Listener observes session transitions. A nil session means logged out.
type Listener func(*Session)

// ManagerParams groups dependencies for the session manager.
type ManagerParams struct {
	Storage storage.Store
	Logger  *logger.Logger
}

// Manager owns the active session: normalization of backend login payloads,
// persistence to device storage, and synchronous change notification.
type Manager struct {
	store storage.Store
	logg  *logger.Logger

	mu          sync.Mutex
	current     *Session
	initialized bool
	listeners   map[int]Listener
	nextID      int
}

// NewManager builds a session manager with the required dependencies.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Storage == nil {
		return nil, fmt.Errorf("session storage is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("session logger is required")
	}
	return &Manager{
		store:     params.Storage,
		logg:      params.Logger,
		listeners: map[int]Listener{},
	}, nil
}

// Subscribe registers a listener and returns its unsubscribe function.
// Listeners fire synchronously after every session transition.
func (m *Manager) Subscribe(listener Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Current returns the active session, falling back to device storage on the
// first call after a cold start. Returns nil when logged out.
func (m *Manager) Current(ctx context.Context) *Session {
	m.mu.Lock()
	if m.initialized {
		sess := m.current
		m.mu.Unlock()
		return sess
	}
	m.initialized = true
	m.mu.Unlock()

	sess := m.loadFromStorage(ctx)
	if sess == nil {
		return nil
	}

	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()
	m.notify(sess)
	return sess
}

func (m *Manager) loadFromStorage(ctx context.Context) *Session {
	raw, ok, err := m.store.Get(ctx, storage.KeySession)
	if err != nil {
		m.logg.Error(ctx, "loading session from storage", err)
		return nil
	}
	if !ok {
		return nil
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		m.logg.Warn(ctx, "discarding unreadable session snapshot")
		return nil
	}
	if sess.UserID() == "" {
		m.logg.Warn(ctx, "discarding session snapshot without user id")
		return nil
	}
	return &sess
}

// loginPayload tolerates the backend's heterogeneous login response shapes:
// ids appear as _id or id, at the top level or nested under user, and the
// token under several names.
type loginPayload struct {
	ID          string `json:"_id"`
	AltID       string `json:"id"`
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	JWT         string `json:"jwt"`
	Name        string `json:"name"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	User        *struct {
		ID       string `json:"_id"`
		AltID    string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	} `json:"user"`
}

// Save normalizes a raw login/signup response into a canonical session,
// persists it, and notifies subscribers. A payload without an identifiable
// user id fails loudly rather than creating a malformed session.
func (m *Manager) Save(ctx context.Context, role Role, raw json.RawMessage) (*Session, error) {
	var payload loginPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDecode, err, "decoding login response")
	}

	userID := firstNonEmpty(payload.ID, payload.AltID)
	name := firstNonEmpty(payload.Name, payload.Username)
	email := payload.Email
	phone := payload.Phone
	if payload.User != nil {
		userID = firstNonEmpty(userID, payload.User.ID, payload.User.AltID)
		name = firstNonEmpty(payload.User.Name, payload.User.Username, name)
		email = firstNonEmpty(payload.User.Email, email)
		phone = firstNonEmpty(payload.User.Phone, phone)
	}
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDecode, "user id not found in login response")
	}

	// Some deployments return a bare id with no token; the id then doubles
	// as the opaque credential, matching the legacy web client.
	token := firstNonEmpty(payload.Token, payload.AccessToken, payload.JWT, userID)

	sess := &Session{
		ID:    userID,
		Role:  role,
		Token: token,
		User:  User{ID: userID, Name: name, Email: email, Phone: phone},
	}

	encoded, err := json.Marshal(sess)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding session")
	}
	if err := m.store.Set(ctx, storage.KeySession, string(encoded)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting session")
	}

	m.mu.Lock()
	m.initialized = true
	m.current = sess
	m.mu.Unlock()

	m.logg.Info(m.logg.WithBuyerID(ctx, userID), "session saved")
	m.notify(sess)
	return sess, nil
}

// Clear logs the device out and notifies subscribers, which cascades into
// collection re-syncs that empty the previous user's data.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.Delete(ctx, storage.KeySession); err != nil {
		m.logg.Error(ctx, "clearing persisted session", err)
	}

	m.mu.Lock()
	m.initialized = true
	m.current = nil
	m.mu.Unlock()

	m.notify(nil)
	return nil
}

func (m *Manager) notify(sess *Session) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()
	for _, l := range listeners {
		l(sess)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
