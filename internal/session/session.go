// Package session holds the authenticated identity for the device: an opaque
// token plus the user it belongs to, mirrored to device storage so cold starts
// come back logged in.
package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Session is the single active identity on the device.
type Session struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Token string `json:"token"`
	User  User   `json:"user"`
}

// UserID returns the canonical user identifier for backend calls.
func (s *Session) UserID() string {
	if s == nil {
		return ""
	}
	if s.User.ID != "" {
		return s.User.ID
	}
	return s.ID
}

// TokenExpiry inspects a JWT-shaped token for its expiry claim without
// verifying the signature; the token is opaque to the client otherwise.
// The second return is false for non-JWT tokens or tokens without an exp.
func (s *Session) TokenExpiry() (time.Time, bool) {
	if s == nil || s.Token == "" {
		return time.Time{}, false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
