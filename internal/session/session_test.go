package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestUserIDPrefersNestedUser(t *testing.T) {
	sess := &Session{ID: "top", User: User{ID: "nested"}}
	if sess.UserID() != "nested" {
		t.Fatalf("unexpected user id %q", sess.UserID())
	}

	sess = &Session{ID: "top"}
	if sess.UserID() != "top" {
		t.Fatalf("unexpected fallback user id %q", sess.UserID())
	}

	var nilSess *Session
	if nilSess.UserID() != "" {
		t.Fatal("nil session should have an empty user id")
	}
}

func TestTokenExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}

	sess := &Session{Token: token}
	got, ok := sess.TokenExpiry()
	if !ok {
		t.Fatal("expected expiry from JWT token")
	}
	if !got.Equal(exp) {
		t.Fatalf("unexpected expiry %s, want %s", got, exp)
	}
}

func TestTokenExpiryOpaqueToken(t *testing.T) {
	sess := &Session{Token: "not-a-jwt"}
	if _, ok := sess.TokenExpiry(); ok {
		t.Fatal("opaque tokens should report no expiry")
	}
}

func TestTokenExpiryMissingClaim(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token failed: %v", err)
	}
	sess := &Session{Token: token}
	if _, ok := sess.TokenExpiry(); ok {
		t.Fatal("token without exp should report no expiry")
	}
}
