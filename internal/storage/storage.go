// Package storage is the on-device key-value snapshot store. The backend
// remains the source of truth for every collection; snapshots only cover the
// window between cold start and the first authoritative sync.
package storage

import "context"

// Well-known snapshot keys.
const (
	KeySession    = "user_session"
	KeyCartItems  = "cart_items"
	KeyCartCoupon = "cart_coupon"
	KeyWishlist   = "kirana-wishlist"
)

// Store is the minimal device-storage surface the client depends on.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
