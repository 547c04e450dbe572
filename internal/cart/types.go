package cart

import (
	"time"

	"github.com/kiranalabs/kirana-client/internal/api"
	"github.com/shopspring/decimal"
)

// Item is the local cart item shape. AddedAt is epoch milliseconds, mapped
// from the backend's timestamp string during sync.
type Item struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	Image     string  `json:"image,omitempty"`
	StoreID   string  `json:"storeId"`
	StoreName string  `json:"storeName"`
	Category  string  `json:"category"`
	AddedAt   int64   `json:"addedAt,omitempty"`
}

// AppliedCoupon is the at-most-one coupon attached to the cart. Applying a
// new coupon replaces it.
type AppliedCoupon struct {
	Code               string    `json:"code"`
	DiscountPercentage float64   `json:"discountPercentage"`
	DiscountAmount     float64   `json:"discountAmount"`
	AppliedAt          time.Time `json:"appliedAt"`
}

// State is the cart view handed to subscribers. Total is always recomputed
// from the authoritative server items, never patched locally.
type State struct {
	Items         []Item
	Total         decimal.Decimal
	Loading       bool
	AppliedCoupon *AppliedCoupon
}

// Totals breaks down the amount due for checkout.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
}

func itemFromWire(w api.CartItem) Item {
	item := Item{
		ItemID:    w.ItemID,
		Name:      w.Name,
		Price:     w.Price,
		Quantity:  w.Quantity,
		Unit:      w.Unit,
		Image:     w.Image,
		StoreID:   w.StoreID,
		StoreName: w.StoreName,
		Category:  w.Category,
	}
	if w.AddedAt != "" {
		if ts, err := time.Parse(time.RFC3339, w.AddedAt); err == nil {
			item.AddedAt = ts.UnixMilli()
		}
	}
	return item
}

// ItemFromProduct builds the add-to-cart payload for a catalog product,
// preferring the CDN image url over the inline one like the product screens do.
func ItemFromProduct(p api.Product, quantity int) api.CartItem {
	if quantity < 1 {
		quantity = 1
	}
	image := p.ImageURL
	if image == "" {
		image = p.Image
	}
	return api.CartItem{
		ItemID:    p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  quantity,
		Unit:      p.Unit,
		Image:     image,
		StoreID:   p.StoreID,
		StoreName: p.StoreName,
		Category:  p.Category,
	}
}

func subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}
