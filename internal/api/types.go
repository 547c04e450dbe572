package api

// Wire shapes for the storefront backend. Field names follow the backend's
// JSON contract, not Go conventions; the services map them into local shapes.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// CartItem doubles as the add-to-cart payload; AddedAt is set by the server.
type CartItem struct {
	ItemID    string  `json:"itemId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Unit      string  `json:"unit,omitempty"`
	Image     string  `json:"image,omitempty"`
	StoreID   string  `json:"storeId"`
	StoreName string  `json:"storeName"`
	Category  string  `json:"category"`
	AddedAt   string  `json:"addedAt,omitempty"`
}

type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type Coupon struct {
	Code               string  `json:"code"`
	DiscountPercentage float64 `json:"discountPercentage"`
	DiscountAmount     float64 `json:"discountAmount"`
}

// CouponDecision is returned by both the validate and apply endpoints.
type CouponDecision struct {
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
	Coupon  *Coupon `json:"coupon,omitempty"`
}

type WishlistItem struct {
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
	AddedAt     string  `json:"addedAt,omitempty"`
}

type Store struct {
	ID           string    `json:"_id"`
	Name         string    `json:"name"`
	StoreAddress string    `json:"storeAddress"`
	StoreImgURL  string    `json:"storeImgUrl,omitempty"`
	Rating       float64   `json:"rating,omitempty"`
	Inventory    []Product `json:"inventory,omitempty"`
}

type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Image       string  `json:"image,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	StoreName   string  `json:"storeName,omitempty"`
	StoreID     string  `json:"storeId,omitempty"`
	Description string  `json:"description,omitempty"`
}

type StoresResponse struct {
	Success bool    `json:"success"`
	Stores  []Store `json:"stores"`
}

type StoreResponse struct {
	Success bool   `json:"success"`
	Store   *Store `json:"store"`
}

type ProductsResponse struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Product *Product `json:"product"`
}

type CreateOrderRequest struct {
	Items           []CartItem `json:"items"`
	DeliveryAddress string     `json:"deliveryAddress"`
	PaymentMethod   string     `json:"paymentMethod"`
	CouponCode      string     `json:"couponCode,omitempty"`
	DeliveryFee     float64    `json:"deliveryFee,omitempty"`
}

type Order struct {
	ID              string     `json:"_id"`
	Items           []CartItem `json:"items"`
	Total           float64    `json:"total"`
	Status          string     `json:"status"`
	CreatedAt       string     `json:"createdAt"`
	DeliveryAddress string     `json:"deliveryAddress,omitempty"`
	PaymentMethod   string     `json:"paymentMethod,omitempty"`
}

type OrdersResponse struct {
	Success bool    `json:"success"`
	Orders  []Order `json:"orders"`
}

type OrderResponse struct {
	Success bool   `json:"success"`
	Order   *Order `json:"order"`
}

type TrackUpdate struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
	At     string `json:"at"`
}

type TrackResponse struct {
	Success bool          `json:"success"`
	Status  string        `json:"status"`
	Updates []TrackUpdate `json:"updates,omitempty"`
}

type Notification struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
