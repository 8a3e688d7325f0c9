package domain

import "time"

type Product struct {
	ID        string  `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"cost_price"`
	Stock     int     `json:"stock"`
}

type ProductCreateRequest struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	CostPrice float64 `json:"cost_price"`
	Stock     int     `json:"stock"`
}

type ProductUpdateRequest struct {
	Code      *string  `json:"code,omitempty"`
	Name      *string  `json:"name,omitempty"`
	Price     *float64 `json:"price,omitempty"`
	CostPrice *float64 `json:"cost_price,omitempty"`
	Stock     *int     `json:"stock,omitempty"`
}

type StockAddRequest struct {
	Quantity int `json:"quantity"`
}

// CartItem is a snapshot of the product at the moment it entered the cart.
// Later catalog edits do not change lines already in the cart.
type CartItem struct {
	ProductID   string  `json:"product_id"`
	ProductCode string  `json:"product_code"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	CostPrice   float64 `json:"cost_price"`
	Quantity    int     `json:"quantity"`
}

type Sale struct {
	ID          string     `json:"id"`
	Items       []CartItem `json:"items"`
	Total       float64    `json:"total"`
	TotalCost   float64    `json:"total_cost"`
	TotalProfit float64    `json:"total_profit"`
	Date        time.Time  `json:"date"`
}

type CartResponse struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

type CartAddRequest struct {
	ProductID string `json:"product_id"`
}

type CartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type CheckoutResponse struct {
	Sale *Sale `json:"sale"`
}

type ScanKeyRequest struct {
	Key          string `json:"key"`
	InputFocused bool   `json:"input_focused"`
}

type ScanResponse struct {
	Matched bool     `json:"matched"`
	Product *Product `json:"product,omitempty"`
	View    string   `json:"view"`
}

type ReportSummary struct {
	TotalRevenue float64 `json:"total_revenue"`
	TotalProfit  float64 `json:"total_profit"`
	TotalSales   int     `json:"total_sales"`
}

type ChartBucket struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

type ProductProfit struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Profit    float64 `json:"profit"`
}

type SalesReport struct {
	Period      string          `json:"period"`
	PeriodStart time.Time       `json:"period_start"`
	Summary     ReportSummary   `json:"summary"`
	Chart       []ChartBucket   `json:"chart"`
	TopProducts []ProductProfit `json:"top_products"`
}

type LowStockResponse struct {
	Threshold int       `json:"threshold"`
	Items     []Product `json:"items"`
	Count     int       `json:"count"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
