package models

import "errors"

// Order sides and statuses.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderFilled    = "filled"
	OrderCancelled = "cancelled"
)

// Order resolution errors. The messages double as API error codes.
var (
	ErrSymbolNotFound   = errors.New("symbol_not_found")
	ErrPriceUnavailable = errors.New("price_unavailable")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrOrderNotFound    = errors.New("not_found")
)

// Order is a simulated market order, filled at the last cached price.
type Order struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	InstrumentID string  `json:"instrumentId,omitempty"`
	Side         string  `json:"side"`
	Amount       float64 `json:"amount"`
	Price        float64 `json:"price"`
	Total        float64 `json:"total"`
	Status       string  `json:"status"`
	CreatedAt    int64   `json:"createdAt"`
	FilledAt     int64   `json:"filledAt,omitempty"`
	CancelledAt  int64   `json:"cancelledAt,omitempty"`
	Market       string  `json:"market"`
}

// OrderRequest is the input to order creation.
type OrderRequest struct {
	Symbol string
	Side   string
	Amount float64
	Market string
}
