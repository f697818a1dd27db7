package models

import (
	"encoding/json"
	"math"
	"strings"
)

// Asset types.
const (
	AssetStock     = "STOCK"
	AssetCrypto    = "CRYPTO"
	AssetForex     = "FOREX"
	AssetCommodity = "COMMODITY"
)

// Quote is the normalized snapshot of one instrument. Price is nil when no
// finite positive price is known; it is encoded as JSON null.
type Quote struct {
	Symbol    string          `json:"symbol"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Price     *float64        `json:"price"`
	Change    *float64        `json:"change"`
	ChangePct *float64        `json:"changePct"`
	Volume    *float64        `json:"volume"`
	MarketCap *float64        `json:"marketCap"`
	Currency  string          `json:"currency,omitempty"`
	AssetType string          `json:"assetType"`
	Category  string          `json:"category"`
	Exchange  string          `json:"exchange,omitempty"`
	Country   string          `json:"country,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
}

// Matches compares key against symbol and id, ignoring case.
func (q Quote) Matches(key string) bool {
	if key == "" {
		return false
	}
	return strings.EqualFold(q.Symbol, key) || (q.ID != "" && strings.EqualFold(q.ID, key))
}

// PriceValue returns the price and whether it is usable.
func (q Quote) PriceValue() (float64, bool) {
	if q.Price == nil || !ValidPrice(*q.Price) {
		return 0, false
	}
	return *q.Price, true
}

// ValidPrice reports whether p is finite and positive.
func ValidPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0
}

// Float returns a pointer to v, or nil when v is NaN or infinite.
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
