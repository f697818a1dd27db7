package api

import (
	"encoding/json"
	"math"
)

// Numeric fields are json.Number so both 5 and "5" are accepted.

type IntervalRequest struct {
	Market     string      `json:"market"`
	IntervalMs json.Number `json:"intervalMs"`
}

type OverrideRequest struct {
	Symbol      string      `json:"symbol" validate:"required"`
	Type        string      `json:"type" validate:"required,oneof=set delta percent"`
	Value       json.Number `json:"value"`
	DurationSec json.Number `json:"durationSec"`
	ExpiresAt   json.Number `json:"expiresAt"`
}

// PauseRequest.Paused is true only for the JSON boolean true or the string "true".
type PauseRequest struct {
	Market string      `json:"market"`
	Paused interface{} `json:"paused"`
}

type CreateOrderRequest struct {
	Symbol string      `json:"symbol" validate:"required"`
	Side   string      `json:"side" validate:"required"`
	Amount json.Number `json:"amount"`
	Market string      `json:"market"`
}

func number(n json.Number) (float64, bool) {
	if n == "" {
		return 0, false
	}
	v, err := n.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
