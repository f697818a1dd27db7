package models

import "strings"

// Market keys used for per-market intervals and pause flags.
const (
	MarketGlobal    = "GLOBAL"
	MarketCrypto    = "CRYPTO"
	MarketForex     = "FOREX"
	MarketCommodity = "COMMODITY"
	MarketStock     = "STOCK"
	MarketIntl      = "INTL"
)

// Markets lists the known market keys in display order.
var Markets = []string{MarketGlobal, MarketCrypto, MarketForex, MarketCommodity, MarketStock, MarketIntl}

// NormalizeMarket upper-cases a market key; empty means GLOBAL.
func NormalizeMarket(m string) string {
	m = strings.ToUpper(strings.TrimSpace(m))
	if m == "" {
		return MarketGlobal
	}
	return m
}

// Event types published by the collectors.
const (
	EventStock     = "bist_top100"
	EventCrypto    = "coingecko_top100"
	EventForex     = "forex_top100"
	EventCommodity = "commodity_top100"
	EventIntl      = "intl_exchanges"
)

// EventPriority is the lookup order used when no market is given.
var EventPriority = []string{EventCrypto, EventStock, EventForex, EventCommodity, EventIntl}

// WarningType returns the warning event type for a collector family,
// e.g. "bist" -> "bist_warning".
func WarningType(family string) string {
	return family + "_warning"
}

// IsWarning reports whether an event type is a warning variant.
func IsWarning(eventType string) bool {
	return strings.HasSuffix(eventType, "_warning")
}

// EventTypeForMarket maps an order "market" hint to the cached event type.
// Unknown hints are treated as raw event types.
func EventTypeForMarket(market string) string {
	switch strings.ToLower(strings.TrimSpace(market)) {
	case "bist", "stock":
		return EventStock
	case "crypto":
		return EventCrypto
	case "forex", "fx":
		return EventForex
	case "commodity", "cmdty", "emtia":
		return EventCommodity
	case "intl":
		return EventIntl
	default:
		return market
	}
}

// Control signals carried by the bus alongside events.
const (
	SignalRequestUpdate = "request_update"
)
