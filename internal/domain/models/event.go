package models

import (
	"encoding/json"
	"time"
)

// MarketEvent is the unit published on the bus. Last value wins per Type.
type MarketEvent struct {
	Type       string  `json:"type"`
	TS         int64   `json:"ts"`
	LastUpdate string  `json:"lastUpdate,omitempty"`
	Count      int     `json:"count"`
	Data       []Quote `json:"data,omitempty"`
	Source     string  `json:"source,omitempty"`
	Message    string  `json:"message,omitempty"`
	BackoffMs  int64   `json:"backoffMs,omitempty"`
	Exchanges  int     `json:"exchanges,omitempty"`
}

// NewDataEvent builds a data event stamped with now.
func NewDataEvent(eventType, source string, quotes []Quote, now time.Time) MarketEvent {
	return MarketEvent{
		Type:       eventType,
		TS:         now.UnixMilli(),
		LastUpdate: now.UTC().Format(time.RFC3339Nano),
		Count:      len(quotes),
		Data:       quotes,
		Source:     source,
	}
}

// NewWarningEvent builds a "<family>_warning" event.
func NewWarningEvent(family, message string, backoff time.Duration, now time.Time) MarketEvent {
	return MarketEvent{
		Type:      WarningType(family),
		TS:        now.UnixMilli(),
		Message:   message,
		BackoffMs: backoff.Milliseconds(),
	}
}

// Find returns the first quote whose symbol or id equals key, ignoring case.
func (e *MarketEvent) Find(key string) (Quote, bool) {
	if e == nil {
		return Quote{}, false
	}
	for _, q := range e.Data {
		if q.Matches(key) {
			return q, true
		}
	}
	return Quote{}, false
}

// Clone returns a copy safe to hand to another goroutine.
func (e MarketEvent) Clone() MarketEvent {
	if e.Data != nil {
		e.Data = append([]Quote(nil), e.Data...)
	}
	return e
}

// Stamped returns a copy with TS set to now, as sent to stream clients.
func (e MarketEvent) Stamped(now time.Time) MarketEvent {
	e.TS = now.UnixMilli()
	return e
}

// MarshalJSON always writes data for data events, as [] when empty, and
// leaves it out of warnings.
func (e MarketEvent) MarshalJSON() ([]byte, error) {
	type plain MarketEvent
	out := struct {
		plain
		Data *[]Quote `json:"data,omitempty"`
	}{plain: plain(e)}
	if !IsWarning(e.Type) {
		data := e.Data
		if data == nil {
			data = []Quote{}
		}
		out.Data = &data
	}
	return json.Marshal(out)
}

// MarshalEvent encodes an event for persistence or the wire.
func MarshalEvent(e MarketEvent) ([]byte, error) {
	return json.Marshal(e)
}
