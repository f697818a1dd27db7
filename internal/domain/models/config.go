package models

import "time"

// Override types.
const (
	OverrideSet     = "set"
	OverrideDelta   = "delta"
	OverridePercent = "percent"
)

// Override is an admin price adjustment. ExpiresAt is unix millis; 0 means
// it never expires.
type Override struct {
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	ExpiresAt int64   `json:"expiresAt,omitempty"`
}

// Expired reports whether the override has expired at now.
func (o Override) Expired(now time.Time) bool {
	return o.ExpiresAt > 0 && now.UnixMilli() >= o.ExpiresAt
}

// Apply returns the adjusted price. Unknown types leave the price unchanged.
func (o Override) Apply(price float64) float64 {
	switch o.Type {
	case OverrideSet:
		return o.Value
	case OverrideDelta:
		return price + o.Value
	case OverridePercent:
		return price * (1 + o.Value/100)
	default:
		return price
	}
}

// ConfigState is the admin-controlled runtime configuration.
type ConfigState struct {
	Intervals map[string]int64    `json:"intervals"`
	Overrides map[string]Override `json:"overrides"`
	Paused    map[string]bool     `json:"paused"`
}

// Clone deep-copies the maps.
func (s ConfigState) Clone() ConfigState {
	out := ConfigState{
		Intervals: make(map[string]int64, len(s.Intervals)),
		Overrides: make(map[string]Override, len(s.Overrides)),
		Paused:    make(map[string]bool, len(s.Paused)),
	}
	for k, v := range s.Intervals {
		out.Intervals[k] = v
	}
	for k, v := range s.Overrides {
		out.Overrides[k] = v
	}
	for k, v := range s.Paused {
		out.Paused[k] = v
	}
	return out
}
