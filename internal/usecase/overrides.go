package usecase

import (
	"strings"

	"MarketRelay/internal/domain/models"
)

// ApplyOverrides returns quotes with admin overrides applied. Overrides are
// keyed by symbol or provider id, case-insensitively. A result that is not a
// finite positive number leaves the price null. The input slice is not
// modified; n is the number of quotes adjusted.
func ApplyOverrides(quotes []models.Quote, overrides map[string]models.Override) (out []models.Quote, n int) {
	if len(overrides) == 0 || len(quotes) == 0 {
		return quotes, 0
	}
	index := make(map[string]models.Override, len(overrides))
	for sym, o := range overrides {
		index[strings.ToUpper(sym)] = o
	}

	out = make([]models.Quote, len(quotes))
	copy(out, quotes)
	for i := range out {
		o, ok := index[strings.ToUpper(out[i].Symbol)]
		if !ok && out[i].ID != "" {
			o, ok = index[strings.ToUpper(out[i].ID)]
		}
		if !ok {
			continue
		}
		n++
		price, _ := out[i].PriceValue()
		adjusted := o.Apply(price)
		if models.ValidPrice(adjusted) {
			out[i].Price = models.Float(adjusted)
		} else {
			out[i].Price = nil
		}
	}
	return out, n
}
