package usecase

import (
	"testing"

	"MarketRelay/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverrides(t *testing.T) {
	btc := quote("BTCUSDT", 100)
	eth := quote("eth", 50)
	eth.ID = "ethereum"
	noPrice := models.Quote{Symbol: "NOPRICE"}
	in := []models.Quote{btc, eth, quote("SOL", 20), noPrice}

	out, n := ApplyOverrides(in, map[string]models.Override{
		"btcusdt":  {Type: models.OverridePercent, Value: 5},
		"ETHEREUM": {Type: models.OverrideDelta, Value: -60},
		"NOPRICE":  {Type: models.OverrideSet, Value: 9},
	})
	require.Len(t, out, 4)
	assert.Equal(t, 3, n)

	assert.InDelta(t, 105.0, *out[0].Price, 1e-9)
	assert.Nil(t, out[1].Price, "non-positive result must become null")
	assert.Equal(t, 20.0, *out[2].Price)
	assert.Equal(t, 9.0, *out[3].Price)

	assert.Equal(t, 100.0, *in[0].Price, "input must not be modified")
}

func TestApplyOverridesNoop(t *testing.T) {
	in := []models.Quote{quote("A", 1)}
	out, n := ApplyOverrides(in, nil)
	assert.Equal(t, in, out)
	assert.Zero(t, n)
}
