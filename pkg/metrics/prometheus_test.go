package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordFetch("CRYPTO", true, 0.2)
	r.RecordFetch("CRYPTO", false, 1)
	r.RecordFetch("CRYPTO", false, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("CRYPTO", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetchTotal.WithLabelValues("CRYPTO", "error")))

	r.RecordBackoff("STOCK", 30)
	r.RecordBackoff("STOCK", 0)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.backoff.WithLabelValues("STOCK")))

	r.RecordEvent("bist_top100", 100)
	assert.Equal(t, 100.0, testutil.ToFloat64(r.quotes.WithLabelValues("bist_top100")))

	r.StreamClientDelta("sse", 1)
	r.StreamClientDelta("sse", 1)
	r.StreamClientDelta("sse", -1)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.streamClients.WithLabelValues("sse")))

	r.RecordOverrides(0)
	r.RecordOverrides(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.overridesTotal))

	r.RecordOrder("filled")
	r.RecordPersistError("admin:config")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ordersTotal.WithLabelValues("filled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.persistErrors.WithLabelValues("admin:config")))
}
