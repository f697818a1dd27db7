package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchTotal     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	backoff        *prometheus.GaugeVec
	quotes         *prometheus.GaugeVec
	eventsTotal    *prometheus.CounterVec
	streamClients  *prometheus.GaugeVec
	persistErrors  *prometheus.CounterVec
	ordersTotal    *prometheus.CounterVec
	overridesTotal prometheus.Counter
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		fetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_fetch_total",
				Help: "Provider fetch cycles by market and result",
			},
			[]string{"market", "result"},
		),
		fetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_fetch_duration_seconds",
				Help:    "Duration of a fetch cycle including retries",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"market"},
		),
		backoff: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_backoff_seconds",
				Help: "Current failure backoff per market, 0 when healthy",
			},
			[]string{"market"},
		),
		quotes: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_event_quotes",
				Help: "Number of quotes in the last published event",
			},
			[]string{"type"},
		),
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_events_published_total",
				Help: "Events published on the bus",
			},
			[]string{"type"},
		),
		streamClients: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_stream_clients",
				Help: "Connected push clients",
			},
			[]string{"transport"},
		),
		persistErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_persist_errors_total",
				Help: "Failed writes to the state backend",
			},
			[]string{"key"},
		),
		ordersTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_orders_total",
				Help: "Simulated orders by result",
			},
			[]string{"result"},
		),
		overridesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_overrides_applied_total",
				Help: "Quotes whose price was adjusted by an override",
			},
		),
	}
}

// RecordFetch records one fetch cycle.
func (r *Recorder) RecordFetch(market string, ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.fetchTotal.WithLabelValues(market, result).Inc()
	r.fetchDuration.WithLabelValues(market).Observe(seconds)
}

// RecordBackoff records the backoff currently applied to a market.
func (r *Recorder) RecordBackoff(market string, seconds float64) {
	r.backoff.WithLabelValues(market).Set(seconds)
}

// RecordEvent records a published event and its quote count.
func (r *Recorder) RecordEvent(eventType string, quotes int) {
	r.eventsTotal.WithLabelValues(eventType).Inc()
	r.quotes.WithLabelValues(eventType).Set(float64(quotes))
}

// StreamClientDelta adjusts the connected client gauge.
func (r *Recorder) StreamClientDelta(transport string, delta int) {
	r.streamClients.WithLabelValues(transport).Add(float64(delta))
}

// RecordPersistError records a swallowed persistence failure.
func (r *Recorder) RecordPersistError(key string) {
	r.persistErrors.WithLabelValues(key).Inc()
}

// RecordOrder records an order attempt; result is "filled" or an error code.
func (r *Recorder) RecordOrder(result string) {
	r.ordersTotal.WithLabelValues(result).Inc()
}

// RecordOverrides adds n adjusted quotes.
func (r *Recorder) RecordOverrides(n int) {
	if n > 0 {
		r.overridesTotal.Add(float64(n))
	}
}
