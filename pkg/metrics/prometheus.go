package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "optionscan"

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	scansTotal     *prometheus.CounterVec
	returned       *prometheus.HistogramVec
	quoteSource    *prometheus.CounterVec
	quoteFallback  *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	eventsProduced *prometheus.CounterVec
}

// New registers the domain collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		scansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed strategy scans by risk profile",
		}, []string{"risk_profile"}),
		returned: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategies_returned",
			Help:      "Number of strategies returned per scan",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 15, 20},
		}, []string{"risk_profile"}),
		quoteSource: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_source_total",
			Help:      "Quotes answered per source",
		}, []string{"source", "estimated"}),
		quoteFallback: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_fallback_total",
			Help:      "Quote sources skipped because they missed or failed",
		}, []string{"source", "reason"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors encountered",
		}, []string{"type"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Last streamed price for a symbol",
		}, []string{"symbol"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		eventsProduced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events written to the message backend",
		}, []string{"topic", "result"}),
	}
}

// RecordScan records one completed scan and its result size.
func (r *Recorder) RecordScan(profile string, returned int) {
	r.scansTotal.WithLabelValues(profile).Inc()
	r.returned.WithLabelValues(profile).Observe(float64(returned))
}

// RecordQuoteSource records which source answered a quote lookup.
func (r *Recorder) RecordQuoteSource(source string, estimated bool) {
	r.quoteSource.WithLabelValues(source, strconv.FormatBool(estimated)).Inc()
}

// RecordQuoteFallback records a source that was skipped; reason is "miss" or "error".
func (r *Recorder) RecordQuoteFallback(source, reason string) {
	r.quoteFallback.WithLabelValues(source, reason).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordEventPublished records a publish attempt to topic.
func (r *Recorder) RecordEventPublished(topic string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.eventsProduced.WithLabelValues(topic, result).Inc()
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordScan(string, int)             {}
func (Nop) RecordQuoteSource(string, bool)     {}
func (Nop) RecordQuoteFallback(string, string) {}
func (Nop) RecordError(string)                 {}
func (Nop) RecordLastPrice(string, float64)    {}
func (Nop) RecordLatency(string, float64)      {}
func (Nop) RecordEventPublished(string, bool)  {}
