package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordScan("conservative", 3)
	r.RecordScan("conservative", 2)
	r.RecordQuoteSource("demo", false)
	r.RecordQuoteFallback("polygon", "error")
	r.RecordQuoteFallback("polygon", "error")
	r.RecordLastPrice("AAPL", 175.5)
	r.RecordEventPublished("optionscan.scans", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.scansTotal.WithLabelValues("conservative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.quoteSource.WithLabelValues("demo", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.quoteFallback.WithLabelValues("polygon", "error")))
	assert.Equal(t, 175.5, testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.eventsProduced.WithLabelValues("optionscan.scans", "error")))

	n, err := testutil.GatherAndCount(reg, "optionscan_quote_fallback_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
