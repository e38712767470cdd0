package quotes

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"OptionScan/internal/domain/models"
	"OptionScan/pkg/util"
)

// SourceSynthetic names quotes made up when no source answered.
const SourceSynthetic = "synthetic"

// Rand is a goroutine-safe random source for synthetic quotes.
type Rand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand wraps src; a nil src is seeded from the clock.
func NewRand(src rand.Source) *Rand {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	return &Rand{rnd: rand.New(src)}
}

func (r *Rand) float64s(n int) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = r.rnd.Float64()
	}
	return out
}

// ScanEstimate is the reference price used by a scan when every source missed:
// a price in [100, 300) rounded to cents.
func (r *Rand) ScanEstimate(ticker string, now time.Time) models.Quote {
	u := r.float64s(1)
	return models.Quote{
		Ticker:    ticker,
		Price:     util.RoundCents(100 + u[0]*200),
		Source:    SourceSynthetic,
		Estimated: true,
		Timestamp: now.UTC(),
	}
}

// QuoteEstimate is a full random day quote: price in [50, 350), change in
// [-5, 5) and volume in [1e6, 5.1e7).
func (r *Rand) QuoteEstimate(ticker string, now time.Time) models.Quote {
	u := r.float64s(3)
	price := 50 + u[0]*300
	change := u[1]*10 - 5
	return models.Quote{
		Ticker:        ticker,
		Price:         util.RoundCents(price),
		Change:        util.RoundCents(change),
		ChangePercent: util.RoundCents(change / price * 100),
		Volume:        int64(math.Floor(1e6 + u[2]*5e7)),
		Source:        SourceSynthetic,
		Estimated:     true,
		Timestamp:     now.UTC(),
	}
}
