package scoring

import (
	"math/rand/v2"
	"sync"
	"time"

	"OptionScan/internal/domain/models"
	domsvc "OptionScan/internal/domain/service"
	"OptionScan/pkg/util"
)

// JitterAdjuster perturbs ranked strategies so repeated scans do not look canned.
// Confidence moves by a symmetric offset of at most spread/2; profit and loss are
// scaled independently by a factor in [minScale, maxScale] and rounded to whole units.
type JitterAdjuster struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	spread   float64
	minScale float64
	maxScale float64
}

type JitterOption func(*JitterAdjuster)

// WithSource sets the random source. Useful for deterministic tests.
func WithSource(src rand.Source) JitterOption {
	return func(j *JitterAdjuster) {
		if src != nil {
			j.rnd = rand.New(src)
		}
	}
}

// WithConfidenceSpread sets the full width of the confidence jitter (5 means ±2.5).
func WithConfidenceSpread(w float64) JitterOption {
	return func(j *JitterAdjuster) {
		if w >= 0 {
			j.spread = w
		}
	}
}

// WithScaleRange sets the profit/loss scale factor bounds.
func WithScaleRange(lo, hi float64) JitterOption {
	return func(j *JitterAdjuster) {
		if lo > 0 && hi >= lo {
			j.minScale = lo
			j.maxScale = hi
		}
	}
}

// NewJitterAdjuster creates a jitter adjuster with ±2.5 confidence and [0.8, 1.2] scaling.
func NewJitterAdjuster(opts ...JitterOption) *JitterAdjuster {
	seed := uint64(time.Now().UnixNano())
	j := &JitterAdjuster{
		rnd:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		spread:   5,
		minScale: 0.8,
		maxScale: 1.2,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *JitterAdjuster) Adjust(s models.Strategy) models.Strategy {
	j.mu.Lock()
	u, p, l := j.rnd.Float64(), j.rnd.Float64(), j.rnd.Float64()
	j.mu.Unlock()

	s.Confidence = ClampConfidence(s.Confidence + (u-0.5)*j.spread)
	s.MaxProfit = RoundWhole(s.MaxProfit * j.scale(p))
	s.MaxLoss = RoundWhole(s.MaxLoss * j.scale(l))
	return s
}

func (j *JitterAdjuster) scale(u float64) float64 {
	return j.minScale + u*(j.maxScale-j.minScale)
}

// IdentityAdjuster returns strategies untouched.
type IdentityAdjuster struct{}

func (IdentityAdjuster) Adjust(s models.Strategy) models.Strategy { return s }

// ClampConfidence bounds a confidence score to [0, 100].
func ClampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// RoundWhole rounds a monetary amount to the nearest whole unit.
func RoundWhole(v float64) float64 { return util.RoundWhole(v) }

var (
	_ domsvc.ScoreAdjuster = (*JitterAdjuster)(nil)
	_ domsvc.ScoreAdjuster = IdentityAdjuster{}
)
