package models

import "time"

// StrategyType is the directional bias of a strategy.
type StrategyType string

const (
	StrategyBullish    StrategyType = "bullish"
	StrategyBearish    StrategyType = "bearish"
	StrategyNeutral    StrategyType = "neutral"
	StrategyVolatility StrategyType = "volatility"
)

// Valid reports whether t is one of the known directional biases.
func (t StrategyType) Valid() bool {
	switch t {
	case StrategyBullish, StrategyBearish, StrategyNeutral, StrategyVolatility:
		return true
	default:
		return false
	}
}

// Complexity grades how involved a strategy is to put on.
type Complexity string

const (
	ComplexityBeginner     Complexity = "beginner"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

// Valid reports whether c is a known grade. Empty is allowed; the field is optional.
func (c Complexity) Valid() bool {
	switch c {
	case "", ComplexityBeginner, ComplexityIntermediate, ComplexityAdvanced:
		return true
	default:
		return false
	}
}

// Strategy is a single screened options strategy.
// Confidence is a heuristic in [0, 100], not a calibrated probability.
type Strategy struct {
	ID                  string       `json:"id" yaml:"id"`
	Name                string       `json:"name" yaml:"name"`
	Type                StrategyType `json:"type" yaml:"type"`
	Complexity          Complexity   `json:"complexity,omitempty" yaml:"complexity"`
	Confidence          float64      `json:"confidence" yaml:"confidence"`
	MaxProfit           float64      `json:"maxProfit" yaml:"max_profit"`
	MaxLoss             float64      `json:"maxLoss" yaml:"max_loss"`
	CapitalRequired     float64      `json:"capitalRequired" yaml:"capital_required"`
	ProbabilityOfProfit *float64     `json:"probabilityOfProfit,omitempty" yaml:"probability_of_profit"`
	Description         string       `json:"description,omitempty" yaml:"description"`
}

// Clone returns a deep copy; the optional probability is not shared.
func (s Strategy) Clone() Strategy {
	out := s
	if s.ProbabilityOfProfit != nil {
		p := *s.ProbabilityOfProfit
		out.ProbabilityOfProfit = &p
	}
	return out
}

// ScanResult is the outcome of one screening call.
type ScanResult struct {
	ScanID       string
	Ticker       string
	RiskProfile  RiskProfile
	MinDTE       int
	MaxDTE       int
	CurrentPrice float64
	Quote        Quote
	Strategies   []Strategy
	ExpiryFrom   time.Time
	ExpiryTo     time.Time
	GeneratedAt  time.Time
}
