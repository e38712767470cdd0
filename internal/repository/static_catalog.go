package repository

import (
	"context"
	"fmt"
	"math"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
)

// StaticCatalog implements StrategyCatalog over a fixed, in-memory template set.
// Templates are validated once at construction and never modified afterwards.
type StaticCatalog struct {
	templates []models.Strategy
	byID      map[string]int
}

// NewStaticCatalog validates templates and builds a catalog. Order is preserved
// and used as the tie-break when confidences are equal.
func NewStaticCatalog(templates []models.Strategy) (*StaticCatalog, error) {
	c := &StaticCatalog{
		templates: make([]models.Strategy, 0, len(templates)),
		byID:      make(map[string]int, len(templates)),
	}
	for i, t := range templates {
		if err := validateTemplate(t); err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("template %d: duplicate id %q", i, t.ID)
		}
		c.byID[t.ID] = len(c.templates)
		c.templates = append(c.templates, t.Clone())
	}
	return c, nil
}

// Templates returns copies of every template in catalog order.
func (c *StaticCatalog) Templates(_ context.Context) ([]models.Strategy, error) {
	out := make([]models.Strategy, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Clone()
	}
	return out, nil
}

// Get returns a copy of the template with the given id.
func (c *StaticCatalog) Get(_ context.Context, id string) (models.Strategy, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.Strategy{}, fmt.Errorf("%w: %s", models.ErrStrategyNotFound, id)
	}
	return c.templates[i].Clone(), nil
}

// Len returns the number of templates.
func (c *StaticCatalog) Len() int { return len(c.templates) }

func validateTemplate(t models.Strategy) error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("unknown type %q", t.Type)
	}
	if !t.Complexity.Valid() {
		return fmt.Errorf("unknown complexity %q", t.Complexity)
	}
	for name, v := range map[string]float64{
		"confidence":       t.Confidence,
		"max_profit":       t.MaxProfit,
		"max_loss":         t.MaxLoss,
		"capital_required": t.CapitalRequired,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	if p := t.ProbabilityOfProfit; p != nil && math.IsNaN(*p) {
		return fmt.Errorf("probability_of_profit must be a finite number")
	}
	if t.Confidence < 0 || t.Confidence > 100 {
		return fmt.Errorf("confidence %.2f out of [0,100]", t.Confidence)
	}
	if t.CapitalRequired < 0 {
		return fmt.Errorf("capital_required must be non-negative")
	}
	if p := t.ProbabilityOfProfit; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("probability_of_profit %.2f out of [0,1]", *p)
	}
	return nil
}

func prob(v float64) *float64 { return &v }

// DefaultTemplates is the built-in reference catalog.
func DefaultTemplates() []models.Strategy {
	return []models.Strategy{
		{
			ID:                  "bull-put-spread",
			Name:                "Bull Put Spread",
			Type:                models.StrategyBullish,
			Complexity:          models.ComplexityIntermediate,
			Confidence:          73.2,
			MaxProfit:           850,
			MaxLoss:             -150,
			CapitalRequired:     150,
			ProbabilityOfProfit: prob(0.68),
			Description:         "A bullish strategy that profits from upward price movement with limited risk.",
		},
		{
			ID:                  "covered-call",
			Name:                "Covered Call",
			Type:                models.StrategyNeutral,
			Complexity:          models.ComplexityBeginner,
			Confidence:          68.5,
			MaxProfit:           420,
			MaxLoss:             -2000,
			CapitalRequired:     15000,
			ProbabilityOfProfit: prob(0.72),
			Description:         "Generate income by selling calls against existing stock positions.",
		},
		{
			ID:                  "iron-condor",
			Name:                "Iron Condor",
			Type:                models.StrategyNeutral,
			Complexity:          models.ComplexityAdvanced,
			Confidence:          65.1,
			MaxProfit:           320,
			MaxLoss:             -180,
			CapitalRequired:     180,
			ProbabilityOfProfit: prob(0.58),
			Description:         "Profit from sideways price movement with defined risk and reward.",
		},
		{
			ID:                  "cash-secured-put",
			Name:                "Cash Secured Put",
			Type:                models.StrategyBullish,
			Complexity:          models.ComplexityBeginner,
			Confidence:          62.8,
			MaxProfit:           250,
			MaxLoss:             -4750,
			CapitalRequired:     5000,
			ProbabilityOfProfit: prob(0.65),
			Description:         "Generate income while potentially acquiring stock at a discount.",
		},
		{
			ID:                  "long-straddle",
			Name:                "Long Straddle",
			Type:                models.StrategyVolatility,
			Complexity:          models.ComplexityIntermediate,
			Confidence:          58.3,
			MaxProfit:           99999,
			MaxLoss:             -480,
			CapitalRequired:     480,
			ProbabilityOfProfit: prob(0.45),
			Description:         "Profit from large price movements in either direction.",
		},
	}
}

// NewDefaultCatalog returns the built-in catalog.
func NewDefaultCatalog() *StaticCatalog {
	c, err := NewStaticCatalog(DefaultTemplates())
	if err != nil {
		panic(fmt.Sprintf("default catalog invalid: %v", err))
	}
	return c
}

var _ domrepo.StrategyCatalog = (*StaticCatalog)(nil)
