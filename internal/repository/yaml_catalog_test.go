package repository

import (
	"context"
	"testing"

	"OptionScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippedCatalogLoads(t *testing.T) {
	c, err := LoadYAMLCatalog("../../config/strategies.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8, c.Len())

	ctx := context.Background()
	templates, err := c.Templates(ctx)
	require.NoError(t, err)
	for i, d := range DefaultTemplates()[:4] {
		assert.Equal(t, d.ID, templates[i].ID)
		assert.Equal(t, d.Confidence, templates[i].Confidence)
	}

	cal, err := c.Get(ctx, "calendar-spread")
	require.NoError(t, err)
	assert.Nil(t, cal.ProbabilityOfProfit)
	assert.Equal(t, models.ComplexityAdvanced, cal.Complexity)
}

func TestLoadYAMLCatalogMissingFile(t *testing.T) {
	_, err := LoadYAMLCatalog("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestParseYAMLCatalogRejectsOutOfModelValues(t *testing.T) {
	const base = "strategies:\n  - id: x\n    name: X\n    type: neutral\n"
	cases := map[string]string{
		"nan confidence":      "    confidence: .nan\n",
		"inf max profit":      "    confidence: 50\n    max_profit: .inf\n",
		"nan max loss":        "    confidence: 50\n    max_loss: .nan\n",
		"nan capital":         "    confidence: 50\n    capital_required: .nan\n",
		"nan probability":     "    confidence: 50\n    probability_of_profit: .nan\n",
		"unknown complexity":  "    confidence: 50\n    complexity: wizard\n",
		"negative confidence": "    confidence: -1\n",
	}
	for name, extra := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseYAMLCatalog([]byte(base + extra))
			assert.Error(t, err)
		})
	}

	c, err := ParseYAMLCatalog([]byte(base + "    confidence: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
}
