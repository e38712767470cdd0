package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"OptionScan/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestScanPrintsOnlyJSON(t *testing.T) {
	out, err := run(t, "scan", "aapl", "--profile", "yolo", "--max", "1")
	require.NoError(t, err)

	var resp models.ScanResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, 175.50, resp.CurrentPrice)
	assert.Len(t, resp.Strategies, 1)
}

func TestScanRejectsInvalidFlags(t *testing.T) {
	_, err := run(t, "scan", "AAPL", "--max", "50")
	assert.ErrorContains(t, err, "maxStrategies")

	_, err = run(t, "scan", "A$%")
	assert.ErrorContains(t, err, "ticker")
}

func TestValidateCatalog(t *testing.T) {
	out, err := run(t, "validate-catalog", "../../config/strategies.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "8 strategies OK")
	assert.Contains(t, out, "protective-put")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`strategies:
  - id: x
    name: X
    type: neutral
    complexity: wizard
    confidence: 50
`), 0o600))
	_, err = run(t, "validate-catalog", bad)
	assert.ErrorContains(t, err, "complexity")
}
