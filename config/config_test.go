package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ictbacktest/models"
)

func TestLoadRunParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: XAUUSD
start_date: "2024-01-01"
end_date: "2024-03-01"
analysis_interval_hours: 6
strategy_concurrency: 4
slippage_units: 50
seed: 42
`), 0o644))

	params, err := LoadRunParams(path)
	require.NoError(t, err)

	assert.Equal(t, "XAUUSD", params.Symbol)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), params.StartDate)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), params.EndDate)
	assert.Equal(t, 6, params.AnalysisIntervalHours)
	assert.Equal(t, 4, params.StrategyConcurrency)
	assert.Equal(t, 50.0, params.SlippageUnits)
	assert.Equal(t, int64(42), params.Seed)

	// defaults fill the unset fields
	assert.Equal(t, 72, params.MaxTradeDurationHours)
	assert.Equal(t, 100.0, params.UnitScale)
}

func TestLoadRunParamsBadDate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: EURUSD
start_date: "01/02/2024"
end_date: "2024-03-01"
`), 0o644))

	_, err := LoadRunParams(path)
	assert.Error(t, err)
}

func TestLoadRunParamsMissingFile(t *testing.T) {
	_, err := LoadRunParams(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyDefaultsUnitScale(t *testing.T) {
	tests := []struct {
		symbol string
		scale  float64
	}{
		{"XAUUSD", 100},
		{"XAGUSD", 100},
		{"USDJPY", 100},
		{"EURUSD", 10000},
		{"GBPUSD", 10000},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			p := models.BacktestParams{Symbol: tt.symbol}
			ApplyDefaults(&p)
			assert.Equal(t, tt.scale, p.UnitScale)
			assert.Equal(t, 4, p.AnalysisIntervalHours)
			assert.Equal(t, int64(1), p.Seed)
		})
	}
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	p := models.BacktestParams{
		Symbol:                "EURUSD",
		AnalysisIntervalHours: 2,
		UnitScale:             500,
		Seed:                  9,
	}
	ApplyDefaults(&p)
	assert.Equal(t, 2, p.AnalysisIntervalHours)
	assert.Equal(t, 500.0, p.UnitScale)
	assert.Equal(t, int64(9), p.Seed)
}
