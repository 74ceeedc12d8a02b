package simulator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ictbacktest/models"
)

var simBase = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// m5Candles builds n five-minute candles from the base time, all at the
// given flat price with a one-unit range.
func m5Candles(n int, price float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Time:  simBase.Add(time.Duration(i) * 5 * time.Minute),
			Open:  price,
			High:  price + 0.5,
			Low:   price - 0.5,
			Close: price,
		}
	}
	return candles
}

func goldBuyLimit() models.SuggestedTrade {
	return models.SuggestedTrade{
		Kind:        models.BuyLimit,
		Entry:       2000,
		StopLoss:    1990,
		TakeProfit1: 2005,
		TakeProfit2: 2010,
		TakeProfit3: 2020,
	}
}

func TestSimulateSingleStopLossWinsSameCandle(t *testing.T) {
	sim := New(Config{UnitScale: 100})
	candles := m5Candles(10, 2003)
	candles[1].Low = 1999 // fills the limit
	// candle 3 touches both the stop and TP2; the stop must win
	candles[3].Low = 1989
	candles[3].High = 2011

	outcome := sim.SimulateSingle(goldBuyLimit(), simBase, candles)
	require.True(t, outcome.Executed)
	assert.Equal(t, models.OutcomeSL, outcome.Outcome)
	assert.Equal(t, 1990.0, outcome.ExitPrice)
	assert.Equal(t, candles[1].Time, outcome.ExecutionTime)
	assert.Equal(t, candles[3].Time, outcome.ExitTime)
	assert.InDelta(t, -1000, outcome.ProfitUnits, 1e-9) // 10 price units * scale 100
	assert.False(t, outcome.TP1Hit)
}

func TestSimulateSingleResolvesToHighestTargetReached(t *testing.T) {
	cfg := Config{UnitScale: 100}.Normalize()
	sim := New(cfg)
	candles := m5Candles(40, 2003)
	candles[1].Low = 1999
	candles[2].High = 2006  // TP1
	candles[4].High = 2011  // TP2, never TP3
	// remaining candles stall below TP3 until the stall exit fires

	outcome := sim.SimulateSingle(goldBuyLimit(), simBase, candles)
	require.True(t, outcome.Executed)
	assert.Equal(t, models.OutcomeTP2, outcome.Outcome)
	assert.Equal(t, 2010.0, outcome.ExitPrice)
	assert.True(t, outcome.TP1Hit)
	assert.True(t, outcome.TP2Hit)
	assert.False(t, outcome.TP3Hit)
	assert.InDelta(t, 1000, outcome.ProfitUnits, 1e-9)
}

func TestSimulateSingleTP3ClosesImmediately(t *testing.T) {
	sim := New(Config{UnitScale: 100})
	candles := m5Candles(10, 2003)
	candles[1].Low = 1999
	candles[2].High = 2021 // through all three targets

	outcome := sim.SimulateSingle(goldBuyLimit(), simBase, candles)
	require.True(t, outcome.Executed)
	assert.Equal(t, models.OutcomeTP3, outcome.Outcome)
	assert.Equal(t, 2020.0, outcome.ExitPrice)
	assert.True(t, outcome.TP1Hit)
	assert.True(t, outcome.TP2Hit)
	assert.True(t, outcome.TP3Hit)
	assert.Equal(t, candles[2].Time, outcome.ExitTime)
}

func TestSimulateSingleNeverTriggeredExpires(t *testing.T) {
	sim := New(Config{UnitScale: 100})
	candles := m5Candles(20, 2050) // never trades down to the entry

	outcome := sim.SimulateSingle(goldBuyLimit(), simBase, candles)
	assert.False(t, outcome.Executed)
	assert.Equal(t, models.OutcomeExpired, outcome.Outcome)
	assert.Zero(t, outcome.ProfitUnits)
}

func TestSimulateSingleTriggeredThenExpires(t *testing.T) {
	sim := New(Config{MaxDurationHours: 1, UnitScale: 100})
	candles := m5Candles(30, 2003)
	candles[1].Low = 1999
	// price drifts sideways; neither stop nor target inside the cap

	outcome := sim.SimulateSingle(goldBuyLimit(), simBase, candles)
	require.True(t, outcome.Executed)
	assert.Equal(t, models.OutcomeExpired, outcome.Outcome)
	assert.Equal(t, 2003.0, outcome.ExitPrice) // last close inside the window
}

func TestSimulateSingleShortMirrors(t *testing.T) {
	sim := New(Config{UnitScale: 100})
	trade := models.SuggestedTrade{
		Kind:        models.SellLimit,
		Entry:       2010,
		StopLoss:    2020,
		TakeProfit1: 2005,
		TakeProfit2: 2000,
		TakeProfit3: 1995,
	}
	candles := m5Candles(10, 2005)
	candles[1].High = 2011 // fills the sell limit
	candles[3].Low = 2004  // TP1
	candles[5].High = 2021 // stop

	outcome := sim.SimulateSingle(trade, simBase, candles)
	require.True(t, outcome.Executed)
	assert.Equal(t, models.OutcomeSL, outcome.Outcome)
	assert.True(t, outcome.TP1Hit)
	assert.InDelta(t, -1000, outcome.ProfitUnits, 1e-9)
}

func TestSimulateSingleSlippageIsDeterministic(t *testing.T) {
	run := func() models.TradeOutcome {
		sim := New(Config{UnitScale: 100, SlippageUnits: 50, Rng: SeededRng(7)})
		candles := m5Candles(10, 2003)
		candles[1].Low = 1999
		candles[2].High = 2021
		return sim.SimulateSingle(goldBuyLimit(), simBase, candles)
	}

	first, second := run(), run()
	assert.Equal(t, first.ExecutionPrice, second.ExecutionPrice)
	assert.Equal(t, first.ProfitUnits, second.ProfitUnits)
	assert.InDelta(t, 0.5, absF(first.ExecutionPrice-2000), 1e-9) // 50 units / scale 100
}

func TestSimulateManyAlignsByProposalTime(t *testing.T) {
	sim := New(Config{UnitScale: 100})
	candles := m5Candles(50, 2003)
	candles[21].Low = 1999
	candles[22].High = 2021

	proposals := []Proposal{
		{Trade: goldBuyLimit(), ProposalTime: candles[20].Time},
		{Trade: goldBuyLimit(), ProposalTime: candles[49].Time.Add(time.Hour)}, // beyond the data
	}

	outcomes := sim.SimulateMany(proposals, candles)
	require.Len(t, outcomes, 2)
	assert.Equal(t, models.OutcomeTP3, outcomes[0].Outcome)
	assert.False(t, outcomes[1].Executed)
}

func TestQuickStats(t *testing.T) {
	t.Run("empty batch yields zeros", func(t *testing.T) {
		stats := QuickStats(nil)
		assert.Zero(t, stats.Total)
		assert.Zero(t, stats.WinRate)
		assert.Zero(t, stats.AvgProfit)
		assert.NotNil(t, stats.Outcomes)
	})

	t.Run("mixed batch", func(t *testing.T) {
		stats := QuickStats([]models.TradeOutcome{
			{Executed: true, Outcome: models.OutcomeTP2, ProfitUnits: 100, DurationHours: 4},
			{Executed: true, Outcome: models.OutcomeSL, ProfitUnits: -50, DurationHours: 2},
			{Executed: false, Outcome: models.OutcomeExpired},
		})
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.Executed)
		assert.InDelta(t, 66.7, stats.ExecutionRate, 0.1)
		assert.Equal(t, 1, stats.Wins)
		assert.Equal(t, 1, stats.Losses)
		assert.InDelta(t, 50, stats.WinRate, 1e-9)
		assert.InDelta(t, 25, stats.AvgProfit, 1e-9)
		assert.Equal(t, 1, stats.Outcomes[models.OutcomeTP2])
		assert.Equal(t, 1, stats.Outcomes[models.OutcomeSL])
	})
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
