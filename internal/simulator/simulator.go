// Package simulator replays suggested trades against historical candles
// and decides deterministically whether and how each would have resolved.
package simulator

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ictbacktest/models"
)

// Config controls one simulation batch. Zero fields get defaults from
// Normalize; UnitScale must be set per instrument, never assumed.
type Config struct {
	MaxDurationHours int     // trade lifetime cap, trigger and resolution alike
	SlippageUnits    float64 // execution slippage in profit units (pips)
	UnitScale        float64 // price-to-unit conversion for the instrument

	// Stall exits: a trade that reached TP2 but spends TP2StallBars more
	// candles without reaching TP3 closes at TP2; same for TP1 vs TP2.
	// These counts mirror the strategy's original policy and carry no
	// deeper rationale, hence overridable.
	TP2StallBars int
	TP1StallBars int

	// Rng drives the slippage sign. Seed it from the run parameters so
	// identical runs produce identical statistics.
	Rng *rand.Rand
}

// Normalize fills defaults.
func (c Config) Normalize() Config {
	if c.MaxDurationHours <= 0 {
		c.MaxDurationHours = 72
	}
	if c.UnitScale <= 0 {
		c.UnitScale = 1
	}
	if c.TP2StallBars <= 0 {
		c.TP2StallBars = 10
	}
	if c.TP1StallBars <= 0 {
		c.TP1StallBars = 20
	}
	if c.Rng == nil {
		c.Rng = rand.New(rand.NewSource(1))
	}
	return c
}

// SeededRng builds the deterministic RNG for a run seed.
func SeededRng(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Simulator replays trades. Instances are cheap; create one per run so the
// RNG state never leaks across runs.
type Simulator struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a simulator with normalized config.
func New(cfg Config) *Simulator {
	return &Simulator{
		cfg:    cfg.Normalize(),
		logger: log.With().Str("component", "simulator").Logger(),
	}
}

// Proposal couples a suggested trade with the instant it was proposed.
type Proposal struct {
	Trade        models.SuggestedTrade
	ProposalTime time.Time
}

// SimulateSingle replays one trade against the candles following its
// proposal time. futureCandles must start at or after the proposal time.
//
// Trigger phase: limit orders fill when price trades through the entry
// (buy: low <= entry, sell: high >= entry); stop orders mirror that
// (buy: high >= entry, sell: low <= entry). No fill inside the duration
// cap means EXPIRED, not executed.
//
// Resolution phase, per candle in order: stop-loss first — a stop touch
// ends the trade even when a take-profit is touched in the same candle;
// then take-profits tracked cumulatively, TP3 ending the trade at once.
// Stalled trades close early at the highest target reached.
func (s *Simulator) SimulateSingle(trade models.SuggestedTrade, proposalTime time.Time, futureCandles []models.Candle) models.TradeOutcome {
	if len(futureCandles) == 0 {
		return models.TradeOutcome{Executed: false, Outcome: models.OutcomeExpired}
	}

	isBuy := trade.Kind.IsBuy()
	maxEnd := proposalTime.Add(time.Duration(s.cfg.MaxDurationHours) * time.Hour)

	execIndex := -1
	for i, c := range futureCandles {
		if c.Time.After(maxEnd) {
			break
		}
		if c.Time.Before(proposalTime) {
			continue
		}
		if triggered(trade, c) {
			execIndex = i
			break
		}
	}

	if execIndex < 0 {
		return models.TradeOutcome{
			Executed:     false,
			Outcome:      models.OutcomeExpired,
			DurationBars: len(futureCandles),
		}
	}

	execCandle := futureCandles[execIndex]
	execPrice := trade.Entry + s.slippageOffset()
	resolutionEnd := execCandle.Time.Add(time.Duration(s.cfg.MaxDurationHours) * time.Hour)
	remaining := futureCandles[execIndex+1:]

	var tp1Hit, tp2Hit, tp3Hit, slHit bool
	tp1Index, tp2Index := -1, -1
	exitIndex := -1

	for i, c := range remaining {
		if c.Time.After(resolutionEnd) {
			break
		}

		if isBuy {
			if c.Low <= trade.StopLoss {
				slHit = true
				exitIndex = i
				break
			}
			if !tp1Hit && c.High >= trade.TakeProfit1 {
				tp1Hit = true
				tp1Index = i
			}
			if !tp2Hit && c.High >= trade.TakeProfit2 {
				tp2Hit = true
				tp2Index = i
			}
			if !tp3Hit && c.High >= trade.TakeProfit3 {
				tp3Hit = true
				exitIndex = i
				break
			}
		} else {
			if c.High >= trade.StopLoss {
				slHit = true
				exitIndex = i
				break
			}
			if !tp1Hit && c.Low <= trade.TakeProfit1 {
				tp1Hit = true
				tp1Index = i
			}
			if !tp2Hit && c.Low <= trade.TakeProfit2 {
				tp2Hit = true
				tp2Index = i
			}
			if !tp3Hit && c.Low <= trade.TakeProfit3 {
				tp3Hit = true
				exitIndex = i
				break
			}
		}

		if tp2Hit && !tp3Hit && i-tp2Index >= s.cfg.TP2StallBars {
			exitIndex = i
			break
		}
		if tp1Hit && !tp2Hit && i-tp1Index >= s.cfg.TP1StallBars {
			exitIndex = i
			break
		}
	}

	var outcome models.Outcome
	var exitPrice float64
	switch {
	case slHit:
		outcome = models.OutcomeSL
		exitPrice = trade.StopLoss
	case tp3Hit:
		outcome = models.OutcomeTP3
		exitPrice = trade.TakeProfit3
	case tp2Hit:
		outcome = models.OutcomeTP2
		exitPrice = trade.TakeProfit2
	case tp1Hit:
		outcome = models.OutcomeTP1
		exitPrice = trade.TakeProfit1
	default:
		outcome = models.OutcomeExpired
		if len(remaining) > 0 {
			exitPrice = lastWithin(remaining, resolutionEnd).Close
		} else {
			exitPrice = execCandle.Close
		}
	}

	var exitCandle models.Candle
	if exitIndex >= 0 {
		exitCandle = remaining[exitIndex]
	} else if len(remaining) > 0 {
		exitCandle = lastWithin(remaining, resolutionEnd)
	} else {
		exitCandle = execCandle
	}

	dir := 1.0
	if !isBuy {
		dir = -1.0
	}
	profitUnits := (exitPrice - execPrice) * dir * s.cfg.UnitScale
	profitPercent := (exitPrice - execPrice) / execPrice * dir * 100

	durationBars := len(remaining)
	if exitIndex >= 0 {
		durationBars = exitIndex + 1
	}

	s.logger.Debug().
		Str("kind", string(trade.Kind)).
		Str("outcome", string(outcome)).
		Float64("profit_units", profitUnits).
		Msg("trade simulated")

	return models.TradeOutcome{
		Executed:       true,
		ExecutionTime:  execCandle.Time,
		ExecutionPrice: execPrice,
		Outcome:        outcome,
		ExitTime:       exitCandle.Time,
		ExitPrice:      exitPrice,
		ProfitUnits:    profitUnits,
		ProfitPercent:  profitPercent,
		DurationHours:  exitCandle.Time.Sub(execCandle.Time).Hours(),
		DurationBars:   durationBars,
		TP1Hit:         tp1Hit,
		TP2Hit:         tp2Hit,
		TP3Hit:         tp3Hit,
	}
}

// SimulateMany replays a batch, locating each trade's candle slice by its
// proposal timestamp inside allCandles.
func (s *Simulator) SimulateMany(proposals []Proposal, allCandles []models.Candle) []models.TradeOutcome {
	outcomes := make([]models.TradeOutcome, len(proposals))
	for i, p := range proposals {
		start := -1
		for j, c := range allCandles {
			if !c.Time.Before(p.ProposalTime) {
				start = j
				break
			}
		}
		if start < 0 || start >= len(allCandles)-1 {
			outcomes[i] = models.TradeOutcome{Executed: false, Outcome: models.OutcomeExpired}
			continue
		}
		outcomes[i] = s.SimulateSingle(p.Trade, p.ProposalTime, allCandles[start:])
	}
	return outcomes
}

// QuickStats condenses a batch of outcomes. Every division is guarded so
// an empty batch yields zeros, never a panic.
func QuickStats(outcomes []models.TradeOutcome) models.QuickStats {
	stats := models.QuickStats{
		Total: len(outcomes),
		Outcomes: map[models.Outcome]int{
			models.OutcomeTP1:     0,
			models.OutcomeTP2:     0,
			models.OutcomeTP3:     0,
			models.OutcomeSL:      0,
			models.OutcomeExpired: 0,
		},
	}

	var totalDuration float64
	for _, o := range outcomes {
		if !o.Executed {
			continue
		}
		stats.Executed++
		stats.TotalProfit += o.ProfitUnits
		totalDuration += o.DurationHours
		stats.Outcomes[o.Outcome]++
		if o.ProfitUnits > 0 {
			stats.Wins++
		} else if o.ProfitUnits < 0 {
			stats.Losses++
		}
	}

	if stats.Total > 0 {
		stats.ExecutionRate = float64(stats.Executed) / float64(stats.Total) * 100
	}
	if stats.Executed > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.Executed) * 100
		stats.AvgProfit = stats.TotalProfit / float64(stats.Executed)
		stats.AvgDuration = totalDuration / float64(stats.Executed)
	}
	return stats
}

func triggered(trade models.SuggestedTrade, c models.Candle) bool {
	switch trade.Kind {
	case models.BuyLimit, models.SellStop:
		return c.Low <= trade.Entry
	case models.SellLimit, models.BuyStop:
		return c.High >= trade.Entry
	}
	return false
}

// slippageOffset converts the configured slippage from profit units to a
// price offset with a random sign.
func (s *Simulator) slippageOffset() float64 {
	if s.cfg.SlippageUnits == 0 {
		return 0
	}
	offset := s.cfg.SlippageUnits / s.cfg.UnitScale
	if s.cfg.Rng.Intn(2) == 0 {
		return -offset
	}
	return offset
}

// lastWithin returns the last candle not after the deadline, falling back
// to the first candle.
func lastWithin(candles []models.Candle, deadline time.Time) models.Candle {
	last := candles[0]
	for _, c := range candles {
		if c.Time.After(deadline) {
			break
		}
		last = c
	}
	return last
}
