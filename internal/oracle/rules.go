// Package oracle provides the strategy oracle implementations: a
// deterministic rule engine and an external OpenAI-backed analyst. Both
// satisfy models.StrategyOracle and are selected by configuration.
package oracle

import (
	"context"
	"fmt"
	"strings"

	"ictbacktest/internal/session"
	"ictbacktest/models"
)

// RuleConfig tunes the rule-based oracle.
type RuleConfig struct {
	MinScore      float64 // decision threshold, default 6
	StopBufferPct float64 // stop distance beyond the zone, fraction of zone height
}

func (c RuleConfig) normalize() RuleConfig {
	if c.MinScore <= 0 {
		c.MinScore = 6
	}
	if c.StopBufferPct <= 0 {
		c.StopBufferPct = 0.1
	}
	return c
}

// RuleOracle proposes a pending limit order when a liquidity sweep, an
// aligned structure break and a matching order block line up. It is a pure
// function of the window context, which makes backtests reproducible
// bit-for-bit.
type RuleOracle struct {
	cfg RuleConfig
}

// NewRuleOracle creates the deterministic oracle.
func NewRuleOracle(cfg RuleConfig) *RuleOracle {
	return &RuleOracle{cfg: cfg.normalize()}
}

func (o *RuleOracle) Name() string { return "rules" }

// Evaluate implements models.StrategyOracle.
func (o *RuleOracle) Evaluate(_ context.Context, w models.WindowContext) (*models.OracleDecision, error) {
	s := w.Structure
	if s == nil || len(s.Sweeps) == 0 {
		return noTrade("no liquidity sweep in window"), nil
	}

	sweep := s.Sweeps[len(s.Sweeps)-1]
	isBuy := sweep.Direction == models.Bullish

	brk, ok := alignedBreak(s.Breaks, sweep.Direction)
	if !ok {
		return noTrade("no structure break aligned with the sweep"), nil
	}

	zone, ok := entryZone(s.OrderBlocks, sweep.Direction, w.CurrentPrice, isBuy)
	if !ok {
		return noTrade("no order block on the entry side"), nil
	}

	trade := buildTrade(zone, isBuy, o.cfg.StopBufferPct)

	score := 5.0
	reasons := []string{
		fmt.Sprintf("liquidity sweep at %.5f", sweep.Level),
		fmt.Sprintf("order block %.5f-%.5f", zone.Low, zone.High),
	}
	score += 1.5
	reasons = append(reasons, fmt.Sprintf("structure break of %.5f", brk.Price))
	if hasAlignedGap(s.FairValueGaps, sweep.Direction) {
		score += 1.0
		reasons = append(reasons, "fair value gap in trade direction")
	}
	if hasTargetLiquidity(s.LiquidityZones, trade, isBuy) {
		score += 0.5
		reasons = append(reasons, "resting liquidity beyond first target")
	}
	if session.Classify(w.Time).Quality == session.QualityHigh {
		score += 1.0
		reasons = append(reasons, "high-quality session")
	}
	if score > 10 {
		score = 10
	}

	if score < o.cfg.MinScore {
		return noTrade(fmt.Sprintf("confluence score %.1f below threshold", score)), nil
	}

	return &models.OracleDecision{
		Decision:       models.DecisionPlacePending,
		Score:          score,
		Confidence:     50 + score*5,
		SuggestedTrade: &trade,
		Reasoning:      strings.Join(reasons, "; "),
	}, nil
}

func noTrade(reason string) *models.OracleDecision {
	return &models.OracleDecision{
		Decision:  models.DecisionNoTrade,
		Reasoning: reason,
	}
}

func alignedBreak(breaks []models.StructureBreak, dir models.Direction) (models.StructureBreak, bool) {
	for i := len(breaks) - 1; i >= 0; i-- {
		if breaks[i].Direction == dir {
			return breaks[i], true
		}
	}
	return models.StructureBreak{}, false
}

// entryZone picks the most recent order block of the trade direction on
// the retracement side of the current price.
func entryZone(zones []models.Zone, dir models.Direction, price float64, isBuy bool) (models.Zone, bool) {
	for i := len(zones) - 1; i >= 0; i-- {
		z := zones[i]
		if z.Kind != dir {
			continue
		}
		if isBuy && z.High < price {
			return z, true
		}
		if !isBuy && z.Low > price {
			return z, true
		}
	}
	return models.Zone{}, false
}

// buildTrade places the limit at the zone edge, the stop beyond the zone
// and the targets at 1R/2R/3R.
func buildTrade(zone models.Zone, isBuy bool, stopBufferPct float64) models.SuggestedTrade {
	height := zone.High - zone.Low
	if isBuy {
		entry := zone.High
		stop := zone.Low - height*stopBufferPct
		risk := entry - stop
		return models.SuggestedTrade{
			Kind:        models.BuyLimit,
			Entry:       entry,
			StopLoss:    stop,
			TakeProfit1: entry + risk,
			TakeProfit2: entry + 2*risk,
			TakeProfit3: entry + 3*risk,
			RiskReward:  "1:3",
		}
	}
	entry := zone.Low
	stop := zone.High + height*stopBufferPct
	risk := stop - entry
	return models.SuggestedTrade{
		Kind:        models.SellLimit,
		Entry:       entry,
		StopLoss:    stop,
		TakeProfit1: entry - risk,
		TakeProfit2: entry - 2*risk,
		TakeProfit3: entry - 3*risk,
		RiskReward:  "1:3",
	}
}

func hasAlignedGap(gaps []models.Zone, dir models.Direction) bool {
	for _, g := range gaps {
		if g.Kind == dir {
			return true
		}
	}
	return false
}

// hasTargetLiquidity reports whether a resting liquidity pool sits beyond
// the first target, giving price a reason to travel there.
func hasTargetLiquidity(levels []models.LiquidityZone, trade models.SuggestedTrade, isBuy bool) bool {
	for _, lvl := range levels {
		if isBuy && lvl.Side == models.LiquiditySell && lvl.Price >= trade.TakeProfit1 {
			return true
		}
		if !isBuy && lvl.Side == models.LiquidityBuy && lvl.Price <= trade.TakeProfit1 {
			return true
		}
	}
	return false
}
