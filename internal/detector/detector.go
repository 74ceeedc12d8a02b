// Package detector implements pattern recognition over candle windows:
// swing points, order blocks, fair value gaps, liquidity zones, structure
// breaks and liquidity sweeps. Every function is a pure function of its
// inputs; all price thresholds scale with a rolling average range so the
// rules behave the same across instruments and volatility regimes.
package detector

import "ictbacktest/models"

// Params holds the detection thresholds. Zero values are replaced with
// defaults by Normalize.
type Params struct {
	SwingLeftBars  int // neighbors required on the left of a swing
	SwingRightBars int // neighbors required on the right of a swing

	AvgRangeLookback int // trailing bars for the rolling average range

	OBDisplacementMult  float64 // move size vs avgRange to qualify an order block
	OBInvalidationBars  int     // lookahead window for zone invalidation
	OBRecentBars        int     // zones this close to the series end skip invalidation
	FVGMinGapMult       float64 // gap size vs avgRange
	FVGOpenBars         int     // bars a gap must stay unfilled
	ZoneOverlapMinBars  int     // bar distance under which overlapping zones collapse
	MaxZonesPerKind     int     // reported zones per direction
	EQTolerance         float64 // liquidity level tolerance vs avgRange
	EQMinSwingGap       int     // min bar separation between paired swings
	MaxLiquidityLevels  int     // reported liquidity levels
	BreakMinMult        float64 // close beyond swing vs avgRange
	BreakBodyMult       float64 // breaking candle body vs avgRange
	MaxBreaks           int     // reported structure breaks
	SweepMinWickMult    float64 // sweep wick vs avgRange
	SweepSwingsPerSide  int     // trailing swings examined per side
}

// DefaultParams returns the canonical thresholds.
func DefaultParams() Params {
	return Params{
		SwingLeftBars:      3,
		SwingRightBars:     3,
		AvgRangeLookback:   20,
		OBDisplacementMult: 2.5,
		OBInvalidationBars: 15,
		OBRecentBars:       25,
		FVGMinGapMult:      0.5,
		FVGOpenBars:        8,
		ZoneOverlapMinBars: 8,
		MaxZonesPerKind:    2,
		EQTolerance:        0.2,
		EQMinSwingGap:      6,
		MaxLiquidityLevels: 4,
		BreakMinMult:       0.6,
		BreakBodyMult:      0.7,
		MaxBreaks:          2,
		SweepMinWickMult:   0.4,
		SweepSwingsPerSide: 6,
	}
}

// Normalize fills zero fields with defaults.
func (p Params) Normalize() Params {
	def := DefaultParams()
	if p.SwingLeftBars <= 0 {
		p.SwingLeftBars = def.SwingLeftBars
	}
	if p.SwingRightBars <= 0 {
		p.SwingRightBars = def.SwingRightBars
	}
	if p.AvgRangeLookback <= 0 {
		p.AvgRangeLookback = def.AvgRangeLookback
	}
	if p.OBDisplacementMult <= 0 {
		p.OBDisplacementMult = def.OBDisplacementMult
	}
	if p.OBInvalidationBars <= 0 {
		p.OBInvalidationBars = def.OBInvalidationBars
	}
	if p.OBRecentBars <= 0 {
		p.OBRecentBars = def.OBRecentBars
	}
	if p.FVGMinGapMult <= 0 {
		p.FVGMinGapMult = def.FVGMinGapMult
	}
	if p.FVGOpenBars <= 0 {
		p.FVGOpenBars = def.FVGOpenBars
	}
	if p.ZoneOverlapMinBars <= 0 {
		p.ZoneOverlapMinBars = def.ZoneOverlapMinBars
	}
	if p.MaxZonesPerKind <= 0 {
		p.MaxZonesPerKind = def.MaxZonesPerKind
	}
	if p.EQTolerance <= 0 {
		p.EQTolerance = def.EQTolerance
	}
	if p.EQMinSwingGap <= 0 {
		p.EQMinSwingGap = def.EQMinSwingGap
	}
	if p.MaxLiquidityLevels <= 0 {
		p.MaxLiquidityLevels = def.MaxLiquidityLevels
	}
	if p.BreakMinMult <= 0 {
		p.BreakMinMult = def.BreakMinMult
	}
	if p.BreakBodyMult <= 0 {
		p.BreakBodyMult = def.BreakBodyMult
	}
	if p.MaxBreaks <= 0 {
		p.MaxBreaks = def.MaxBreaks
	}
	if p.SweepMinWickMult <= 0 {
		p.SweepMinWickMult = def.SweepMinWickMult
	}
	if p.SweepSwingsPerSide <= 0 {
		p.SweepSwingsPerSide = def.SweepSwingsPerSide
	}
	return p
}

// Analyze runs every detector over one candle window and bundles the
// structural features the strategy oracle consumes.
func Analyze(candles []models.Candle, params Params) *models.MarketStructure {
	p := params.Normalize()

	highs, lows := FindSwingPoints(candles, p.SwingLeftBars, p.SwingRightBars)

	return &models.MarketStructure{
		SwingHighs:     highs,
		SwingLows:      lows,
		OrderBlocks:    DetectOrderBlocks(candles, p),
		FairValueGaps:  DetectFairValueGaps(candles, p),
		LiquidityZones: DetectLiquidityZones(candles, highs, lows, p),
		Breaks:         DetectStructureBreaks(candles, highs, lows, p),
		Sweeps:         DetectLiquiditySweeps(candles, highs, lows, p),
		AvgRange:       avgRange(candles, len(candles), p.AvgRangeLookback),
	}
}

// avgRange is the mean high-low range over the lookback bars ending just
// before endIndex.
func avgRange(candles []models.Candle, endIndex, lookback int) float64 {
	if endIndex > len(candles) {
		endIndex = len(candles)
	}
	start := endIndex - lookback
	if start < 0 {
		start = 0
	}
	if endIndex <= start {
		return 0
	}
	var sum float64
	for _, c := range candles[start:endIndex] {
		sum += c.Range()
	}
	return sum / float64(endIndex-start)
}

// hasStrongDisplacement reports whether a candle's body and range both
// clear their avgRange multiples.
func hasStrongDisplacement(c models.Candle, avg, bodyMult, rangeMult float64) bool {
	return c.Body() >= avg*bodyMult && c.Range() >= avg*rangeMult
}
