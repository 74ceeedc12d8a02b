package detector

import (
	"sort"
	"time"

	"ictbacktest/models"
)

// DetectLiquidityZones merges near-equal swing highs into EQH levels and
// near-equal swing lows into EQL levels. Two swings pair when their prices
// sit within the tolerance (EQTolerance times the rolling range) and at
// least EQMinSwingGap bars apart; the level is their average price. Levels
// within 60% of the tolerance of each other deduplicate to the more recent
// one, and at most MaxLiquidityLevels of the most recent levels survive.
func DetectLiquidityZones(candles []models.Candle, highs, lows []models.SwingPoint, p Params) []models.LiquidityZone {
	if len(candles) == 0 {
		return nil
	}

	avg := avgRange(candles, len(candles), p.AvgRangeLookback)
	last := candles[len(candles)-1]
	tolerance := avg * p.EQTolerance
	if floor := last.Range() * 0.0015; floor > tolerance {
		tolerance = floor
	}
	if tolerance <= 0 {
		return nil
	}

	var levels []models.LiquidityZone
	levels = append(levels, pairEqualSwings(highs, tolerance, p.EQMinSwingGap, last.Time, models.LiquiditySell, "EQH")...)
	levels = append(levels, pairEqualSwings(lows, tolerance, p.EQMinSwingGap, last.Time, models.LiquidityBuy, "EQL")...)

	levels = dedupLevels(levels, tolerance*0.6)
	if len(levels) > p.MaxLiquidityLevels {
		levels = levels[len(levels)-p.MaxLiquidityLevels:]
	}
	return levels
}

// pairEqualSwings walks every swing pair of one side and emits a level per
// match.
func pairEqualSwings(swings []models.SwingPoint, tolerance float64, minGap int, endTime time.Time, side models.LiquiditySide, label string) []models.LiquidityZone {
	var levels []models.LiquidityZone
	for i := 0; i < len(swings)-1; i++ {
		for j := i + 1; j < len(swings); j++ {
			diff := swings[i].Price - swings[j].Price
			if diff < 0 {
				diff = -diff
			}
			if diff < tolerance && swings[j].Index-swings[i].Index >= minGap {
				levels = append(levels, models.LiquidityZone{
					Price:     (swings[i].Price + swings[j].Price) / 2,
					StartTime: swings[i].Time,
					EndTime:   endTime,
					Side:      side,
					Label:     label,
				})
			}
		}
	}
	return levels
}

// dedupLevels keeps one level per price cluster, preferring the more
// recent start time.
func dedupLevels(levels []models.LiquidityZone, tolerance float64) []models.LiquidityZone {
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	var unique []models.LiquidityZone
	for _, lvl := range levels {
		if len(unique) == 0 {
			unique = append(unique, lvl)
			continue
		}
		last := &unique[len(unique)-1]
		if lvl.Price-last.Price > tolerance {
			unique = append(unique, lvl)
		} else if lvl.StartTime.After(last.StartTime) {
			*last = lvl
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i].StartTime.Before(unique[j].StartTime) })
	return unique
}

// DetectLiquiditySweeps finds stop-hunts: a candle whose wick pierces a
// known swing level while the body closes back on the original side, with
// wick length at least SweepMinWickMult times the rolling range, confirmed
// by the next candle's close staying on the original side. Only the
// trailing SweepSwingsPerSide swings per side are examined and each level
// contributes at most one sweep.
func DetectLiquiditySweeps(candles []models.Candle, highs, lows []models.SwingPoint, p Params) []models.LiquiditySweep {
	if len(candles) < 3 {
		return nil
	}

	avg := avgRange(candles, len(candles)-1, p.AvgRangeLookback+10)
	minWick := avg * p.SweepMinWickMult
	if minWick <= 0 {
		return nil
	}

	var sweeps []models.LiquiditySweep

	for _, sh := range tailSwings(highs, p.SweepSwingsPerSide) {
		for i := sh.Index + 1; i < len(candles)-1; i++ {
			c := candles[i]
			upperWick := c.High - maxF(c.Open, c.Close)
			if c.High > sh.Price && c.Close < sh.Price && upperWick >= minWick {
				if candles[i+1].Close < sh.Price {
					sweeps = append(sweeps, models.LiquiditySweep{
						Time:       c.Time,
						Level:      sh.Price,
						SweptPrice: c.High,
						Direction:  models.Bearish,
					})
					break
				}
			}
		}
	}

	for _, sl := range tailSwings(lows, p.SweepSwingsPerSide) {
		for i := sl.Index + 1; i < len(candles)-1; i++ {
			c := candles[i]
			lowerWick := minF(c.Open, c.Close) - c.Low
			if c.Low < sl.Price && c.Close > sl.Price && lowerWick >= minWick {
				if candles[i+1].Close > sl.Price {
					sweeps = append(sweeps, models.LiquiditySweep{
						Time:       c.Time,
						Level:      sl.Price,
						SweptPrice: c.Low,
						Direction:  models.Bullish,
					})
					break
				}
			}
		}
	}

	sort.Slice(sweeps, func(i, j int) bool { return sweeps[i].Time.Before(sweeps[j].Time) })
	return sweeps
}

func tailSwings(swings []models.SwingPoint, n int) []models.SwingPoint {
	if len(swings) > n {
		return swings[len(swings)-n:]
	}
	return swings
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
