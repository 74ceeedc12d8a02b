package detector

import (
	"sort"

	"ictbacktest/models"
)

// DetectOrderBlocks finds the last opposing candle before a strong
// displacement. A bullish block is a down-candle c1 followed by c2, c3
// where the move from c1's low clears OBDisplacementMult times the rolling
// range and price closes above c1's high. A block is dropped when price
// closes back through c1's close inside the invalidation window, unless
// the block sits near the end of the series where invalidation cannot yet
// be observed. Overlapping blocks collapse to the most recent; at most
// MaxZonesPerKind per direction survive.
func DetectOrderBlocks(candles []models.Candle, p Params) []models.Zone {
	var zones []models.Zone

	for i := 2; i+2 < len(candles); i++ {
		c1, c2, c3 := candles[i], candles[i+1], candles[i+2]

		avg := avgRange(candles, i, p.AvgRangeLookback)
		if avg <= 0 || c1.Body() < avg*0.3 {
			continue
		}
		displaced := hasStrongDisplacement(c2, avg, 1.0, 1.3) ||
			hasStrongDisplacement(c3, avg, 1.0, 1.3)
		if !displaced {
			continue
		}

		if !c1.Bullish() {
			moveUp := c3.Close - c1.Low
			if moveUp > avg*p.OBDisplacementMult && c2.Close > c1.High && c3.Close > c2.Close {
				if orderBlockSurvives(candles, i, c1.Close, models.Bullish, p) {
					zones = append(zones, newBodyZone(candles, i, models.Bullish))
				}
			}
		}
		if c1.Bullish() {
			moveDown := c1.High - c3.Close
			if moveDown > avg*p.OBDisplacementMult && c2.Close < c1.Low && c3.Close < c2.Close {
				if orderBlockSurvives(candles, i, c1.Close, models.Bearish, p) {
					zones = append(zones, newBodyZone(candles, i, models.Bearish))
				}
			}
		}
	}

	avg := avgRange(candles, len(candles), p.AvgRangeLookback)
	filtered := filterOverlappingZones(zones, p.ZoneOverlapMinBars, avg*0.05)
	return capZonesPerKind(filtered, p.MaxZonesPerKind)
}

// orderBlockSurvives checks the invalidation lookahead: price closing back
// through the origin candle's close kills the zone, except near the series
// end where the lookahead has not fully elapsed.
func orderBlockSurvives(candles []models.Candle, origin int, originClose float64, kind models.Direction, p Params) bool {
	if origin > len(candles)-p.OBRecentBars {
		return true
	}
	end := origin + 3 + p.OBInvalidationBars
	if end > len(candles) {
		end = len(candles)
	}
	for k := origin + 3; k < end; k++ {
		if kind == models.Bullish && candles[k].Low < originClose {
			return false
		}
		if kind == models.Bearish && candles[k].High > originClose {
			return false
		}
	}
	return true
}

// newBodyZone builds a Zone from the origin candle's body range.
func newBodyZone(candles []models.Candle, origin int, kind models.Direction) models.Zone {
	c := candles[origin]
	high, low := c.Open, c.Close
	if c.Close > c.Open {
		high, low = c.Close, c.Open
	}
	end := origin + 14
	if end > len(candles)-1 {
		end = len(candles) - 1
	}
	return models.Zone{
		StartTime:   c.Time,
		EndTime:     candles[end].Time,
		High:        high,
		Low:         low,
		Kind:        kind,
		OriginIndex: origin,
	}
}

// DetectFairValueGaps finds three-candle imbalances: a bullish gap when
// c3.low > c1.high by more than FVGMinGapMult times the rolling range,
// reported only while the gap stays unfilled for FVGOpenBars. Mirrored for
// bearish gaps. The same overlap collapse and per-direction cap as order
// blocks apply.
func DetectFairValueGaps(candles []models.Candle, p Params) []models.Zone {
	var zones []models.Zone

	for i := 1; i+1 < len(candles); i++ {
		c1, c2, c3 := candles[i-1], candles[i], candles[i+1]

		avg := avgRange(candles, i, p.AvgRangeLookback)
		if avg <= 0 {
			avg = (c1.Range() + c2.Range() + c3.Range()) / 3
		}
		if avg <= 0 || !hasStrongDisplacement(c2, avg, 0.9, 1.2) {
			continue
		}

		if c3.Low > c1.High {
			gap := c3.Low - c1.High
			if gap > avg*p.FVGMinGapMult && fvgStillOpen(candles, i+1, c3.Low, c1.High, models.Bullish, p.FVGOpenBars) {
				zones = append(zones, newGapZone(candles, i, c3.Low, c1.High, models.Bullish))
			}
		}
		if c3.High < c1.Low {
			gap := c1.Low - c3.High
			if gap > avg*p.FVGMinGapMult && fvgStillOpen(candles, i+1, c1.Low, c3.High, models.Bearish, p.FVGOpenBars) {
				zones = append(zones, newGapZone(candles, i, c1.Low, c3.High, models.Bearish))
			}
		}
	}

	avg := avgRange(candles, len(candles), p.AvgRangeLookback)
	filtered := filterOverlappingZones(zones, p.ZoneOverlapMinBars, avg*0.04)
	return capZonesPerKind(filtered, p.MaxZonesPerKind)
}

// fvgStillOpen reports whether price has left the gap untouched for the
// lookahead window.
func fvgStillOpen(candles []models.Candle, start int, high, low float64, kind models.Direction, bars int) bool {
	end := start + bars
	if end > len(candles) {
		end = len(candles)
	}
	for k := start; k < end; k++ {
		if kind == models.Bullish && candles[k].Low <= low {
			return false
		}
		if kind == models.Bearish && candles[k].High >= high {
			return false
		}
	}
	return true
}

func newGapZone(candles []models.Candle, origin int, high, low float64, kind models.Direction) models.Zone {
	end := origin + 10
	if end > len(candles)-1 {
		end = len(candles) - 1
	}
	return models.Zone{
		StartTime:   candles[origin-1].Time,
		EndTime:     candles[end].Time,
		High:        high,
		Low:         low,
		Kind:        kind,
		OriginIndex: origin,
	}
}

// filterOverlappingZones drops degenerate zones (height below minHeight)
// and collapses zones of overlapping price range within minBars of each
// other, keeping the most recent.
func filterOverlappingZones(zones []models.Zone, minBars int, minHeight float64) []models.Zone {
	sorted := make([]models.Zone, len(zones))
	copy(sorted, zones)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OriginIndex < sorted[j].OriginIndex })

	var result []models.Zone
	for _, z := range sorted {
		if z.High-z.Low < minHeight {
			continue
		}
		if len(result) == 0 {
			result = append(result, z)
			continue
		}
		last := result[len(result)-1]
		barGap := z.OriginIndex - last.OriginIndex
		overlap := !(z.High < last.Low || z.Low > last.High)
		if barGap < minBars && overlap {
			result[len(result)-1] = z
		} else {
			result = append(result, z)
		}
	}
	return result
}

// capZonesPerKind keeps the last n zones of each direction.
func capZonesPerKind(zones []models.Zone, n int) []models.Zone {
	var bullish, bearish []models.Zone
	for _, z := range zones {
		if z.Kind == models.Bullish {
			bullish = append(bullish, z)
		} else {
			bearish = append(bearish, z)
		}
	}
	if len(bullish) > n {
		bullish = bullish[len(bullish)-n:]
	}
	if len(bearish) > n {
		bearish = bearish[len(bearish)-n:]
	}
	return append(bullish, bearish...)
}
