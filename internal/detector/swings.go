package detector

import "ictbacktest/models"

// FindSwingPoints scans a window for swing highs and lows. Candle i is a
// swing high when its high exceeds every neighbor within leftBars/rightBars
// by at least minDiff, where minDiff is 0.5% of the window's full price
// range. The threshold suppresses noise swings; without it nearly every
// local bump qualifies. Points within leftBars of the window start or
// rightBars of its end are never flagged.
func FindSwingPoints(candles []models.Candle, leftBars, rightBars int) (highs, lows []models.SwingPoint) {
	if len(candles) < leftBars+rightBars+1 {
		return nil, nil
	}

	minDiff := swingMinDiff(candles)

	for i := leftBars; i < len(candles)-rightBars; i++ {
		isHigh := true
		isLow := true
		for j := 1; j <= leftBars; j++ {
			if candles[i].High-candles[i-j].High < minDiff {
				isHigh = false
			}
			if candles[i-j].Low-candles[i].Low < minDiff {
				isLow = false
			}
			if !isHigh && !isLow {
				break
			}
		}
		for j := 1; j <= rightBars && (isHigh || isLow); j++ {
			if candles[i].High-candles[i+j].High < minDiff {
				isHigh = false
			}
			if candles[i+j].Low-candles[i].Low < minDiff {
				isLow = false
			}
		}

		if isHigh {
			highs = append(highs, models.SwingPoint{
				Index: i,
				Time:  candles[i].Time,
				Price: candles[i].High,
				Kind:  models.SwingHigh,
			})
		}
		if isLow {
			lows = append(lows, models.SwingPoint{
				Index: i,
				Time:  candles[i].Time,
				Price: candles[i].Low,
				Kind:  models.SwingLow,
			})
		}
	}
	return highs, lows
}

// swingMinDiff is 0.5% of the scan window's max-min price range.
func swingMinDiff(candles []models.Candle) float64 {
	maxHigh := candles[0].High
	minLow := candles[0].Low
	for _, c := range candles[1:] {
		if c.High > maxHigh {
			maxHigh = c.High
		}
		if c.Low < minLow {
			minLow = c.Low
		}
	}
	return (maxHigh - minLow) * 0.005
}
