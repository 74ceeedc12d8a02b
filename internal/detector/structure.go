package detector

import (
	"sort"

	"ictbacktest/models"
)

// DetectStructureBreaks finds confirmed BOS/MSS events. A bullish break is
// a candle closing above a prior swing high by at least BreakMinMult times
// the rolling range, with body at least BreakBodyMult times the rolling
// range and strong displacement, where the previous close was still below
// the level. The candle right after the break must not close back below
// the broken level by more than 20% of the break threshold. Mirrored for
// swing lows. The MaxBreaks most recent breaks are reported.
func DetectStructureBreaks(candles []models.Candle, highs, lows []models.SwingPoint, p Params) []models.StructureBreak {
	if len(candles) < 3 {
		return nil
	}

	avg := avgRange(candles, len(candles)-1, p.AvgRangeLookback+10)
	minBreak := avg * p.BreakMinMult
	minBody := avg * p.BreakBodyMult
	if minBreak <= 0 {
		return nil
	}

	var breaks []models.StructureBreak

	for _, sh := range highs {
		for j := sh.Index + 1; j < len(candles)-1; j++ {
			c := candles[j]
			broke := c.Close > sh.Price+minBreak && candles[j-1].Close <= sh.Price
			if !broke || c.Body() < minBody || !hasStrongDisplacement(c, avg, 0.9, 1.2) {
				continue
			}
			if candles[j+1].Close >= sh.Price-minBreak*0.2 {
				breaks = append(breaks, models.StructureBreak{
					Time:       c.Time,
					OriginTime: sh.Time,
					Price:      sh.Price,
					Direction:  models.Bullish,
				})
				break
			}
		}
	}

	for _, sl := range lows {
		for j := sl.Index + 1; j < len(candles)-1; j++ {
			c := candles[j]
			broke := c.Close < sl.Price-minBreak && candles[j-1].Close >= sl.Price
			if !broke || c.Body() < minBody || !hasStrongDisplacement(c, avg, 0.9, 1.2) {
				continue
			}
			if candles[j+1].Close <= sl.Price+minBreak*0.2 {
				breaks = append(breaks, models.StructureBreak{
					Time:       c.Time,
					OriginTime: sl.Time,
					Price:      sl.Price,
					Direction:  models.Bearish,
				})
				break
			}
		}
	}

	sort.Slice(breaks, func(i, j int) bool { return breaks[i].Time.Before(breaks[j].Time) })
	if len(breaks) > p.MaxBreaks {
		breaks = breaks[len(breaks)-p.MaxBreaks:]
	}
	return breaks
}
