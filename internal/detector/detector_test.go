package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ictbacktest/models"
)

var testBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// flatCandles builds n hourly candles around price with a high-low range
// of one.
func flatCandles(n int, price float64) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{
			Time:  testBase.Add(time.Duration(i) * time.Hour),
			Open:  price,
			High:  price + 0.5,
			Low:   price - 0.5,
			Close: price,
		}
	}
	return candles
}

func TestFindSwingPoints(t *testing.T) {
	t.Run("isolated spike is a swing high", func(t *testing.T) {
		candles := flatCandles(21, 100)
		candles[10].High = 110

		highs, lows := FindSwingPoints(candles, 3, 3)
		require.Len(t, highs, 1)
		assert.Equal(t, 10, highs[0].Index)
		assert.Equal(t, 110.0, highs[0].Price)
		assert.Equal(t, models.SwingHigh, highs[0].Kind)
		assert.Empty(t, lows)
	})

	t.Run("isolated dip is a swing low", func(t *testing.T) {
		candles := flatCandles(21, 100)
		candles[10].Low = 92

		highs, lows := FindSwingPoints(candles, 3, 3)
		require.Len(t, lows, 1)
		assert.Equal(t, 10, lows[0].Index)
		assert.Equal(t, 92.0, lows[0].Price)
		assert.Empty(t, highs)
	})

	t.Run("monotonic series has no swings", func(t *testing.T) {
		candles := make([]models.Candle, 30)
		for i := range candles {
			p := 100 + float64(i)
			candles[i] = models.Candle{
				Time: testBase.Add(time.Duration(i) * time.Hour),
				Open: p, High: p + 0.5, Low: p - 0.5, Close: p,
			}
		}
		highs, lows := FindSwingPoints(candles, 3, 3)
		assert.Empty(t, highs)
		assert.Empty(t, lows)
	})

	t.Run("flat series has no swings", func(t *testing.T) {
		highs, lows := FindSwingPoints(flatCandles(30, 100), 3, 3)
		assert.Empty(t, highs)
		assert.Empty(t, lows)
	})

	t.Run("edge bars are never flagged", func(t *testing.T) {
		candles := flatCandles(21, 100)
		candles[1].High = 110  // inside the left margin
		candles[19].High = 112 // inside the right margin

		highs, _ := FindSwingPoints(candles, 3, 3)
		assert.Empty(t, highs)
	})

	t.Run("window shorter than margins yields nothing", func(t *testing.T) {
		highs, lows := FindSwingPoints(flatCandles(5, 100), 3, 3)
		assert.Nil(t, highs)
		assert.Nil(t, lows)
	})
}

func TestDetectLiquidityZones(t *testing.T) {
	p := DefaultParams()
	candles := flatCandles(30, 100)

	swingAt := func(index int, price float64) models.SwingPoint {
		return models.SwingPoint{
			Index: index,
			Time:  candles[index].Time,
			Price: price,
			Kind:  models.SwingHigh,
		}
	}

	t.Run("two near-equal highs far enough apart merge into one EQH", func(t *testing.T) {
		highs := []models.SwingPoint{swingAt(5, 105.0), swingAt(15, 105.1)}

		zones := DetectLiquidityZones(candles, highs, nil, p)
		require.Len(t, zones, 1)
		assert.Equal(t, "EQH", zones[0].Label)
		assert.Equal(t, models.LiquiditySell, zones[0].Side)
		assert.InDelta(t, 105.05, zones[0].Price, 1e-9)
	})

	t.Run("swings closer than the minimum gap do not pair", func(t *testing.T) {
		highs := []models.SwingPoint{swingAt(5, 105.0), swingAt(9, 105.1)}
		assert.Empty(t, DetectLiquidityZones(candles, highs, nil, p))
	})

	t.Run("prices outside the tolerance do not pair", func(t *testing.T) {
		highs := []models.SwingPoint{swingAt(5, 105.0), swingAt(15, 105.5)}
		assert.Empty(t, DetectLiquidityZones(candles, highs, nil, p))
	})

	t.Run("near-equal lows form an EQL", func(t *testing.T) {
		lows := []models.SwingPoint{
			{Index: 4, Time: candles[4].Time, Price: 95.0, Kind: models.SwingLow},
			{Index: 14, Time: candles[14].Time, Price: 95.1, Kind: models.SwingLow},
		}
		zones := DetectLiquidityZones(candles, nil, lows, p)
		require.Len(t, zones, 1)
		assert.Equal(t, "EQL", zones[0].Label)
		assert.Equal(t, models.LiquidityBuy, zones[0].Side)
	})
}

func TestDetectFairValueGaps(t *testing.T) {
	p := DefaultParams()

	gapCandles := func() []models.Candle {
		candles := flatCandles(15, 100)
		// displacement candle at index 5 leaves a gap between the index-4
		// high and the index-6 low
		candles[5] = models.Candle{Time: candles[5].Time, Open: 100, High: 103.2, Low: 99.9, Close: 103}
		candles[6] = models.Candle{Time: candles[6].Time, Open: 101.8, High: 102.5, Low: 101.5, Close: 102.2}
		for i := 7; i < 15; i++ {
			candles[i] = models.Candle{Time: candles[i].Time, Open: 102, High: 102.5, Low: 101.5, Close: 102}
		}
		return candles
	}

	t.Run("unfilled bullish gap is reported", func(t *testing.T) {
		zones := DetectFairValueGaps(gapCandles(), p)
		require.Len(t, zones, 1)
		assert.Equal(t, models.Bullish, zones[0].Kind)
		assert.Equal(t, 101.5, zones[0].High)
		assert.Equal(t, 100.5, zones[0].Low)
		assert.Less(t, zones[0].Low, zones[0].High)
	})

	t.Run("gap filled inside the lookahead is dropped", func(t *testing.T) {
		candles := gapCandles()
		candles[9].Low = 100.3 // dips back through the gap
		assert.Empty(t, DetectFairValueGaps(candles, p))
	})
}

func TestDetectOrderBlocks(t *testing.T) {
	p := DefaultParams()

	candles := flatCandles(12, 100)
	// bearish candle at 5 followed by two strong up candles
	candles[5] = models.Candle{Time: candles[5].Time, Open: 100.2, High: 100.4, Low: 99.6, Close: 99.8}
	candles[6] = models.Candle{Time: candles[6].Time, Open: 99.9, High: 101.7, Low: 99.8, Close: 101.5}
	candles[7] = models.Candle{Time: candles[7].Time, Open: 101.5, High: 102.8, Low: 101.4, Close: 102.6}
	for i := 8; i < 12; i++ {
		candles[i] = models.Candle{Time: candles[i].Time, Open: 102, High: 102.5, Low: 101.5, Close: 102}
	}

	zones := DetectOrderBlocks(candles, p)
	require.Len(t, zones, 1)
	z := zones[0]
	assert.Equal(t, models.Bullish, z.Kind)
	assert.Equal(t, 100.2, z.High)
	assert.Equal(t, 99.8, z.Low)
	assert.Equal(t, 5, z.OriginIndex)
	assert.Less(t, z.Low, z.High)
}

func TestDetectStructureBreaks(t *testing.T) {
	p := DefaultParams()

	buildCandles := func(confirmClose float64) []models.Candle {
		candles := flatCandles(14, 100)
		candles[10] = models.Candle{Time: candles[10].Time, Open: 100, High: 102.2, Low: 99.9, Close: 102}
		candles[11] = models.Candle{Time: candles[11].Time, Open: 101.9, High: 102.3, Low: 101.3, Close: confirmClose}
		candles[12] = models.Candle{Time: candles[12].Time, Open: 102, High: 102.5, Low: 101.5, Close: 102}
		candles[13] = candles[12]
		candles[13].Time = candles[12].Time.Add(time.Hour)
		return candles
	}
	highs := []models.SwingPoint{{Index: 5, Time: testBase.Add(5 * time.Hour), Price: 101, Kind: models.SwingHigh}}

	t.Run("confirmed close above a swing high is a bullish break", func(t *testing.T) {
		breaks := DetectStructureBreaks(buildCandles(101.9), highs, nil, p)
		require.Len(t, breaks, 1)
		assert.Equal(t, models.Bullish, breaks[0].Direction)
		assert.Equal(t, 101.0, breaks[0].Price)
		assert.Equal(t, highs[0].Time, breaks[0].OriginTime)
	})

	t.Run("break without confirmation is discarded", func(t *testing.T) {
		breaks := DetectStructureBreaks(buildCandles(100.2), highs, nil, p)
		assert.Empty(t, breaks)
	})
}

func TestDetectLiquiditySweeps(t *testing.T) {
	p := DefaultParams()
	highs := []models.SwingPoint{{Index: 3, Time: testBase.Add(3 * time.Hour), Price: 101, Kind: models.SwingHigh}}

	t.Run("wick through a swing high closing back below is a bearish sweep", func(t *testing.T) {
		candles := flatCandles(12, 100)
		candles[8] = models.Candle{Time: candles[8].Time, Open: 100.2, High: 101.8, Low: 100.0, Close: 100.4}

		sweeps := DetectLiquiditySweeps(candles, highs, nil, p)
		require.Len(t, sweeps, 1)
		assert.Equal(t, models.Bearish, sweeps[0].Direction)
		assert.Equal(t, 101.0, sweeps[0].Level)
		assert.Equal(t, 101.8, sweeps[0].SweptPrice)
	})

	t.Run("pierce without next-candle confirmation is not a sweep", func(t *testing.T) {
		candles := flatCandles(12, 100)
		candles[8] = models.Candle{Time: candles[8].Time, Open: 100.2, High: 101.8, Low: 100.0, Close: 100.4}
		candles[9] = models.Candle{Time: candles[9].Time, Open: 101.2, High: 101.9, Low: 101.0, Close: 101.5}

		assert.Empty(t, DetectLiquiditySweeps(candles, highs, nil, p))
	})
}

func TestAnalyzePopulatesAvgRange(t *testing.T) {
	s := Analyze(flatCandles(30, 100), DefaultParams())
	require.NotNil(t, s)
	assert.InDelta(t, 1.0, s.AvgRange, 1e-9)
}
