package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggestedTradeValidate(t *testing.T) {
	tests := []struct {
		name    string
		trade   *SuggestedTrade
		wantErr bool
	}{
		{
			name: "valid long",
			trade: &SuggestedTrade{
				Kind: BuyLimit, Entry: 2000, StopLoss: 1990,
				TakeProfit1: 2005, TakeProfit2: 2010, TakeProfit3: 2020,
			},
		},
		{
			name: "valid short",
			trade: &SuggestedTrade{
				Kind: SellStop, Entry: 2000, StopLoss: 2010,
				TakeProfit1: 1995, TakeProfit2: 1990, TakeProfit3: 1980,
			},
		},
		{
			name: "equal adjacent targets allowed",
			trade: &SuggestedTrade{
				Kind: BuyLimit, Entry: 2000, StopLoss: 1990,
				TakeProfit1: 2005, TakeProfit2: 2005, TakeProfit3: 2005,
			},
		},
		{
			name: "long with stop above entry",
			trade: &SuggestedTrade{
				Kind: BuyLimit, Entry: 2000, StopLoss: 2001,
				TakeProfit1: 2005, TakeProfit2: 2010, TakeProfit3: 2020,
			},
			wantErr: true,
		},
		{
			name: "long with tp1 below entry",
			trade: &SuggestedTrade{
				Kind: BuyStop, Entry: 2000, StopLoss: 1990,
				TakeProfit1: 1999, TakeProfit2: 2010, TakeProfit3: 2020,
			},
			wantErr: true,
		},
		{
			name: "short with rising targets",
			trade: &SuggestedTrade{
				Kind: SellLimit, Entry: 2000, StopLoss: 2010,
				TakeProfit1: 1995, TakeProfit2: 1996, TakeProfit3: 1997,
			},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			trade:   &SuggestedTrade{Kind: "MARKET", Entry: 2000},
			wantErr: true,
		},
		{
			name:    "nil trade",
			trade:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trade.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTrade)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTradeKindIsBuy(t *testing.T) {
	assert.True(t, BuyLimit.IsBuy())
	assert.True(t, BuyStop.IsBuy())
	assert.False(t, SellLimit.IsBuy())
	assert.False(t, SellStop.IsBuy())
}

func TestCandleHelpers(t *testing.T) {
	up := Candle{Open: 100, High: 103, Low: 99, Close: 102}
	assert.Equal(t, 2.0, up.Body())
	assert.Equal(t, 4.0, up.Range())
	assert.True(t, up.Bullish())

	down := Candle{Open: 102, High: 103, Low: 99, Close: 100}
	assert.Equal(t, 2.0, down.Body())
	assert.False(t, down.Bullish())
}
