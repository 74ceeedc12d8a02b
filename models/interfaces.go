package models

import (
	"context"
	"time"
)

// MarketDataProvider supplies ordered, non-decreasing-time OHLC series.
// Implementations may return fewer bars than requested near data-source
// limits; callers paginate.
type MarketDataProvider interface {
	GetCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error)
	GetCandlesRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Candle, error)
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// WindowContext is everything a strategy oracle sees for one analysis
// point: the trailing candle windows, the detected structure and the
// session the point falls into.
type WindowContext struct {
	Symbol       string
	Time         time.Time
	CurrentPrice float64
	H1           []Candle
	M5           []Candle
	Structure    *MarketStructure
	Session      Session
}

// OracleDecision is the oracle's answer for one window.
type OracleDecision struct {
	Decision       Decision
	Score          float64 // 0..10
	Confidence     float64 // 0..100
	SuggestedTrade *SuggestedTrade
	Reasoning      string
}

// StrategyOracle decides whether a trade should be proposed at one
// historical instant. Implementations may be a pure rule engine or an
// external AI call; the orchestrator treats both the same way.
type StrategyOracle interface {
	Evaluate(ctx context.Context, window WindowContext) (*OracleDecision, error)
	Name() string
}

// PersistenceSink stores completed results. Best-effort: failures are
// logged by the caller, never propagated as run failure.
type PersistenceSink interface {
	Save(ctx context.Context, result *BacktestResult) error
}
