package models

import (
	"fmt"
	"time"
)

// Candle represents a single OHLC price candle.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the full high-low range of the candle.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// SwingKind distinguishes swing highs from swing lows.
type SwingKind string

const (
	SwingHigh SwingKind = "high"
	SwingLow  SwingKind = "low"
)

// SwingPoint is a local price extremum relative to its neighboring bars.
type SwingPoint struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
	Kind  SwingKind `json:"kind"`
}

// Direction marks a structure as bullish or bearish.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
)

// Zone is a price range of interest: an order block or a fair value gap.
// Invariant: Low < High.
type Zone struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Kind        Direction `json:"kind"`
	OriginIndex int       `json:"origin_index"`
}

// LiquiditySide marks which side of the book a liquidity pool sits on.
type LiquiditySide string

const (
	LiquidityBuy  LiquiditySide = "buy"
	LiquiditySell LiquiditySide = "sell"
)

// LiquidityZone is an EQH/EQL level built from near-equal swing points.
type LiquidityZone struct {
	Price     float64       `json:"price"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Side      LiquiditySide `json:"side"`
	Label     string        `json:"label"` // EQH or EQL
}

// StructureBreak is a confirmed close beyond a prior swing point (BOS/MSS).
type StructureBreak struct {
	Time       time.Time `json:"time"`
	OriginTime time.Time `json:"origin_time"`
	Price      float64   `json:"price"`
	Direction  Direction `json:"direction"`
}

// LiquiditySweep is a wick beyond a swing level with the body closing back
// on the original side.
type LiquiditySweep struct {
	Time       time.Time `json:"time"`
	Level      float64   `json:"level"`
	SweptPrice float64   `json:"swept_price"`
	Direction  Direction `json:"direction"`
}

// MarketStructure bundles every structural feature detected in one window.
type MarketStructure struct {
	SwingHighs     []SwingPoint     `json:"swing_highs"`
	SwingLows      []SwingPoint     `json:"swing_lows"`
	OrderBlocks    []Zone           `json:"order_blocks"`
	FairValueGaps  []Zone           `json:"fair_value_gaps"`
	LiquidityZones []LiquidityZone  `json:"liquidity_zones"`
	Breaks         []StructureBreak `json:"breaks"`
	Sweeps         []LiquiditySweep `json:"sweeps"`
	AvgRange       float64          `json:"avg_range"`
}

// TradeKind is the pending order type of a suggested trade.
type TradeKind string

const (
	BuyLimit  TradeKind = "BUY_LIMIT"
	SellLimit TradeKind = "SELL_LIMIT"
	BuyStop   TradeKind = "BUY_STOP"
	SellStop  TradeKind = "SELL_STOP"
)

// IsBuy reports whether the trade kind opens a long position.
func (k TradeKind) IsBuy() bool {
	return k == BuyLimit || k == BuyStop
}

// SuggestedTrade is a pending order proposed by a strategy oracle.
type SuggestedTrade struct {
	Kind        TradeKind `json:"kind"`
	Entry       float64   `json:"entry"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit1 float64   `json:"take_profit_1"`
	TakeProfit2 float64   `json:"take_profit_2"`
	TakeProfit3 float64   `json:"take_profit_3"`
	RiskReward  string    `json:"risk_reward,omitempty"`
}

// Validate checks the price-ordering invariant: for a long,
// stopLoss < entry < tp1 <= tp2 <= tp3, mirrored for shorts. Trades that
// fail are rejected before simulation.
func (t *SuggestedTrade) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: missing trade", ErrInvalidTrade)
	}
	switch t.Kind {
	case BuyLimit, SellLimit, BuyStop, SellStop:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTrade, t.Kind)
	}
	if t.Kind.IsBuy() {
		if !(t.StopLoss < t.Entry && t.Entry < t.TakeProfit1 &&
			t.TakeProfit1 <= t.TakeProfit2 && t.TakeProfit2 <= t.TakeProfit3) {
			return fmt.Errorf("%w: long levels out of order (sl=%.5f entry=%.5f tp=%.5f/%.5f/%.5f)",
				ErrInvalidTrade, t.StopLoss, t.Entry, t.TakeProfit1, t.TakeProfit2, t.TakeProfit3)
		}
		return nil
	}
	if !(t.StopLoss > t.Entry && t.Entry > t.TakeProfit1 &&
		t.TakeProfit1 >= t.TakeProfit2 && t.TakeProfit2 >= t.TakeProfit3) {
		return fmt.Errorf("%w: short levels out of order (sl=%.5f entry=%.5f tp=%.5f/%.5f/%.5f)",
			ErrInvalidTrade, t.StopLoss, t.Entry, t.TakeProfit1, t.TakeProfit2, t.TakeProfit3)
	}
	return nil
}

// Outcome is the terminal state of a simulated trade.
type Outcome string

const (
	OutcomeTP1     Outcome = "TP1"
	OutcomeTP2     Outcome = "TP2"
	OutcomeTP3     Outcome = "TP3"
	OutcomeSL      Outcome = "SL"
	OutcomeExpired Outcome = "EXPIRED"
)

// TradeOutcome is the result of replaying one suggested trade against the
// candles that followed its proposal.
type TradeOutcome struct {
	Executed       bool      `json:"executed"`
	ExecutionTime  time.Time `json:"execution_time,omitempty"`
	ExecutionPrice float64   `json:"execution_price,omitempty"`
	Outcome        Outcome   `json:"outcome,omitempty"`
	ExitTime       time.Time `json:"exit_time,omitempty"`
	ExitPrice      float64   `json:"exit_price,omitempty"`
	ProfitUnits    float64   `json:"profit_units"`
	ProfitPercent  float64   `json:"profit_percent"`
	DurationHours  float64   `json:"duration_hours"`
	DurationBars   int       `json:"duration_bars"`
	TP1Hit         bool      `json:"tp1_hit"`
	TP2Hit         bool      `json:"tp2_hit"`
	TP3Hit         bool      `json:"tp3_hit"`
}

// Decision is the oracle's verdict for one analysis point.
type Decision string

const (
	DecisionPlacePending Decision = "PLACE_PENDING"
	DecisionNoTrade      Decision = "NO_TRADE"
)

// Session is a named trading-hours window used to cohort performance.
type Session string

const (
	SessionAsia     Session = "ASIA"
	SessionLondon   Session = "LONDON"
	SessionNYAM     Session = "NY_AM"
	SessionNYPM     Session = "NY_PM"
	SessionOffHours Session = "OFF_HOURS"
)

// AnalysisPoint records one evaluated instant of the backtest walk.
type AnalysisPoint struct {
	ID             string          `json:"id"`
	Time           time.Time       `json:"time"`
	CurrentPrice   float64         `json:"current_price"`
	Decision       Decision        `json:"decision"`
	Score          float64         `json:"score"`
	Confidence     float64         `json:"confidence"`
	SuggestedTrade *SuggestedTrade `json:"suggested_trade,omitempty"`
	Session        Session         `json:"session,omitempty"`
	Reasoning      string          `json:"reasoning,omitempty"`
}

// SimulatedTrade pairs an analysis point with its simulated outcome.
type SimulatedTrade struct {
	Analysis AnalysisPoint `json:"analysis"`
	Outcome  TradeOutcome  `json:"outcome"`
}

// BacktestParams configures one backtest run.
type BacktestParams struct {
	Symbol                string    `json:"symbol" yaml:"symbol"`
	StartDate             time.Time `json:"start_date" yaml:"start_date"`
	EndDate               time.Time `json:"end_date" yaml:"end_date"`
	AnalysisIntervalHours int       `json:"analysis_interval_hours" yaml:"analysis_interval_hours"`
	StrategyConcurrency   int       `json:"strategy_concurrency" yaml:"strategy_concurrency"`
	MaxTradeDurationHours int       `json:"max_trade_duration_hours" yaml:"max_trade_duration_hours"`
	SlippageUnits         float64   `json:"slippage_units" yaml:"slippage_units"`
	UnitScale             float64   `json:"unit_scale" yaml:"unit_scale"`
	Seed                  int64     `json:"seed" yaml:"seed"`
}

// QuickStats is the condensed aggregate over a batch of trade outcomes.
type QuickStats struct {
	Total         int             `json:"total"`
	Executed      int             `json:"executed"`
	ExecutionRate float64         `json:"execution_rate"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	WinRate       float64         `json:"win_rate"`
	AvgProfit     float64         `json:"avg_profit"`
	TotalProfit   float64         `json:"total_profit"`
	AvgDuration   float64         `json:"avg_duration"`
	Outcomes      map[Outcome]int `json:"outcomes"`
}

// BacktestResult is the complete output of one run. It is owned by the
// orchestrator for the duration of the run and immutable once returned.
type BacktestResult struct {
	ID             string              `json:"id"`
	Params         BacktestParams      `json:"params"`
	AnalysisPoints []AnalysisPoint     `json:"analysis_points"`
	Trades         []SimulatedTrade    `json:"trades"`
	RejectedTrades int                 `json:"rejected_trades"`
	Statistics     *PerformanceMetrics `json:"statistics"`
	Incomplete     bool                `json:"incomplete,omitempty"`
	ExecutionTime  float64             `json:"execution_time_seconds"`
	CreatedAt      time.Time           `json:"created_at"`
}

// CohortStats aggregates executed trades inside one cohort (session,
// direction, score bucket or confidence bucket).
type CohortStats struct {
	Total       int     `json:"total"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalProfit float64 `json:"total_profit"`
	AvgProfit   float64 `json:"avg_profit"`
}

// Streak describes the currently active run of wins or losses.
type Streak struct {
	Type  string `json:"type"` // "win" or "loss"
	Count int    `json:"count"`
}

// PerformanceMetrics is the full statistical report over executed trades.
type PerformanceMetrics struct {
	TotalAnalyses   int     `json:"total_analyses"`
	TradesGenerated int     `json:"trades_generated"`
	TradesExecuted  int     `json:"trades_executed"`
	TradesRejected  int     `json:"trades_rejected"`
	ExecutionRate   float64 `json:"execution_rate"`

	WinRate      float64 `json:"win_rate"`
	LossRate     float64 `json:"loss_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	AvgRR        float64 `json:"avg_rr"`
	SharpeRatio  float64 `json:"sharpe_ratio"`

	TotalProfitUnits float64 `json:"total_profit_units"`
	TotalLossUnits   float64 `json:"total_loss_units"`
	NetProfitUnits   float64 `json:"net_profit_units"`
	AvgWinUnits      float64 `json:"avg_win_units"`
	AvgLossUnits     float64 `json:"avg_loss_units"`
	LargestWin       float64 `json:"largest_win"`
	LargestLoss      float64 `json:"largest_loss"`

	TP1HitRate  float64 `json:"tp1_hit_rate"`
	TP2HitRate  float64 `json:"tp2_hit_rate"`
	TP3HitRate  float64 `json:"tp3_hit_rate"`
	SLHitRate   float64 `json:"sl_hit_rate"`
	ExpiredRate float64 `json:"expired_rate"`

	Wins      int `json:"wins"`
	Losses    int `json:"losses"`
	Breakeven int `json:"breakeven"`

	AvgTradeDuration float64 `json:"avg_trade_duration"`
	LongestTrade     float64 `json:"longest_trade"`
	ShortestTrade    float64 `json:"shortest_trade"`

	BySession    map[Session]CohortStats `json:"by_session"`
	ByDirection  map[string]CohortStats  `json:"by_direction"`
	ByScore      map[string]CohortStats  `json:"by_score"`
	ByConfidence map[string]CohortStats  `json:"by_confidence"`

	LongestWinStreak  int    `json:"longest_win_streak"`
	LongestLossStreak int    `json:"longest_loss_streak"`
	CurrentStreak     Streak `json:"current_streak"`
}
