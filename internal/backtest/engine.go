// Package backtest orchestrates a full historical run: candle fetching,
// windowed structure analysis, oracle evaluation, trade simulation and
// performance aggregation.
package backtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ictbacktest/internal/analyzer"
	"ictbacktest/internal/detector"
	"ictbacktest/internal/session"
	"ictbacktest/internal/simulator"
	"ictbacktest/models"
)

// Config tunes the orchestrator. Zero values get defaults.
type Config struct {
	WarmupBars   int           // H1 bars required before the first analysis point
	H1WindowBars int           // H1 window handed to the detector and oracle
	M5WindowBars int           // M5 window handed to the oracle
	PointTimeout time.Duration // per-point oracle deadline
	Detector     detector.Params
}

func (c Config) normalize() Config {
	if c.WarmupBars <= 0 {
		c.WarmupBars = 100
	}
	if c.H1WindowBars <= 0 {
		c.H1WindowBars = 100
	}
	if c.M5WindowBars <= 0 {
		c.M5WindowBars = 220
	}
	if c.PointTimeout <= 0 {
		c.PointTimeout = 60 * time.Second
	}
	c.Detector = c.Detector.Normalize()
	return c
}

// Engine runs backtests. The sink is optional; a nil sink disables
// persistence.
type Engine struct {
	provider models.MarketDataProvider
	oracle   models.StrategyOracle
	sink     models.PersistenceSink
	cfg      Config
	logger   zerolog.Logger
}

// New creates an engine.
func New(provider models.MarketDataProvider, oracle models.StrategyOracle, sink models.PersistenceSink, cfg Config) *Engine {
	return &Engine{
		provider: provider,
		oracle:   oracle,
		sink:     sink,
		cfg:      cfg.normalize(),
		logger:   log.With().Str("component", "backtest_engine").Logger(),
	}
}

// Run executes a full backtest. It always returns a non-nil result: on
// cancellation or data failure the result carries whatever was evaluated
// so far, marked Incomplete, alongside the error.
func (e *Engine) Run(ctx context.Context, params models.BacktestParams) (*models.BacktestResult, error) {
	started := time.Now()
	result := &models.BacktestResult{
		ID:        uuid.New().String(),
		Params:    params,
		CreatedAt: started.UTC(),
	}
	defer func() {
		result.ExecutionTime = time.Since(started).Seconds()
		if result.Statistics == nil {
			result.Statistics = analyzer.Analyze(result)
		}
	}()

	if err := validateParams(params); err != nil {
		result.Incomplete = true
		return result, err
	}

	e.logger.Info().
		Str("run_id", result.ID).
		Str("symbol", params.Symbol).
		Time("from", params.StartDate).
		Time("to", params.EndDate).
		Str("oracle", e.oracle.Name()).
		Msg("backtest started")

	h1, m5, err := e.fetchData(ctx, params)
	if err != nil {
		result.Incomplete = true
		return result, err
	}

	points, complete := e.evaluatePoints(ctx, params, h1, m5)
	result.AnalysisPoints = points
	result.Incomplete = !complete

	proposals, rejected := e.collectProposals(points)
	result.RejectedTrades = rejected

	sim := simulator.New(simulatorConfig(params))
	outcomes := sim.SimulateMany(proposalList(proposals), m5)
	result.Trades = make([]models.SimulatedTrade, len(proposals))
	for i, p := range proposals {
		result.Trades[i] = models.SimulatedTrade{Analysis: p.point, Outcome: outcomes[i]}
	}

	// Statistics go into the persisted payload, so compute them before
	// the save rather than in the deferred block.
	result.ExecutionTime = time.Since(started).Seconds()
	result.Statistics = analyzer.Analyze(result)
	e.persist(result)

	e.logger.Info().
		Str("run_id", result.ID).
		Int("points", len(points)).
		Int("trades", len(result.Trades)).
		Int("rejected", rejected).
		Bool("incomplete", result.Incomplete).
		Msg("backtest finished")

	if result.Incomplete {
		return result, ctx.Err()
	}
	return result, nil
}

func validateParams(p models.BacktestParams) error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if !p.EndDate.After(p.StartDate) {
		return fmt.Errorf("end date %s is not after start date %s",
			p.EndDate.Format("2006-01-02"), p.StartDate.Format("2006-01-02"))
	}
	if p.AnalysisIntervalHours <= 0 {
		return fmt.Errorf("analysis interval must be positive")
	}
	if p.UnitScale <= 0 {
		return fmt.Errorf("unit scale must be positive")
	}
	return nil
}

// fetchData pulls the H1 series extended backwards by the warmup and the
// M5 series extended forwards by the trade-duration cap, so the last
// analysis points still have candles to resolve against.
func (e *Engine) fetchData(ctx context.Context, params models.BacktestParams) (h1, m5 []models.Candle, err error) {
	h1From := params.StartDate.Add(-time.Duration(e.cfg.WarmupBars) * time.Hour)
	maxDur := params.MaxTradeDurationHours
	if maxDur <= 0 {
		maxDur = 72
	}
	m5To := params.EndDate.Add(time.Duration(2*maxDur) * time.Hour)

	h1, err = e.provider.GetCandlesRange(ctx, params.Symbol, "H1", h1From, params.EndDate)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching H1 candles: %w", err)
	}
	m5From := params.StartDate.Add(-time.Duration(e.cfg.M5WindowBars) * 5 * time.Minute)
	m5, err = e.provider.GetCandlesRange(ctx, params.Symbol, "M5", m5From, m5To)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching M5 candles: %w", err)
	}
	if len(h1) < e.cfg.WarmupBars {
		return nil, nil, fmt.Errorf("%w: only %d H1 candles, need %d for warmup",
			models.ErrDataFetch, len(h1), e.cfg.WarmupBars)
	}
	return h1, m5, nil
}

// evaluatePoints walks the run range at the configured interval. With
// StrategyConcurrency > 1 the points are evaluated by a bounded worker
// pool and re-sorted by timestamp afterwards; evaluation order never
// changes the output because every point sees only candles before its
// own time. complete is false when cancellation cut the walk short.
func (e *Engine) evaluatePoints(ctx context.Context, params models.BacktestParams, h1, m5 []models.Candle) (points []models.AnalysisPoint, complete bool) {
	var times []time.Time
	interval := time.Duration(params.AnalysisIntervalHours) * time.Hour
	for t := params.StartDate; !t.After(params.EndDate); t = t.Add(interval) {
		times = append(times, t)
	}

	workers := params.StrategyConcurrency
	if workers <= 1 {
		points, complete = e.evaluateSequential(ctx, params, times, h1, m5)
	} else {
		points, complete = e.evaluateConcurrent(ctx, params, times, h1, m5, workers)
	}

	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, complete
}

func (e *Engine) evaluateSequential(ctx context.Context, params models.BacktestParams, times []time.Time, h1, m5 []models.Candle) ([]models.AnalysisPoint, bool) {
	points := make([]models.AnalysisPoint, 0, len(times))
	for _, t := range times {
		if ctx.Err() != nil {
			return points, false
		}
		if p, ok := e.evaluateOne(ctx, params, t, h1, m5); ok {
			points = append(points, p)
		}
	}
	return points, true
}

func (e *Engine) evaluateConcurrent(ctx context.Context, params models.BacktestParams, times []time.Time, h1, m5 []models.Candle, workers int) ([]models.AnalysisPoint, bool) {
	type slot struct {
		point models.AnalysisPoint
		ok    bool
	}
	slots := make([]slot, len(times))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				p, ok := e.evaluateOne(ctx, params, times[i], h1, m5)
				slots[i] = slot{point: p, ok: ok}
			}
		}()
	}

	complete := true
feed:
	for i := range times {
		select {
		case <-ctx.Done():
			complete = false
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	points := make([]models.AnalysisPoint, 0, len(times))
	for _, s := range slots {
		if s.ok {
			points = append(points, s.point)
		}
	}
	return points, complete
}

// evaluateOne builds the window ending at t and asks the oracle. Oracle
// failures degrade to a NO_TRADE point rather than failing the run. ok is
// false only when the warmup is not yet satisfied at t.
func (e *Engine) evaluateOne(ctx context.Context, params models.BacktestParams, t time.Time, h1, m5 []models.Candle) (models.AnalysisPoint, bool) {
	h1Window := windowBefore(h1, t, e.cfg.H1WindowBars)
	if len(h1Window) < e.cfg.WarmupBars {
		return models.AnalysisPoint{}, false
	}
	m5Window := windowBefore(m5, t, e.cfg.M5WindowBars)

	price := h1Window[len(h1Window)-1].Close
	if len(m5Window) > 0 {
		price = m5Window[len(m5Window)-1].Close
	}

	point := models.AnalysisPoint{
		ID:           uuid.New().String(),
		Time:         t,
		CurrentPrice: price,
		Decision:     models.DecisionNoTrade,
		Session:      session.Classify(t).Session,
	}

	window := models.WindowContext{
		Symbol:       params.Symbol,
		Time:         t,
		CurrentPrice: price,
		H1:           h1Window,
		M5:           m5Window,
		Structure:    detector.Analyze(h1Window, e.cfg.Detector),
		Session:      point.Session,
	}

	pointCtx, cancel := context.WithTimeout(ctx, e.cfg.PointTimeout)
	defer cancel()

	decision, err := e.oracle.Evaluate(pointCtx, window)
	if err != nil {
		e.logger.Warn().Err(err).Time("point", t).Msg("oracle failed, recording NO_TRADE")
		point.Reasoning = fmt.Sprintf("oracle error: %v", err)
		return point, true
	}

	point.Decision = decision.Decision
	point.Score = decision.Score
	point.Confidence = decision.Confidence
	point.SuggestedTrade = decision.SuggestedTrade
	point.Reasoning = decision.Reasoning
	return point, true
}

// windowBefore returns the last n candles strictly before t, so a point
// never sees the candle it sits inside of.
func windowBefore(candles []models.Candle, t time.Time, n int) []models.Candle {
	end := sort.Search(len(candles), func(i int) bool {
		return !candles[i].Time.Before(t)
	})
	start := end - n
	if start < 0 {
		start = 0
	}
	return candles[start:end]
}

type proposal struct {
	point models.AnalysisPoint
}

// collectProposals filters the points that propose a trade and validates
// the price ordering; invalid trades are counted as rejected and never
// simulated.
func (e *Engine) collectProposals(points []models.AnalysisPoint) ([]proposal, int) {
	var proposals []proposal
	rejected := 0
	for _, p := range points {
		if p.Decision != models.DecisionPlacePending || p.SuggestedTrade == nil {
			continue
		}
		if err := p.SuggestedTrade.Validate(); err != nil {
			e.logger.Warn().Err(err).Time("point", p.Time).Msg("rejecting invalid trade")
			rejected++
			continue
		}
		proposals = append(proposals, proposal{point: p})
	}
	return proposals, rejected
}

func proposalList(proposals []proposal) []simulator.Proposal {
	out := make([]simulator.Proposal, len(proposals))
	for i, p := range proposals {
		out[i] = simulator.Proposal{
			Trade:        *p.point.SuggestedTrade,
			ProposalTime: p.point.Time,
		}
	}
	return out
}

func simulatorConfig(params models.BacktestParams) simulator.Config {
	cfg := simulator.Config{
		MaxDurationHours: params.MaxTradeDurationHours,
		SlippageUnits:    params.SlippageUnits,
		UnitScale:        params.UnitScale,
	}
	if params.Seed != 0 {
		cfg.Rng = simulator.SeededRng(params.Seed)
	}
	return cfg
}

// persist saves best-effort on a fresh context, so a cancelled run still
// gets its partial result stored.
func (e *Engine) persist(result *models.BacktestResult) {
	if e.sink == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.sink.Save(saveCtx, result); err != nil {
		e.logger.Error().Err(err).Str("run_id", result.ID).Msg("saving result failed")
	}
}
