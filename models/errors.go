package models

import "errors"

// Error families of the backtest pipeline. Callers match with errors.Is.
var (
	// ErrDataFetch marks market-data source failures after retries exhaust.
	ErrDataFetch = errors.New("market data fetch failed")

	// ErrOracle marks a single analysis point failure; the run continues.
	ErrOracle = errors.New("strategy oracle failed")

	// ErrInvalidTrade marks a suggested trade violating the price-ordering
	// invariant. Such trades are counted as rejected, never coerced.
	ErrInvalidTrade = errors.New("invalid suggested trade")

	// ErrPersistence marks a storage failure. Non-fatal for the run.
	ErrPersistence = errors.New("persistence failed")
)
