// Package storage persists backtest results to PostgreSQL. Results are
// stored as a summary row plus a versioned JSON payload, so older rows
// stay readable after the payload shape evolves.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ictbacktest/models"
)

// payloadVersion tags the JSON envelope written with each result. Bump it
// when the result shape changes incompatibly.
const payloadVersion = 1

// DB is the result store. Implements models.PersistenceSink.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// ConnectionParams holds PostgreSQL connection parameters.
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New opens the connection and creates missing tables.
func New(params ConnectionParams) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{
		db:     db,
		logger: log.With().Str("component", "storage").Logger(),
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_results (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			start_date TIMESTAMP NOT NULL,
			end_date TIMESTAMP NOT NULL,
			trades_executed INTEGER NOT NULL,
			win_rate DOUBLE PRECISION NOT NULL,
			net_profit_units DOUBLE PRECISION NOT NULL,
			incomplete BOOLEAN NOT NULL DEFAULT FALSE,
			schema_version INTEGER NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id TEXT NOT NULL REFERENCES backtest_results(id) ON DELETE CASCADE,
			proposal_time TIMESTAMP NOT NULL,
			kind TEXT NOT NULL,
			outcome TEXT NOT NULL,
			executed BOOLEAN NOT NULL,
			profit_units DOUBLE PRECISION NOT NULL,
			duration_hours DOUBLE PRECISION NOT NULL,
			session TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL
		)
	`)
	return err
}

// envelope wraps the stored result with its schema version.
type envelope struct {
	Version int                    `json:"version"`
	Result  *models.BacktestResult `json:"result"`
}

// Save stores the result and its per-trade rows in one transaction.
// Implements models.PersistenceSink.
func (d *DB) Save(ctx context.Context, result *models.BacktestResult) error {
	payload, err := json.Marshal(envelope{Version: payloadVersion, Result: result})
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %v", models.ErrPersistence, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	defer tx.Rollback()

	var winRate, netProfit float64
	var executed int
	if result.Statistics != nil {
		winRate = result.Statistics.WinRate
		netProfit = result.Statistics.NetProfitUnits
		executed = result.Statistics.TradesExecuted
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_results (
			id, symbol, start_date, end_date, trades_executed,
			win_rate, net_profit_units, incomplete, schema_version, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			trades_executed = EXCLUDED.trades_executed,
			win_rate = EXCLUDED.win_rate,
			net_profit_units = EXCLUDED.net_profit_units,
			incomplete = EXCLUDED.incomplete,
			schema_version = EXCLUDED.schema_version,
			payload = EXCLUDED.payload
	`,
		result.ID, result.Params.Symbol, result.Params.StartDate, result.Params.EndDate,
		executed, winRate, netProfit, result.Incomplete, payloadVersion, payload, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: inserting result: %v", models.ErrPersistence, err)
	}

	for _, t := range result.Trades {
		kind := ""
		if t.Analysis.SuggestedTrade != nil {
			kind = string(t.Analysis.SuggestedTrade.Kind)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO backtest_trades (
				run_id, proposal_time, kind, outcome, executed,
				profit_units, duration_hours, session, score
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			result.ID, t.Analysis.Time, kind, string(t.Outcome.Outcome), t.Outcome.Executed,
			t.Outcome.ProfitUnits, t.Outcome.DurationHours, string(t.Analysis.Session), t.Analysis.Score)
		if err != nil {
			return fmt.Errorf("%w: inserting trade: %v", models.ErrPersistence, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	d.logger.Info().Str("run_id", result.ID).Int("trades", len(result.Trades)).Msg("result saved")
	return nil
}

// Load retrieves one stored result by run ID. Unknown payload versions
// are refused rather than silently misparsed.
func (d *DB) Load(ctx context.Context, id string) (*models.BacktestResult, error) {
	var version int
	var payload []byte
	err := d.db.QueryRowContext(ctx, `
		SELECT schema_version, payload FROM backtest_results WHERE id = $1
	`, id).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s not found", models.ErrPersistence, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	if version != payloadVersion {
		return nil, fmt.Errorf("%w: run %s has payload version %d, expected %d",
			models.ErrPersistence, id, version, payloadVersion)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", models.ErrPersistence, err)
	}
	return env.Result, nil
}

// RunSummary is one row of the stored-runs listing.
type RunSummary struct {
	ID             string
	Symbol         string
	StartDate      time.Time
	EndDate        time.Time
	TradesExecuted int
	WinRate        float64
	NetProfitUnits float64
	Incomplete     bool
	CreatedAt      time.Time
}

// ListRuns returns the most recent stored runs, newest first.
func (d *DB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, symbol, start_date, end_date, trades_executed,
		       win_rate, net_profit_units, incomplete, created_at
		FROM backtest_results
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Symbol, &r.StartDate, &r.EndDate, &r.TradesExecuted,
			&r.WinRate, &r.NetProfitUnits, &r.Incomplete, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}
