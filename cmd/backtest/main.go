package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ictbacktest/config"
	"ictbacktest/internal/analyzer"
	"ictbacktest/internal/api/oanda"
	"ictbacktest/internal/backtest"
	"ictbacktest/internal/oracle"
	"ictbacktest/internal/storage"
	"ictbacktest/models"
)

var (
	paramsPath string
	jsonOutput bool
	listLimit  int
)

func main() {
	root := &cobra.Command{
		Use:   "backtest",
		Short: "Historical backtesting of ICT-style trading signals",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest from a YAML parameters file",
		RunE:  runBacktest,
	}
	runCmd.Flags().StringVarP(&paramsPath, "params", "p", "backtest.yaml", "path to the run parameters file")
	runCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full result as JSON instead of the report")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored backtest runs",
		RunE:  listRuns,
	}
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum runs to list")

	root.AddCommand(runCmd, listCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	params, err := config.LoadRunParams(paramsPath)
	if err != nil {
		return err
	}

	provider := oanda.NewClient(oanda.ClientOptions{
		APIKey:         cfg.OandaAPIKey,
		Practice:       cfg.OandaPractice,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
		MaxRetries:     cfg.MaxRetries,
	})

	var strategyOracle models.StrategyOracle
	if cfg.OracleMode == "openai" {
		strategyOracle = oracle.NewOpenAIOracle(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	} else {
		strategyOracle = oracle.NewRuleOracle(oracle.RuleConfig{})
	}

	var sink models.PersistenceSink
	if cfg.DBEnabled {
		db, err := storage.New(storage.ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		sink = db
	}

	engine := backtest.New(provider, strategyOracle, sink, backtest.Config{
		PointTimeout: time.Duration(cfg.PointTimeout) * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := engine.Run(ctx, params)
	if runErr != nil {
		log.Error().Err(runErr).Msg("backtest did not complete")
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		analyzer.WriteReport(cmd.OutOrStdout(), result)
	}
	return runErr
}

func listRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogger(cfg.LogLevel)

	db, err := storage.New(storage.ConnectionParams{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		status := "complete"
		if r.Incomplete {
			status = "incomplete"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s..%s  trades=%d win=%.1f%% net=%+.1f  %s\n",
			r.ID, r.Symbol,
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
			r.TradesExecuted, r.WinRate, r.NetProfitUnits, status)
	}
	return nil
}

func setupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
