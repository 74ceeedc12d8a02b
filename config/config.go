// Package config loads application settings from the environment and
// backtest run parameters from YAML files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"ictbacktest/models"
)

// Config holds all application configuration.
type Config struct {
	OandaAPIKey   string
	OandaPractice bool
	OpenAIAPIKey  string
	OpenAIModel   string
	OracleMode    string // "rules" or "openai"

	LogLevel       string
	RequestTimeout int // seconds
	RequestsPerSec int
	MaxRetries     int
	PointTimeout   int // seconds, per-analysis-point oracle deadline

	DBEnabled  bool
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

// Load initializes configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		OandaAPIKey:   os.Getenv("OANDA_API_KEY"),
		OandaPractice: getEnvBoolWithDefault("OANDA_PRACTICE", true),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   getEnvWithDefault("OPENAI_MODEL", ""),
		OracleMode:    getEnvWithDefault("ORACLE_MODE", "rules"),

		LogLevel:       getEnvWithDefault("LOG_LEVEL", "info"),
		RequestTimeout: getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		RequestsPerSec: getEnvIntWithDefault("REQUESTS_PER_SEC", 5),
		MaxRetries:     getEnvIntWithDefault("MAX_RETRIES", 4),
		PointTimeout:   getEnvIntWithDefault("POINT_TIMEOUT", 60),

		DBEnabled:  getEnvBoolWithDefault("DB_ENABLED", false),
		DBHost:     getEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     getEnvWithDefault("DB_PORT", "5432"),
		DBUser:     getEnvWithDefault("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnvWithDefault("DB_NAME", "ictbacktest"),
		DBSSLMode:  getEnvWithDefault("DB_SSL_MODE", "disable"),
	}

	if cfg.OandaAPIKey == "" {
		return nil, fmt.Errorf("OANDA_API_KEY is required")
	}
	if cfg.OracleMode == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when ORACLE_MODE=openai")
	}

	return cfg, nil
}

// runParamsFile is the YAML shape of a run-parameters file. Dates are
// plain days; times snap to UTC midnight.
type runParamsFile struct {
	Symbol                string  `yaml:"symbol"`
	StartDate             string  `yaml:"start_date"`
	EndDate               string  `yaml:"end_date"`
	AnalysisIntervalHours int     `yaml:"analysis_interval_hours"`
	StrategyConcurrency   int     `yaml:"strategy_concurrency"`
	MaxTradeDurationHours int     `yaml:"max_trade_duration_hours"`
	SlippageUnits         float64 `yaml:"slippage_units"`
	UnitScale             float64 `yaml:"unit_scale"`
	Seed                  int64   `yaml:"seed"`
}

// LoadRunParams reads backtest parameters from a YAML file and fills
// defaults for unset fields.
func LoadRunParams(path string) (models.BacktestParams, error) {
	var params models.BacktestParams

	data, err := os.ReadFile(path)
	if err != nil {
		return params, fmt.Errorf("reading params file: %w", err)
	}

	var file runParamsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return params, fmt.Errorf("parsing params file: %w", err)
	}

	start, err := time.Parse("2006-01-02", file.StartDate)
	if err != nil {
		return params, fmt.Errorf("parsing start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", file.EndDate)
	if err != nil {
		return params, fmt.Errorf("parsing end_date: %w", err)
	}

	params = models.BacktestParams{
		Symbol:                file.Symbol,
		StartDate:             start.UTC(),
		EndDate:               end.UTC(),
		AnalysisIntervalHours: file.AnalysisIntervalHours,
		StrategyConcurrency:   file.StrategyConcurrency,
		MaxTradeDurationHours: file.MaxTradeDurationHours,
		SlippageUnits:         file.SlippageUnits,
		UnitScale:             file.UnitScale,
		Seed:                  file.Seed,
	}
	ApplyDefaults(&params)
	return params, nil
}

// ApplyDefaults fills unset run parameters. The unit scale comes from a
// per-instrument table because profit units mean different price
// distances on metals and on FX pairs.
func ApplyDefaults(p *models.BacktestParams) {
	if p.AnalysisIntervalHours <= 0 {
		p.AnalysisIntervalHours = 4
	}
	if p.MaxTradeDurationHours <= 0 {
		p.MaxTradeDurationHours = 72
	}
	if p.UnitScale <= 0 {
		p.UnitScale = unitScaleFor(p.Symbol)
	}
	if p.Seed == 0 {
		p.Seed = 1
	}
}

// unitScaleFor maps an instrument to its price-to-unit conversion:
// 100 for gold and silver (one unit = 0.01), 100 for JPY pairs, 10000
// for the remaining FX majors (one unit = one pip).
func unitScaleFor(symbol string) float64 {
	switch symbol {
	case "XAUUSD", "XAGUSD":
		return 100
	case "USDJPY", "EURJPY", "GBPJPY":
		return 100
	default:
		return 10000
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
