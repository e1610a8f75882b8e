package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/riskibarqy/challenge-ladder/internal/domain/ladder"
	"github.com/riskibarqy/challenge-ladder/internal/platform/logging"
	"github.com/riskibarqy/challenge-ladder/internal/usecase"
)

const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMemory = "memory"
)

// Config stores runtime configuration for the ladder client.
type Config struct {
	AppEnv                      string
	ServiceName                 string
	ServiceVersion              string
	LadderAPIURL                string
	LadderAPITimeout            time.Duration
	LadderAPIMaxRetries         int
	LadderCircuitEnabled        bool
	LadderCircuitFailureCount   int
	LadderCircuitOpenTimeout    time.Duration
	LadderCircuitHalfOpenMaxReq int
	LadderPIN                   string
	StoreDriver                 string
	StorePath                   string
	BaselineStrategy            ladder.BaselineStrategy
	RejectedPolicy              usecase.RejectedPolicy
	SyncMaxAttempts             int
	WatchInterval               time.Duration
	UptraceEnabled              bool
	UptraceDSN                  string
	LogLevel                    logging.Level
}

// LoadDotEnv copies entries from the given .env files (default ".env") into
// the process environment without overriding variables already set. Missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	ladderAPIURL := strings.TrimSpace(getEnv("LADDER_API_URL", ""))
	if ladderAPIURL == "" {
		return Config{}, fmt.Errorf("LADDER_API_URL is required")
	}

	ladderAPITimeout, err := time.ParseDuration(getEnv("LADDER_API_TIMEOUT", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LADDER_API_TIMEOUT: %w", err)
	}
	if ladderAPITimeout <= 0 {
		return Config{}, fmt.Errorf("LADDER_API_TIMEOUT must be > 0")
	}

	ladderAPIMaxRetries, err := getEnvAsInt("LADDER_API_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse LADDER_API_MAX_RETRIES: %w", err)
	}
	if ladderAPIMaxRetries < 0 {
		return Config{}, fmt.Errorf("LADDER_API_MAX_RETRIES must be >= 0")
	}

	ladderCircuitEnabled, err := strconv.ParseBool(getEnv("LADDER_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LADDER_CIRCUIT_ENABLED: %w", err)
	}

	ladderCircuitFailureCount, err := getEnvAsInt("LADDER_CIRCUIT_FAILURE_COUNT", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse LADDER_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if ladderCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("LADDER_CIRCUIT_FAILURE_COUNT must be >= 1")
	}

	ladderCircuitOpenTimeout, err := time.ParseDuration(getEnv("LADDER_CIRCUIT_OPEN_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse LADDER_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if ladderCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("LADDER_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}

	ladderCircuitHalfOpenMaxReq, err := getEnvAsInt("LADDER_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse LADDER_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if ladderCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("LADDER_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	storeDriver, err := parseStoreDriver(getEnv("STORE_DRIVER", StoreDriverSQLite))
	if err != nil {
		return Config{}, err
	}
	storePath := strings.TrimSpace(getEnv("STORE_PATH", "ladder.db"))

	baselineStrategy, err := ladder.ParseBaselineStrategy(getEnv("BASELINE_STRATEGY", string(ladder.BaselineCalendarDay)))
	if err != nil {
		return Config{}, fmt.Errorf("parse BASELINE_STRATEGY: %w", err)
	}

	rejectedPolicy, err := usecase.ParseRejectedPolicy(getEnv("REJECTED_POLICY", string(usecase.RejectedQueue)))
	if err != nil {
		return Config{}, fmt.Errorf("parse REJECTED_POLICY: %w", err)
	}

	syncMaxAttempts, err := getEnvAsInt("SYNC_MAX_ATTEMPTS", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse SYNC_MAX_ATTEMPTS: %w", err)
	}
	if syncMaxAttempts < 1 {
		return Config{}, fmt.Errorf("SYNC_MAX_ATTEMPTS must be >= 1")
	}

	watchInterval, err := time.ParseDuration(getEnv("WATCH_INTERVAL", "5m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WATCH_INTERVAL: %w", err)
	}
	if watchInterval < time.Second {
		return Config{}, fmt.Errorf("WATCH_INTERVAL must be >= 1s")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	cfg := Config{
		AppEnv:                      appEnv,
		ServiceName:                 getEnv("APP_SERVICE_NAME", "challenge-ladder"),
		ServiceVersion:              getEnv("APP_SERVICE_VERSION", "dev"),
		LadderAPIURL:                ladderAPIURL,
		LadderAPITimeout:            ladderAPITimeout,
		LadderAPIMaxRetries:         ladderAPIMaxRetries,
		LadderCircuitEnabled:        ladderCircuitEnabled,
		LadderCircuitFailureCount:   ladderCircuitFailureCount,
		LadderCircuitOpenTimeout:    ladderCircuitOpenTimeout,
		LadderCircuitHalfOpenMaxReq: ladderCircuitHalfOpenMaxReq,
		LadderPIN:                   strings.TrimSpace(getEnv("LADDER_PIN", "")),
		StoreDriver:                 storeDriver,
		StorePath:                   storePath,
		BaselineStrategy:            baselineStrategy,
		RejectedPolicy:              rejectedPolicy,
		SyncMaxAttempts:             syncMaxAttempts,
		WatchInterval:               watchInterval,
		UptraceEnabled:              uptraceEnabled,
		UptraceDSN:                  uptraceDSN,
		LogLevel:                    parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
	}
	if cfg.StoreDriver == StoreDriverSQLite && cfg.StorePath == "" {
		return Config{}, fmt.Errorf("STORE_PATH is required when STORE_DRIVER=%s", StoreDriverSQLite)
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

func parseStoreDriver(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case StoreDriverSQLite, StoreDriverMemory:
		return value, nil
	default:
		return "", fmt.Errorf("invalid STORE_DRIVER %q: valid values are %s, %s", v, StoreDriverSQLite, StoreDriverMemory)
	}
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
