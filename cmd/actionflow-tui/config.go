package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rmax-ai/actionflow/pkg/session"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	SessionDB  string
	RedisAddr  string
	SessionKey string
	ProductID  int64
	Timeout    time.Duration
	LogFile    string
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	sessionDB := envOrDefault("ACTIONFLOW_SESSION_DB", defaultSessionDB(cwd))
	redisAddr := os.Getenv("ACTIONFLOW_REDIS_ADDR")
	sessionKey := envOrDefault("ACTIONFLOW_SESSION_KEY", session.DefaultKey)
	logFile := os.Getenv("ACTIONFLOW_LOG_FILE")

	var productID int64
	if productEnv := os.Getenv("ACTIONFLOW_PRODUCT"); productEnv != "" {
		parsed, err := strconv.ParseInt(productEnv, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIONFLOW_PRODUCT: %w", err)
		}
		productID = parsed
	}
	timeout := defaultTimeout
	if timeoutEnv := os.Getenv("ACTIONFLOW_TIMEOUT"); timeoutEnv != "" {
		parsed, err := time.ParseDuration(timeoutEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIONFLOW_TIMEOUT: %w", err)
		}
		timeout = parsed
	}

	flagSet := flag.NewFlagSet("actionflow-tui", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("session-db", sessionDB, "path to the SQLite session database")
	flagRedis := flagSet.String("redis-addr", redisAddr, "read the session from Redis at this address")
	flagKey := flagSet.String("session-key", sessionKey, "name the session is stored under")
	flagProduct := flagSet.Int64("product", productID, "product id whose workflow is edited")
	flagTimeout := flagSet.String("timeout", timeout.String(), "timeout of a single remote call")
	flagLog := flagSet.String("log-file", logFile, "write logs to this file")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	timeoutParsed, err := time.ParseDuration(*flagTimeout)
	if err != nil {
		return Config{}, fmt.Errorf("invalid timeout: %w", err)
	}

	config := Config{
		SessionDB:  resolvePath(*flagDB, cwd),
		RedisAddr:  strings.TrimSpace(*flagRedis),
		SessionKey: strings.TrimSpace(*flagKey),
		ProductID:  *flagProduct,
		Timeout:    timeoutParsed,
		LogFile:    resolvePath(*flagLog, cwd),
	}

	if config.ProductID <= 0 {
		return Config{}, errors.New("product id is required (-product or ACTIONFLOW_PRODUCT)")
	}
	if config.Timeout <= 0 {
		return Config{}, errors.New("timeout must be positive")
	}
	if config.RedisAddr == "" && config.SessionDB == "" {
		return Config{}, errors.New("session-db cannot be empty")
	}
	if config.SessionKey == "" {
		config.SessionKey = session.DefaultKey
	}

	return config, nil
}

// defaultSessionDB matches the CLI default so both binaries share one login.
func defaultSessionDB(cwd string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(cwd, "actionflow.db")
	}
	return filepath.Join(dir, "actionflow", "session.db")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
