package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultTimeout = 30 * time.Second

// defaultSessionDB places the session database under the user config dir,
// falling back to the working directory.
func defaultSessionDB() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "actionflow.db"
	}
	return filepath.Join(dir, "actionflow", "session.db")
}

// loadConfigFile merges a YAML file into viper. Keys use the flag names
// (session-db, redis-addr, product, ...). Flags and ACTIONFLOW_* variables
// take precedence over the file.
func loadConfigFile(path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return viper.MergeConfigMap(values)
}

// newLogger builds the process logger. Output goes to w so that stdout stays
// free for command output and the MCP stdio transport.
func newLogger(levelStr, formatStr string, w io.Writer) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func logger() *slog.Logger {
	return newLogger(viper.GetString("log-level"), viper.GetString("log-format"), os.Stderr)
}
