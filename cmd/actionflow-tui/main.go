package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	goredis "github.com/redis/go-redis/v9"

	"github.com/rmax-ai/actionflow/pkg/client"
	"github.com/rmax-ai/actionflow/pkg/controller"
	"github.com/rmax-ai/actionflow/pkg/rpc"
	"github.com/rmax-ai/actionflow/pkg/session"
	"github.com/rmax-ai/actionflow/pkg/session/redis"
	"github.com/rmax-ai/actionflow/pkg/surface"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	logger, closeLog, err := openLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	sess, err := loadSession(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (run 'actionflow login' first)\n", err)
		os.Exit(1)
	}

	c := client.New(sess,
		client.WithLogger(logger),
		client.WithRPCOptions(rpc.WithTimeout(cfg.Timeout)),
	)
	ctrl := controller.New(c, cfg.ProductID, logger)
	// Confirmation prompts are answered in the model before a gesture is sent.
	surf := surface.New(ctrl, nil, logger)

	p := tea.NewProgram(newModel(ctrl, surf, cfg.Timeout), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}

// openLogger writes to path, or discards logs when path is empty since the
// alternate screen owns the terminal.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func loadSession(ctx context.Context, cfg Config) (*session.Context, error) {
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		return session.Resolve(ctx, redis.NewSessionStore(rdb, 0), cfg.SessionKey)
	}
	st, err := session.NewSQLiteStore(cfg.SessionDB)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return session.Resolve(ctx, st, cfg.SessionKey)
}
