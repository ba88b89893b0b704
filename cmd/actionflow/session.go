package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/rmax-ai/actionflow/pkg/client"
	"github.com/rmax-ai/actionflow/pkg/controller"
	"github.com/rmax-ai/actionflow/pkg/rpc"
	"github.com/rmax-ai/actionflow/pkg/session"
	"github.com/rmax-ai/actionflow/pkg/session/redis"
)

// openStore returns the configured session store and its closer.
func openStore() (session.Store, func() error, error) {
	if addr := viper.GetString("redis-addr"); addr != "" {
		rdb := goredis.NewClient(&goredis.Options{Addr: addr})
		return redis.NewSessionStore(rdb, 0), rdb.Close, nil
	}
	path := viper.GetString("session-db")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create session directory: %w", err)
		}
	}
	st, err := session.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// withStore runs fn against the session store and closes it afterwards.
func withStore(ctx context.Context, fn func(context.Context, session.Store) error) error {
	st, closeFn, err := openStore()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, st)
}

// withClient resolves the saved session and hands fn a workflow client bound to it.
func withClient(ctx context.Context, log *slog.Logger, fn func(context.Context, *client.Client) error) error {
	var sess *session.Context
	err := withStore(ctx, func(ctx context.Context, st session.Store) error {
		var err error
		sess, err = session.Resolve(ctx, st, viper.GetString("session-key"))
		return err
	})
	if errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("%w (run 'actionflow login' first)", err)
	}
	if err != nil {
		return err
	}
	c := client.New(sess,
		client.WithLogger(log),
		client.WithRPCOptions(rpc.WithTimeout(viper.GetDuration("timeout"))),
	)
	return fn(ctx, c)
}

// withController loads the workflow of the configured product and hands fn the controller.
func withController(ctx context.Context, fn func(context.Context, *controller.Controller) error) error {
	productID := viper.GetInt64("product")
	if productID <= 0 {
		return errors.New("a product id is required (--product or ACTIONFLOW_PRODUCT)")
	}
	log := logger()
	return withClient(ctx, log, func(ctx context.Context, c *client.Client) error {
		ctrl := controller.New(c, productID, log)
		if err := ctrl.Load(ctx); err != nil {
			return err
		}
		return fn(ctx, ctrl)
	})
}
