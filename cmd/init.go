package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/braxsimmons/Cliopa/internal/evaluator"
	"github.com/braxsimmons/Cliopa/internal/fetcher"
	"github.com/braxsimmons/Cliopa/internal/pipeline"
	"github.com/braxsimmons/Cliopa/internal/source"
	"github.com/braxsimmons/Cliopa/internal/store"
)

// syncEnv holds the clients and pipeline used by the sync, audit, serve
// and worker commands.
type syncEnv struct {
	Store    store.Store
	Source   source.Source
	Pipeline *pipeline.Pipeline
	closers  []func() error
}

// Close releases everything initSync opened, last opened first.
func (e *syncEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			zap.L().Warn("close failed", zap.Error(err))
		}
	}
}

// initMode selects which collaborators initSync builds.
type initMode int

const (
	modeSync  initMode = iota // source, fetcher and evaluator
	modeAudit                 // evaluator only
)

// initSync opens the store, the source and the evaluator and builds the
// Pipeline. Callers should defer env.Close().
func initSync(ctx context.Context, mode initMode) (*syncEnv, error) {
	env := &syncEnv{}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	env.Store = st
	env.closers = append(env.closers, st.Close)

	if err := st.Migrate(ctx); err != nil {
		env.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	ev, closeEval, err := evaluator.New(ctx, cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.closers = append(env.closers, closeEval)
	zap.L().Info("evaluator ready",
		zap.String("provider", ev.Provider()),
		zap.String("model", ev.Model()),
	)

	var (
		src source.Source
		f   fetcher.Fetcher
	)
	if mode == modeSync {
		if err := cfg.RequireSource(); err != nil {
			env.Close()
			return nil, err
		}
		sqlSrc, err := source.NewMSSQL(cfg.Source.DSN, source.OptionsFromConfig(cfg.Source))
		if err != nil {
			env.Close()
			return nil, err
		}
		src = sqlSrc
		env.Source = sqlSrc
		env.closers = append(env.closers, sqlSrc.Close)
		f = fetcher.NewHTTPFetcher(fetcher.OptionsFromConfig(cfg.Sync))
	}

	env.Pipeline = pipeline.New(cfg, st, src, f, ev)
	return env, nil
}

// initStore opens the configured destination store. Callers run Migrate.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cliopa.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		if err := cfg.RequireStore(); err != nil {
			return nil, err
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
