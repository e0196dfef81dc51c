package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/weekplan/api"
	"github.com/warp/weekplan/config"
	"github.com/warp/weekplan/logging"
	"github.com/warp/weekplan/store/memory"
	"github.com/warp/weekplan/store/redis"
	"github.com/warp/weekplan/store/sqlite"
	"github.com/warp/weekplan/week"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	loc        *time.Location
	store      api.Store
	closeStore func() error
	reconciler *week.Reconciler
	weeks      *week.Service
}

// newApp loads configuration, applies flag overrides and opens the store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.LogConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	opts := []week.Option{
		week.WithLogger(log.With().Str("component", "reconciler").Logger()),
		week.WithLocation(loc),
	}
	if seed, pinned, _ := cfg.SeedDate(loc); pinned {
		opts = append(opts, week.WithSeedDate(seed))
	}
	reconciler := week.NewReconciler(store, opts...)

	return &app{
		cfg:        cfg,
		log:        log,
		loc:        loc,
		store:      store,
		closeStore: closeStore,
		reconciler: reconciler,
		weeks:      week.NewService(store, reconciler, loc),
	}, nil
}

func (a *app) Close() error {
	return a.closeStore()
}

func applyFlags(cfg *config.Config) {
	if flagDriver != "" {
		cfg.Store.Driver = flagDriver
	}
	if flagDBPath != "" {
		cfg.Store.SQLitePath = flagDBPath
	}
	if flagRedisURL != "" {
		cfg.Store.RedisURL = flagRedisURL
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	if flagLocation != "" {
		cfg.Server.Location = flagLocation
	}
}

// openStore opens the configured backend.
func openStore(ctx context.Context, sc config.StoreConfig) (api.Store, func() error, error) {
	switch sc.Driver {
	case config.DriverMemory:
		return memory.New(), func() error { return nil }, nil
	case config.DriverRedis:
		s, err := redis.New(ctx, sc.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		if sc.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(sc.SQLitePath), 0755); err != nil {
				return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		s, err := sqlite.New(sc.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		return s, s.Close, nil
	}
}
