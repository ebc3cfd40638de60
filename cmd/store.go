package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/store"
	"github.com/mapyard/marker-ingest/pkg/geocode"
)

// initStore opens the configured backend. Callers own the returned store and
// must Close it.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(ctx, cfg.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		zap.L().Debug("store: sqlite opened", zap.String("path", cfg.Store.SQLite.Path))
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.Postgres.DSN, &store.PoolConfig{
			MaxConns: cfg.Store.Postgres.MaxConns,
			MinConns: cfg.Store.Postgres.MinConns,
		})
		if err != nil {
			return nil, err
		}
		zap.L().Debug("store: postgres pool ready")
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// initGeocoder builds the resolver from config.
func initGeocoder() geocode.Client {
	return geocode.NewResolver(
		geocode.WithEndpoints(cfg.Geocode.PrimaryURL, cfg.Geocode.FallbackURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
		geocode.WithMinInterval(cfg.Geocode.MinInterval()),
		geocode.WithHTTPClient(&http.Client{Timeout: cfg.Geocode.Timeout()}),
	)
}
