package zepsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/go-zepsync/pkg/config"
	"github.com/soundprediction/go-zepsync/pkg/graphstore"
)

// newStore builds the backend named by cfg.Store.Backend. The memory backend
// loads its snapshot into graphID.
func newStore(ctx context.Context, cfg *config.Config, graphID string, logger *slog.Logger) (graphstore.Client, error) {
	if err := cfg.CheckCredentials(); err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case graphstore.BackendZep:
		client, err := graphstore.NewZepClient(&graphstore.ZepConfig{
			APIKey:            cfg.Zep.APIKey,
			BaseURL:           cfg.Zep.BaseURL,
			Timeout:           cfg.Zep.Timeout,
			RequestsPerSecond: cfg.Zep.RequestsPerSecond,
			Burst:             cfg.Zep.Burst,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	case graphstore.BackendNeo4j:
		store, err := graphstore.NewNeo4jStore(&graphstore.Neo4jConfig{
			URI:      cfg.Database.URI,
			Username: cfg.Database.Username,
			Password: cfg.Database.Password,
			Database: cfg.Database.Database,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		return store, nil

	case graphstore.BackendPostgres:
		store, err := graphstore.ConnectPostgres(ctx, cfg.Postgres.URL, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				store.Close(context.WithoutCancel(ctx))
				return nil, err
			}
		}
		return store, nil

	case graphstore.BackendMemory:
		store := graphstore.NewMemoryStore()
		if cfg.Memory.SnapshotPath != "" {
			if graphID == "" {
				return nil, fmt.Errorf("memory snapshot %s needs a graph id to load into", cfg.Memory.SnapshotPath)
			}
			if err := store.LoadSnapshotFile(graphID, cfg.Memory.SnapshotPath); err != nil {
				return nil, err
			}
		}
		return store, nil
	}

	return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
}
