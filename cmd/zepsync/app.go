package zepsync

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/go-zepsync/pkg/config"
	"github.com/soundprediction/go-zepsync/pkg/graphstore"
	"github.com/soundprediction/go-zepsync/pkg/journal"
	"github.com/soundprediction/go-zepsync/pkg/logger"
	"github.com/soundprediction/go-zepsync/pkg/maintenance"
	"github.com/soundprediction/go-zepsync/pkg/record"
	"github.com/soundprediction/go-zepsync/pkg/telemetry"
	"github.com/soundprediction/go-zepsync/pkg/types"
)

// app holds what a command needs once configuration has been loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   graphstore.Client
	journal *journal.Journal
	errors  *sql.DB
	graph   string

	closers []func() error
}

// loadConfig reads the env file, the config file and the environment, then
// applies the persistent flags.
func loadConfig() (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := config.ReadConfigFile(v, cfgFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFrom(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if storeFlag != "" {
		cfg.Store.Backend = storeFlag
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newApp sets up logging, telemetry and the journal. When withStore is set it
// also connects to the graph backend. When needGraph is set a missing graph id
// fails here, before anything touches the network.
func newApp(cmd *cobra.Command, withStore, needGraph bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, graph: cfg.ResolveGraphID(graphIDFlag)}
	if needGraph && a.graph == "" {
		return nil, fmt.Errorf("%w: pass --graph-id or set ZEP_GRAPH_ID or ZEP_USER_ID", maintenance.ErrGraphIDRequired)
	}

	handler, logFile, err := logger.NewHandler(cmd.ErrOrStderr(), logger.ParseLevel(cfg.Log.Level), logger.FileConfig{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	a.closers = append(a.closers, logFile.Close)

	if cfg.Telemetry.DuckDBPath != "" {
		db, err := telemetry.Open(cfg.Telemetry.DuckDBPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.errors = db
		a.closers = append(a.closers, db.Close)

		tracked, err := telemetry.NewDuckDBHandler(handler, db)
		if err != nil {
			a.Close()
			return nil, err
		}
		handler = tracked
	}

	a.logger = slog.New(handler)
	slog.SetDefault(a.logger)

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, cfg.Journal.TTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.journal = j
		a.closers = append(a.closers, j.Close)
	}

	if withStore {
		store, err := newStore(cmd.Context(), cfg, a.graph, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		a.closers = append(a.closers, func() error {
			return store.Close(context.WithoutCancel(cmd.Context()))
		})
	}

	return a, nil
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.logger != nil {
			a.logger.Warn("Failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

// operator builds a maintenance operator that prompts on in/out.
func (a *app) operator(in io.Reader, out io.Writer) *maintenance.Operator {
	opts := []maintenance.Option{
		maintenance.WithLogger(a.logger),
		maintenance.WithListLimit(a.cfg.Maintenance.ListLimit),
		maintenance.WithConfirmer(maintenance.NewConsoleConfirmer(in, out)),
		maintenance.WithProgress(func(kind record.Kind, index, total int, uuid string, deleted bool) {
			if deleted {
				fmt.Fprintf(out, "Deleted %s %d/%d: UUID=%s\n", kind, index, total, uuid)
			}
		}),
	}
	if a.journal != nil {
		opts = append(opts, maintenance.WithJournal(a.journal))
	}
	return maintenance.NewOperator(a.store, opts...)
}

// commandContext tags ctx with the command path and graph id for telemetry.
func commandContext(cmd *cobra.Command, graphID string) context.Context {
	ctx := context.WithValue(cmd.Context(), types.ContextKeyCommand, cmd.CommandPath())
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "cli")
	if graphID != "" {
		ctx = context.WithValue(ctx, types.ContextKeyGraphID, graphID)
	}
	return ctx
}

