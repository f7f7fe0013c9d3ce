// Package cmd implements the command-line interface of authormigrate and
// wires configuration, the host store, matching, the migration engine and
// reporting together.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"authormigrate/internal/author"
	"authormigrate/internal/concurrent"
	"authormigrate/internal/config"
	"authormigrate/internal/filter"
	"authormigrate/internal/log"
	"authormigrate/internal/logging"
	"authormigrate/internal/metrics"
	"authormigrate/internal/migrate"
	"authormigrate/internal/parser"
	"authormigrate/internal/revert"
	"authormigrate/internal/store/mongostore"
	"authormigrate/internal/store/sqlstore"
)

// hostStore is everything a run needs from the destination.
type hostStore interface {
	author.AccountLookup
	filter.Source
	filter.TypeChecker
	concurrent.Updater
}

// openStore connects to the configured destination. Tests replace it.
var openStore = func(ctx context.Context, cfg *config.Config) (hostStore, func() error, error) {
	if cfg.Driver == config.DriverMongo {
		store, err := mongostore.Open(ctx, mongostore.Options{
			DSN:            cfg.DSN,
			Timeout:        cfg.Timeout,
			ValidPostTypes: cfg.ValidPostTypes,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return store.Close(context.Background()) }, nil
	}

	store, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:         cfg.Driver,
		DSN:            cfg.DSN,
		TablePrefix:    cfg.TablePrefix,
		ValidPostTypes: cfg.ValidPostTypes,
	})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func executeMigration(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	logger := logging.New(nil, cfg.LogLevel()).WithContext(map[string]interface{}{"run_id": runID})

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing store failed", "error", err.Error())
		}
	}()

	if cfg.IsRevert() {
		return executeRevert(ctx, cfg, store, logger, out)
	}

	if cfg.IsApply() {
		return executeApply(ctx, cfg, store, logger, out)
	}

	types := filter.ParseTypes(cfg.PostType)
	if err := filter.Verify(ctx, types, store); err != nil {
		return err
	}

	var def *author.MatchedAuthor
	if identifier := cfg.DefaultIdentifier(); identifier != "" {
		resolved, err := author.ResolveDefault(ctx, identifier, store)
		if err != nil {
			return err
		}
		def = &resolved
		logger.Info("default author resolved", "login", def.Login, "id", def.NewID)
	}

	users, err := parser.LoadExport(ctx, cfg.AuthorMap, parser.FetchOptions{Timeout: cfg.Timeout})
	if err != nil {
		return err
	}
	logger.Info("author map loaded", "source", cfg.AuthorMap, "users", len(users))

	table, err := author.BuildTable(ctx, users, store)
	if err != nil {
		return err
	}
	for _, user := range table.Unmapped() {
		logger.Debug("no local account", "login", user.Login, "email", user.Email, "id", user.ID)
	}

	records, err := filter.NewRecordDiscovery(store, types).Discover(ctx)
	if err != nil {
		return err
	}
	logger.Info("records discovered", "types", types.String(), "records", len(records))

	engine := migrate.NewEngine(table, store, migrate.Options{
		Default: def,
		DryRun:  cfg.DryRun,
		Workers: cfg.Workers,
		Rate:    cfg.Rate,
	}, logger)

	result, runErr := engine.Run(ctx, records)

	if err := writeEntryLog(cfg, runID, result, table, def); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		m := metrics.NewMetrics()
		m.Observe(result, table)
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics file %s: %w", cfg.MetricsFile, err)
		}
	}

	if runErr != nil {
		return runErr
	}

	if !cfg.ShouldLog() {
		return nil
	}
	return log.WriteReport(out, result.Stats, table, def)
}

func writeEntryLog(cfg *config.Config, runID string, result *migrate.Result, table *author.Table, def *author.MatchedAuthor) error {
	if cfg.LogFile == "" {
		return nil
	}

	entryLog, err := log.NewLogger(cfg, runID)
	if err != nil {
		return err
	}
	defer entryLog.Close()

	entryLog.LogResult(result, table, def)
	return entryLog.WriteLog()
}

func executeRevert(ctx context.Context, cfg *config.Config, store hostStore, logger logging.Logger, out io.Writer) error {
	manager := revert.NewRevertManager(store, concurrent.Options{
		Workers: cfg.Workers,
		Rate:    cfg.Rate,
		DryRun:  cfg.DryRun,
	}, logger)

	summary, err := manager.RevertFromLog(ctx, cfg.Revert)
	if err != nil {
		return err
	}
	if cfg.ShouldLog() {
		fmt.Fprintf(out, "Reverted %d records from %s (%d skipped).\n", summary.Applied, cfg.Revert, summary.Skipped)
	}
	return nil
}

func executeApply(ctx context.Context, cfg *config.Config, store hostStore, logger logging.Logger, out io.Writer) error {
	manager := revert.NewApplyManager(store, concurrent.Options{
		Workers: cfg.Workers,
		Rate:    cfg.Rate,
		DryRun:  cfg.DryRun,
	}, logger)

	summary, err := manager.ApplyFromLog(ctx, cfg.Apply)
	if err != nil {
		return err
	}
	if cfg.ShouldLog() {
		fmt.Fprintf(out, "Applied %d records from %s (%d skipped).\n", summary.Applied, cfg.Apply, summary.Skipped)
	}
	return nil
}
