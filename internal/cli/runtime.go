package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/journal/internal/config"
	applog "github.com/amanthanvi/journal/internal/log"
	"github.com/amanthanvi/journal/internal/storage"
	"github.com/amanthanvi/journal/internal/storage/sqlite"
)

var loadConfigFn = config.Load

// withStore loads configuration, opens the journal database and hands the
// store to fn. The store and logger are closed before returning.
func withStore(cmd *cobra.Command, deps commandDeps, fn func(context.Context, storage.Provider) error) error {
	timeout := 10 * time.Second
	if deps.globals != nil && deps.globals.Timeout > 0 {
		timeout = deps.globals.Timeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := loadConfigFn(loadOptionsFor(cmd, deps.globals))
	if err != nil {
		return mapCommandError(fmt.Errorf("load config: %w", err))
	}

	logger, err := applog.New(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		Compress:  cfg.Logging.Compress,
		Output:    cmd.ErrOrStderr(),
	})
	if err != nil {
		return mapCommandError(fmt.Errorf("init logging: %w", err))
	}
	defer logger.Close()

	opts := []sqlite.Option{
		sqlite.WithLogger(logger.Logger),
		sqlite.WithMaxOpenConns(cfg.Storage.MaxOpenConns),
		sqlite.WithBusyTimeout(cfg.Storage.BusyTimeout),
	}
	var store *sqlite.Store
	if cfg.Storage.URL != "" {
		store, err = sqlite.Open(ctx, cfg.Storage.URL, opts...)
	} else {
		store, err = sqlite.OpenFile(ctx, cfg.Storage.Path, opts...)
	}
	if err != nil {
		return mapCommandError(err)
	}
	defer store.Close()

	return mapCommandError(fn(ctx, store))
}

// Only flags the user actually set override env and file values.
func loadOptionsFor(cmd *cobra.Command, globals *GlobalOptions) config.LoadOptions {
	opts := config.LoadOptions{}
	if globals == nil {
		return opts
	}
	opts.ConfigPath = strings.TrimSpace(globals.ConfigPath)

	flags := cmd.Flags()
	if flags.Changed("db") {
		dbPath := strings.TrimSpace(globals.DatabasePath)
		opts.Flags.DatabasePath = &dbPath
	}
	if flags.Changed("log-level") {
		level := strings.TrimSpace(globals.LogLevel)
		opts.Flags.LogLevel = &level
	}
	return opts
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
