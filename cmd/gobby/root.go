package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobby-dev/gobby/internal/config"
	"github.com/gobby-dev/gobby/internal/storage/sqlite"
	"github.com/gobby-dev/gobby/internal/tasksync"
	"github.com/gobby-dev/gobby/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// app holds the wired runtime shared by all commands.
type app struct {
	cfg    config.Config
	store  *sqlite.SQLiteStore
	engine *tasksync.Engine
	flush  *tasksync.FlushManager
	log    *slog.Logger
}

var (
	theApp   *app
	flagDir  string
	flagJSON bool
)

var rootCmd = &cobra.Command{
	Use:           "gobby",
	Short:         "Dependency-aware task tracking that travels with your repo",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipSetup(cmd) {
			return nil
		}
		return setup(cmd.Context())
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if theApp == nil {
			return nil
		}
		return teardown(cmd.Context())
	},
}

// skipSetup reports whether a command runs without an initialized store.
func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "init", "help", "version", "completion":
		return true
	}
	return false
}

// setup loads config, opens the store, and runs the startup import so the
// store reflects whatever the last git pull brought in. A failed startup
// import is fatal: operating on known-stale state hands out wrong answers.
func setup(ctx context.Context) error {
	dir := flagDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if os.Getenv("GOBBY_DEBUG") != "" {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := telemetry.Init(ctx, Version); err != nil {
		log.Warn("telemetry init failed", "error", err)
	}

	store, err := sqlite.New(cfg.DBPath, cfg.IDPrefix)
	if err != nil {
		return err
	}

	engine := tasksync.NewEngine(store, cfg.ExportPath, log)
	flush := tasksync.NewFlushManager(engine, cfg.FlushInterval, log)
	flush.Start(ctx)
	store.RegisterChangeListener(func() {
		engine.MarkDirty()
		flush.MarkDirty()
	})

	if _, err := engine.Import(ctx); err != nil {
		store.Close()
		return err
	}

	theApp = &app{cfg: cfg, store: store, engine: engine, flush: flush, log: log}
	return nil
}

// teardown flushes pending exports and releases resources.
func teardown(ctx context.Context) error {
	theApp.flush.Stop()
	if err := telemetry.Shutdown(ctx); err != nil {
		theApp.log.Warn("telemetry shutdown failed", "error", err)
	}
	return theApp.store.Close()
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "project directory (default: working directory)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "machine-readable JSON output")
}
