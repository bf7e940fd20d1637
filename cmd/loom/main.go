package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/graphloom/loom/internal/api"
	"github.com/graphloom/loom/internal/engine"
	"github.com/graphloom/loom/internal/expressions"
	"github.com/graphloom/loom/internal/logging"
	"github.com/graphloom/loom/internal/runs"
	"github.com/graphloom/loom/internal/scheduler"
	"github.com/graphloom/loom/internal/store"
	"github.com/graphloom/loom/internal/tools"
	"github.com/graphloom/loom/internal/validation"
	"github.com/graphloom/loom/internal/workflows"
	"github.com/graphloom/loom/pkg/mcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "loom:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	reg := tools.NewRegistry()
	if err := tools.RegisterBuiltins(reg, expressions.NewGoJQEngine()); err != nil {
		return fmt.Errorf("register builtin tools: %w", err)
	}
	if err := tools.RegisterReviewTools(reg); err != nil {
		return fmt.Errorf("register review tools: %w", err)
	}

	eng, err := engine.New(reg, store.NewEngineSink(st, logger), logger, engine.Config{
		DefaultMaxIterations: cfg.DefaultMaxIters,
	})
	if err != nil {
		return err
	}
	validator, err := validation.NewGraphValidator(reg)
	if err != nil {
		return err
	}
	launcher := runs.New(st, eng, validator, logger)

	if cfg.SeedBuiltinGraphs {
		if err := workflows.Seed(ctx, st, logger); err != nil {
			return fmt.Errorf("seed workflows: %w", err)
		}
	}

	// `loom mcp` serves the MCP stdio transport instead of HTTP.
	if len(os.Args) > 1 && os.Args[1] == "mcp" {
		srv := mcp.NewLoomServer(mcp.LoomServerDeps{
			Launcher: launcher,
			Store:    st,
			Logger:   logger,
		})
		logger.Info("mcp server listening on stdio")
		return srv.Serve(ctx)
	}

	if cfg.SchedulerEnabled {
		sched := scheduler.New(st, launcher, logger)
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	server := api.NewServer(api.Deps{Store: st, Launcher: launcher, Logger: logger})
	err = server.ListenAndServe(ctx, cfg.ListenAddr)
	launcher.Wait()
	return err
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(handler))
}
