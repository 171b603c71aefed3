package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"songreel/internal/catalog"
	"songreel/internal/daemon"
	"songreel/internal/deps"
	"songreel/internal/logging"
	"songreel/internal/queue"
	"songreel/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the processing daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, ctx)
		},
	}
}

func runDaemon(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("songreel-%s.log", runID))
	logger, err := logging.New(logging.Options{
		Level:            cfg.Logging.Level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, status := range deps.Missing(deps.CheckBinaries(deps.Requirements(cfg))) {
		logger.Warn("required binary unavailable",
			logging.String("name", status.Name),
			logging.String("detail", status.Detail),
		)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}

	var catalogStore *catalog.Store
	if cfg.Matching.Enabled {
		catalogStore, err = catalog.Open(cfg)
		if err != nil {
			// A broken catalog disables clip reuse but never blocks the queue.
			logger.Warn("clip catalog unavailable, reuse disabled", logging.Error(err))
			catalogStore = nil
		} else {
			defer catalogStore.Close()
		}
	}

	manager, err := workflow.NewManager(cfg, store, catalogStore, logger)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create workflow manager: %w", err)
	}

	d, err := daemon.New(cfg, store, logger, manager)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("songreel daemon shutting down")
	return nil
}
