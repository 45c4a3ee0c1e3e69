package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"submux/internal/daemon"
	"submux/internal/logging"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind != "" {
				cfg.API.Bind = bind
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: "*.log*",
				Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
			})

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			logger.Info("submux listening",
				logging.String(logging.FieldEventType, "serve_ready"),
				logging.String("address", d.Addr()),
				logging.String("config", ctx.configPath),
			)

			<-signalCtx.Done()
			logger.Info("submux shutting down", logging.String(logging.FieldEventType, "serve_shutdown"))
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override api.bind for this run")
	return cmd
}
