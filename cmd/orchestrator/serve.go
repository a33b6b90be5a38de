package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"food-router/internal/adapter/channel"
	"food-router/internal/infra/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides gateway.addr)")
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Gateway.Addr = serveAddr
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("orchestrator starting", "workers", a.workerNames(), "busy_policy", cfg.Session.BusyPolicy)

	srv := channel.NewHTTPServer(cfg.Gateway, a.agent, channel.Health{
		Workers:  a.workerStatus,
		Sessions: a.sessionStats,
	}, a.logger)
	err = srv.Start(ctx)
	a.logger.Info("orchestrator stopped", "sessions", a.sessions.Len())
	return err
}
