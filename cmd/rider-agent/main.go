// Command rider-agent estimates delivery distance and time between two
// addresses, using the Google Routes API or an offline demo estimator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"food-router/internal/adapter/rider"
	"food-router/internal/adapter/workerserver"
	"food-router/internal/infra/config"
	"food-router/internal/infra/logger"
	"food-router/internal/infra/tracer"
)

const version = "0.1.0"

var (
	configPath string
	provider   string
	httpAddr   string
	stdio      bool
)

var rootCmd = &cobra.Command{
	Use:   "rider-agent",
	Short: "Rider worker agent (eta_query)",
	Long: `rider-agent answers delivery ETA questions for the router.
Set rider.provider to "google" and GOOGLE_MAPS_API_KEY to use live routes;
the default "demo" provider works offline. With --stdio it speaks MCP on
stdin/stdout instead of listening.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.Flags().StringVar(&provider, "provider", "", "route provider: google or demo (overrides rider.provider)")
	rootCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address (overrides rider.server.http_addr)")
	rootCmd.Flags().BoolVar(&stdio, "stdio", false, "serve MCP over stdin/stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if provider != "" {
		cfg.Rider.Provider = provider
	}
	if httpAddr != "" {
		cfg.Rider.Server.HTTPAddr = httpAddr
	}
	if stdio && cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	log, closeLog, err := logger.New(cfg.Logger, "rider-agent")
	if err != nil {
		return err
	}
	defer closeLog()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer(context.WithoutCancel(ctx))

	est, err := rider.NewEstimator(cfg.Rider, nil, log)
	if err != nil {
		return err
	}
	log.Info("route estimator ready", "provider", cfg.Rider.Provider)

	svc := rider.NewService(est, log)
	reg := workerserver.NewRegistry("rider", "Delivery distance and ETA between two addresses", version, log)
	for _, s := range svc.Skills() {
		if err := reg.Register(s); err != nil {
			return err
		}
	}

	srv := workerserver.New(reg, cfg.Rider.Server, log, svc.Tools()...)
	if stdio {
		return srv.ServeStdio()
	}
	return srv.Start(ctx)
}
