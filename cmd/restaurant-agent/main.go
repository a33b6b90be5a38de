// Command restaurant-agent serves menus and kitchen prep estimates from a
// SQLite catalogue over HTTP, gRPC and MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"food-router/internal/adapter/restaurant"
	"food-router/internal/adapter/workerserver"
	"food-router/internal/infra/config"
	"food-router/internal/infra/logger"
	"food-router/internal/infra/tracer"
)

const version = "0.1.0"

var (
	configPath string
	dbPath     string
	httpAddr   string
	stdio      bool
)

var rootCmd = &cobra.Command{
	Use:   "restaurant-agent",
	Short: "Restaurant worker agent (menu_query, prep_time_query)",
	Long: `restaurant-agent answers menu and prep-time questions for the router.
The catalogue lives in SQLite and is seeded with demo restaurants on first
start. With --stdio it speaks MCP on stdin/stdout instead of listening.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite path (overrides restaurant.db_path)")
	rootCmd.Flags().StringVar(&httpAddr, "addr", "", "HTTP listen address (overrides restaurant.server.http_addr)")
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
	if dbPath != "" {
		cfg.Restaurant.DBPath = dbPath
	}
	if httpAddr != "" {
		cfg.Restaurant.Server.HTTPAddr = httpAddr
	}
	if stdio && cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	log, closeLog, err := logger.New(cfg.Logger, "restaurant-agent")
	if err != nil {
		return err
	}
	defer closeLog()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer shutdownTracer(context.WithoutCancel(ctx))

	store, err := restaurant.OpenStore(cfg.Restaurant.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Restaurant.Seed {
		seeded, err := store.Seed(ctx)
		if err != nil {
			return err
		}
		if seeded {
			log.Info("restaurant catalogue seeded", "restaurants", restaurant.SeedNames())
		}
	}
	names, err := store.Names(ctx)
	if err != nil {
		return err
	}
	log.Info("restaurant catalogue ready", "path", cfg.Restaurant.DBPath, "restaurants", len(names))

	svc := restaurant.NewService(store, log)
	reg := workerserver.NewRegistry("restaurant", "Restaurant menus, prices and kitchen prep estimates", version, log)
	for _, s := range svc.Skills() {
		if err := reg.Register(s); err != nil {
			return err
		}
	}

	srv := workerserver.New(reg, cfg.Restaurant.Server, log, svc.Tools()...)
	if stdio {
		return srv.ServeStdio()
	}
	return srv.Start(ctx)
}
