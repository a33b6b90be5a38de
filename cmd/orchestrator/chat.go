package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"food-router/internal/adapter/channel"
	"food-router/internal/adapter/tui"
	"food-router/internal/infra/config"
)

var (
	chatPlain   bool
	chatSession string
	chatStyle   string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the router from this terminal",
	Long: `chat runs one conversation against the configured worker agents.
It opens a full-screen view when stdin and stdout are terminals and falls
back to a line-oriented prompt otherwise (or with --plain).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runChat(ctx)
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use the line-oriented prompt")
	chatCmd.Flags().StringVar(&chatSession, "session", "", "conversation id (default: a new one)")
	chatCmd.Flags().StringVar(&chatStyle, "style", "auto", "markdown style: auto, dark, light, notty")
}

func runChat(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fullScreen := !chatPlain &&
		term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if fullScreen && (cfg.Logger.Output == "" || cfg.Logger.Output == "stderr" || cfg.Logger.Output == "stdout") {
		// Log lines would tear the alt screen.
		if err := os.MkdirAll(config.DataDir(), 0o700); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		cfg.Logger.Output = filepath.Join(config.DataDir(), "orchestrator.log")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}

	session := chatSession
	if session == "" {
		session = "cli-" + uuid.NewString()[:8]
	}
	if fullScreen {
		return tui.Run(ctx, a.agent, tui.Options{SessionID: session, Style: chatStyle})
	}
	return channel.RunREPL(ctx, a.agent, session, os.Stdin, os.Stdout)
}
