// Command orchestrator runs the RoutingAgent: it parses chat messages, fans
// them out to the restaurant and rider agents and answers with one reply.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Food delivery request router",
	Long: `orchestrator routes food-delivery questions to the restaurant and rider
agents and combines their answers.

  orchestrator serve   run the chat API (HTTP and WebSocket)
  orchestrator chat    talk to the router from this terminal

Configuration is read from --config (YAML); FOODROUTER_* environment
variables override it. A missing file means the defaults, which expect the
restaurant agent on :9002 and the rider agent on :9001.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
