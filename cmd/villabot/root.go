package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "villabot",
	Short: "villabot is a bot runtime for the Villa chat platform",
	Long: `villabot connects bots to the Villa chat platform over the HTTP
callback (webhook) or the long-lived WebSocket transport, normalizes the
events it receives and optionally fans them out to a RabbitMQ exchange.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
