package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL string
	apiKey string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fieldopsctl",
		Short:         "Inspect a running fieldopsd through its admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&apiURL, "api-url", envOr("FIELDOPS_API_URL", "http://localhost:8080"), "daemon URL")
	root.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("FIELDOPS_API_KEY"), "API key for authentication")

	root.AddCommand(healthCmd(), ticketsCmd(), subscriptionsCmd(), logsCmd(), configCmd())
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
