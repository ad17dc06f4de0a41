package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldops-io/fieldops/internal/config"
	"github.com/fieldops-io/fieldops/internal/logbuf"
)

var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:           "fieldopsd",
		Short:         "Delivery issue ticketing service with DA, supervisor and client bots",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the bots, the reminder scheduler and the admin API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply (or roll back) ticket database migrations",
		RunE:  runMigrate,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the fieldopsd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	cfgFile  string
	verbose  bool
	downStep int
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config JSON file (default: FIELDOPS_* environment)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	migrateCmd.Flags().IntVar(&downStep, "down", 0, "roll back this many migrations instead of applying")
	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("fieldopsd failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging writes JSON to stdout and keeps recent records for /api/logs.
func setupLogging() (*slog.Logger, *logbuf.Buffer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	buf := logbuf.New(2000)
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(logbuf.NewHandler(jsonHandler, buf))
	slog.SetDefault(logger)
	return logger, buf
}

func loadConfig() (*config.Config, error) {
	config.LoadDotEnv(".env", "../.env")
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
