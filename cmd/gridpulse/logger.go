package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gridpulse/internal/client"
	"github.com/user/gridpulse/internal/datalogger"
	"github.com/user/gridpulse/internal/storage"
	"github.com/user/gridpulse/internal/util"
)

var loggerMasterURL string

var loggerCmd = &cobra.Command{
	Use:   "logger",
	Short: "Run the data logger",
	Long: `Run the monitoring collaborator: poll the master's status endpoint on
the log interval and archive the stream to a JSONL status log and a
SQLite database under the data directory.`,
	RunE: runLogger,
}

func init() {
	loggerCmd.Flags().StringVar(&loggerMasterURL, "master-url", "",
		"master base URL (overrides config)")
}

func runLogger(cmd *cobra.Command, args []string) error {
	util.InitLogger(cfg.LogLevel, "data-logger", cfg.LogFile)
	if loggerMasterURL != "" {
		cfg.MasterURL = loggerMasterURL
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer db.Close()

	l, err := datalogger.New(cfg, client.New(cfg.MasterURL), db)
	if err != nil {
		return err
	}

	util.Info("Data logger watching %s", cfg.MasterURL)
	l.Run(ctx)
	return nil
}
