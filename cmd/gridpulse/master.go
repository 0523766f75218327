package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gridpulse/internal/master"
	"github.com/user/gridpulse/internal/recorder"
	"github.com/user/gridpulse/internal/store"
	"github.com/user/gridpulse/internal/util"
	"github.com/user/gridpulse/internal/web"
)

var masterAPIPort int

var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Run the SCADA master station",
	Long: `Run the master: poll every configured outstation on the poll interval,
maintain connection state and measurement history, serve the query API
and the websocket live feed, and append each successful poll to the
measurement log.`,
	RunE: runMaster,
}

func init() {
	masterCmd.Flags().IntVar(&masterAPIPort, "api-port", 0,
		"query API port (overrides config)")
}

func runMaster(cmd *cobra.Command, args []string) error {
	util.InitLogger(cfg.LogLevel, "scada-master", cfg.LogFile)
	if masterAPIPort != 0 {
		cfg.APIPort = masterAPIPort
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	util.Info("Starting SCADA master %d", cfg.MasterID)

	st := store.New(cfg.HistoryCapacity, cfg.PowerFactor, cfg.Outstations)

	rec, err := recorder.New(cfg.RecordFile)
	if err != nil {
		return fmt.Errorf("failed to open measurement log: %w", err)
	}
	rec.Start(ctx)

	hub := web.NewHub()
	go hub.Run(ctx)

	engine := master.New(cfg, st, master.MultiSink{rec, hub})
	engine.Start(ctx)

	srv := web.NewServer(cfg, engine, st, hub)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("query API: %w", err)
	}

	// Context is done; let the loops drain within the grace period.
	engine.Wait()
	rec.Wait()
	util.Info("SCADA master stopped")
	return nil
}
