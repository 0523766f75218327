package main

import (
	"context"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/gridpulse/internal/outstation"
	"github.com/user/gridpulse/internal/util"
)

var (
	rtuID   int
	rtuSeed int64
)

var rtuCmd = &cobra.Command{
	Use:   "rtu",
	Short: "Run RTU outstation simulators",
	Long: `Run outstation simulators. By default every configured outstation is
served from this process; --id restricts it to a single RTU, matching
the one-container-per-RTU deployment.`,
	RunE: runRTU,
}

func init() {
	rtuCmd.Flags().IntVar(&rtuID, "id", 0, "run only the outstation with this id")
	rtuCmd.Flags().Int64Var(&rtuSeed, "seed", 0,
		"walk seed for reproducible runs (0 seeds from the clock)")
}

func runRTU(cmd *cobra.Command, args []string) error {
	util.InitLogger(cfg.LogLevel, "rtu", cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var servers []*outstation.Server
	for _, o := range cfg.Outstations {
		if rtuID != 0 && o.ID != rtuID {
			continue
		}

		seed := rtuSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		// offset by id so co-hosted RTUs walk independently
		rng := rand.New(rand.NewSource(seed + int64(o.ID)))

		srv := outstation.New(o, cfg.WalkSigmaPct, cfg.RefreshInterval, rng)
		if err := srv.Start(ctx, ""); err != nil {
			return err
		}
		servers = append(servers, srv)
	}

	if len(servers) == 0 {
		return fmt.Errorf("no outstation with id %d in configuration", rtuID)
	}

	<-ctx.Done()
	for _, srv := range servers {
		srv.Wait()
	}
	util.Info("RTU simulators stopped")
	return nil
}
