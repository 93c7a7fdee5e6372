package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/molly/follow-the-crypto-backend/internal/config"
	"github.com/molly/follow-the-crypto-backend/internal/fec"
	"github.com/molly/follow-the-crypto-backend/internal/logger"
	"github.com/molly/follow-the-crypto-backend/internal/pipeline"
	"github.com/molly/follow-the-crypto-backend/internal/refdata"
	"github.com/molly/follow-the-crypto-backend/internal/store"
)

func main() {
	tasks := flag.String("tasks", "", "comma-separated step names to run; empty runs the full pipeline")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Cancel the run on interrupt so in-flight writes finish cleanly.
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	st, err := store.NewFirestore(ctx, cfg.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Firestore")
	}
	defer st.Close()

	data, err := refdata.Load(ctx, st)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load reference data")
	}

	state := pipeline.NewState(st, fec.NewClient(cfg.FECAPIKey), data, cfg)

	var only []string
	if *tasks != "" {
		for _, name := range strings.Split(*tasks, ",") {
			only = append(only, strings.TrimSpace(name))
		}
	}

	log.Info().
		Str("run_id", state.RunID).
		Str("cycle", cfg.CyclePeriod).
		Strs("tasks", only).
		Msg("Starting reconciliation run")

	if err := pipeline.Run(ctx, state, pipeline.DefaultSteps(), only); err != nil {
		log.Error().Err(err).Msg("Run finished with failed steps")
		os.Exit(1)
	}
	log.Info().Str("run_id", state.RunID).Msg("Run complete")
}
