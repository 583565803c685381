package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ptes-fixtures/seeder/internal/config"
	"github.com/ptes-fixtures/seeder/internal/db"
	"github.com/ptes-fixtures/seeder/internal/generator"
	"github.com/ptes-fixtures/seeder/internal/logging"
	"github.com/ptes-fixtures/seeder/internal/notify"
	"github.com/ptes-fixtures/seeder/internal/sample"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Optional YAML config file")
	seed := flag.Uint64("seed", 0, "Random seed, overrides SEED (0 keeps the configured seed)")
	verify := flag.Bool("verify", false, "Re-read the fixture after generation and check its consistency")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No configured logger yet
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	// Interrupts cancel the stage in progress
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *verify, log); err != nil {
		stop()
		log.Fatal().Err(err).Msg("Reset and data generation failed")
	}
}

func run(ctx context.Context, cfg *config.Config, verify bool, log zerolog.Logger) error {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	store, err := db.Open(connectCtx, cfg.DatabaseURI, cfg.DatabaseName)
	cancel()
	if err != nil {
		return err
	}
	defer store.Close()

	log.Info().
		Str("uri", db.Redact(cfg.DatabaseURI)).
		Str("database", cfg.DatabaseName).
		Msg("Connected to database")

	src := sample.New(cfg.Seed)
	summary, err := generator.New(store, cfg, src, log).Run(ctx)
	if err != nil {
		return err
	}

	if verify {
		report, err := generator.Verify(ctx, store, cfg)
		if err != nil {
			return err
		}
		if !report.OK() {
			for _, v := range report.Violations {
				log.Error().Msg(v)
			}
			return fmt.Errorf("fixture verification found %d violations", report.Total)
		}
		log.Info().Msg("Fixture verified")
	}

	if cfg.NotifyAMQPURL != "" {
		publishSeeded(ctx, cfg, summary, log)
	}
	return nil
}

// publishSeeded announces the run. The fixture is already committed, so a
// failure here is only logged.
func publishSeeded(ctx context.Context, cfg *config.Config, summary *generator.Summary, log zerolog.Logger) {
	publisher, err := notify.Dial(cfg.NotifyAMQPURL, cfg.NotifyExchange)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to publish completion event")
		return
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	event := notify.NewSeededEvent(cfg.DatabaseName, summary.Seed, summary.Counts, time.Now())
	if err := publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Msg("Failed to publish completion event")
		return
	}
	log.Info().Str("exchange", cfg.NotifyExchange).Msg("Published completion event")
}
