package main

import (
	"fmt"
	"os"

	"github.com/Rrens/flight-support/internal/config"
	"github.com/Rrens/flight-support/internal/logging"
	"github.com/Rrens/flight-support/migrations"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	closer, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if cfg.Index.Driver == config.IndexDriverMemory {
		log.Info().Msg("Memory index has no migrations")
		return
	}

	url, err := cfg.MigrationURL()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build migration URL")
	}

	log.Info().Str("driver", cfg.Index.Driver).Msg("Applying migrations")
	if err := migrations.Run(url, cfg.Index.Driver); err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
