// Command saturate runs one bounded enrichment pass against the configured
// store and prints the tally.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/core"
)

func main() {
	iterations := flag.Int("iterations", 3, "maximum saturation iterations")
	cfgPath := flag.String("config", "config/config.toml", "path to config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Warn("config file not loaded, using defaults", zap.String("path", *cfgPath), zap.Error(err))
		cfg = config.Default()
	}
	cfg.ApplyEnv()

	lattice, cleanup, err := core.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to build engine", zap.Error(err))
	}
	defer cleanup()

	result, err := lattice.Saturate(context.Background(), *iterations)
	if err != nil {
		logger.Error("saturation aborted", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("iterations: %d\nsaturated:  %d\nno result:  %d\nskipped:    %d\nfailed:     %d\nmerged:     %d\n",
		result.Iterations, result.SaturatedCount, result.NoResult, result.Skipped, result.Failed, result.Merged)
}
