package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"turfhub/internal/config"
	"turfhub/internal/repository"
	"turfhub/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		configPath  = flag.String("config", "configs/config.yaml", "path to config.yaml")
		catalogPath = flag.String("catalog", "", "path to catalog.yaml (built-in catalog when empty)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver != "redis" {
		return fmt.Errorf("seeding requires the redis store driver, got %q", cfg.Store.Driver)
	}

	catalog := service.DefaultCatalog()
	if *catalogPath != "" {
		if catalog, err = service.LoadCatalog(*catalogPath); err != nil {
			return err
		}
	}

	client := repository.NewRedisClient(cfg.Redis)
	defer func() { _ = repository.Close(client) }()
	store := repository.NewRedisStore(client, cfg.Store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = store.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	seeder := service.NewSeeder(store, catalog, &logger)
	turfs, err := seeder.SeedTurfs(ctx)
	if err != nil {
		return fmt.Errorf("seed turfs: %w", err)
	}
	equipment, err := seeder.SeedEquipment(ctx)
	if err != nil {
		return fmt.Errorf("seed equipment: %w", err)
	}

	fmt.Printf("done: turfs=%t equipment=%t\n", turfs, equipment)
	return nil
}
