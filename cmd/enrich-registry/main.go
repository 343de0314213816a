package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"permit-data/internal/config"
	"permit-data/internal/database"
	"permit-data/internal/logger"
	"permit-data/internal/repository"
	"permit-data/internal/service"
)

// Runs the registry enrichment track once: buildings with a resolved
// owner name but no registry check get matched against the corporate
// registry, and the check is recorded either way.
func main() {
	var window = flag.Int("window", 0, "Cool-down window in days (default: ENRICH_WINDOW_DAYS, 30)")
	var limit = flag.Int("limit", 0, "Check at most N buildings this run (0 = all eligible)")
	flag.Parse()

	cfg := config.Load()
	if *window <= 0 {
		*window = cfg.EnrichWindowDays
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "enrich-registry")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	repo := repository.NewPostgresBuildingsRepo(db)
	repo.SetLogger(zlog)

	svc := service.NewEnrichmentService(repo, nil, zlog)
	svc.SetRegistryClient(service.NewRegistryClient(cfg.Registry.BaseURL, cfg.Registry.Token, zlog))

	result, err := svc.RunRegistryEnrichment(context.Background(), *window, *limit)
	if err != nil {
		log.Fatalf("Registry run failed: %v", err)
	}

	fmt.Printf("Run %s finished: selected=%d checked=%d skipped=%d failed=%d\n",
		result.RunID, result.Selected, result.Enriched, result.Skipped, result.Failed)
}
