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

// Repairs registry-track starvation: buildings whose owner enrichment set
// the shared blocking timestamp before the registry check ever ran stay
// invisible to the registry track forever. This clears the timestamp on
// exactly those rows. Run it when check-buildings reports starved rows.
func main() {
	var dryRun = flag.Bool("dry-run", false, "Report how many rows would be repaired without writing")
	flag.Parse()

	cfg := config.Load()

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "reset-track")
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

	ctx := context.Background()

	if *dryRun {
		stats, err := repo.EnrichmentStats(ctx)
		if err != nil {
			log.Fatalf("Failed to collect stats: %v", err)
		}
		fmt.Printf("Dry run: %d buildings are registry-starved (blocking timestamp set, registry never completed)\n",
			stats.RegistryStarved)
		return
	}

	svc := service.NewEnrichmentService(repo, nil, zlog)
	repaired, err := svc.ResetRegistryEligibility(ctx)
	if err != nil {
		log.Fatalf("Reset failed: %v", err)
	}

	fmt.Printf("Repaired %d buildings: blocking timestamp cleared, eligibility re-opened\n", repaired)
}
