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

// Prints the ids the enrichment workers would pick up, without touching
// anything. Handy for sizing a run before kicking off enrich-owners.
func main() {
	var window = flag.Int("window", 0, "Cool-down window in days (default: ENRICH_WINDOW_DAYS, 30)")
	var track = flag.String("track", "owner", "Enrichment track: 'owner' or 'registry'")
	var limit = flag.Int("limit", 0, "Print at most N ids (0 = all)")
	flag.Parse()

	cfg := config.Load()
	if *window <= 0 {
		*window = cfg.EnrichWindowDays
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "select-eligible")
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
	svc := service.NewEnrichmentService(repo, nil, zlog)

	ctx := context.Background()
	var ids []int64
	switch *track {
	case "owner":
		ids, err = svc.SelectEligible(ctx, *window)
	case "registry":
		ids, err = svc.SelectEligibleRegistry(ctx, *window)
	default:
		log.Fatalf("Unknown track %q (want 'owner' or 'registry')", *track)
	}
	if err != nil {
		log.Fatalf("Selection failed: %v", err)
	}

	total := len(ids)
	if *limit > 0 && len(ids) > *limit {
		ids = ids[:*limit]
	}

	fmt.Printf("Track: %s | Window: %d days | Eligible: %d\n", *track, *window, total)
	for _, id := range ids {
		fmt.Println(id)
	}
}
