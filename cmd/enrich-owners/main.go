package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"permit-data/internal/config"
	"permit-data/internal/database"
	"permit-data/internal/logger"
	"permit-data/internal/repository"
	"permit-data/internal/service"
	"permit-data/internal/store"
)

// Runs the owner enrichment pipeline once: select eligible buildings,
// resolve owner names from HPD contacts and DOB permit filings, write
// back, start the cool-down. Scheduling (cron) lives outside the binary.
func main() {
	var window = flag.Int("window", 0, "Cool-down window in days (default: ENRICH_WINDOW_DAYS, 30)")
	var limit = flag.Int("limit", 0, "Enrich at most N buildings this run (0 = all eligible)")
	var noCache = flag.Bool("no-cache", false, "Skip the redis civic-response cache")
	flag.Parse()

	cfg := config.Load()
	if *window <= 0 {
		*window = cfg.EnrichWindowDays
	}

	zlog, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "enrich-owners")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}
	defer db.Close()

	var kv store.KV
	if !*noCache {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			// cache is an optimization, not a dependency
			zlog.Warn("Redis unreachable, running without civic-response cache")
		} else {
			kv = store.NewRedisKV(redisClient)
		}
	}

	repo := repository.NewPostgresBuildingsRepo(db)
	repo.SetLogger(zlog)

	svc := service.NewEnrichmentService(repo, kv, zlog)
	svc.SetCivicClient(service.NewCivicClient(cfg.Civic.BaseURL, cfg.Civic.AppToken, zlog))

	result, err := svc.RunOwnerEnrichment(context.Background(), *window, *limit)
	if err != nil {
		log.Fatalf("Enrichment run failed: %v", err)
	}

	fmt.Printf("Run %s finished: selected=%d enriched=%d skipped=%d failed=%d\n",
		result.RunID, result.Selected, result.Enriched, result.Skipped, result.Failed)
}
