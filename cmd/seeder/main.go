// The seeder loads the built-in scenario catalog into Redis and, when a
// database is configured, prepares the leaderboard schema. Safe to run more
// than once: existing scenarios are overwritten with the current seeds.
package main

import (
	"context"
	"errors"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/orbitalops/satops-backend/config"
	"github.com/orbitalops/satops-backend/internal/db"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
	"github.com/orbitalops/satops-backend/internal/mission/scenario"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	defer rdb.Close()

	scenarios := repository.NewScenarioRepository(rdb)
	for _, sc := range scenario.Seeds() {
		sc := sc
		if err := scenarios.Create(&sc); err != nil {
			if !errors.Is(err, domain.ErrDuplicateCode) {
				log.Fatalf("seed %s: %v", sc.Code, err)
			}
			if err := scenarios.Update(&sc); err != nil {
				log.Fatalf("refresh %s: %v", sc.Code, err)
			}
			log.Printf("refreshed scenario %s", sc.Code)
			continue
		}
		log.Printf("seeded scenario %s", sc.Code)
	}

	if cfg.Database.DSN != "" {
		database, err := db.Open(ctx, cfg.Database.DSN)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer database.Close()

		if err := repository.NewSummaryRepository(database.Pool).EnsureSchema(ctx); err != nil {
			log.Fatalf("database schema: %v", err)
		}
		log.Println("leaderboard schema ready")
	}

	log.Println("seeding complete")
}
