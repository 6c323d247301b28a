package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/orbitalops/satops-backend/config"
	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/bootstrap"
	"github.com/orbitalops/satops-backend/internal/db"
	"github.com/orbitalops/satops-backend/internal/gateway"
	"github.com/orbitalops/satops-backend/internal/maintenance"
	"github.com/orbitalops/satops-backend/internal/metrics"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
	"github.com/orbitalops/satops-backend/internal/mission/scoring"
	"github.com/orbitalops/satops-backend/internal/mission/service"
	"github.com/orbitalops/satops-backend/internal/mission/session"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
	"github.com/orbitalops/satops-backend/internal/tutor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

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

	// The leaderboard database is optional; the API degrades to
	// sessions-only when no DSN is configured.
	var (
		database  *db.DB
		summaries *repository.SummaryRepository
	)
	if cfg.Database.DSN != "" {
		database, err = db.Open(ctx, cfg.Database.DSN)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer database.Close()

		summaries = repository.NewSummaryRepository(database.Pool)
		if err := summaries.EnsureSchema(ctx); err != nil {
			log.Fatalf("database schema: %v", err)
		}
	} else {
		log.Println("DB_DSN not set; leaderboard disabled")
	}

	var authClient *fbauth.Client
	if cfg.Firebase.CredentialsPath != "" {
		authClient, err = auth.InitializeFirebase(&cfg.Firebase)
		if err != nil {
			log.Fatalf("firebase: %v", err)
		}
	} else {
		log.Println("FIREBASE_CREDENTIALS_PATH not set; using dev header identity")
	}

	scenarios := repository.NewScenarioRepository(rdb)
	sessions := repository.NewSessionRepository(rdb)
	commands := repository.NewCommandRepository(rdb)
	frames := repository.NewTelemetryRepository(rdb, cfg.Sim.TelemetryRetention)

	scorer, err := scoring.NewAggregator(scoring.Weights{
		CommandAccuracy:    cfg.Scoring.CommandAccuracyWeight,
		ResponseTime:       cfg.Scoring.ResponseTimeWeight,
		ResourceManagement: cfg.Scoring.ResourceManagementWeight,
		CompletionTime:     cfg.Scoring.CompletionTimeWeight,
		ErrorAvoidance:     cfg.Scoring.ErrorAvoidanceWeight,
	})
	if err != nil {
		log.Fatalf("scoring: %v", err)
	}

	modelCfg := subsystems.DefaultConfig()
	modelCfg.SocCriticalPct = cfg.Sim.SocCriticalPct
	modelCfg.SocCriticalRearmPct = cfg.Sim.SocCriticalRearmPct
	modelCfg.SocWarningPct = cfg.Sim.SocWarningPct
	modelCfg.SocWarningRearmPct = cfg.Sim.SocWarningRearmPct

	engineCfg := session.DefaultConfig()
	engineCfg.TelemetrySimIntervalSec = 1 / cfg.Sim.TelemetrySimHz
	engineCfg.TelemetryWallMinInterval = time.Duration(float64(time.Second) / cfg.Sim.TelemetryWallMaxHz)
	engineCfg.SocZeroGraceSec = cfg.Sim.SocZeroGraceSec

	hub := gateway.NewHub()
	cadence := time.Second / time.Duration(cfg.Sim.TickHz)
	stores := session.Stores{Sessions: sessions, Commands: commands, Telemetry: frames, Summaries: summaries}
	manager := session.NewManager(stores, hub, scorer, cadence, engineCfg, modelCfg)
	manager.OnCountChange(metrics.SetActiveSessions)

	tutorClient := tutor.NewClient(cfg.Tutor)
	svc := service.NewMissionService(scenarios, sessions, commands, frames, summaries, manager, tutorClient)

	sweeper := maintenance.NewSweeper(sessions, frames, svc,
		time.Duration(cfg.Sim.IdleAbandonMin)*time.Minute)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("sweeper: %v", err)
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "satops-backend",
		Version:     cfg.App.Version,
		AuthClient:  authClient,
		Redis:       rdb,
		DB:          poolOrNil(database),
		Mission:     svc,
		Hub:         hub,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("satops-backend listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	// Runners persist their state on Stop, so in-flight sessions resume
	// cleanly after a restart.
	sweeper.Stop()
	manager.Shutdown()
	log.Println("bye")
}

func poolOrNil(d *db.DB) *pgxpool.Pool {
	if d == nil {
		return nil
	}
	return d.Pool
}
