// Package bootstrap assembles the HTTP server from its parts.
package bootstrap

import (
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/orbitalops/satops-backend/internal/api/http"
	"github.com/orbitalops/satops-backend/internal/api/http/middleware"
	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/gateway"
	"github.com/orbitalops/satops-backend/internal/metrics"
	missionhttp "github.com/orbitalops/satops-backend/internal/mission/http"
	"github.com/orbitalops/satops-backend/internal/mission/service"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	AuthClient  *fbauth.Client // nil enables the header-based dev identity
	Redis       *redis.Client
	DB          *pgxpool.Pool // nil when no leaderboard database is configured
	Mission     *service.MissionService
	Hub         *gateway.Hub
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Role"},
		MaxAge:          12 * time.Hour,
	}))
	r.Use(middleware.RequestID())
	r.Use(metrics.Middleware())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Redis, dep.DB)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api/v1")
	if dep.AuthClient != nil {
		api.Use(auth.FirebaseAuth(dep.AuthClient))
	} else {
		api.Use(auth.DevAuth())
	}

	missionHandler := missionhttp.New(dep.Mission)
	missionHandler.Register(api)
	missionHandler.RegisterAdmin(api.Group("/admin", auth.RequireAdmin()))

	gateway.NewHandler(dep.Hub, dep.Mission).Register(api)

	return r
}
