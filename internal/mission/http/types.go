// Package http exposes the mission REST surface: scenario catalog, session
// lifecycle, command submission, telemetry backfill and the leaderboard.
package http

import (
	"github.com/orbitalops/satops-backend/internal/mission/service"
)

// Handler handles HTTP requests for the mission API.
type Handler struct {
	svc *service.MissionService
}

// New creates a new Handler.
func New(svc *service.MissionService) *Handler {
	return &Handler{svc: svc}
}
