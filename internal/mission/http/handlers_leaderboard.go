package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitalops/satops-backend/internal/auth"
)

// Leaderboard returns the top completed runs for a scenario.
func (h *Handler) Leaderboard(c *gin.Context) {
	entries, err := h.svc.Leaderboard(c.Request.Context(), c.Param("scenario_code"), limitQuery(c, 20))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// MySummaries returns the caller's completed-run summaries.
func (h *Handler) MySummaries(c *gin.Context) {
	summaries, err := h.svc.UserSummaries(c.Request.Context(), auth.UserFirebaseUID(c), limitQuery(c, 20))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}
