package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// ListScenarios returns the catalog. Drafts are visible to admins asking for
// them; everyone else sees published scenarios only.
func (h *Handler) ListScenarios(c *gin.Context) {
	includeDrafts := c.Query("include_drafts") == "true" && auth.IsAdmin(c)

	scenarios, err := h.svc.ListScenarios(includeDrafts)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": scenarios})
}

// GetScenario returns one scenario by code.
func (h *Handler) GetScenario(c *gin.Context) {
	sc, err := h.svc.GetScenario(c.Param("code"))
	if err != nil {
		respondErr(c, err)
		return
	}
	if !sc.Published && !auth.IsAdmin(c) {
		respondErr(c, domain.ErrScenarioNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario": sc})
}

// CreateScenario stores an authored scenario (admin).
func (h *Handler) CreateScenario(c *gin.Context) {
	var sc domain.Scenario
	if err := c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.svc.CreateScenario(&sc); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"scenario": sc})
}

// UpdateScenario overwrites a scenario definition (admin). Running sessions
// keep the copy embedded at creation.
func (h *Handler) UpdateScenario(c *gin.Context) {
	var sc domain.Scenario
	if err := c.ShouldBindJSON(&sc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sc.Code = c.Param("code")
	if err := h.svc.UpdateScenario(&sc); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario": sc})
}

// DeleteScenario removes a scenario definition (admin).
func (h *Handler) DeleteScenario(c *gin.Context) {
	if err := h.svc.DeleteScenario(c.Param("code")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PublishScenario flips the publication flag (admin).
func (h *Handler) PublishScenario(c *gin.Context) {
	var body struct {
		Published bool `json:"published"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sc, err := h.svc.SetScenarioPublished(c.Param("code"), body.Published)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scenario": sc})
}
