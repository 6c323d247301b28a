package http

import "github.com/gin-gonic/gin"

// Register mounts the operator-facing mission routes.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/scenarios", h.ListScenarios)
	rg.GET("/scenarios/:code", h.GetScenario)

	rg.POST("/sessions", h.CreateSession)
	rg.GET("/sessions", h.ListSessions)
	rg.GET("/sessions/:id", h.GetSession)
	rg.POST("/sessions/:id/briefing-ack", h.AcknowledgeBriefing)
	rg.POST("/sessions/:id/start", h.StartSession)
	rg.POST("/sessions/:id/resume", h.ResumeSession)
	rg.POST("/sessions/:id/abort", h.AbortSession)
	rg.POST("/sessions/:id/abandon", h.AbandonSession)

	rg.POST("/sessions/:id/commands", h.SubmitCommand)
	rg.GET("/sessions/:id/commands", h.CommandHistory)
	rg.GET("/sessions/:id/telemetry", h.RecentTelemetry)
	rg.POST("/sessions/:id/hint", h.RequestHint)
	rg.POST("/sessions/:id/clock", h.AdjustClock)

	rg.GET("/leaderboard/:scenario_code", h.Leaderboard)
	rg.GET("/me/summaries", h.MySummaries)
}

// RegisterAdmin mounts scenario authoring and the session kill switch. The
// caller is expected to gate the group with the admin middleware.
func (h *Handler) RegisterAdmin(rg *gin.RouterGroup) {
	rg.POST("/scenarios", h.CreateScenario)
	rg.PUT("/scenarios/:code", h.UpdateScenario)
	rg.DELETE("/scenarios/:code", h.DeleteScenario)
	rg.POST("/scenarios/:code/publish", h.PublishScenario)

	rg.POST("/sessions/:id/terminate", h.TerminateSession)
}
