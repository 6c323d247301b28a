package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// CreateSession opens a training session against a published scenario.
func (h *Handler) CreateSession(c *gin.Context) {
	var body struct {
		ScenarioCode string `json:"scenario_code"`
		CallSign     string `json:"call_sign"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ScenarioCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scenario_code is required"})
		return
	}

	sess, err := h.svc.CreateSession(auth.UserFirebaseUID(c), body.ScenarioCode, body.CallSign)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess})
}

// ListSessions returns the caller's sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(auth.UserFirebaseUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession returns one session the caller owns.
func (h *Handler) GetSession(c *gin.Context) {
	sess, err := h.svc.GetSession(c.Param("id"), auth.UserFirebaseUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// AcknowledgeBriefing confirms the operator read the mission briefing.
func (h *Handler) AcknowledgeBriefing(c *gin.Context) {
	sess, err := h.svc.AcknowledgeBriefing(c.Param("id"), auth.UserFirebaseUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// StartSession begins the simulation.
func (h *Handler) StartSession(c *gin.Context) {
	sess, err := h.svc.StartSession(c.Param("id"), auth.UserFirebaseUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// ResumeSession re-attaches to a running session after a disconnect or a
// server restart.
func (h *Handler) ResumeSession(c *gin.Context) {
	sess, err := h.svc.ResumeSession(c.Param("id"), auth.UserFirebaseUID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

// AbortSession fails the session with cause operator_abort.
func (h *Handler) AbortSession(c *gin.Context) {
	if err := h.svc.AbortSession(c.Param("id"), auth.UserFirebaseUID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AbandonSession marks the session abandoned.
func (h *Handler) AbandonSession(c *gin.Context) {
	if err := h.svc.AbandonSession(c.Param("id"), auth.UserFirebaseUID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TerminateSession is the admin kill switch.
func (h *Handler) TerminateSession(c *gin.Context) {
	if err := h.svc.TerminateSession(c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitCommand queues a command on the session's serialized pipeline and
// returns the adjudicated record.
func (h *Handler) SubmitCommand(c *gin.Context) {
	var req domain.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command name is required"})
		return
	}

	rec, err := h.svc.SubmitCommand(c.Request.Context(), c.Param("id"), auth.UserFirebaseUID(c), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"command": rec})
}

// CommandHistory returns recent command records, newest first.
func (h *Handler) CommandHistory(c *gin.Context) {
	recs, err := h.svc.CommandHistory(c.Param("id"), auth.UserFirebaseUID(c), limitQuery(c, 50))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"commands": recs})
}

// RecentTelemetry backfills recent frames in chronological order.
func (h *Handler) RecentTelemetry(c *gin.Context) {
	frames, err := h.svc.RecentTelemetry(c.Param("id"), auth.UserFirebaseUID(c), limitQuery(c, 100))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"frames": frames})
}

// RequestHint forwards a question to the tutoring service.
func (h *Handler) RequestHint(c *gin.Context) {
	var body struct {
		Question string `json:"question"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	answer, err := h.svc.RequestHint(c.Request.Context(), c.Param("id"), auth.UserFirebaseUID(c), body.Question)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}

// AdjustClock pauses, resumes or rescales the session clock.
func (h *Handler) AdjustClock(c *gin.Context) {
	var body struct {
		Action string `json:"action"` // pause|resume|set_scale
		Scale  string `json:"scale,omitempty"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	id, uid := c.Param("id"), auth.UserFirebaseUID(c)
	var err error
	switch body.Action {
	case "pause":
		err = h.svc.PauseSession(id, uid)
	case "resume":
		err = h.svc.ResumeClock(id, uid)
	case "set_scale":
		err = h.svc.SetTimeScale(id, uid, body.Scale)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be pause, resume or set_scale"})
		return
	}
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
