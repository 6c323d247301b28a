package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// respondErr maps domain errors onto HTTP statuses. The stable machine code
// rides along so clients do not parse messages.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrScenarioNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotAuthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSessionTerminal),
		errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrStaleVersion),
		errors.Is(err, domain.ErrScenarioUnpublished):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidScenario),
		errors.Is(err, domain.ErrUnknownCommand),
		errors.Is(err, domain.ErrInvalidPayload):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"error": err.Error(), "code": domain.ErrorCode(err)})
}

func limitQuery(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
