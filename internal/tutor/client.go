// Package tutor adapts the external tutoring service to the mission API.
// The upstream is best-effort: responses are bounded by a hard deadline and
// a canned fallback keeps the operator unblocked when the service is down.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/orbitalops/satops-backend/config"
	"github.com/orbitalops/satops-backend/internal/metrics"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// FallbackAnswer is returned when the tutoring service cannot be reached
// within the deadline. It never counts as a hint.
const FallbackAnswer = "The tutor is unavailable right now. Re-read the mission briefing and the current step objective, then try again."

const (
	initialBackoff = 250 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

// Client talks to the tutoring service. It implements the mission service's
// HintProvider contract.
type Client struct {
	baseURL    string
	http       *http.Client
	deadline   time.Duration
	maxRetries int
}

// NewClient builds a tutor client from configuration.
func NewClient(cfg config.TutorConfig) *Client {
	deadline := time.Duration(cfg.DeadlineSec) * time.Second
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		http:       &http.Client{Timeout: deadline},
		deadline:   deadline,
		maxRetries: cfg.MaxRetries,
	}
}

type askRequest struct {
	ScenarioCode string  `json:"scenario_code"`
	ScenarioType string  `json:"scenario_type"`
	StepOrdinal  int     `json:"step_ordinal"`
	StepTitle    string  `json:"step_title,omitempty"`
	ElapsedSec   float64 `json:"elapsed_sec"`
	Question     string  `json:"question"`
}

type askResponse struct {
	OK     bool   `json:"ok"`
	Answer string `json:"answer"`
	IsHint bool   `json:"is_hint"`
}

// Hint asks the tutoring service about the session's current situation. The
// whole exchange, retries included, observes one hard deadline; on failure
// the canned fallback is returned with no error so hint delivery never blocks
// the mission flow.
func (c *Client) Hint(ctx context.Context, sess *domain.Session, question string) (string, bool, error) {
	start := time.Now()
	defer func() { metrics.ObserveTutorRequest(time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	req := askRequest{
		ScenarioCode: sess.Scenario.Code,
		ScenarioType: sess.Scenario.Type,
		StepOrdinal:  sess.CurrentStep,
		ElapsedSec:   sess.ElapsedSimSec,
		Question:     question,
	}
	if idx := sess.CurrentStep - 1; idx >= 0 && idx < len(sess.Scenario.Steps) {
		req.StepTitle = sess.Scenario.Steps[idx].Title
	}

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		resp, retryable, err := c.ask(ctx, req)
		if err == nil {
			return resp.Answer, resp.IsHint, nil
		}
		if !retryable || attempt >= c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return FallbackAnswer, false, nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	return FallbackAnswer, false, nil
}

// ask performs one upstream exchange and classifies failures as retryable
// (network, 5xx) or terminal (4xx, malformed body).
func (c *Client) ask(ctx context.Context, req askRequest) (*askResponse, bool, error) {
	b, _ := json.Marshal(req)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(b))
	if err != nil {
		return nil, false, fmt.Errorf("tutor request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("tutor ask: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("tutor error (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("tutor rejected request (status %d)", resp.StatusCode)
	}

	var out askResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("tutor decode: %w", err)
	}
	if !out.OK {
		return nil, false, fmt.Errorf("tutor declined")
	}
	return &out, false, nil
}
