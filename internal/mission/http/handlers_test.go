package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
	"github.com/orbitalops/satops-backend/internal/mission/scenario"
	"github.com/orbitalops/satops-backend/internal/mission/scoring"
	"github.com/orbitalops/satops-backend/internal/mission/service"
	"github.com/orbitalops/satops-backend/internal/mission/session"
	"github.com/orbitalops/satops-backend/internal/sim/subsystems"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	scenarios := repository.NewScenarioRepository(client)
	sessions := repository.NewSessionRepository(client)
	commands := repository.NewCommandRepository(client)
	frames := repository.NewTelemetryRepository(client, 100)

	scorer, err := scoring.NewAggregator(scoring.DefaultWeights())
	require.NoError(t, err)

	engineCfg := session.DefaultConfig()
	engineCfg.TelemetryWallMinInterval = 0
	mgr := session.NewManager(
		session.Stores{Sessions: sessions, Commands: commands, Telemetry: frames},
		nil, scorer, 10*time.Millisecond, engineCfg, subsystems.DefaultConfig(),
	)
	t.Cleanup(mgr.Shutdown)

	svc := service.NewMissionService(scenarios, sessions, commands, frames, nil, mgr, nil)
	for _, sc := range scenario.Seeds() {
		sc := sc
		require.NoError(t, svc.CreateScenario(&sc))
	}

	h := New(svc)
	r := gin.New()
	r.Use(auth.DevAuth())
	api := r.Group("/api/v1")
	h.Register(api)
	h.RegisterAdmin(api.Group("/admin", auth.RequireAdmin()))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func asUser(id string) map[string]string { return map[string]string{"X-User-Id": id} }

func asAdmin(id string) map[string]string {
	return map[string]string{"X-User-Id": id, "X-User-Role": auth.RoleAdmin}
}

func TestScenarioCatalogEndpoints(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/scenarios", nil, asUser("op-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ROOKIE_COMMISSIONING_101")

	w = doJSON(t, r, http.MethodGet, "/api/v1/scenarios/NO_SUCH", nil, asUser("op-1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminScenarioAuthoringGated(t *testing.T) {
	r := setupRouter(t)

	sc := map[string]any{"code": "X", "title": "x"}
	w := doJSON(t, r, http.MethodPost, "/api/v1/admin/scenarios", sc, asUser("op-1"))
	assert.Equal(t, http.StatusForbidden, w.Code, "non-admins cannot author")

	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/scenarios", sc, asAdmin("adm-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code, "invalid definitions rejected")
}

func TestAdminScenarioLifecycle(t *testing.T) {
	r := setupRouter(t)

	sc := map[string]any{
		"code":                   "HTTP_TEST_RUN",
		"title":                  "HTTP test run",
		"type":                   domain.ScenarioSandbox,
		"estimated_duration_sec": 300,
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/admin/scenarios", sc, asAdmin("adm-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Drafts are invisible to operators until published.
	w = doJSON(t, r, http.MethodGet, "/api/v1/scenarios/HTTP_TEST_RUN", nil, asUser("op-1"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/admin/scenarios/HTTP_TEST_RUN/publish",
		map[string]any{"published": true}, asAdmin("adm-1"))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/scenarios/HTTP_TEST_RUN", nil, asUser("op-1"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/v1/admin/scenarios/HTTP_TEST_RUN", nil, asAdmin("adm-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func createStartedSession(t *testing.T, r *gin.Engine, user string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions",
		map[string]string{"scenario_code": "ROOKIE_COMMISSIONING_101", "call_sign": "HAVOC-1"}, asUser(user))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Session domain.Session `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Session.ID

	w = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/briefing-ack", nil, asUser(user))
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/start", nil, asUser(user))
	require.Equal(t, http.StatusOK, w.Code)
	return id
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r := setupRouter(t)
	id := createStartedSession(t, r, "op-1")

	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/commands",
		domain.CommandRequest{ClientID: "c-1", Name: domain.CmdPing}, asUser("op-1"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), domain.CommandAccepted)

	w = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id+"/commands", nil, asUser("op-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.CmdPing)

	// Another operator cannot see the session.
	w = doJSON(t, r, http.MethodGet, "/api/v1/sessions/"+id, nil, asUser("op-2"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClockEndpointValidatesAction(t *testing.T) {
	r := setupRouter(t)
	id := createStartedSession(t, r, "op-1")

	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/clock",
		map[string]string{"action": "pause"}, asUser("op-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/clock",
		map[string]string{"action": "warp"}, asUser("op-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAbortEndpointIsTerminal(t *testing.T) {
	r := setupRouter(t)
	id := createStartedSession(t, r, "op-1")

	w := doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/abort", nil, asUser("op-1"))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/sessions/"+id+"/abort", nil, asUser("op-1"))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaderboardWithoutDatabaseIsEmpty(t *testing.T) {
	r := setupRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/leaderboard/ROOKIE_COMMISSIONING_101", nil, asUser("op-1"))
	require.Equal(t, http.StatusOK, w.Code)
}
