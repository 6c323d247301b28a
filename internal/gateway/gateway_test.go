package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalops/satops-backend/internal/auth"
	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

type fakeService struct {
	mu        sync.Mutex
	sess      *domain.Session
	submitted []domain.CommandRequest
	paused    bool
}

func (f *fakeService) GetSession(sessionID, userID string) (*domain.Session, error) {
	if f.sess == nil || f.sess.ID != sessionID {
		return nil, domain.ErrSessionNotFound
	}
	if f.sess.UserID != userID {
		return nil, domain.ErrNotAuthorized
	}
	return f.sess, nil
}

func (f *fakeService) SubmitCommand(_ context.Context, sessionID, userID string, req domain.CommandRequest) (*domain.CommandRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return &domain.CommandRecord{Name: req.Name, Status: domain.CommandAccepted}, nil
}

func (f *fakeService) PauseSession(sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	return nil
}

func (f *fakeService) ResumeClock(sessionID, userID string) error { return nil }
func (f *fakeService) SetTimeScale(_, _, scale string) error {
	if scale == "100x" {
		return errors.New("unknown time scale 100x")
	}
	return nil
}

func (f *fakeService) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func setupGateway(t *testing.T) (*Hub, *fakeService, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub()
	svc := &fakeService{sess: &domain.Session{
		ID:      "sess-ws-1",
		UserID:  "user-1",
		Status:  domain.StatusInProgress,
		Version: 7,
	}}

	r := gin.New()
	r.Use(auth.DevAuth())
	NewHandler(hub, svc).Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, svc, srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + sessionID
	header := http.Header{"X-User-Id": []string{userID}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev domain.Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestConnectSendsHeartbeatResync(t *testing.T) {
	_, _, srv := setupGateway(t)
	conn := dial(t, srv, "sess-ws-1", "user-1")

	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventHeartbeat, ev.Type)
	assert.Equal(t, int64(7), ev.Version, "client learns the persisted version on connect")
}

func TestConnectRejectsForeignSession(t *testing.T) {
	_, _, srv := setupGateway(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/sess-ws-1"
	header := http.Header{"X-User-Id": []string{"someone-else"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	hub, _, srv := setupGateway(t)
	conn := dial(t, srv, "sess-ws-1", "user-1")
	readEvent(t, conn) // heartbeat

	require.Eventually(t, func() bool { return hub.ClientCount("sess-ws-1") == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast("sess-ws-1", domain.Event{
		Type:       domain.EventStepChanged,
		Version:    8,
		Guaranteed: true,
		Data:       domain.StepChangedData{CurrentStep: 2},
	})

	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventStepChanged, ev.Type)
	assert.Equal(t, int64(8), ev.Version)
}

func TestInboundCommandSubmitRouted(t *testing.T) {
	_, svc, srv := setupGateway(t)
	conn := dial(t, srv, "sess-ws-1", "user-1")
	readEvent(t, conn) // heartbeat

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":      "command.submit",
		"client_id": "c-1",
		"name":      domain.CmdPing,
	}))

	require.Eventually(t, func() bool { return svc.submittedCount() == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, domain.CmdPing, svc.submitted[0].Name)
}

func TestUnknownInboundTypeAnswersRejection(t *testing.T) {
	_, _, srv := setupGateway(t)
	conn := dial(t, srv, "sess-ws-1", "user-1")
	readEvent(t, conn) // heartbeat

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "nope"}))

	ev := readEvent(t, conn)
	assert.Equal(t, domain.EventCommandResult, ev.Type)
}

func TestTelemetryFramesCoalesce(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil, nil, "sess-1", "user-1")

	// Without a draining write pump, only the newest frame survives.
	for seq := 1; seq <= 3; seq++ {
		c.deliver(domain.Event{Type: domain.EventTelemetryFrame, Version: int64(seq)})
	}

	c.frameMu.Lock()
	frame := c.latestFrame
	c.frameMu.Unlock()
	require.NotNil(t, frame)
	assert.Equal(t, int64(3), frame.Version)
	assert.Len(t, c.frameReady, 1, "a single wakeup is pending")
	assert.Empty(t, c.guaranteed, "frames never occupy the guaranteed queue")
}

func TestBackpressureClosesConnection(t *testing.T) {
	hub := NewHub()
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	defer srv.Close()

	dialer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer dialer.Close()
	serverConn := <-serverConns

	c := newClient(hub, nil, serverConn, "sess-1", "user-1")
	// No write pump: fill the guaranteed queue, then overflow it.
	for i := 0; i < guaranteedQueueSize; i++ {
		c.deliver(domain.Event{Type: domain.EventCommandResult, Guaranteed: true})
	}
	c.deliver(domain.Event{Type: domain.EventCommandResult, Guaranteed: true})

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("overflow did not close the client")
	}

	dialer.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = dialer.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "backpressure", closeErr.Text)
}
