package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10

	// guaranteedQueueSize bounds the per-connection event queue. A client
	// whose queue overflows is closed rather than silently losing results.
	guaranteedQueueSize = 64

	// inboundRate caps command submissions per connection.
	inboundRate  = rate.Limit(5)
	inboundBurst = 10
)

// Commander is the slice of the mission service the gateway drives.
type Commander interface {
	SubmitCommand(ctx context.Context, sessionID, userID string, req domain.CommandRequest) (*domain.CommandRecord, error)
	PauseSession(sessionID, userID string) error
	ResumeClock(sessionID, userID string) error
	SetTimeScale(sessionID, userID, scale string) error
}

// inboundMessage is the client -> server envelope.
type inboundMessage struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Name     string          `json:"name,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Scale    string          `json:"scale,omitempty"`
}

// Client is one WebSocket subscriber bound to a single session.
type Client struct {
	hub  *Hub
	svc  Commander
	conn *websocket.Conn

	sessionID string
	userID    string

	guaranteed chan domain.Event

	frameMu     sync.Mutex
	latestFrame *domain.Event
	frameReady  chan struct{}

	limiter *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(hub *Hub, svc Commander, conn *websocket.Conn, sessionID, userID string) *Client {
	return &Client{
		hub:        hub,
		svc:        svc,
		conn:       conn,
		sessionID:  sessionID,
		userID:     userID,
		guaranteed: make(chan domain.Event, guaranteedQueueSize),
		frameReady: make(chan struct{}, 1),
		limiter:    rate.NewLimiter(inboundRate, inboundBurst),
		done:       make(chan struct{}),
	}
}

// deliver routes an event into the connection's outbound path. Telemetry
// frames overwrite the undelivered slot so a slow client always gets the
// newest frame; everything else is queued and overflow closes the socket.
func (c *Client) deliver(ev domain.Event) {
	if ev.Type == domain.EventTelemetryFrame && !ev.Guaranteed {
		c.frameMu.Lock()
		c.latestFrame = &ev
		c.frameMu.Unlock()
		select {
		case c.frameReady <- struct{}{}:
		default:
		}
		return
	}

	select {
	case c.guaranteed <- ev:
	default:
		c.closeWith(websocket.ClosePolicyViolation, "backpressure")
	}
}

func (c *Client) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		// WriteControl is safe alongside the write pump's data writes, so
		// any goroutine may initiate the close.
		msg := websocket.FormatCloseMessage(code, reason)
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.conn.Close()
		close(c.done)
	})
}

// run serves the connection until either pump exits.
func (c *Client) run() {
	c.hub.register(c)
	defer c.hub.unregister(c)

	go c.writePump()
	c.readPump()
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.guaranteed:
			if !c.writeEvent(ev) {
				return
			}
		case <-c.frameReady:
			c.frameMu.Lock()
			frame := c.latestFrame
			c.latestFrame = nil
			c.frameMu.Unlock()
			if frame == nil {
				continue
			}
			if !c.writeEvent(*frame) {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeWith(websocket.CloseGoingAway, "ping failed")
				return
			}
		}
	}
}

func (c *Client) writeEvent(ev domain.Event) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.closeWith(websocket.CloseGoingAway, "write failed")
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer c.closeWith(websocket.CloseNormalClosure, "")

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("gateway: session %s read error: %v", c.sessionID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.rejectInbound(msg.ClientID, "malformed message")
			continue
		}
		c.handleInbound(msg)
	}
}

func (c *Client) handleInbound(msg inboundMessage) {
	switch msg.Type {
	case "command.submit":
		if !c.limiter.Allow() {
			c.rejectInbound(msg.ClientID, "rate limit exceeded")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_, err := c.svc.SubmitCommand(ctx, c.sessionID, c.userID, domain.CommandRequest{
			ClientID: msg.ClientID,
			Name:     msg.Name,
			Payload:  msg.Payload,
		})
		if err != nil {
			// Accepted submissions are answered by the broadcast
			// command.result; only routing failures answer here.
			c.rejectInbound(msg.ClientID, submitErrMessage(err))
		}
	case "clock.pause":
		if err := c.svc.PauseSession(c.sessionID, c.userID); err != nil {
			c.rejectInbound(msg.ClientID, err.Error())
		}
	case "clock.resume":
		if err := c.svc.ResumeClock(c.sessionID, c.userID); err != nil {
			c.rejectInbound(msg.ClientID, err.Error())
		}
	case "clock.set_scale":
		if err := c.svc.SetTimeScale(c.sessionID, c.userID, msg.Scale); err != nil {
			c.rejectInbound(msg.ClientID, err.Error())
		}
	case "heartbeat":
		// Liveness only.
	default:
		c.rejectInbound(msg.ClientID, "unknown message type "+msg.Type)
	}
}

// rejectInbound answers a failed inbound operation on this connection only.
func (c *Client) rejectInbound(clientID, message string) {
	c.deliver(domain.Event{
		Type:       domain.EventCommandResult,
		Guaranteed: true,
		Data: domain.CommandResultData{
			ClientID: clientID,
			Status:   domain.CommandRejected,
			Message:  message,
		},
	})
}

func submitErrMessage(err error) string {
	if errors.Is(err, domain.ErrSessionTerminal) {
		return "session is terminal"
	}
	return err.Error()
}
