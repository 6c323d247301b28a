package domain

// Outbound event types carried over the session stream. Every event carries
// the session version so clients can resync after a reconnect.
const (
	EventTelemetryFrame      = "telemetry.frame"
	EventCommandResult       = "command.result"
	EventStepChanged         = "step.changed"
	EventAlertRaised         = "alert.raised"
	EventSessionStateChanged = "session.state_changed"
	EventHeartbeat           = "heartbeat"
)

// Event is the envelope pushed to a session's subscribers. Guaranteed events
// (command results, step changes, state changes) are never dropped; telemetry
// frames are coalesced under backpressure.
type Event struct {
	Type       string `json:"type"`
	Version    int64  `json:"version"`
	Data       any    `json:"data"`
	Guaranteed bool   `json:"-"`
}

// StepChangedData reports a progression advance.
type StepChangedData struct {
	CurrentStep    int   `json:"current_step"`
	CompletedSteps []int `json:"completed_steps"`
	Checkpoint     bool  `json:"checkpoint"`
}

// CommandResultData mirrors the persisted record back to the submitter.
type CommandResultData struct {
	ClientID   string        `json:"client_id"`
	Status     string        `json:"status"`
	Message    string        `json:"message,omitempty"`
	Effects    []EffectDelta `json:"effects,omitempty"`
	SimTimeSec float64       `json:"sim_time_sec"`
}

// SessionStateChangedData reports a lifecycle transition.
type SessionStateChangedData struct {
	Status string `json:"status"`
	Cause  string `json:"cause,omitempty"`
}
