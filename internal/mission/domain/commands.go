package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command names. The catalog is closed: anything else is unknown_command.
const (
	CmdPing                = "PING"
	CmdDeployAntenna       = "DEPLOY_ANTENNA"
	CmdRequestTelemetry    = "REQUEST_TELEMETRY"
	CmdAdjustAltitude      = "ADJUST_ALTITUDE"
	CmdPointToTarget       = "POINT_TO_TARGET"
	CmdToggleBatteryCharge = "TOGGLE_BATTERY_CHARGE"
	CmdActivateHeater      = "ACTIVATE_HEATER"
	CmdScheduleDownlink    = "SCHEDULE_DOWNLINK"
	CmdSystemHealthCheck   = "SYSTEM_HEALTH_CHECK"
)

// Command result statuses.
const (
	CommandAccepted          = "accepted"
	CommandRejected          = "rejected"
	CommandFailed            = "failed"
	CommandAcceptedDuplicate = "accepted_duplicate"
)

// CommandNames lists the catalog in a stable order.
func CommandNames() []string {
	return []string{
		CmdPing, CmdDeployAntenna, CmdRequestTelemetry, CmdAdjustAltitude,
		CmdPointToTarget, CmdToggleBatteryCharge, CmdActivateHeater,
		CmdScheduleDownlink, CmdSystemHealthCheck,
	}
}

// KnownCommand reports whether name is in the catalog.
func KnownCommand(name string) bool {
	for _, n := range CommandNames() {
		if n == name {
			return true
		}
	}
	return false
}

// CommandRequest is an inbound command submission. ClientID deduplicates
// retries within the idempotency window.
type CommandRequest struct {
	ClientID string          `json:"client_id"`
	Name     string          `json:"name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Typed payloads, one per catalog entry that takes arguments.

type RequestTelemetryPayload struct {
	PacketType string `json:"packet_type"` // health|orbit|all
}

type AdjustAltitudePayload struct {
	TargetKm float64 `json:"target_km"`
}

type PointCoordinates struct {
	RollDeg  float64 `json:"roll_deg"`
	PitchDeg float64 `json:"pitch_deg"`
	YawDeg   float64 `json:"yaw_deg"`
}

type PointToTargetPayload struct {
	Mode        string            `json:"mode"` // nadir|sun|target|ground_station
	Coordinates *PointCoordinates `json:"coordinates,omitempty"`
}

type TogglePayload struct {
	On *bool `json:"on"`
}

type ScheduleDownlinkPayload struct {
	VolumeMB float64 `json:"volume_mb"`
	Priority string  `json:"priority"` // low|normal|high
}

// ParseCommandPayload validates a raw payload against the per-name shape and
// returns the typed value. Commands without arguments accept an empty or
// absent payload.
func ParseCommandPayload(name string, raw json.RawMessage) (any, error) {
	if !KnownCommand(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}

	switch name {
	case CmdPing, CmdDeployAntenna, CmdSystemHealthCheck:
		return nil, nil

	case CmdRequestTelemetry:
		var p RequestTelemetryPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if p.PacketType == "" {
			p.PacketType = "all"
		}
		switch p.PacketType {
		case "health", "orbit", "all":
		default:
			return nil, fmt.Errorf("%w: packet_type must be health, orbit or all", ErrInvalidPayload)
		}
		return p, nil

	case CmdAdjustAltitude:
		var p AdjustAltitudePayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if p.TargetKm < 0 || p.TargetKm > 2000 {
			return nil, fmt.Errorf("%w: target_km must be within [0, 2000]", ErrInvalidPayload)
		}
		return p, nil

	case CmdPointToTarget:
		var p PointToTargetPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		switch p.Mode {
		case "nadir", "sun":
			if p.Coordinates != nil {
				return nil, fmt.Errorf("%w: coordinates not allowed for mode %s", ErrInvalidPayload, p.Mode)
			}
		case "target", "ground_station":
			if p.Coordinates == nil {
				return nil, fmt.Errorf("%w: coordinates required for mode %s", ErrInvalidPayload, p.Mode)
			}
		default:
			return nil, fmt.Errorf("%w: unknown pointing mode %q", ErrInvalidPayload, p.Mode)
		}
		return p, nil

	case CmdToggleBatteryCharge, CmdActivateHeater:
		var p TogglePayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if p.On == nil {
			return nil, fmt.Errorf("%w: field \"on\" is required", ErrInvalidPayload)
		}
		return p, nil

	case CmdScheduleDownlink:
		var p ScheduleDownlinkPayload
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
		if p.VolumeMB <= 0 {
			return nil, fmt.Errorf("%w: volume_mb must be positive", ErrInvalidPayload)
		}
		switch p.Priority {
		case "low", "normal", "high":
		default:
			return nil, fmt.Errorf("%w: priority must be low, normal or high", ErrInvalidPayload)
		}
		return p, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload required", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// EffectDelta records one numeric state change applied by a command.
type EffectDelta struct {
	Subsystem string  `json:"subsystem"`
	Field     string  `json:"field"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
}

// CommandRecord is the persisted outcome of one submission.
type CommandRecord struct {
	ID          string          `json:"id"`
	ClientID    string          `json:"client_id"`
	SessionID   string          `json:"session_id"`
	UserID      string          `json:"user_id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Status      string          `json:"status"`
	Message     string          `json:"message,omitempty"`
	Effects     []EffectDelta   `json:"effects,omitempty"`
	StepOrdinal int             `json:"step_ordinal,omitempty"`
	SimTimeSec  float64         `json:"sim_time_sec"`
	WallTime    time.Time       `json:"wall_time"`
}
