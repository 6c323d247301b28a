package repository

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orbitalops/satops-backend/internal/sim/telemetry"
)

const telemetrySuffix = ":telemetry" // List of telemetry frames per session, newest first

// TelemetryRepository keeps a bounded ring of recent frames per session so a
// reconnecting client can backfill its charts.
type TelemetryRepository struct {
	client    *redis.Client
	retention int
}

// NewTelemetryRepository creates a TelemetryRepository retaining the given
// number of frames per session.
func NewTelemetryRepository(client *redis.Client, retention int) *TelemetryRepository {
	if retention <= 0 {
		retention = 500
	}
	return &TelemetryRepository{client: client, retention: retention}
}

// Append stores a frame and trims the ring to the retention window.
func (r *TelemetryRepository) Append(sessionID string, frame *telemetry.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	key := r.telemetryKey(sessionID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx(), key, data)
	pipe.LTrim(ctx(), key, 0, int64(r.retention-1))
	pipe.Expire(ctx(), key, sessionTTL)
	if _, err := pipe.Exec(ctx()); err != nil {
		return fmt.Errorf("failed to append frame: %w", err)
	}
	return nil
}

// Recent returns up to limit frames in chronological order.
func (r *TelemetryRepository) Recent(sessionID string, limit int) ([]telemetry.Frame, error) {
	if limit <= 0 || limit > r.retention {
		limit = r.retention
	}
	values, err := r.client.LRange(ctx(), r.telemetryKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry: %w", err)
	}

	// Stored newest first; return oldest first.
	out := make([]telemetry.Frame, len(values))
	for i, v := range values {
		var f telemetry.Frame
		if err := json.Unmarshal([]byte(v), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal frame: %w", err)
		}
		out[len(values)-1-i] = f
	}
	return out, nil
}

// Trim re-applies the retention bound; used by the maintenance sweeper.
func (r *TelemetryRepository) Trim(sessionID string) error {
	if err := r.client.LTrim(ctx(), r.telemetryKey(sessionID), 0, int64(r.retention-1)).Err(); err != nil {
		return fmt.Errorf("failed to trim telemetry: %w", err)
	}
	return nil
}

func (r *TelemetryRepository) telemetryKey(sessionID string) string {
	return fmt.Sprintf("%s%s%s", sessionKeyPrefix, sessionID, telemetrySuffix)
}
