package repository

import (
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

const (
	commandLogSuffix = ":commands" // List of command records per session, newest first
	commandLogMax    = 1000
)

// CommandRepository persists the per-session command log.
type CommandRepository struct {
	client *redis.Client
}

// NewCommandRepository creates a new CommandRepository.
func NewCommandRepository(client *redis.Client) *CommandRepository {
	return &CommandRepository{client: client}
}

// Append records a command outcome. The log is capped; old entries roll off.
func (r *CommandRepository) Append(rec *domain.CommandRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal command record: %w", err)
	}

	key := r.commandKey(rec.SessionID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx(), key, data)
	pipe.LTrim(ctx(), key, 0, commandLogMax-1)
	pipe.Expire(ctx(), key, sessionTTL)
	if _, err := pipe.Exec(ctx()); err != nil {
		return fmt.Errorf("failed to append command record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *CommandRepository) Recent(sessionID string, limit int) ([]domain.CommandRecord, error) {
	if limit <= 0 || limit > commandLogMax {
		limit = commandLogMax
	}
	values, err := r.client.LRange(ctx(), r.commandKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read command log: %w", err)
	}

	out := make([]domain.CommandRecord, 0, len(values))
	for _, v := range values {
		var rec domain.CommandRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal command record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of retained records for a session.
func (r *CommandRepository) Count(sessionID string) (int64, error) {
	n, err := r.client.LLen(ctx(), r.commandKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count command log: %w", err)
	}
	return n, nil
}

func (r *CommandRepository) commandKey(sessionID string) string {
	return fmt.Sprintf("%s%s%s", sessionKeyPrefix, sessionID, commandLogSuffix)
}
