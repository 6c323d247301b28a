// Package repository persists mission state: sessions, scenarios, command
// logs and telemetry history live in Redis as JSON documents; completed-run
// summaries go to PostgreSQL for the leaderboard.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

const (
	sessionKeyPrefix    = "sat:session:" // Session document: sat:session:{session_id}
	userSessionPrefix   = "sat:user:"    // Set of session IDs per user: sat:user:{user_id}:sessions
	checkpointKeySuffix = ":checkpoints" // List of checkpoint snapshots, newest first
	eventChannelPrefix  = "sat:events:"  // Pub/Sub channel per session: sat:events:{session_id}
	sessionTTL          = 7 * 24 * time.Hour
)

// SessionRepository handles Redis operations for training sessions.
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

// Create stores a new session document and indexes it under its user.
// The caller must have set ID and Version (1).
func (r *SessionRepository) Create(sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx(), r.sessionKey(sess.ID), data, sessionTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", sess.ID)
	}

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx(), r.userSessionsKey(sess.UserID), sess.ID)
	pipe.Expire(ctx(), r.userSessionsKey(sess.UserID), sessionTTL)
	if _, err := pipe.Exec(ctx()); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(sessionID string) (*domain.Session, error) {
	data, err := r.client.Get(ctx(), r.sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Update persists a session under optimistic concurrency: the stored version
// must equal the in-memory version the caller read. On success the version is
// incremented; on a conflict the session is left untouched and
// domain.ErrStaleVersion is returned.
func (r *SessionRepository) Update(sess *domain.Session) error {
	key := r.sessionKey(sess.ID)
	readVersion := sess.Version

	err := r.client.Watch(ctx(), func(tx *redis.Tx) error {
		data, err := tx.Get(ctx(), key).Result()
		if err == redis.Nil {
			return domain.ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read session for update: %w", err)
		}

		var stored domain.Session
		if err := json.Unmarshal([]byte(data), &stored); err != nil {
			return fmt.Errorf("failed to unmarshal stored session: %w", err)
		}
		if stored.Version != readVersion {
			return domain.ErrStaleVersion
		}

		sess.Version = readVersion + 1
		sess.UpdatedAt = time.Now()
		payload, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx(), func(pipe redis.Pipeliner) error {
			pipe.Set(ctx(), key, payload, sessionTTL)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		sess.Version = readVersion
		return domain.ErrStaleVersion
	}
	if err != nil && sess.Version != readVersion {
		sess.Version = readVersion
	}
	return err
}

// ListByUserID returns the session IDs recorded for a user.
func (r *SessionRepository) ListByUserID(userID string) ([]string, error) {
	ids, err := r.client.SMembers(ctx(), r.userSessionsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions for user: %w", err)
	}
	return ids, nil
}

// ScanIDs walks every stored session document and returns its id. Used by
// the maintenance sweeper; not suited to request paths.
func (r *SessionRepository) ScanIDs() ([]string, error) {
	var ids []string
	iter := r.client.Scan(ctx(), 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx()) {
		id := strings.TrimPrefix(iter.Val(), sessionKeyPrefix)
		// Checkpoints, command logs and telemetry rings share the session
		// prefix; their keys carry a suffix after the id.
		if strings.Contains(id, ":") {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return ids, nil
}

// SaveCheckpoint pushes a recovery snapshot, newest first. Only a bounded
// number of checkpoints is retained per session.
func (r *SessionRepository) SaveCheckpoint(sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	key := r.checkpointKey(sess.ID)
	pipe := r.client.Pipeline()
	pipe.LPush(ctx(), key, data)
	pipe.LTrim(ctx(), key, 0, 9)
	pipe.Expire(ctx(), key, sessionTTL)
	if _, err := pipe.Exec(ctx()); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LatestCheckpoint returns the most recent recovery snapshot, or
// domain.ErrSessionNotFound when none exists.
func (r *SessionRepository) LatestCheckpoint(sessionID string) (*domain.Session, error) {
	data, err := r.client.LIndex(ctx(), r.checkpointKey(sessionID), 0).Result()
	if err == redis.Nil {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &sess, nil
}

// PublishEvent fans an event out on the session's Pub/Sub channel so other
// instances can forward it to their connected clients.
func (r *SessionRepository) PublishEvent(sessionID string, event *domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := r.client.Publish(ctx(), r.eventChannel(sessionID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// SubscribeEvents subscribes to a session's event channel.
func (r *SessionRepository) SubscribeEvents(sessionID string) *redis.PubSub {
	return r.client.Subscribe(ctx(), r.eventChannel(sessionID))
}

func (r *SessionRepository) sessionKey(sessionID string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, sessionID)
}

func (r *SessionRepository) userSessionsKey(userID string) string {
	return fmt.Sprintf("%s%s:sessions", userSessionPrefix, userID)
}

func (r *SessionRepository) checkpointKey(sessionID string) string {
	return fmt.Sprintf("%s%s%s", sessionKeyPrefix, sessionID, checkpointKeySuffix)
}

func (r *SessionRepository) eventChannel(sessionID string) string {
	return fmt.Sprintf("%s%s", eventChannelPrefix, sessionID)
}
