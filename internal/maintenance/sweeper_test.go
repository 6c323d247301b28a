package maintenance

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
	"github.com/orbitalops/satops-backend/internal/mission/repository"
)

type fakeFinisher struct {
	mu        sync.Mutex
	abandoned []string
}

func (f *fakeFinisher) AbandonSession(sessionID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandoned = append(f.abandoned, sessionID)
	return nil
}

func setupSweeper(t *testing.T, idleAfter time.Duration) (*Sweeper, *repository.SessionRepository, *fakeFinisher) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	sessions := repository.NewSessionRepository(client)
	telemetry := repository.NewTelemetryRepository(client, 100)
	finisher := &fakeFinisher{}
	return NewSweeper(sessions, telemetry, finisher, idleAfter), sessions, finisher
}

func storedSession(t *testing.T, repo *repository.SessionRepository, id, status string, updatedAt time.Time) {
	t.Helper()
	require.NoError(t, repo.Create(&domain.Session{
		ID:        id,
		UserID:    "user-1",
		Status:    status,
		Version:   1,
		UpdatedAt: updatedAt,
	}))
}

func TestSweepAbandonsIdleSessions(t *testing.T) {
	sweeper, sessions, finisher := setupSweeper(t, time.Hour)

	storedSession(t, sessions, "idle-1", domain.StatusInProgress, time.Now().Add(-2*time.Hour))
	storedSession(t, sessions, "fresh-1", domain.StatusInProgress, time.Now())

	sweeper.Sweep()

	assert.Equal(t, []string{"idle-1"}, finisher.abandoned)
}

func TestSweepSkipsTerminalSessions(t *testing.T) {
	sweeper, sessions, finisher := setupSweeper(t, time.Hour)

	storedSession(t, sessions, "done-1", domain.StatusCompleted, time.Now().Add(-48*time.Hour))
	storedSession(t, sessions, "failed-1", domain.StatusFailed, time.Now().Add(-48*time.Hour))

	sweeper.Sweep()

	assert.Empty(t, finisher.abandoned)
}
