package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

// SummaryRepository handles PostgreSQL operations for completed-run
// performance summaries, the read model behind the leaderboard.
type SummaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository creates a new SummaryRepository.
func NewSummaryRepository(pool *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{pool: pool}
}

// EnsureSchema creates the summaries table when missing.
func (r *SummaryRepository) EnsureSchema(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS performance_summaries (
			session_id    TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			scenario_code TEXT NOT NULL,
			status        TEXT NOT NULL,
			overall_score DOUBLE PRECISION NOT NULL,
			performance   JSONB NOT NULL,
			sim_time_sec  DOUBLE PRECISION NOT NULL,
			completed_at  TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_summaries_scenario_score
			ON performance_summaries (scenario_code, overall_score DESC);
		CREATE INDEX IF NOT EXISTS idx_summaries_user
			ON performance_summaries (user_id);
	`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure summaries schema: %w", err)
	}
	return nil
}

// Upsert writes a summary, replacing any earlier row for the session.
func (r *SummaryRepository) Upsert(ctx context.Context, s *domain.PerformanceSummary) error {
	perfJSON, err := json.Marshal(s.Performance)
	if err != nil {
		return fmt.Errorf("failed to marshal performance vector: %w", err)
	}

	const query = `
		INSERT INTO performance_summaries (
			session_id, user_id, scenario_code, status,
			overall_score, performance, sim_time_sec, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			status        = EXCLUDED.status,
			overall_score = EXCLUDED.overall_score,
			performance   = EXCLUDED.performance,
			sim_time_sec  = EXCLUDED.sim_time_sec,
			completed_at  = EXCLUDED.completed_at
	`
	_, err = r.pool.Exec(ctx, query,
		s.SessionID, s.UserID, s.ScenarioCode, s.Status,
		s.Performance.Overall, perfJSON, s.SimTimeSec, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert summary: %w", err)
	}
	return nil
}

// GetBySessionID retrieves one summary.
func (r *SummaryRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.PerformanceSummary, error) {
	const query = `
		SELECT session_id, user_id, scenario_code, status,
		       performance, sim_time_sec, completed_at
		FROM performance_summaries
		WHERE session_id = $1
	`
	row := r.pool.QueryRow(ctx, query, sessionID)
	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return s, err
}

// Leaderboard returns the top summaries for a scenario by overall score.
func (r *SummaryRepository) Leaderboard(ctx context.Context, scenarioCode string, limit int) ([]domain.PerformanceSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `
		SELECT session_id, user_id, scenario_code, status,
		       performance, sim_time_sec, completed_at
		FROM performance_summaries
		WHERE scenario_code = $1 AND status = $2
		ORDER BY overall_score DESC, completed_at ASC
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, scenarioCode, domain.StatusCompleted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()
	return collectSummaries(rows)
}

// ListByUser returns a user's summaries, most recent first.
func (r *SummaryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.PerformanceSummary, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `
		SELECT session_id, user_id, scenario_code, status,
		       performance, sim_time_sec, completed_at
		FROM performance_summaries
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query user summaries: %w", err)
	}
	defer rows.Close()
	return collectSummaries(rows)
}

func collectSummaries(rows pgx.Rows) ([]domain.PerformanceSummary, error) {
	var out []domain.PerformanceSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read summaries: %w", err)
	}
	return out, nil
}

func scanSummary(row pgx.Row) (*domain.PerformanceSummary, error) {
	var s domain.PerformanceSummary
	var perfJSON []byte
	err := row.Scan(
		&s.SessionID, &s.UserID, &s.ScenarioCode, &s.Status,
		&perfJSON, &s.SimTimeSec, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(perfJSON, &s.Performance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal performance vector: %w", err)
	}
	return &s, nil
}
