package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orbitalops/satops-backend/internal/mission/domain"
)

const (
	scenarioKeyPrefix = "sat:scenario:" // Scenario document: sat:scenario:{code}
	scenarioIndexKey  = "sat:scenarios" // Set of all scenario codes
)

func ctx() context.Context { return context.Background() }

// ScenarioRepository handles Redis operations for scenario definitions.
// Scenarios have no TTL; they live until deleted by an admin.
type ScenarioRepository struct {
	client *redis.Client
}

// NewScenarioRepository creates a new ScenarioRepository.
func NewScenarioRepository(client *redis.Client) *ScenarioRepository {
	return &ScenarioRepository{client: client}
}

// Create stores a new scenario. Codes are unique; a second create with the
// same code returns domain.ErrDuplicateCode.
func (r *ScenarioRepository) Create(sc *domain.Scenario) error {
	now := time.Now()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.UpdatedAt = now

	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}

	ok, err := r.client.SetNX(ctx(), r.scenarioKey(sc.Code), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create scenario: %w", err)
	}
	if !ok {
		return domain.ErrDuplicateCode
	}

	if err := r.client.SAdd(ctx(), scenarioIndexKey, sc.Code).Err(); err != nil {
		return fmt.Errorf("failed to index scenario: %w", err)
	}
	return nil
}

// GetByCode retrieves a scenario by its code.
func (r *ScenarioRepository) GetByCode(code string) (*domain.Scenario, error) {
	data, err := r.client.Get(ctx(), r.scenarioKey(code)).Result()
	if err == redis.Nil {
		return nil, domain.ErrScenarioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scenario: %w", err)
	}

	var sc domain.Scenario
	if err := json.Unmarshal([]byte(data), &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}
	return &sc, nil
}

// Update overwrites an existing scenario. Running sessions are unaffected:
// they hold their own copy taken at creation.
func (r *ScenarioRepository) Update(sc *domain.Scenario) error {
	exists, err := r.client.Exists(ctx(), r.scenarioKey(sc.Code)).Result()
	if err != nil {
		return fmt.Errorf("failed to check scenario: %w", err)
	}
	if exists == 0 {
		return domain.ErrScenarioNotFound
	}

	sc.UpdatedAt = time.Now()
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario: %w", err)
	}
	if err := r.client.Set(ctx(), r.scenarioKey(sc.Code), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update scenario: %w", err)
	}
	return nil
}

// Delete removes a scenario and its index entry.
func (r *ScenarioRepository) Delete(code string) error {
	deleted, err := r.client.Del(ctx(), r.scenarioKey(code)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete scenario: %w", err)
	}
	if deleted == 0 {
		return domain.ErrScenarioNotFound
	}
	if err := r.client.SRem(ctx(), scenarioIndexKey, code).Err(); err != nil {
		return fmt.Errorf("failed to unindex scenario: %w", err)
	}
	return nil
}

// List returns all scenarios sorted by code. With publishedOnly set, drafts
// are filtered out.
func (r *ScenarioRepository) List(publishedOnly bool) ([]domain.Scenario, error) {
	codes, err := r.client.SMembers(ctx(), scenarioIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list scenario codes: %w", err)
	}
	if len(codes) == 0 {
		return nil, nil
	}
	sort.Strings(codes)

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = r.scenarioKey(code)
	}
	values, err := r.client.MGet(ctx(), keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scenarios: %w", err)
	}

	out := make([]domain.Scenario, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // index entry without a document; skip
		}
		var sc domain.Scenario
		if err := json.Unmarshal([]byte(raw), &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
		}
		if publishedOnly && !sc.Published {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (r *ScenarioRepository) scenarioKey(code string) string {
	return fmt.Sprintf("%s%s", scenarioKeyPrefix, code)
}
