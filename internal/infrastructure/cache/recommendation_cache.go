package cache

import (
	"context"
	"errors"
	"time"

	"freelance-match/internal/domain/match"

	"github.com/google/uuid"
)

const (
	recommendPrefix  = "recommend:"
	generationPrefix = "recommend-gen:"
)

// RecommendationCache stores query results per project and query variant.
// Every recompute advances the project's generation and drops its variants;
// a result read before that can no longer be stored.
type RecommendationCache struct {
	redis *Redis
	ttl   time.Duration
}

func NewRecommendationCache(r *Redis, ttl time.Duration) *RecommendationCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RecommendationCache{redis: r, ttl: ttl}
}

func RecommendationKey(projectID uuid.UUID, variant string) string {
	return recommendPrefix + projectID.String() + ":" + variant
}

// GenerationKey lives outside the recommend:<project>:* namespace so
// invalidation never deletes it.
func GenerationKey(projectID uuid.UUID) string {
	return generationPrefix + projectID.String()
}

func (c *RecommendationCache) Get(ctx context.Context, projectID uuid.UUID, variant string) ([]match.MatchScore, bool, error) {
	var out []match.MatchScore
	ok, err := c.redis.GetJSON(ctx, RecommendationKey(projectID, variant), &out)
	if err != nil || !ok {
		return nil, false, err
	}
	return out, true, nil
}

// Generation must be read before the rows that are later passed to Set.
func (c *RecommendationCache) Generation(ctx context.Context, projectID uuid.UUID) (int64, error) {
	return c.redis.Generation(ctx, GenerationKey(projectID))
}

// Set stores scores only if no recompute has invalidated the project since
// gen was read.
func (c *RecommendationCache) Set(ctx context.Context, projectID uuid.UUID, variant string, gen int64, scores []match.MatchScore) (bool, error) {
	return c.redis.SetJSONIfGeneration(ctx, GenerationKey(projectID), gen, RecommendationKey(projectID, variant), scores, c.ttl)
}

func (c *RecommendationCache) InvalidateProject(ctx context.Context, projectID uuid.UUID) error {
	bumpErr := c.redis.IncrGeneration(ctx, GenerationKey(projectID))
	delErr := c.redis.DeleteByPattern(ctx, recommendPrefix+projectID.String()+":*")
	return errors.Join(bumpErr, delErr)
}
