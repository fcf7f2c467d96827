package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"freelance-match/internal/domain/match"
	"freelance-match/internal/pkg/logger"
	"freelance-match/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// RecommendationParams are the caller's filters. Nil fields were not
// supplied; when both are nil the configured defaults apply to both.
type RecommendationParams struct {
	Limit    *int
	MinScore *float64
}

type QueryConfig struct {
	DefaultLimit    int
	MaxLimit        int
	DefaultMinScore float64
}

type RecommendationQuery interface {
	GetRecommendations(ctx context.Context, projectID uuid.UUID, params RecommendationParams) ([]match.MatchScore, error)
	GetRecommendation(ctx context.Context, projectID, freelancerID uuid.UUID) (match.MatchScore, error)
	Recalculate(ctx context.Context, projectID uuid.UUID) (int, error)
}

type RecommendationQueryService struct {
	projects    repository.ProjectSkillRepository
	freelancers repository.FreelancerRepository
	scores      repository.MatchScoreRepository
	recommender Recommender
	cache       RecommendationCache
	metrics     Recorder
	log         logger.Logger
	cfg         QueryConfig

	missGroup singleflight.Group
}

func NewRecommendationQuery(
	projects repository.ProjectSkillRepository,
	freelancers repository.FreelancerRepository,
	scores repository.MatchScoreRepository,
	recommender Recommender,
	cache RecommendationCache,
	rec Recorder,
	log logger.Logger,
	cfg QueryConfig,
) *RecommendationQueryService {
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit <= 0 || cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = min(10, cfg.MaxLimit)
	}
	if rec == nil {
		rec = noopRecorder{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RecommendationQueryService{
		projects:    projects,
		freelancers: freelancers,
		scores:      scores,
		recommender: recommender,
		cache:       cache,
		metrics:     rec,
		log:         log,
		cfg:         cfg,
	}
}

// filter is a validated query. A zero limit or a nil minScore disables that
// filter.
type filter struct {
	limit    int
	minScore *decimal.Decimal
}

func (f filter) variant() string {
	switch {
	case f.minScore == nil:
		return fmt.Sprintf("top:%d", f.limit)
	case f.limit == 0:
		return "min:" + f.minScore.StringFixed(2)
	default:
		return fmt.Sprintf("top:%d:min:%s", f.limit, f.minScore.StringFixed(2))
	}
}

func (q *RecommendationQueryService) resolve(params RecommendationParams) (filter, error) {
	limit, minScore := params.Limit, params.MinScore
	if limit == nil && minScore == nil {
		l, m := q.cfg.DefaultLimit, q.cfg.DefaultMinScore
		limit, minScore = &l, &m
	}

	var f filter
	if limit != nil {
		if *limit < 1 || *limit > q.cfg.MaxLimit {
			return filter{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidQuery, q.cfg.MaxLimit)
		}
		f.limit = *limit
	}
	if minScore != nil {
		v := *minScore
		if math.IsNaN(v) || v < 0 || v > 100 {
			return filter{}, fmt.Errorf("%w: minScore must be between 0 and 100", ErrInvalidQuery)
		}
		d := decimal.NewFromFloat(v).Round(2)
		f.minScore = &d
	}
	return f, nil
}

func (q *RecommendationQueryService) GetRecommendations(ctx context.Context, projectID uuid.UUID, params RecommendationParams) ([]match.MatchScore, error) {
	f, err := q.resolve(params)
	if err != nil {
		return nil, err
	}
	if err := q.ensureProject(ctx, projectID); err != nil {
		return nil, err
	}

	variant := f.variant()
	if q.cache != nil {
		cached, ok, err := q.cache.Get(ctx, projectID, variant)
		if err != nil {
			q.log.Warn("recommendation cache read failed", map[string]interface{}{"project_id": projectID.String(), "error": err})
		}
		if ok {
			q.metrics.RecordCacheHit()
			return cached, nil
		}
	}
	q.metrics.RecordCacheMiss()

	// The generation is taken before the rows so a recompute that commits in
	// between makes the later cache write a no-op.
	gen, cacheable := q.generation(ctx, projectID)
	out, err := q.read(ctx, projectID, f)
	if err != nil {
		return nil, err
	}

	if len(out) == 0 {
		recomputed, err := q.recomputeOnMiss(ctx, projectID)
		if err != nil {
			return nil, err
		}
		if recomputed {
			gen, cacheable = q.generation(ctx, projectID)
			if out, err = q.read(ctx, projectID, f); err != nil {
				return nil, err
			}
		}
	}

	if cacheable {
		stored, err := q.cache.Set(ctx, projectID, variant, gen, out)
		switch {
		case err != nil:
			q.log.Warn("recommendation cache write failed", map[string]interface{}{"project_id": projectID.String(), "error": err})
		case !stored:
			q.log.Debug("recommendations superseded before caching", map[string]interface{}{"project_id": projectID.String(), "generation": gen})
		}
	}
	return out, nil
}

func (q *RecommendationQueryService) generation(ctx context.Context, projectID uuid.UUID) (int64, bool) {
	if q.cache == nil {
		return 0, false
	}
	gen, err := q.cache.Generation(ctx, projectID)
	if err != nil {
		q.log.Warn("recommendation cache generation read failed", map[string]interface{}{"project_id": projectID.String(), "error": err})
		return 0, false
	}
	return gen, true
}

// recomputeOnMiss recomputes a project that has no persisted scores at all
// and reports whether it did. A filter that excludes existing rows is not a
// miss. Concurrent misses for one project share a single recomputation that
// outlives any one caller's cancellation; Recompute bounds it with its own
// timeout.
func (q *RecommendationQueryService) recomputeOnMiss(ctx context.Context, projectID uuid.UUID) (bool, error) {
	n, err := q.scores.CountByProject(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if n > 0 {
		return false, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := q.missGroup.DoChan(projectID.String(), func() (interface{}, error) {
		q.metrics.RecordMissRecompute()
		return q.recommender.Recompute(shared, projectID)
	})
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return false, res.Err
		}
	}
	return true, nil
}

func (q *RecommendationQueryService) read(ctx context.Context, projectID uuid.UUID, f filter) ([]match.MatchScore, error) {
	var (
		out []match.MatchScore
		err error
	)
	switch {
	case f.minScore == nil:
		out, err = q.scores.FindTopN(ctx, projectID, f.limit)
	case f.limit == 0:
		out, err = q.scores.FindAboveMinScore(ctx, projectID, *f.minScore)
	default:
		out, err = q.scores.FindTopNAboveMinScore(ctx, projectID, f.limit, *f.minScore)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if out == nil {
		out = []match.MatchScore{}
	}
	return out, nil
}

func (q *RecommendationQueryService) GetRecommendation(ctx context.Context, projectID, freelancerID uuid.UUID) (match.MatchScore, error) {
	if err := q.ensureProject(ctx, projectID); err != nil {
		return match.MatchScore{}, err
	}
	if freelancerID == uuid.Nil {
		return match.MatchScore{}, ErrFreelancerNotFound
	}

	ms, err := q.scores.FindOne(ctx, projectID, freelancerID)
	if err == nil {
		return ms, nil
	}
	if !errors.Is(err, repository.ErrMatchScoreNotFound) {
		return match.MatchScore{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	exists, err := q.freelancers.FreelancerExists(ctx, freelancerID)
	if err != nil {
		return match.MatchScore{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !exists {
		return match.MatchScore{}, ErrFreelancerNotFound
	}
	return match.MatchScore{}, ErrRecommendationNotFound
}

// Recalculate recomputes unconditionally.
func (q *RecommendationQueryService) Recalculate(ctx context.Context, projectID uuid.UUID) (int, error) {
	return q.recommender.Recompute(ctx, projectID)
}

func (q *RecommendationQueryService) ensureProject(ctx context.Context, projectID uuid.UUID) error {
	if projectID == uuid.Nil {
		return ErrProjectNotFound
	}
	exists, err := q.projects.ProjectExists(ctx, projectID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !exists {
		return ErrProjectNotFound
	}
	return nil
}
