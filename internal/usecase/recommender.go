package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelance-match/internal/domain/match"
	"freelance-match/internal/domain/matching"
	"freelance-match/internal/pkg/logger"
	"freelance-match/internal/pkg/metrics"
	"freelance-match/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type RecommenderConfig struct {
	TopN        int
	Parallelism int
	// Timeout bounds one recomputation, including shared recomputes that no
	// longer follow their caller's cancellation. Defaults to 15s.
	Timeout time.Duration
}

type Recommender interface {
	// Recompute replaces the project's persisted recommendations and returns
	// how many rows were written.
	Recompute(ctx context.Context, projectID uuid.UUID) (int, error)
}

type RecommenderService struct {
	projects    repository.ProjectSkillRepository
	freelancers repository.FreelancerRepository
	scores      repository.MatchScoreRepository
	cache       RecommendationCache
	metrics     Recorder
	log         logger.Logger
	cfg         RecommenderConfig

	locks *projectLocks
	now   func() time.Time
}

func NewRecommender(
	projects repository.ProjectSkillRepository,
	freelancers repository.FreelancerRepository,
	scores repository.MatchScoreRepository,
	cache RecommendationCache,
	rec Recorder,
	log logger.Logger,
	cfg RecommenderConfig,
) *RecommenderService {
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if rec == nil {
		rec = noopRecorder{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RecommenderService{
		projects:    projects,
		freelancers: freelancers,
		scores:      scores,
		cache:       cache,
		metrics:     rec,
		log:         log,
		cfg:         cfg,
		locks:       newProjectLocks(),
		now:         time.Now,
	}
}

func (s *RecommenderService) Recompute(ctx context.Context, projectID uuid.UUID) (int, error) {
	if projectID == uuid.Nil {
		return 0, ErrProjectNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	log := s.log.WithFields(map[string]interface{}{"project_id": projectID.String()})

	unlock, err := s.locks.Lock(ctx, projectID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	candidates, n, err := s.recompute(ctx, projectID)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		s.metrics.RecordRecompute(metrics.OutcomeSuccess, elapsed, candidates, n)
		log.Info("recommendations recomputed", map[string]interface{}{
			"candidates":  candidates,
			"persisted":   n,
			"duration_ms": elapsed.Milliseconds(),
		})
	case errors.Is(err, ErrNoRequiredSkills):
		s.metrics.RecordRecompute(metrics.OutcomeNoRequiredSkills, elapsed, 0, 0)
		log.Warn("recompute skipped: project has no required skills", nil)
	case errors.Is(err, ErrProjectNotFound):
	default:
		s.metrics.RecordRecompute(metrics.OutcomeError, elapsed, candidates, 0)
		log.WithError(err).Error("recompute failed", map[string]interface{}{"candidates": candidates})
	}
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateProject(ctx, projectID); err != nil {
			log.Warn("cache invalidation failed", map[string]interface{}{"error": err})
		}
	}
	return n, nil
}

// recompute returns the candidate count and the persisted row count.
func (s *RecommenderService) recompute(ctx context.Context, projectID uuid.UUID) (int, int, error) {
	exists, err := s.projects.ProjectExists(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: load project: %w", ErrInternal, err)
	}
	if !exists {
		return 0, 0, ErrProjectNotFound
	}

	names, err := s.projects.FindRequiredSkillNames(ctx, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: load required skills: %w", ErrInternal, err)
	}
	required := matching.NormalizeSkillNames(names)
	if len(required) == 0 {
		return 0, 0, ErrNoRequiredSkills
	}

	pool, err := s.freelancers.ListAvailable(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: load freelancers: %w", ErrInternal, err)
	}

	cands, err := s.scoreAll(ctx, required, pool)
	if err != nil {
		return len(pool), 0, err
	}

	ranked := matching.RankTopN(cands, s.cfg.TopN)
	// Postgres keeps microseconds; truncating keeps reads equal to writes.
	computedAt := s.now().UTC().Truncate(time.Microsecond)
	rows := match.FromRanked(projectID, ranked, computedAt)

	if err := s.scores.ReplaceForProject(ctx, projectID, rows); err != nil {
		return len(pool), 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return len(pool), len(rows), nil
}

// scoreAll scores every profile concurrently. Results keep the pool order so
// ranking ties resolve the same way as a sequential pass.
func (s *RecommenderService) scoreAll(ctx context.Context, required []string, pool []repository.FreelancerProfile) ([]matching.Candidate, error) {
	out := make([]matching.Candidate, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i := range pool {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := pool[i]
			res, err := matching.Score(required, p.Skills, p.Signals())
			if err != nil {
				return fmt.Errorf("%w: score freelancer %s: %w", ErrInternal, p.ID, err)
			}
			out[i] = matching.Candidate{FreelancerID: p.ID, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
