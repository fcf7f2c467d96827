package app

import (
	"context"
	"errors"
	"time"

	"freelance-match/internal/config"
	"freelance-match/internal/database"
	dbpostgres "freelance-match/internal/database/postgres"
	"freelance-match/internal/infrastructure/cache"
	"freelance-match/internal/pkg/logger"
	"freelance-match/internal/pkg/metrics"
	"freelance-match/internal/repository"
	"freelance-match/internal/usecase"
)

type Container struct {
	Config  config.Config
	Log     logger.Logger
	DB      database.DB
	Redis   *cache.Redis
	Metrics *metrics.Manager

	Recommender usecase.Recommender
	Query       usecase.RecommendationQuery
}

// NewContainer connects postgres and redis and builds the usecases.
func NewContainer(ctx context.Context, cfg config.Config, log logger.Logger) (*Container, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := dbpostgres.Connect(connectCtx, cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	rdb := cache.NewRedis(ctx, cfg.Database.Redis, log)

	return Wire(cfg, log, db, rdb, metrics.NewManager()), nil
}

// Wire builds the usecases on already opened handles.
func Wire(cfg config.Config, log logger.Logger, db database.DB, rdb *cache.Redis, m *metrics.Manager) *Container {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	projects := repository.NewPostgresProjectSkillRepository(db)
	freelancers := repository.NewPostgresFreelancerRepository(db)
	scores := repository.NewPostgresMatchScoreRepository(db)

	var recCache usecase.RecommendationCache
	if rdb.Enabled() {
		recCache = cache.NewRecommendationCache(rdb, cfg.Matching.CacheTTL)
	}

	recommender := usecase.NewRecommender(projects, freelancers, scores, recCache, m,
		log.WithFields(map[string]interface{}{"component": "recommender"}),
		usecase.RecommenderConfig{
			TopN:        cfg.Matching.TopN,
			Parallelism: cfg.Matching.Parallelism,
			Timeout:     cfg.Matching.RecomputeTimeout,
		})

	query := usecase.NewRecommendationQuery(projects, freelancers, scores, recommender, recCache, m,
		log.WithFields(map[string]interface{}{"component": "recommendation_query"}),
		usecase.QueryConfig{
			DefaultLimit:    cfg.Matching.DefaultLimit,
			MaxLimit:        cfg.Matching.MaxLimit,
			DefaultMinScore: cfg.Matching.DefaultMinScore,
		})

	return &Container{
		Config:      cfg,
		Log:         log,
		DB:          db,
		Redis:       rdb,
		Metrics:     m,
		Recommender: recommender,
		Query:       query,
	}
}

func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
