package usecase

import (
	"context"
	"time"

	"freelance-match/internal/domain/match"

	"github.com/google/uuid"
)

// RecommendationCache is satisfied by cache.RecommendationCache. Failures
// are logged and otherwise ignored.
type RecommendationCache interface {
	Get(ctx context.Context, projectID uuid.UUID, variant string) ([]match.MatchScore, bool, error)
	// Generation is advanced by every InvalidateProject.
	Generation(ctx context.Context, projectID uuid.UUID) (int64, error)
	// Set stores scores only while the project is still at gen and reports
	// whether it did.
	Set(ctx context.Context, projectID uuid.UUID, variant string, gen int64, scores []match.MatchScore) (bool, error)
	InvalidateProject(ctx context.Context, projectID uuid.UUID) error
}

// Recorder is satisfied by *metrics.Manager.
type Recorder interface {
	RecordRecompute(outcome string, d time.Duration, candidates, persisted int)
	RecordCacheHit()
	RecordCacheMiss()
	RecordMissRecompute()
}

type noopRecorder struct{}

func (noopRecorder) RecordRecompute(string, time.Duration, int, int) {}
func (noopRecorder) RecordCacheHit()                                 {}
func (noopRecorder) RecordCacheMiss()                                {}
func (noopRecorder) RecordMissRecompute()                            {}
