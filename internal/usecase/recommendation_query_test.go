package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"freelance-match/internal/domain/match"
	"freelance-match/internal/domain/matching"
	"freelance-match/internal/infrastructure/cache"
	"freelance-match/internal/pkg/logger"
	"freelance-match/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func seedScores(projectID uuid.UUID, totals ...string) []match.MatchScore {
	out := make([]match.MatchScore, 0, len(totals))
	for i, t := range totals {
		out = append(out, match.MatchScore{
			ProjectID:    projectID,
			FreelancerID: seqID(i + 1),
			TotalScore:   decimal.RequireFromString(t),
			Rank:         i + 1,
		})
	}
	return out
}

type queryFixture struct {
	projects    *fakeProjects
	freelancers *fakeFreelancers
	scores      *memScores
	cache       *fakeCache
	recommender *countingRecommender
	svc         *RecommendationQueryService
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	f := &queryFixture{
		projects:    &fakeProjects{skills: []string{"Go"}},
		freelancers: &fakeFreelancers{},
		scores:      newMemScores(),
		cache:       newFakeCache(),
	}
	f.recommender = &countingRecommender{fn: func(context.Context, uuid.UUID) (int, error) { return 0, nil }}
	f.svc = NewRecommendationQuery(f.projects, f.freelancers, f.scores, f.recommender, f.cache, nil,
		logger.NewTestLogger(t), QueryConfig{DefaultLimit: 10, MaxLimit: 100, DefaultMinScore: 60})
	return f
}

func TestGetRecommendations_DefaultsApplyBothFilters(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	f.scores.rows[projectID] = seedScores(projectID, "90.00", "75.50", "60.00", "59.99", "10.00")

	got, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, ranksOf(got))
	assert.EqualValues(t, 0, f.recommender.calls.Load())
}

func TestGetRecommendations_FilterSelection(t *testing.T) {
	projectID := uuid.New()
	tests := []struct {
		name   string
		params RecommendationParams
		ranks  []int
	}{
		{"limit only ignores score", RecommendationParams{Limit: intPtr(4)}, []int{1, 2, 3, 4}},
		{"min score only ignores rank", RecommendationParams{MinScore: floatPtr(59.99)}, []int{1, 2, 3, 4}},
		{"both filters", RecommendationParams{Limit: intPtr(2), MinScore: floatPtr(50)}, []int{1, 2}},
		{"min score zero keeps all", RecommendationParams{MinScore: floatPtr(0)}, []int{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newQueryFixture(t)
			f.scores.rows[projectID] = seedScores(projectID, "90.00", "75.50", "60.00", "59.99", "10.00")

			got, err := f.svc.GetRecommendations(context.Background(), projectID, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.ranks, ranksOf(got))
		})
	}
}

func TestGetRecommendations_InvalidParams(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()

	for _, p := range []RecommendationParams{
		{Limit: intPtr(0)},
		{Limit: intPtr(101)},
		{MinScore: floatPtr(-1)},
		{MinScore: floatPtr(100.5)},
		{MinScore: floatPtr(math.NaN())},
	} {
		_, err := f.svc.GetRecommendations(context.Background(), projectID, p)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
}

func TestGetRecommendations_UnknownProject(t *testing.T) {
	f := newQueryFixture(t)
	f.projects.missing = true

	_, err := f.svc.GetRecommendations(context.Background(), uuid.New(), RecommendationParams{})
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.EqualValues(t, 0, f.recommender.calls.Load())
}

func TestGetRecommendations_MissTriggersOneRecompute(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	f.recommender.fn = func(ctx context.Context, id uuid.UUID) (int, error) {
		rows := seedScores(id, "80.00", "70.00")
		return len(rows), f.scores.ReplaceForProject(ctx, id, rows)
	}

	got, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{Limit: intPtr(10)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.EqualValues(t, 1, f.recommender.calls.Load())
}

func TestGetRecommendations_FilteredOutIsNotAMiss(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	f.scores.rows[projectID] = seedScores(projectID, "40.00")

	got, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{MinScore: floatPtr(60)})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.EqualValues(t, 0, f.recommender.calls.Load())
}

func TestGetRecommendations_RecomputeErrorPropagates(t *testing.T) {
	f := newQueryFixture(t)
	f.recommender.fn = func(context.Context, uuid.UUID) (int, error) { return 0, ErrNoRequiredSkills }

	_, err := f.svc.GetRecommendations(context.Background(), uuid.New(), RecommendationParams{})
	assert.ErrorIs(t, err, ErrNoRequiredSkills)
}

func TestGetRecommendations_ConcurrentMissesShareRecompute(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	release := make(chan struct{})
	f.recommender.fn = func(ctx context.Context, id uuid.UUID) (int, error) {
		<-release
		rows := seedScores(id, "80.00")
		return 1, f.scores.ReplaceForProject(ctx, id, rows)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{Limit: intPtr(5)})
			assert.NoError(t, err)
			assert.Len(t, got, 1)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, f.recommender.calls.Load())
}

func TestGetRecommendations_ServesFromCache(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	f.scores.rows[projectID] = seedScores(projectID, "90.00")

	_, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{Limit: intPtr(5)})
	require.NoError(t, err)

	f.scores.rows[projectID] = seedScores(projectID, "90.00", "80.00")
	got, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{Limit: intPtr(5)})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, f.cache.InvalidateProject(context.Background(), projectID))
	got, err = f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{Limit: intPtr(5)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetRecommendations_RecomputeDuringReadIsNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	recCache := cache.NewRecommendationCache(cache.NewRedisWithClient(client, logger.NewTestLogger(t)), time.Minute)

	projectID := uuid.New()
	previous, current := seqID(2), seqID(1)
	scores := newGatedScores()
	scores.rows[projectID] = []match.MatchScore{{
		ProjectID:    projectID,
		FreelancerID: previous,
		TotalScore:   decimal.RequireFromString("80.00"),
		Rank:         1,
	}}
	projects := &fakeProjects{skills: []string{"Go"}}
	freelancers := &fakeFreelancers{pool: []repository.FreelancerProfile{
		profile(current, 0, 0, "0", skill("Go", matching.ProficiencyExpert)),
	}}

	recommender := NewRecommender(projects, freelancers, scores, recCache, nil, logger.NewTestLogger(t),
		RecommenderConfig{TopN: 10, Parallelism: 1})
	svc := NewRecommendationQuery(projects, freelancers, scores, recommender, recCache, nil,
		logger.NewTestLogger(t), QueryConfig{DefaultLimit: 10, MaxLimit: 100, DefaultMinScore: 60})
	params := RecommendationParams{Limit: intPtr(10), MinScore: floatPtr(50)}
	key := cache.RecommendationKey(projectID, "top:10:min:50.00")

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_, err := svc.GetRecommendations(context.Background(), projectID, params)
		assert.NoError(t, err)
	}()

	<-scores.loaded
	n, err := recommender.Recompute(context.Background(), projectID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	close(scores.release)
	<-readDone

	assert.False(t, mr.Exists(key), "rows read before the recompute must not be cached")

	got, err := svc.GetRecommendations(context.Background(), projectID, params)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, current, got[0].FreelancerID)

	cached, ok, err := recCache.Get(context.Background(), projectID, "top:10:min:50.00")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 1)
	assert.Equal(t, current, cached[0].FreelancerID)
}

func TestGetRecommendations_SharedRecomputeSurvivesCallerCancellation(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	release := make(chan struct{})
	recomputeErr := make(chan error, 1)
	f.recommender.fn = func(ctx context.Context, id uuid.UUID) (int, error) {
		<-release
		recomputeErr <- ctx.Err()
		rows := seedScores(id, "80.00")
		return 1, f.scores.ReplaceForProject(ctx, id, rows)
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := f.svc.GetRecommendations(ctx, projectID, RecommendationParams{Limit: intPtr(5)})
		firstDone <- err
	}()
	require.Eventually(t, func() bool { return f.recommender.calls.Load() == 1 }, time.Second, time.Millisecond)

	secondDone := make(chan []match.MatchScore, 1)
	go func() {
		got, err := f.svc.GetRecommendations(context.Background(), projectID, RecommendationParams{Limit: intPtr(5)})
		assert.NoError(t, err)
		secondDone <- got
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstDone, context.Canceled)

	close(release)
	assert.NoError(t, <-recomputeErr)
	assert.Len(t, <-secondDone, 1)
	assert.EqualValues(t, 1, f.recommender.calls.Load())
}

func TestGetRecommendation(t *testing.T) {
	f := newQueryFixture(t)
	projectID := uuid.New()
	f.scores.rows[projectID] = seedScores(projectID, "90.00")

	got, err := f.svc.GetRecommendation(context.Background(), projectID, seqID(1))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Rank)

	_, err = f.svc.GetRecommendation(context.Background(), projectID, seqID(9))
	assert.ErrorIs(t, err, ErrRecommendationNotFound)

	f.freelancers.unknown = true
	_, err = f.svc.GetRecommendation(context.Background(), projectID, seqID(9))
	assert.ErrorIs(t, err, ErrFreelancerNotFound)
}

func TestRecalculate_AlwaysRecomputes(t *testing.T) {
	f := newQueryFixture(t)
	f.recommender.fn = func(context.Context, uuid.UUID) (int, error) { return 7, nil }

	n, err := f.svc.Recalculate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.EqualValues(t, 1, f.recommender.calls.Load())
}

func ranksOf(rows []match.MatchScore) []int {
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Rank)
	}
	return out
}
