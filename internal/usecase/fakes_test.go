package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"freelance-match/internal/domain/match"
	"freelance-match/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fakeProjects struct {
	missing bool
	skills  []string
	err     error
}

func (f *fakeProjects) ProjectExists(context.Context, uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return !f.missing, nil
}

func (f *fakeProjects) FindRequiredSkillNames(context.Context, uuid.UUID) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.skills, nil
}

type fakeFreelancers struct {
	pool    []repository.FreelancerProfile
	err     error
	unknown bool
}

func (f *fakeFreelancers) ListAvailable(context.Context) ([]repository.FreelancerProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pool, nil
}

func (f *fakeFreelancers) FreelancerExists(context.Context, uuid.UUID) (bool, error) {
	return !f.unknown, nil
}

// memScores is an in-memory store that applies the same filters as the
// postgres queries.
type memScores struct {
	mu         sync.Mutex
	rows       map[uuid.UUID][]match.MatchScore
	replaceErr error
	replaces   atomic.Int32
	inReplace  atomic.Int32
	overlapped atomic.Bool
	delay      time.Duration
}

func newMemScores() *memScores {
	return &memScores{rows: map[uuid.UUID][]match.MatchScore{}}
}

func (m *memScores) ReplaceForProject(_ context.Context, projectID uuid.UUID, scores []match.MatchScore) error {
	if m.inReplace.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	defer m.inReplace.Add(-1)
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.replaces.Add(1)
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[projectID] = append([]match.MatchScore(nil), scores...)
	return nil
}

func (m *memScores) filter(projectID uuid.UUID, keep func(match.MatchScore) bool) []match.MatchScore {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []match.MatchScore{}
	for _, r := range m.rows[projectID] {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memScores) FindTopN(_ context.Context, projectID uuid.UUID, limit int) ([]match.MatchScore, error) {
	return m.filter(projectID, func(r match.MatchScore) bool { return r.Rank <= limit }), nil
}

func (m *memScores) FindAboveMinScore(_ context.Context, projectID uuid.UUID, minScore decimal.Decimal) ([]match.MatchScore, error) {
	return m.filter(projectID, func(r match.MatchScore) bool { return r.TotalScore.GreaterThanOrEqual(minScore) }), nil
}

func (m *memScores) FindTopNAboveMinScore(_ context.Context, projectID uuid.UUID, limit int, minScore decimal.Decimal) ([]match.MatchScore, error) {
	return m.filter(projectID, func(r match.MatchScore) bool {
		return r.Rank <= limit && r.TotalScore.GreaterThanOrEqual(minScore)
	}), nil
}

func (m *memScores) FindOne(_ context.Context, projectID, freelancerID uuid.UUID) (match.MatchScore, error) {
	got := m.filter(projectID, func(r match.MatchScore) bool { return r.FreelancerID == freelancerID })
	if len(got) == 0 {
		return match.MatchScore{}, repository.ErrMatchScoreNotFound
	}
	return got[0], nil
}

func (m *memScores) CountByProject(_ context.Context, projectID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows[projectID]), nil
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]match.MatchScore
	generations map[uuid.UUID]int64
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]match.MatchScore{}, generations: map[uuid.UUID]int64{}}
}

func (c *fakeCache) Get(_ context.Context, projectID uuid.UUID, variant string) ([]match.MatchScore, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[projectID.String()+":"+variant]
	return v, ok, nil
}

func (c *fakeCache) Generation(_ context.Context, projectID uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[projectID], nil
}

func (c *fakeCache) Set(_ context.Context, projectID uuid.UUID, variant string, gen int64, scores []match.MatchScore) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[projectID] != gen {
		return false, nil
	}
	c.entries[projectID.String()+":"+variant] = scores
	return true, nil
}

func (c *fakeCache) InvalidateProject(_ context.Context, projectID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, projectID)
	c.generations[projectID]++
	prefix := projectID.String() + ":"
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// gatedScores holds the first FindTopNAboveMinScore call open after it has
// loaded its rows, until release is closed.
type gatedScores struct {
	*memScores
	armed   atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func newGatedScores() *gatedScores {
	g := &gatedScores{memScores: newMemScores(), loaded: make(chan struct{}), release: make(chan struct{})}
	g.armed.Store(true)
	return g
}

func (g *gatedScores) FindTopNAboveMinScore(ctx context.Context, projectID uuid.UUID, limit int, minScore decimal.Decimal) ([]match.MatchScore, error) {
	out, err := g.memScores.FindTopNAboveMinScore(ctx, projectID, limit, minScore)
	if g.armed.CompareAndSwap(true, false) {
		close(g.loaded)
		<-g.release
	}
	return out, err
}

type countingRecommender struct {
	calls atomic.Int32
	fn    func(ctx context.Context, projectID uuid.UUID) (int, error)
}

func (r *countingRecommender) Recompute(ctx context.Context, projectID uuid.UUID) (int, error) {
	r.calls.Add(1)
	return r.fn(ctx, projectID)
}
