package usecase

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// projectLocks serializes work per project. Distinct projects never share a
// lock, and entries are dropped once nobody holds or waits for them.
type projectLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*projectLock
}

type projectLock struct {
	sem  chan struct{}
	refs int
}

func newProjectLocks() *projectLocks {
	return &projectLocks{entries: map[uuid.UUID]*projectLock{}}
}

// Lock blocks until the project is free or ctx is done.
func (l *projectLocks) Lock(ctx context.Context, projectID uuid.UUID) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[projectID]
	if !ok {
		e = &projectLock{sem: make(chan struct{}, 1)}
		l.entries[projectID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(projectID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(projectID, e)
		})
	}, nil
}

func (l *projectLocks) release(projectID uuid.UUID, e *projectLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, projectID)
	}
}

func (l *projectLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
