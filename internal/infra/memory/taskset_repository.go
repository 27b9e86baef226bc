package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// TaskSetLoader fetches task sets from a backing store (e.g., Postgres).
type TaskSetLoader interface {
	LoadTaskSet(ctx context.Context, id string) (domain.TaskSet, error)
}

// TaskSetRepository caches task sets with TTL to avoid repeated DB hits.
type TaskSetRepository struct {
	loader TaskSetLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedTaskSet
}

type cachedTaskSet struct {
	taskSet   domain.TaskSet
	expiresAt time.Time
}

func NewTaskSetRepository(loader TaskSetLoader, ttl time.Duration) *TaskSetRepository {
	return &TaskSetRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedTaskSet),
	}
}

func (r *TaskSetRepository) GetTaskSet(ctx context.Context, id string) (domain.TaskSet, error) {
	if ts, ok := r.cached(id); ok {
		return ts, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		if ts, ok := r.cached(id); ok {
			return ts, nil
		}

		ts, err := r.loader.LoadTaskSet(ctx, id)
		if err != nil {
			return domain.TaskSet{}, err
		}
		if err := domain.ValidateTaskSet(ts); err != nil {
			return domain.TaskSet{}, err
		}

		r.mu.Lock()
		r.cache[id] = cachedTaskSet{
			taskSet:   ts,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return ts, nil
	})
	if err != nil {
		return domain.TaskSet{}, err
	}
	return result.(domain.TaskSet), nil
}

func (r *TaskSetRepository) cached(id string) (domain.TaskSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[id]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return domain.TaskSet{}, false
	}
	return entry.taskSet, true
}

// StaticTaskSetLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticTaskSetLoader struct {
	taskSets map[string]domain.TaskSet
}

func NewStaticTaskSetLoader(taskSets map[string]domain.TaskSet) *StaticTaskSetLoader {
	return &StaticTaskSetLoader{taskSets: taskSets}
}

func (l *StaticTaskSetLoader) LoadTaskSet(_ context.Context, id string) (domain.TaskSet, error) {
	if ts, ok := l.taskSets[id]; ok {
		return ts, nil
	}
	return domain.TaskSet{}, domain.ErrTaskSetNotFound
}

func (r *TaskSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
