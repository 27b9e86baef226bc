package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"classroom-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TaskSetLoader fetches task sets from a backing store (e.g., Postgres).
type TaskSetLoader interface {
	LoadTaskSet(ctx context.Context, id string) (domain.TaskSet, error)
}

// TaskSetRepository caches task sets in Redis and falls back to a loader on cache miss.
// Each set is stored as JSON: SET taskset:{id} <json> EX <ttl>
type TaskSetRepository struct {
	client *redis.Client
	loader TaskSetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewTaskSetRepository(client *redis.Client, loader TaskSetLoader, ttl time.Duration) *TaskSetRepository {
	return &TaskSetRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *TaskSetRepository) GetTaskSet(ctx context.Context, id string) (domain.TaskSet, error) {
	if ts, ok := r.fromCache(ctx, id); ok {
		return ts, nil
	}

	result, err, _ := r.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if ts, ok := r.fromCache(ctx, id); ok {
			return ts, nil
		}

		ts, err := r.loader.LoadTaskSet(ctx, id)
		if err != nil {
			return domain.TaskSet{}, err
		}
		if err := domain.ValidateTaskSet(ts); err != nil {
			return domain.TaskSet{}, err
		}

		if data, err := json.Marshal(ts); err == nil {
			_ = r.client.Set(ctx, r.key(id), data, r.ttlWithJitter()).Err()
		}
		return ts, nil
	})
	if err != nil {
		return domain.TaskSet{}, err
	}
	return result.(domain.TaskSet), nil
}

func (r *TaskSetRepository) fromCache(ctx context.Context, id string) (domain.TaskSet, bool) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		// redis.Nil or a transient error: fall through to the loader.
		return domain.TaskSet{}, false
	}
	var ts domain.TaskSet
	if err := json.Unmarshal(data, &ts); err != nil {
		return domain.TaskSet{}, false
	}
	return ts, true
}

func (r *TaskSetRepository) key(id string) string {
	return "taskset:" + id
}

func (r *TaskSetRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
