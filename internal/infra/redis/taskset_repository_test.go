package redis

import (
	"context"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestTaskSetRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		TaskSetLoader: memory.NewStaticTaskSetLoader(map[string]domain.TaskSet{
			"set-1": sampleTaskSet(),
		}),
	}
	repo := NewTaskSetRepository(client, loader, time.Minute)

	_, err = repo.GetTaskSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get task set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("taskset:set-1") {
		t.Fatalf("expected task set cached in redis")
	}

	// Second call should hit cache, loader not incremented.
	ts, err := repo.GetTaskSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get task set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if ts.Tasks[0].CorrectAnswer == nil || *ts.Tasks[0].CorrectAnswer != "4" {
		t.Fatalf("expected correct answer to survive the cache, got %+v", ts.Tasks[0])
	}
}

type countingLoader struct {
	memory.TaskSetLoader
	calls int
}

func (l *countingLoader) LoadTaskSet(ctx context.Context, id string) (domain.TaskSet, error) {
	l.calls++
	return l.TaskSetLoader.LoadTaskSet(ctx, id)
}

func sampleTaskSet() domain.TaskSet {
	answer := "4"
	return domain.TaskSet{
		ID: "set-1",
		Tasks: []domain.TaskDefinition{
			{Prompt: "What is 2 + 2?", CorrectAnswer: &answer, Options: []string{"3", "4"}, Points: 10},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
