package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"classroom-quiz-service/internal/domain"
)

func TestTaskSetRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		TaskSetLoader: NewStaticTaskSetLoader(map[string]domain.TaskSet{
			"set-1": sampleTaskSet(),
		}),
	}
	repo := NewTaskSetRepository(loader, time.Minute)

	if _, err := repo.GetTaskSet(context.Background(), "set-1"); err != nil {
		t.Fatalf("get task set: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	ts, err := repo.GetTaskSet(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("get task set 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
	if len(ts.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(ts.Tasks))
	}
}

func TestTaskSetRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		TaskSetLoader: NewStaticTaskSetLoader(map[string]domain.TaskSet{
			"set-1": sampleTaskSet(),
		}),
	}
	repo := NewTaskSetRepository(loader, time.Minute)
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, _ = repo.GetTaskSet(context.Background(), "set-1")
	now = now.Add(2 * time.Minute)
	_, _ = repo.GetTaskSet(context.Background(), "set-1")

	if loader.calls != 2 {
		t.Fatalf("expected reload after ttl, loader calls %d", loader.calls)
	}
}

func TestTaskSetRepositoryRejectsInvalidSets(t *testing.T) {
	repo := NewTaskSetRepository(NewStaticTaskSetLoader(map[string]domain.TaskSet{
		"bad": {ID: "bad", Tasks: []domain.TaskDefinition{{Prompt: ""}}},
	}), time.Minute)

	if _, err := repo.GetTaskSet(context.Background(), "bad"); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := repo.GetTaskSet(context.Background(), "missing"); !errors.Is(err, domain.ErrTaskSetNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	TaskSetLoader
	calls int
}

func (l *countingLoader) LoadTaskSet(ctx context.Context, id string) (domain.TaskSet, error) {
	l.calls++
	return l.TaskSetLoader.LoadTaskSet(ctx, id)
}

func sampleTaskSet() domain.TaskSet {
	answer := "4"
	return domain.TaskSet{
		ID:    "set-1",
		Title: "Warm-up",
		Tasks: []domain.TaskDefinition{
			{Prompt: "What is 2 + 2?", CorrectAnswer: &answer, Options: []string{"3", "4", "5"}, Type: domain.TaskTypeMultipleChoice},
			{Prompt: "Describe a triangle"},
		},
	}
}
