package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classroom-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TaskSetLoader loads task set JSONB from Postgres.
type TaskSetLoader struct {
	pool *pgxpool.Pool
}

func NewTaskSetLoader(pool *pgxpool.Pool) *TaskSetLoader {
	return &TaskSetLoader{pool: pool}
}

func (l *TaskSetLoader) LoadTaskSet(ctx context.Context, id string) (domain.TaskSet, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM task_sets WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TaskSet{}, fmt.Errorf("load task set %s: %w", id, domain.ErrTaskSetNotFound)
	}
	if err != nil {
		return domain.TaskSet{}, fmt.Errorf("load task set: %w", err)
	}
	var ts domain.TaskSet
	if err := json.Unmarshal(raw, &ts); err != nil {
		return domain.TaskSet{}, fmt.Errorf("unmarshal task set: %w", err)
	}
	if ts.ID == "" {
		ts.ID = id
	}
	return ts, nil
}

// SaveTaskSet upserts a task set; used for seeding and by operators.
func (l *TaskSetLoader) SaveTaskSet(ctx context.Context, ts domain.TaskSet) error {
	data, err := json.Marshal(ts)
	if err != nil {
		return fmt.Errorf("marshal task set: %w", err)
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO task_sets (id, data) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`, ts.ID, string(data))
	if err != nil {
		return fmt.Errorf("save task set: %w", err)
	}
	return nil
}
