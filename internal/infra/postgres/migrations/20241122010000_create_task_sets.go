package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	createTaskSetsSQL := mustSQL("create_task_sets.sql")
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createTaskSetsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS task_sets`)
			return err
		},
	)
}
