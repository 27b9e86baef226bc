package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	createReportsSQL := mustSQL("create_session_reports.sql")
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createReportsSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS session_reports`)
			return err
		},
	)
}
