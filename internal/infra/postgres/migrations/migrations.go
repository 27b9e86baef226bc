package migrations

import (
	"embed"

	"github.com/uptrace/bun/migrate"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Migrations holds the schema changes applied by `migrate` and on `start`.
var Migrations = migrate.NewMigrations()

func mustSQL(name string) string {
	data, err := sqlFiles.ReadFile("sql/" + name)
	if err != nil {
		panic(err)
	}
	return string(data)
}
