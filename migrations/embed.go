// Package migrations embeds the SQL schema files into the binary so the
// server and the admin CLI can migrate without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
