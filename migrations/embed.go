// Package migrations carries the daemon's schema, compiled into the
// binary so a freshly flashed brick needs no SQL files on disk. Importing
// it (blank import from main) registers the embedded set with the
// database package; db.Migrate applies it on startup.
package migrations

import (
	"embed"

	"github.com/openbrick/brickd/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at the root of the embedded FS
}
