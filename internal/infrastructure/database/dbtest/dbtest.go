// Package dbtest opens throwaway SQLite databases with the real schema
// applied, for repository and service tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/area-core/internal/infrastructure/database"
	_ "github.com/nerrad567/area-core/migrations" // registers the embedded schema
)

// Open creates a migrated database under t.TempDir. It is closed on cleanup.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "area-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

// User inserts an active user directly and returns its id. The password hash
// is a placeholder; tests that log in must go through the auth package.
func User(t testing.TB, db *database.DB, username string, admin bool) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		`INSERT INTO users (username, email, password_hash, is_admin, is_active, created_at, updated_at)
		 VALUES (?, ?, 'x', ?, 1, 0, 0)`,
		username, username+"@example.com", boolInt(admin))
	if err != nil {
		t.Fatalf("inserting user %s: %v", username, err)
	}
	id, _ := res.LastInsertId() //nolint:errcheck // sqlite always reports it
	return id
}

// Project inserts a project owned by userID and returns its id.
func Project(t testing.TB, db *database.DB, name string, userID int64) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		`INSERT INTO projects (entity_version, entity_create_date, entity_modify_date, name, user_id)
		 VALUES (1, 1, 1, ?, ?)`, name, userID)
	if err != nil {
		t.Fatalf("inserting project %s: %v", name, err)
	}
	id, _ := res.LastInsertId() //nolint:errcheck // sqlite always reports it
	return id
}

// Device inserts a device in projectID and returns its id.
func Device(t testing.TB, db *database.DB, name string, projectID int64) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(),
		`INSERT INTO devices (entity_version, entity_create_date, entity_modify_date, device_name, project_id)
		 VALUES (1, 1, 1, ?, ?)`, name, projectID)
	if err != nil {
		t.Fatalf("inserting device %s: %v", name, err)
	}
	id, _ := res.LastInsertId() //nolint:errcheck // sqlite always reports it
	return id
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
