package auth

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/nerrad567/area-core/internal/infrastructure/database/dbtest"
)

// testDB returns a migrated temporary database, closed when the test ends.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	return dbtest.Open(t).DB
}

// quietLogger discards output so tests stay readable.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedTestUser creates an active user with a known password ("password123").
func seedTestUser(t *testing.T, db *sql.DB, username string, admin bool) *User {
	t.Helper()

	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &User{
		Username:     username,
		Name:         username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Admin:        admin,
		Active:       true,
	}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}
	return user
}

// seedTestRole creates a role holding grants.
func seedTestRole(t *testing.T, db *sql.DB, name string, grants map[ResourceType]Mask) *Role {
	t.Helper()
	role, err := NewRoleRepository(db).EnsureRoleWithPermissions(context.Background(), name, "", grants)
	if err != nil {
		t.Fatalf("creating test role %s: %v", name, err)
	}
	return role
}
