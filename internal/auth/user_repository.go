package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
	DeleteNonAdmin(ctx context.Context) (int64, error)
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository stores accounts in SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository returns a repository over the users table.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = "id, username, name, lastname, email, password_hash, is_admin, is_active, created_at, updated_at"

// Create inserts a new user account and sets its ID.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	now := entity.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, name, lastname, email, password_hash, is_admin, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Username, user.Name, user.Lastname, nullString(user.Email),
		user.PasswordHash, boolToInt(user.Admin), boolToInt(user.Active),
		now.Millis(), now.Millis(),
	)
	if err != nil {
		return mapUserWriteError("creating user", err)
	}

	user.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	return nil
}

// GetByID loads one account or returns ErrUserNotFound.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetByUsername looks an account up by its login name.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// List returns all users ordered by id.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Update modifies a user's profile and flags.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	now := entity.Now()

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, lastname = ?, email = ?, is_admin = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Lastname, nullString(user.Email), boolToInt(user.Admin), boolToInt(user.Active), now.Millis(), user.ID,
	)
	if err != nil {
		return mapUserWriteError("updating user", err)
	}
	if err := requireOneRow(result, ErrUserNotFound); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

// UpdatePassword replaces the stored Argon2id hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, entity.Now().Millis(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireOneRow(result, ErrUserNotFound)
}

// SetActive flips the active flag.
func (r *SQLiteUserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), entity.Now().Millis(), id,
	)
	if err != nil {
		return fmt.Errorf("updating user state: %w", err)
	}
	return requireOneRow(result, ErrUserNotFound)
}

// Delete removes a user account by ID. Users still owning projects cannot be
// deleted.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireOneRow(result, ErrUserNotFound)
}

// DeleteNonAdmin removes every non-admin account and returns how many went.
// Projects must already be gone.
func (r *SQLiteUserRepository) DeleteNonAdmin(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE is_admin = 0")
	if err != nil {
		return 0, fmt.Errorf("deleting non-admin users: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// Count returns how many accounts exist, admins included.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var email sql.NullString
	var isAdmin, isActive int
	var createdAt, updatedAt int64

	err := s.Scan(&u.ID, &u.Username, &u.Name, &u.Lastname, &email,
		&u.PasswordHash, &isAdmin, &isActive, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Email = email.String
	u.Admin = isAdmin != 0
	u.Active = isActive != 0
	u.CreatedAt = entity.Timestamp(createdAt)
	u.UpdatedAt = entity.Timestamp(updatedAt)
	return &u, nil
}

func mapUserWriteError(op string, err error) error {
	if database.IsUniqueViolation(err) {
		if strings.Contains(err.Error(), "users.email") {
			return ErrEmailExists
		}
		return ErrUsernameExists
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireOneRow(result sql.Result, notFound error) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
