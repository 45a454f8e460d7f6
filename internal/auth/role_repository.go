package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

// RoleRepository persists roles, their permission masks and user membership.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	Delete(ctx context.Context, id int64) error
	DeleteAllExcept(ctx context.Context, keep string) (int64, error)

	Grant(ctx context.Context, roleID int64, resource ResourceType, bits Mask) (Mask, error)
	Revoke(ctx context.Context, roleID int64, resource ResourceType, bits Mask) (Mask, error)
	Permissions(ctx context.Context, roleID int64) ([]Permission, error)
	EnsureRoleWithPermissions(ctx context.Context, name, description string, grants map[ResourceType]Mask) (*Role, error)

	Assign(ctx context.Context, userID, roleID int64) error
	Unassign(ctx context.Context, userID, roleID int64) error
	RolesForUser(ctx context.Context, userID int64) ([]Role, error)
	HasRole(ctx context.Context, userID int64, name string) (bool, error)
	PermissionSet(ctx context.Context, userID int64) (PermissionSet, error)
}

// SQLiteRoleRepository implements RoleRepository using SQLite.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new SQLite-backed role repository.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

// Create inserts a role and sets its ID.
func (r *SQLiteRoleRepository) Create(ctx context.Context, role *Role) error {
	now := entity.Now()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO roles (name, description, created_at) VALUES (?, ?, ?)",
		role.Name, role.Description, now.Millis())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrRoleExists
		}
		return fmt.Errorf("creating role: %w", err)
	}
	role.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading role id: %w", err)
	}
	role.CreatedAt = now
	return nil
}

// GetByID returns the role with its permissions.
func (r *SQLiteRoleRepository) GetByID(ctx context.Context, id int64) (*Role, error) {
	return r.getRole(ctx, "SELECT id, name, description, created_at FROM roles WHERE id = ?", id)
}

// GetByName returns the role with its permissions.
func (r *SQLiteRoleRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.getRole(ctx, "SELECT id, name, description, created_at FROM roles WHERE name = ?", name)
}

func (r *SQLiteRoleRepository) getRole(ctx context.Context, query string, arg any) (*Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	role.Permissions, err = r.Permissions(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	return role, nil
}

// List returns every role with its permissions, ordered by id.
func (r *SQLiteRoleRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, description, created_at FROM roles ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	roles, err := collectRoles(rows)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		roles[i].Permissions, err = r.Permissions(ctx, roles[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return roles, nil
}

// Delete removes a role. The reserved RegisteredUser role is refused.
func (r *SQLiteRoleRepository) Delete(ctx context.Context, id int64) error {
	role, err := scanRole(r.db.QueryRowContext(ctx, "SELECT id, name, description, created_at FROM roles WHERE id = ?", id))
	if err != nil {
		return err
	}
	if role.Name == RegisteredUserRole {
		return ErrReservedRole
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM roles WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting role: %w", err)
	}
	return nil
}

// DeleteAllExcept removes every role other than keep, along with their
// permissions and memberships.
func (r *SQLiteRoleRepository) DeleteAllExcept(ctx context.Context, keep string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM roles WHERE name <> ?", keep)
	if err != nil {
		return 0, fmt.Errorf("deleting roles: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return n, nil
}

// grantSQL ORs bits into the single (role, resource) row in one statement,
// so concurrent grants never lose bits.
const grantSQL = `
	INSERT INTO permissions (role_id, resource, name, action_ids) VALUES (?, ?, ?, ?)
	ON CONFLICT (role_id, resource) DO UPDATE SET action_ids = action_ids | excluded.action_ids
	RETURNING action_ids`

// Grant adds bits to the role's mask on resource and returns the new mask.
func (r *SQLiteRoleRepository) Grant(ctx context.Context, roleID int64, resource ResourceType, bits Mask) (Mask, error) {
	return grant(ctx, r.db, roleID, resource, bits)
}

func grant(ctx context.Context, q database.Querier, roleID int64, resource ResourceType, bits Mask) (Mask, error) {
	if _, ok := actionTables[resource]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	var mask Mask
	err := q.QueryRowContext(ctx, grantSQL, roleID, string(resource), permissionName(resource), int64(bits)).Scan(&mask)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, ErrRoleNotFound
		}
		return 0, fmt.Errorf("granting %s on %s: %w", ActionNames(resource, bits), resource, err)
	}
	return mask, nil
}

// Revoke clears bits from the role's mask on resource and returns what is
// left. Revoking from a resource the role holds nothing on is a no-op.
func (r *SQLiteRoleRepository) Revoke(ctx context.Context, roleID int64, resource ResourceType, bits Mask) (Mask, error) {
	var mask Mask
	err := r.db.QueryRowContext(ctx,
		"UPDATE permissions SET action_ids = action_ids & ~? WHERE role_id = ? AND resource = ? RETURNING action_ids",
		int64(bits), roleID, string(resource)).Scan(&mask)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("revoking on %s: %w", resource, err)
	}
	return mask, nil
}

// Permissions lists a role's permission rows ordered by resource.
func (r *SQLiteRoleRepository) Permissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, role_id, resource, name, action_ids FROM permissions WHERE role_id = ? ORDER BY resource",
		roleID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []Permission{}
	for rows.Next() {
		var p Permission
		var resource string
		if err := rows.Scan(&p.ID, &p.RoleID, &resource, &p.Name, &p.ActionIDs); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		p.Resource = ResourceType(resource)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}

// EnsureRoleWithPermissions creates the role if it is missing and ORs grants
// into it, all in one transaction. Calling it again is harmless.
func (r *SQLiteRoleRepository) EnsureRoleWithPermissions(ctx context.Context, name, description string, grants map[ResourceType]Mask) (*Role, error) {
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO roles (name, description, created_at) VALUES (?, ?, ?)",
			name, description, entity.Now().Millis()); err != nil {
			return fmt.Errorf("creating role %s: %w", name, err)
		}
		var roleID int64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM roles WHERE name = ?", name).Scan(&roleID); err != nil {
			return fmt.Errorf("loading role %s: %w", name, err)
		}
		for _, resource := range ResourceTypes() {
			bits, ok := grants[resource]
			if !ok {
				continue
			}
			if _, err := grant(ctx, tx, roleID, resource, bits); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetByName(ctx, name)
}

// Assign adds the user to the role. Assigning twice is a no-op.
func (r *SQLiteRoleRepository) Assign(ctx context.Context, userID, roleID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role_id) VALUES (?, ?)", userID, roleID)
	if err == nil {
		return nil
	}
	if !database.IsForeignKeyViolation(err) {
		return fmt.Errorf("assigning role: %w", err)
	}
	if ok, lookupErr := entity.Exists(ctx, r.db, "users", userID); lookupErr == nil && !ok {
		return ErrUserNotFound
	}
	return ErrRoleNotFound
}

// Unassign removes the user from the role.
func (r *SQLiteRoleRepository) Unassign(ctx context.Context, userID, roleID int64) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM user_roles WHERE user_id = ? AND role_id = ?", userID, roleID)
	if err != nil {
		return fmt.Errorf("unassigning role: %w", err)
	}
	return requireOneRow(result, ErrRoleNotFound)
}

// RolesForUser lists the user's roles, without permissions, ordered by id.
func (r *SQLiteRoleRepository) RolesForUser(ctx context.Context, userID int64) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.description, r.created_at
		FROM roles r JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = ? ORDER BY r.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	return collectRoles(rows)
}

// HasRole reports whether the user holds the named role.
func (r *SQLiteRoleRepository) HasRole(ctx context.Context, userID int64, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ? AND r.name = ?`, userID, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking role membership: %w", err)
	}
	return n > 0, nil
}

// PermissionSet ORs the masks of all the user's roles per resource.
func (r *SQLiteRoleRepository) PermissionSet(ctx context.Context, userID int64) (PermissionSet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.resource, p.action_ids
		FROM permissions p JOIN user_roles ur ON ur.role_id = p.role_id
		WHERE ur.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading permissions: %w", err)
	}
	defer rows.Close()

	set := PermissionSet{}
	for rows.Next() {
		var resource string
		var mask Mask
		if err := rows.Scan(&resource, &mask); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		set.Merge(ResourceType(resource), mask)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return set, nil
}

func scanRole(s scanner) (*Role, error) {
	var role Role
	var createdAt int64
	if err := s.Scan(&role.ID, &role.Name, &role.Description, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("scanning role: %w", err)
	}
	role.CreatedAt = entity.Timestamp(createdAt)
	return &role, nil
}

func collectRoles(rows *sql.Rows) ([]Role, error) {
	defer rows.Close()
	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// permissionName is the display name stored with each permission row.
func permissionName(resource ResourceType) string {
	return string(resource) + " permissions"
}
