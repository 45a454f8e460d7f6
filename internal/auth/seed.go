package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes for a generated admin password.
const seedPasswordBytes = 16

// RegisteredUserGrants is the permission set of the RegisteredUser role:
// everything on areas, CRUD on projects and devices.
func RegisteredUserGrants() map[ResourceType]Mask {
	return map[ResourceType]Mask{
		ResourceArea:    FullMask(ResourceArea),
		ResourceProject: FullMask(ResourceProject),
		ResourceDevice:  FullMask(ResourceDevice),
	}
}

// SeedRegisteredUserRole makes sure the RegisteredUser role exists with at
// least its default grants. Safe to run on every start.
func SeedRegisteredUserRole(ctx context.Context, roles RoleRepository, logger *slog.Logger) (*Role, error) {
	role, err := roles.EnsureRoleWithPermissions(ctx, RegisteredUserRole,
		"Default role of every activated user", RegisteredUserGrants())
	if err != nil {
		return nil, fmt.Errorf("seeding %s role: %w", RegisteredUserRole, err)
	}
	logger.Info("default role ready", "role", role.Name, "role_id", role.ID)
	return role, nil
}

// AdminSeed describes the bootstrap administrator.
type AdminSeed struct {
	Username string
	Email    string
	Password string
}

// SeedAdmin creates the bootstrap administrator if no user has its username.
// When no password is configured one is generated and logged; it must be
// changed immediately. Returns the password used, or "" when seeding was
// skipped.
func SeedAdmin(ctx context.Context, users UserRepository, seed AdminSeed, logger *slog.Logger) (string, error) {
	if seed.Username == "" {
		return "", fmt.Errorf("admin username is required")
	}
	_, err := users.GetByUsername(ctx, seed.Username)
	if err == nil {
		logger.Info("admin exists, skipping seed", "username", seed.Username)
		return "", nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return "", fmt.Errorf("checking admin account: %w", err)
	}

	password := seed.Password
	generated := password == ""
	if generated {
		passwordBytes := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
			return "", fmt.Errorf("generating admin password: %w", err)
		}
		password = hex.EncodeToString(passwordBytes)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing admin password: %w", err)
	}

	admin := &User{
		Username:     seed.Username,
		Name:         "Admin",
		Lastname:     "Admin",
		Email:        seed.Email,
		PasswordHash: hash,
		Admin:        true,
		Active:       true,
	}
	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating admin: %w", err)
	}

	if generated {
		logger.Warn("admin account created",
			"username", seed.Username,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("admin account created", "username", seed.Username)
	}
	return password, nil
}
