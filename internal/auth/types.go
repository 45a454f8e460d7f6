package auth

import (
	"errors"
	"regexp"

	"github.com/nerrad567/area-core/internal/entity"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// RegisteredUserRole is the reserved role given to every activated non-admin
// user. It is created at startup and can never be deleted.
const RegisteredUserRole = "RegisteredUser"

// User is a platform account.
type User struct {
	ID           int64            `json:"id"`
	Username     string           `json:"username"`
	Name         string           `json:"name"`
	Lastname     string           `json:"lastname"`
	Email        string           `json:"email,omitempty"`
	PasswordHash string           `json:"-"` // never serialised
	Admin        bool             `json:"admin"`
	Active       bool             `json:"active"`
	Roles        []Role           `json:"roles,omitempty"`
	CreatedAt    entity.Timestamp `json:"createdAt"`
	UpdatedAt    entity.Timestamp `json:"updatedAt"`
}

// Principal returns the identity the Guard evaluates for u.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Username: u.Username, Admin: u.Admin}
}

// Role groups per-resource permissions and is assigned to users.
type Role struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Permissions []Permission     `json:"permissions,omitempty"`
	CreatedAt   entity.Timestamp `json:"createdAt"`
}

// Permission is the mask one role holds on one resource type.
type Permission struct {
	ID        int64        `json:"id"`
	RoleID    int64        `json:"roleId"`
	Resource  ResourceType `json:"resource"`
	Name      string       `json:"name"`
	ActionIDs Mask         `json:"actionIds"`
}

// Actions lists the names of the granted actions.
func (p Permission) Actions() []string {
	return ActionNames(p.Resource, p.ActionIDs)
}

// Sentinel errors for auth operations.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserNotFound          = errors.New("user not found")
	ErrUserInactive          = errors.New("user account is inactive")
	ErrUserAlreadyActive     = errors.New("user account is already active")
	ErrUsernameExists        = errors.New("username already exists")
	ErrEmailExists           = errors.New("email already exists")
	ErrRoleNotFound          = errors.New("role not found")
	ErrRoleExists            = errors.New("role already exists")
	ErrReservedRole          = errors.New("role is reserved")
	ErrUnknownResource       = errors.New("unknown resource type")
	ErrUnknownAction         = errors.New("unknown action")
	ErrInvalidActivationCode = errors.New("invalid or expired activation code")
	ErrTokenInvalid          = errors.New("invalid token")
)
