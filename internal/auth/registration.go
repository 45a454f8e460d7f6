package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/area-core/internal/entity"
)

const (
	minPasswordLength    = 8
	defaultActivationTTL = 24 * time.Hour
	maxPersonFieldLength = 255
)

// RegisterRequest is the data a new user supplies.
type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registrar creates inactive accounts and activates them with a one-time
// code. Activation gives a user without roles the RegisteredUser role.
type Registrar struct {
	users  UserRepository
	roles  RoleRepository
	codes  ActivationStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewRegistrar wires a Registrar. A zero ttl means 24 hours.
func NewRegistrar(users UserRepository, roles RoleRepository, codes ActivationStore, ttl time.Duration, logger *slog.Logger) *Registrar {
	if ttl <= 0 {
		ttl = defaultActivationTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{users: users, roles: roles, codes: codes, ttl: ttl, logger: logger}
}

// Register validates req, stores an inactive user and returns it along with
// the activation code to deliver out of band.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*User, string, error) {
	if err := validateRegistration(req); err != nil {
		return nil, "", err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}
	user := &User{
		Username:     req.Username,
		Name:         req.Name,
		Lastname:     req.Lastname,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := r.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrUsernameExists):
			return nil, "", entity.NewDuplicateError("username")
		case errors.Is(err, ErrEmailExists):
			return nil, "", entity.NewDuplicateError("email")
		}
		return nil, "", err
	}

	code := uuid.NewString()
	if err := r.codes.Put(ctx, user.ID, code, r.ttl); err != nil {
		return nil, "", err
	}

	r.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, code, nil
}

// Activate consumes code for username and marks the account active.
func (r *Registrar) Activate(ctx context.Context, username, code string) (*User, error) {
	user, err := r.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidActivationCode
		}
		return nil, err
	}
	if user.Active {
		return nil, ErrUserAlreadyActive
	}

	ok, err := r.codes.Consume(ctx, user.ID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidActivationCode
	}

	if err := r.users.SetActive(ctx, user.ID, true); err != nil {
		return nil, err
	}
	user.Active = true

	if !user.Admin {
		if err := r.assignDefaultRole(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	user.Roles, err = r.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("user activated", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (r *Registrar) assignDefaultRole(ctx context.Context, userID int64) error {
	current, err := r.roles.RolesForUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(current) > 0 {
		return nil
	}
	role, err := r.roles.GetByName(ctx, RegisteredUserRole)
	if err != nil {
		return fmt.Errorf("loading default role: %w", err)
	}
	return r.roles.Assign(ctx, userID, role.ID)
}

func validateRegistration(req RegisterRequest) error {
	var v entity.Validator
	if !IsValidUsername(req.Username) {
		v.Add("user-username", "must be 1-64 letters, digits, dots, hyphens or underscores", req.Username)
	}
	v.Text("user-name", req.Name, maxPersonFieldLength)
	v.Text("user-lastname", req.Lastname, maxPersonFieldLength)
	if req.Email == "" {
		v.NotEmpty("user-email", req.Email)
	} else if _, err := mail.ParseAddress(req.Email); err != nil || strings.ContainsAny(req.Email, "<> ") {
		v.Add("user-email", "must be a well-formed email address", req.Email)
	}
	if len(req.Password) < minPasswordLength {
		v.Add("user-password", fmt.Sprintf("size must be at least %d", minPasswordLength), nil)
	}
	return v.Err()
}
