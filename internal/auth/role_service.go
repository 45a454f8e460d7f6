package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/nerrad567/area-core/internal/entity"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 3000
)

// RoleService exposes role management behind the Guard and keeps the
// Guard's snapshot cache coherent with every write.
type RoleService struct {
	roles RoleRepository
	guard *Guard
}

// NewRoleService wires a RoleService.
func NewRoleService(roles RoleRepository, guard *Guard) *RoleService {
	return &RoleService{roles: roles, guard: guard}
}

// List returns every role with its permissions.
func (s *RoleService) List(ctx context.Context) ([]Role, error) {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionFindAll); err != nil {
		return nil, err
	}
	return s.roles.List(ctx)
}

// ListPaginated returns one page of the roles ordered by id.
func (s *RoleService) ListPaginated(ctx context.Context, req entity.PageRequest) (entity.Page[Role], error) {
	roles, err := s.List(ctx)
	if err != nil {
		return entity.Page[Role]{}, err
	}
	return entity.Paginate(roles, req), nil
}

// Create adds an empty role.
func (s *RoleService) Create(ctx context.Context, role *Role) error {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionSave); err != nil {
		return err
	}
	var v entity.Validator
	role.Name = strings.TrimSpace(role.Name)
	v.NotEmpty("role-name", role.Name)
	v.Text("role-name", role.Name, maxNameLength)
	v.Text("role-description", role.Description, maxDescriptionLength)
	if err := v.Err(); err != nil {
		return err
	}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, ErrRoleExists) {
			return entity.NewDuplicateError("name")
		}
		return err
	}
	return nil
}

// Delete removes a role and its memberships.
func (s *RoleService) Delete(ctx context.Context, id int64) error {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionRemove); err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, id); err != nil {
		return err
	}
	s.guard.InvalidateAll()
	return nil
}

// Grant ORs the named actions into the role's mask on resource.
func (s *RoleService) Grant(ctx context.Context, roleID int64, resource ResourceType, actions []string) (Mask, error) {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionUpdate); err != nil {
		return 0, err
	}
	bits, err := s.parse(resource, actions)
	if err != nil {
		return 0, err
	}
	mask, err := s.roles.Grant(ctx, roleID, resource, bits)
	if err != nil {
		return 0, err
	}
	s.guard.InvalidateAll()
	return mask, nil
}

// Revoke clears the named actions from the role's mask on resource.
func (s *RoleService) Revoke(ctx context.Context, roleID int64, resource ResourceType, actions []string) (Mask, error) {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionUpdate); err != nil {
		return 0, err
	}
	bits, err := s.parse(resource, actions)
	if err != nil {
		return 0, err
	}
	if _, err := s.roles.GetByID(ctx, roleID); err != nil {
		return 0, err
	}
	mask, err := s.roles.Revoke(ctx, roleID, resource, bits)
	if err != nil {
		return 0, err
	}
	s.guard.InvalidateAll()
	return mask, nil
}

// AssignMember adds a user to a role.
func (s *RoleService) AssignMember(ctx context.Context, roleID, userID int64) error {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionAssignMembers); err != nil {
		return err
	}
	if err := s.roles.Assign(ctx, userID, roleID); err != nil {
		return err
	}
	s.guard.Invalidate(userID)
	return nil
}

// RemoveMember takes a user out of a role.
func (s *RoleService) RemoveMember(ctx context.Context, roleID, userID int64) error {
	if err := s.guard.Authorize(ctx, ResourceRole, ActionRemoveMembers); err != nil {
		return err
	}
	if err := s.roles.Unassign(ctx, userID, roleID); err != nil {
		return err
	}
	s.guard.Invalidate(userID)
	return nil
}

func (s *RoleService) parse(resource ResourceType, actions []string) (Mask, error) {
	if _, ok := actionTables[resource]; !ok {
		return 0, entity.NewValidationError("permission-resource", "unknown resource type", string(resource))
	}
	bits, err := ParseActions(resource, actions)
	if err != nil {
		return 0, entity.NewValidationError("permission-actions", err.Error(), strings.Join(actions, ","))
	}
	if bits == 0 {
		return 0, entity.NewValidationError("permission-actions", "must not be empty", nil)
	}
	return bits, nil
}
