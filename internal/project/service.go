package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/entity"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 3000

	auditEntity = "project"
)

// RemovalHook is told about a project just before it is deleted. It returns
// a function to run once the delete has committed, or nil.
type RemovalHook interface {
	PrepareProjectRemoval(ctx context.Context, projectID int64) (func(context.Context), error)
}

// Service exposes project operations behind the Guard and the ownership
// rule.
type Service struct {
	repo   Repository
	guard  *auth.Guard
	audit  audit.Sink
	hooks  []RemovalHook
	logger *slog.Logger
}

// NewService wires a Service. A nil sink disables auditing.
func NewService(repo Repository, guard *auth.Guard, sink audit.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, guard: guard, audit: sink, logger: logger}
}

// AddRemovalHook registers h for every later Remove.
func (s *Service) AddRemovalHook(h RemovalHook) {
	s.hooks = append(s.hooks, h)
}

// Owner returns the user id lists should be filtered by: 0 for admins, the
// caller's own id otherwise.
func Owner(ctx context.Context) (int64, error) {
	p, ok := auth.PrincipalFrom(ctx)
	if !ok {
		return 0, auth.ErrUnauthorized
	}
	if p.Admin {
		return 0, nil
	}
	return p.UserID, nil
}

// CheckAccess loads the project and confirms the caller owns it. It does not
// check any action bit; callers authorise their own resource first.
func (s *Service) CheckAccess(ctx context.Context, projectID int64) (*Project, error) {
	owner, err := Owner(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if owner != 0 && p.UserID != owner {
		return nil, auth.ErrUnauthorized
	}
	return p, nil
}

// Save creates a project owned by the caller. Admins may name another owner
// through UserID.
func (s *Service) Save(ctx context.Context, p *Project) error {
	if err := s.guard.Authorize(ctx, auth.ResourceProject, auth.ActionSave); err != nil {
		return err
	}
	principal, _ := auth.PrincipalFrom(ctx)
	if !principal.Admin || p.UserID <= 0 {
		p.UserID = principal.UserID
	}
	if err := validate(p); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return mapWriteError(err)
	}
	s.audit.Record(ctx, audit.ActionCreate, auditEntity, p.ID, map[string]any{"name": p.Name})
	return nil
}

// Update changes name and description. The stored owner always wins over
// whatever the caller sent.
func (s *Service) Update(ctx context.Context, p *Project) error {
	if err := s.guard.Authorize(ctx, auth.ResourceProject, auth.ActionUpdate); err != nil {
		return err
	}
	current, err := s.CheckAccess(ctx, p.ID)
	if err != nil {
		return err
	}
	p.UserID = current.UserID
	if err := validate(p); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return mapWriteError(err)
	}
	p.EntityCreateDate = current.EntityCreateDate
	s.audit.Record(ctx, audit.ActionUpdate, auditEntity, p.ID, map[string]any{"name": p.Name})
	return nil
}

// Remove deletes the project with everything inside it.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.guard.Authorize(ctx, auth.ResourceProject, auth.ActionRemove); err != nil {
		return err
	}
	if _, err := s.CheckAccess(ctx, id); err != nil {
		return err
	}

	var after []func(context.Context)
	for _, h := range s.hooks {
		fn, err := h.PrepareProjectRemoval(ctx, id)
		if err != nil {
			return fmt.Errorf("preparing removal of project %d: %w", id, err)
		}
		if fn != nil {
			after = append(after, fn)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	for _, fn := range after {
		fn(ctx)
	}
	s.audit.Record(ctx, audit.ActionDelete, auditEntity, id, nil)
	s.logger.Info("project removed", "project_id", id)
	return nil
}

// Find returns one owned project.
func (s *Service) Find(ctx context.Context, id int64) (*Project, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceProject, auth.ActionFind); err != nil {
		return nil, err
	}
	return s.CheckAccess(ctx, id)
}

// FindAll lists the caller's projects, or every project for an admin.
func (s *Service) FindAll(ctx context.Context) ([]Project, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceProject, auth.ActionFindAll); err != nil {
		return nil, err
	}
	owner, err := Owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, owner)
}

// FindAllPaginated is FindAll cut into pages.
func (s *Service) FindAllPaginated(ctx context.Context, req entity.PageRequest) (entity.Page[Project], error) {
	if err := s.guard.Authorize(ctx, auth.ResourceProject, auth.ActionFindAll); err != nil {
		return entity.Page[Project]{}, err
	}
	owner, err := Owner(ctx)
	if err != nil {
		return entity.Page[Project]{}, err
	}
	items, total, err := s.repo.ListPage(ctx, owner, req)
	if err != nil {
		return entity.Page[Project]{}, err
	}
	return entity.NewPage(items, total, req), nil
}

func validate(p *Project) error {
	var v entity.Validator
	p.Name = strings.TrimSpace(p.Name)
	v.NotEmpty("project-name", p.Name)
	v.Text("project-name", p.Name, maxNameLength)
	v.Text("project-description", p.Description, maxDescriptionLength)
	v.Required("project-user", p.UserID)
	return v.Err()
}

func mapWriteError(err error) error {
	if errors.Is(err, ErrDuplicate) {
		return entity.NewDuplicateError("name", "user_id")
	}
	return err
}
