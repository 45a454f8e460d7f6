package device

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/project"
)

const (
	maxNameLength        = 255
	maxDescriptionLength = 3000

	auditEntity = "device"
)

// ProjectAccess resolves a project the caller owns.
type ProjectAccess interface {
	CheckAccess(ctx context.Context, projectID int64) (*project.Project, error)
}

// Service exposes device operations behind the Guard and project ownership.
type Service struct {
	repo     Repository
	projects ProjectAccess
	guard    *auth.Guard
	audit    audit.Sink
	logger   *slog.Logger
}

// NewService wires a Service. A nil sink disables auditing.
func NewService(repo Repository, projects ProjectAccess, guard *auth.Guard, sink audit.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = audit.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, projects: projects, guard: guard, audit: sink, logger: logger}
}

// Save registers a device in a project the caller owns.
func (s *Service) Save(ctx context.Context, d *Device) error {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionSave); err != nil {
		return err
	}
	if err := validate(d); err != nil {
		return err
	}
	if err := s.checkProject(ctx, d.ProjectID); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return mapWriteError(err)
	}
	s.audit.Record(ctx, audit.ActionCreate, auditEntity, d.ID, map[string]any{"deviceName": d.DeviceName})
	return nil
}

// Update rewrites a device. Moving it to another project requires owning
// both.
func (s *Service) Update(ctx context.Context, d *Device) error {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionUpdate); err != nil {
		return err
	}
	current, err := s.owned(ctx, d.ID)
	if err != nil {
		return err
	}
	if err := validate(d); err != nil {
		return err
	}
	if d.ProjectID != current.ProjectID {
		if err := s.checkProject(ctx, d.ProjectID); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return mapWriteError(err)
	}
	s.audit.Record(ctx, audit.ActionUpdate, auditEntity, d.ID, map[string]any{"deviceName": d.DeviceName})
	return nil
}

// Remove deletes a device and every area placement of it.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionRemove); err != nil {
		return err
	}
	if _, err := s.owned(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.ActionDelete, auditEntity, id, nil)
	return nil
}

// Find returns one owned device.
func (s *Service) Find(ctx context.Context, id int64) (*Device, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionFind); err != nil {
		return nil, err
	}
	return s.owned(ctx, id)
}

// Owned returns the device when the caller owns its project. No action bit is
// checked; the area service uses it after authorising its own action.
func (s *Service) Owned(ctx context.Context, id int64) (*Device, error) {
	return s.owned(ctx, id)
}

// FindAll lists devices in the caller's projects.
func (s *Service) FindAll(ctx context.Context) ([]Device, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionFindAll); err != nil {
		return nil, err
	}
	owner, err := project.Owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, owner)
}

// FindAllPaginated is FindAll cut into pages.
func (s *Service) FindAllPaginated(ctx context.Context, req entity.PageRequest) (entity.Page[Device], error) {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionFindAll); err != nil {
		return entity.Page[Device]{}, err
	}
	owner, err := project.Owner(ctx)
	if err != nil {
		return entity.Page[Device]{}, err
	}
	items, total, err := s.repo.ListPage(ctx, owner, req)
	if err != nil {
		return entity.Page[Device]{}, err
	}
	return entity.NewPage(items, total, req), nil
}

// ListByProject lists the devices of one owned project.
func (s *Service) ListByProject(ctx context.Context, projectID int64) ([]Device, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceDevice, auth.ActionFindAll); err != nil {
		return nil, err
	}
	if _, err := s.projects.CheckAccess(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

func (s *Service) owned(ctx context.Context, id int64) (*Device, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.CheckAccess(ctx, d.ProjectID); err != nil {
		return nil, err
	}
	return d, nil
}

// checkProject turns a missing project into a field error; ownership
// failures stay Unauthorized.
func (s *Service) checkProject(ctx context.Context, projectID int64) error {
	_, err := s.projects.CheckAccess(ctx, projectID)
	if errors.Is(err, entity.ErrNotFound) {
		return entity.NewValidationError("hdevice-project", "must not be null", projectID)
	}
	return err
}

func validate(d *Device) error {
	var v entity.Validator
	d.DeviceName = strings.TrimSpace(d.DeviceName)
	v.NotEmpty("hdevice-devicename", d.DeviceName)
	v.Text("hdevice-devicename", d.DeviceName, maxNameLength)
	v.Text("hdevice-brand", d.Brand, maxNameLength)
	v.Text("hdevice-model", d.Model, maxNameLength)
	v.Text("hdevice-description", d.Description, maxDescriptionLength)
	v.Required("hdevice-project", d.ProjectID)
	return v.Err()
}

func mapWriteError(err error) error {
	if errors.Is(err, ErrDuplicate) {
		return entity.NewDuplicateError("deviceName", "project_id")
	}
	return err
}
