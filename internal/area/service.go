package area

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nerrad567/area-core/internal/audit"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/blobstore"
	"github.com/nerrad567/area-core/internal/infrastructure/config"
	"github.com/nerrad567/area-core/internal/project"
)

const (
	auditArea       = "area"
	auditAreaDevice = "area_device"
)

// ProjectAccess resolves a project the caller owns.
type ProjectAccess interface {
	CheckAccess(ctx context.Context, projectID int64) (*project.Project, error)
}

// DeviceAccess resolves a device whose project the caller owns.
type DeviceAccess interface {
	Owned(ctx context.Context, id int64) (*device.Device, error)
}

// Deps collects what a Service needs. Audit, Listeners and Logger are
// optional; MaxFileSize defaults to config.DefaultMaxFileSize.
type Deps struct {
	Repo        Repository
	Projects    ProjectAccess
	Devices     DeviceAccess
	Images      blobstore.Store
	Guard       *auth.Guard
	Audit       audit.Sink
	Listeners   []Listener
	Logger      *slog.Logger
	MaxFileSize int64
}

// Service exposes area operations. Every method authorises against the Area
// resource first, then checks that the caller owns the area's project.
type Service struct {
	repo        Repository
	projects    ProjectAccess
	devices     DeviceAccess
	images      blobstore.Store
	guard       *auth.Guard
	audit       audit.Sink
	listeners   []Listener
	logger      *slog.Logger
	maxFileSize int64
}

// NewService wires a Service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:        d.Repo,
		projects:    d.Projects,
		devices:     d.Devices,
		images:      d.Images,
		guard:       d.Guard,
		audit:       d.Audit,
		listeners:   d.Listeners,
		logger:      d.Logger,
		maxFileSize: d.MaxFileSize,
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxFileSize <= 0 {
		s.maxFileSize = config.DefaultMaxFileSize
	}
	return s
}

// AddListener registers l for every later event.
func (s *Service) AddListener(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Save creates an area in a project the caller owns. Any image path in the
// payload is ignored.
func (s *Service) Save(ctx context.Context, a *Area) error {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionSave); err != nil {
		return err
	}
	a.ImagePath = ""
	if err := validate(a); err != nil {
		return err
	}
	if err := s.checkProject(ctx, a.ProjectID); err != nil {
		return err
	}
	if a.ParentAreaID != nil {
		if _, err := s.checkParent(ctx, a.ProjectID, *a.ParentAreaID); err != nil {
			return err
		}
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return mapWriteError(err)
	}

	s.audit.Record(ctx, audit.ActionCreate, auditArea, a.ID, map[string]any{"name": a.Name, "project_id": a.ProjectID})
	s.emit(ctx, Event{Name: EventSaved, ProjectID: a.ProjectID, AreaID: a.ID, Data: a})
	return nil
}

// Update rewrites an area. The project cannot change, the stored image path
// is kept, and a parent may not be the area itself or any of its
// descendants.
func (s *Service) Update(ctx context.Context, a *Area) error {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionUpdate); err != nil {
		return err
	}
	current, err := s.owned(ctx, a.ID)
	if err != nil {
		return err
	}
	a.ImagePath = current.ImagePath
	if err := validate(a); err != nil {
		return err
	}
	if a.ProjectID != current.ProjectID {
		return entity.NewValidationError("area-project", "project cannot be changed", a.ProjectID)
	}
	if a.ParentAreaID != nil {
		if err := s.checkNewParent(ctx, a); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return mapWriteError(err)
	}

	s.audit.Record(ctx, audit.ActionUpdate, auditArea, a.ID, map[string]any{"name": a.Name, "version": a.EntityVersion})
	s.emit(ctx, Event{Name: EventUpdated, ProjectID: a.ProjectID, AreaID: a.ID, Data: a})
	return nil
}

// Remove deletes the area, its whole subtree and every device placement in
// it. Stored images of the removed areas are deleted afterwards.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionRemove); err != nil {
		return err
	}
	current, err := s.owned(ctx, id)
	if err != nil {
		return err
	}
	removed, err := s.repo.DeleteSubtree(ctx, id)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(removed))
	for _, r := range removed {
		ids = append(ids, r.ID)
		s.deleteImage(ctx, r.ImagePath)
	}
	s.audit.Record(ctx, audit.ActionDelete, auditArea, id, map[string]any{"removed": ids})
	s.emit(ctx, Event{Name: EventRemoved, ProjectID: current.ProjectID, AreaID: id, Data: ids})
	s.logger.Info("area removed", "area_id", id, "subtree_size", len(removed))
	return nil
}

// Find returns one owned area.
func (s *Service) Find(ctx context.Context, id int64) (*Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionFind); err != nil {
		return nil, err
	}
	return s.owned(ctx, id)
}

// FindAll lists the caller's areas ordered by id, or every area for an admin.
func (s *Service) FindAll(ctx context.Context) ([]Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionFindAll); err != nil {
		return nil, err
	}
	owner, err := project.Owner(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, owner)
}

// FindAllPaginated is FindAll cut into pages.
func (s *Service) FindAllPaginated(ctx context.Context, req entity.PageRequest) (entity.Page[Area], error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionFindAll); err != nil {
		return entity.Page[Area]{}, err
	}
	owner, err := project.Owner(ctx)
	if err != nil {
		return entity.Page[Area]{}, err
	}
	items, total, err := s.repo.ListPage(ctx, owner, req)
	if err != nil {
		return entity.Page[Area]{}, err
	}
	return entity.NewPage(items, total, req), nil
}

// ListByProject returns every area of an owned project.
func (s *Service) ListByProject(ctx context.Context, projectID int64) ([]Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionFindAll); err != nil {
		return nil, err
	}
	if _, err := s.projects.CheckAccess(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

// RootAreas returns the top-level areas of an owned project.
func (s *Service) RootAreas(ctx context.Context, projectID int64) ([]Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionFindAll); err != nil {
		return nil, err
	}
	if _, err := s.projects.CheckAccess(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.RootAreas(ctx, projectID)
}

// AddAreaDevice places a device of the area's project inside the area.
func (s *Service) AddAreaDevice(ctx context.Context, areaID int64, ad *AreaDevice) error {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return err
	}
	a, err := s.owned(ctx, areaID)
	if err != nil {
		return err
	}
	if err := validateAreaDevice(ad); err != nil {
		return err
	}
	dev, err := s.deviceFor(ctx, a, ad.DeviceID)
	if err != nil {
		return err
	}
	ad.AreaID = a.ID
	if err := s.repo.CreateAreaDevice(ctx, ad); err != nil {
		return mapWriteError(err)
	}
	ad.Device = dev

	s.audit.Record(ctx, audit.ActionCreate, auditAreaDevice, ad.ID, map[string]any{"area_id": a.ID, "device_id": dev.ID})
	s.emit(ctx, Event{Name: EventDeviceAdded, ProjectID: a.ProjectID, AreaID: a.ID, Data: ad})
	return nil
}

// UpdateAreaDevice moves an existing placement into areaID or changes its
// map position. A zero version in the payload means "the current one".
func (s *Service) UpdateAreaDevice(ctx context.Context, areaID int64, ad *AreaDevice) error {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return err
	}
	a, err := s.owned(ctx, areaID)
	if err != nil {
		return err
	}
	current, err := s.repo.GetAreaDevice(ctx, ad.ID)
	if err != nil {
		return err
	}
	if current.AreaID != a.ID {
		if _, err := s.owned(ctx, current.AreaID); err != nil {
			return err
		}
	}
	if ad.ResolveDeviceID() <= 0 {
		ad.DeviceID = current.DeviceID
	}
	if err := validateAreaDevice(ad); err != nil {
		return err
	}
	dev, err := s.deviceFor(ctx, a, ad.DeviceID)
	if err != nil {
		return err
	}
	if ad.EntityVersion <= 0 {
		ad.EntityVersion = current.EntityVersion
	}
	ad.AreaID = a.ID
	if err := s.repo.UpdateAreaDevice(ctx, ad); err != nil {
		return mapWriteError(err)
	}
	ad.Device = dev

	s.audit.Record(ctx, audit.ActionUpdate, auditAreaDevice, ad.ID, map[string]any{"area_id": a.ID, "device_id": dev.ID})
	s.emit(ctx, Event{Name: EventDeviceUpdated, ProjectID: a.ProjectID, AreaID: a.ID, Data: ad})
	return nil
}

// RemoveAreaDevice deletes a placement. A placement that belongs to another
// area is reported as not found.
func (s *Service) RemoveAreaDevice(ctx context.Context, areaID, areaDeviceID int64) error {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return err
	}
	a, err := s.owned(ctx, areaID)
	if err != nil {
		return err
	}
	link, err := s.repo.GetAreaDevice(ctx, areaDeviceID)
	if err != nil {
		return err
	}
	if link.AreaID != a.ID {
		return entity.ErrNotFound
	}
	if err := s.repo.DeleteAreaDevice(ctx, areaDeviceID); err != nil {
		return err
	}

	s.audit.Record(ctx, audit.ActionDelete, auditAreaDevice, areaDeviceID, map[string]any{"area_id": a.ID, "device_id": link.DeviceID})
	s.emit(ctx, Event{Name: EventDeviceRemoved, ProjectID: a.ProjectID, AreaID: a.ID, Data: link})
	return nil
}

// GetAreaDevice returns one placement in an owned area.
func (s *Service) GetAreaDevice(ctx context.Context, areaDeviceID int64) (*AreaDevice, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return nil, err
	}
	link, err := s.repo.GetAreaDevice(ctx, areaDeviceID)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, link.AreaID); err != nil {
		return nil, err
	}
	return link, nil
}

// ListAreaDevices returns the placements of one area.
func (s *Service) ListAreaDevices(ctx context.Context, areaID int64) ([]AreaDevice, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, areaID); err != nil {
		return nil, err
	}
	return s.repo.ListAreaDevices(ctx, areaID)
}

// DeepAreaDevices returns the placements of the area and all its
// descendants. With seekRoot the walk starts from the area's root instead.
func (s *Service) DeepAreaDevices(ctx context.Context, areaID int64, seekRoot bool) ([]AreaDevice, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, areaID); err != nil {
		return nil, err
	}
	start := areaID
	if seekRoot {
		path, err := s.repo.Path(ctx, areaID)
		if err != nil {
			return nil, err
		}
		if len(path) > 0 {
			start = path[0].ID
		}
	}
	return s.repo.DeepAreaDevices(ctx, start)
}

// InnerAreas returns the tree rooted at rootID.
func (s *Service) InnerAreas(ctx context.Context, rootID int64) (*TreeNode, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, rootID); err != nil {
		return nil, err
	}
	areas, err := s.repo.Subtree(ctx, rootID)
	if err != nil {
		return nil, err
	}
	return BuildTree(areas, rootID)
}

// AreaPath returns the areas from the root down to id.
func (s *Service) AreaPath(ctx context.Context, id int64) ([]Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Path(ctx, id)
}

// ResetAreaType switches the view type and drops everything drawn for the
// old one: configuration, image, device placements and the map position of
// direct children.
func (s *Service) ResetAreaType(ctx context.Context, id int64, view ViewType) (*Area, error) {
	if err := s.guard.Authorize(ctx, auth.ResourceArea, auth.ActionAreaDeviceManager); err != nil {
		return nil, err
	}
	if _, err := ParseViewType(string(view)); err != nil {
		return nil, entity.NewValidationError("area-areaViewType", "invalid view type", string(view))
	}
	a, err := s.owned(ctx, id)
	if err != nil {
		return nil, err
	}
	oldImage := a.ImagePath
	if err := s.repo.ResetType(ctx, a, view); err != nil {
		return nil, err
	}
	s.deleteImage(ctx, oldImage)

	s.audit.Record(ctx, audit.ActionUpdate, auditArea, a.ID, map[string]any{"reset_type": string(view)})
	s.emit(ctx, Event{Name: EventTypeReset, ProjectID: a.ProjectID, AreaID: a.ID, Data: a})
	return a, nil
}

// PrepareProjectRemoval collects the image keys of the project's areas so
// they can be deleted once the project (and through it every area) is gone.
func (s *Service) PrepareProjectRemoval(ctx context.Context, projectID int64) (func(context.Context), error) {
	paths, err := s.repo.ImagePaths(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing images of project %d: %w", projectID, err)
	}
	if len(paths) == 0 {
		return nil, nil
	}
	return func(ctx context.Context) {
		for _, p := range paths {
			s.deleteImage(ctx, p)
		}
	}, nil
}

func (s *Service) owned(ctx context.Context, id int64) (*Area, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.projects.CheckAccess(ctx, a.ProjectID); err != nil {
		return nil, err
	}
	return a, nil
}

// checkProject turns a missing project into a field error; ownership
// failures stay Unauthorized.
func (s *Service) checkProject(ctx context.Context, projectID int64) error {
	_, err := s.projects.CheckAccess(ctx, projectID)
	if errors.Is(err, entity.ErrNotFound) {
		return entity.NewValidationError("area-project", "must not be null", projectID)
	}
	return err
}

func (s *Service) checkParent(ctx context.Context, projectID, parentID int64) (*Area, error) {
	parent, err := s.repo.GetByID(ctx, parentID)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, entity.NewValidationError("area-parentArea", "parent area not found", parentID)
	}
	if err != nil {
		return nil, err
	}
	if parent.ProjectID != projectID {
		return nil, entity.NewValidationError("area-parentArea", "parent area belongs to another project", parentID)
	}
	return parent, nil
}

// checkNewParent rejects self-parenting and parents outside the project. The
// descendant check runs in the repository, inside the write.
func (s *Service) checkNewParent(ctx context.Context, a *Area) error {
	parentID := *a.ParentAreaID
	if parentID == a.ID {
		return entity.NewValidationError("area-parentArea", "area cannot be its own parent", parentID)
	}
	_, err := s.checkParent(ctx, a.ProjectID, parentID)
	return err
}

// deviceFor loads an owned device and requires it to share the area's
// project.
func (s *Service) deviceFor(ctx context.Context, a *Area, deviceID int64) (*device.Device, error) {
	dev, err := s.devices.Owned(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if dev.ProjectID != a.ProjectID {
		return nil, entity.NewValidationError("areadevice-device", "device belongs to another project", deviceID)
	}
	return dev, nil
}

func (s *Service) deleteImage(ctx context.Context, key string) {
	if key == "" || s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("deleting area image", "key", key, "error", err)
	}
}

func (s *Service) emit(ctx context.Context, e Event) {
	for _, l := range s.listeners {
		l.OnAreaEvent(ctx, e)
	}
}

func mapWriteError(err error) error {
	switch {
	case errors.Is(err, ErrDuplicate):
		return entity.NewDuplicateError("name", "project_id", "parentArea_id")
	case errors.Is(err, ErrDeviceMapped):
		return entity.NewDuplicateError("Device already mapped")
	case errors.Is(err, ErrCycle):
		return entity.NewValidationError("area-parentArea", "parent area is a descendant of this area", nil)
	default:
		return err
	}
}
