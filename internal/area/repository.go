package area

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/area-core/internal/device"
	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

// maxDepth stops the recursive queries on corrupt (cyclic) data.
const maxDepth = 1000

// Repository persists areas and their device placements. An owner of 0
// means every owner.
type Repository interface {
	Create(ctx context.Context, a *Area) error
	GetByID(ctx context.Context, id int64) (*Area, error)
	Update(ctx context.Context, a *Area) error
	SetImagePath(ctx context.Context, a *Area, path string) error
	ResetType(ctx context.Context, a *Area, view ViewType) error
	DeleteSubtree(ctx context.Context, id int64) ([]Area, error)
	DeleteAll(ctx context.Context) (int64, error)

	List(ctx context.Context, owner int64) ([]Area, error)
	ListPage(ctx context.Context, owner int64, req entity.PageRequest) ([]Area, int, error)
	ListByProject(ctx context.Context, projectID int64) ([]Area, error)
	RootAreas(ctx context.Context, projectID int64) ([]Area, error)
	Subtree(ctx context.Context, rootID int64) ([]Area, error)
	Path(ctx context.Context, id int64) ([]Area, error)
	ImagePaths(ctx context.Context, projectID int64) ([]string, error)

	CreateAreaDevice(ctx context.Context, ad *AreaDevice) error
	GetAreaDevice(ctx context.Context, id int64) (*AreaDevice, error)
	FindAreaDevice(ctx context.Context, areaID, deviceID int64) (*AreaDevice, error)
	UpdateAreaDevice(ctx context.Context, ad *AreaDevice) error
	DeleteAreaDevice(ctx context.Context, id int64) error
	ListAreaDevices(ctx context.Context, areaID int64) ([]AreaDevice, error)
	DeepAreaDevices(ctx context.Context, areaID int64) ([]AreaDevice, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed area repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const areaColumns = `a.id, a.entity_version, a.entity_create_date, a.entity_modify_date,
	a.name, a.description, a.project_id, a.parent_area_id, a.area_view_type,
	a.image_path, a.area_configuration, a.map_info`

const selectArea = "SELECT " + areaColumns + " FROM areas a"

// subtreeCTE names every area under (and including) the bound id as "sub".
const subtreeCTE = `WITH RECURSIVE sub(id, depth) AS (
		SELECT id, 0 FROM areas WHERE id = ?
		UNION ALL
		SELECT c.id, s.depth + 1 FROM areas c JOIN sub s ON c.parent_area_id = s.id
		WHERE s.depth < ?
	) `

// Create inserts a and fills in its id and lifecycle fields.
func (r *SQLiteRepository) Create(ctx context.Context, a *Area) error {
	mapInfo, err := encodeMapInfo(a.MapInfo)
	if err != nil {
		return err
	}
	a.StampCreated(entity.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO areas (entity_version, entity_create_date, entity_modify_date, name, description,
			project_id, parent_area_id, area_view_type, image_path, area_configuration, map_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EntityVersion, a.EntityCreateDate.Millis(), a.EntityModifyDate.Millis(),
		a.Name, nullString(a.Description), a.ProjectID, nullID(a.ParentAreaID), string(a.AreaViewType),
		nullString(a.ImagePath), nullString(a.AreaConfiguration), mapInfo,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting area: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading area id: %w", err)
	}
	return nil
}

// GetByID returns entity.ErrNotFound when the area does not exist.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Area, error) {
	a, err := scanArea(r.db.QueryRowContext(ctx, selectArea+" WHERE a.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying area %d: %w", id, err)
	}
	return a, nil
}

// Update writes every editable column with a version check. The project and
// the image path are not touched.
func (r *SQLiteRepository) Update(ctx context.Context, a *Area) error {
	mapInfo, err := encodeMapInfo(a.MapInfo)
	if err != nil {
		return err
	}
	base := a.Base
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if a.ParentAreaID != nil {
			if err := checkAncestry(ctx, tx, a.ID, *a.ParentAreaID); err != nil {
				return err
			}
		}
		return entity.UpdateVersioned(ctx, tx, Table, &base, entity.Now(),
			[]string{"name = ?", "description = ?", "parent_area_id = ?", "area_view_type = ?", "area_configuration = ?", "map_info = ?"},
			a.Name, nullString(a.Description), nullID(a.ParentAreaID), string(a.AreaViewType),
			nullString(a.AreaConfiguration), mapInfo)
	})
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	a.Base = base
	return nil
}

// checkAncestry fails with ErrCycle when id is parentID or one of its
// ancestors. It runs on the transaction that writes the new parent, so the
// chain it reads cannot change before the commit.
func checkAncestry(ctx context.Context, q database.Querier, id, parentID int64) error {
	var hits int
	err := q.QueryRowContext(ctx, `WITH RECURSIVE chain(id, parent_area_id, depth) AS (
			SELECT id, parent_area_id, 0 FROM areas WHERE id = ?
			UNION ALL
			SELECT p.id, p.parent_area_id, c.depth + 1 FROM areas p JOIN chain c ON p.id = c.parent_area_id
			WHERE c.depth < ?
		) SELECT COUNT(*) FROM chain WHERE id = ?`,
		parentID, maxDepth, id).Scan(&hits)
	if err != nil {
		return fmt.Errorf("walking ancestors of area %d: %w", parentID, err)
	}
	if hits > 0 {
		return ErrCycle
	}
	return nil
}

// SetImagePath stores path (empty clears it) with a version bump.
func (r *SQLiteRepository) SetImagePath(ctx context.Context, a *Area, path string) error {
	if err := entity.UpdateVersioned(ctx, r.db, Table, &a.Base, entity.Now(),
		[]string{"image_path = ?"}, nullString(path)); err != nil {
		return err
	}
	a.ImagePath = path
	return nil
}

// ResetType switches the view type and, in the same transaction, clears the
// configuration, the image path, every device placement of the area and the
// map position of its direct children.
func (r *SQLiteRepository) ResetType(ctx context.Context, a *Area, view ViewType) error {
	now := entity.Now()
	base := a.Base
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := entity.UpdateVersioned(ctx, tx, Table, &base, now,
			[]string{"area_view_type = ?", "area_configuration = NULL", "image_path = NULL"}, string(view)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM area_devices WHERE area_id = ?", a.ID); err != nil {
			return fmt.Errorf("clearing devices of area %d: %w", a.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE areas SET map_info = NULL, entity_version = entity_version + 1,
				entity_modify_date = MAX(?, entity_modify_date + 1)
			 WHERE parent_area_id = ? AND map_info IS NOT NULL`, now.Millis(), a.ID); err != nil {
			return fmt.Errorf("clearing child map info of area %d: %w", a.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.Base = base
	a.AreaViewType = view
	a.AreaConfiguration = ""
	a.ImagePath = ""
	return nil
}

// DeleteSubtree removes the area and everything below it, returning the
// removed rows (root first, then by id) so callers can clean up images.
func (r *SQLiteRepository) DeleteSubtree(ctx context.Context, id int64) ([]Area, error) {
	var removed []Area
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		removed, err = querySubtree(ctx, tx, id)
		if err != nil {
			return err
		}
		if len(removed) == 0 {
			return entity.ErrNotFound
		}
		// Children and placements follow through ON DELETE CASCADE.
		if _, err := tx.ExecContext(ctx, "DELETE FROM areas WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting area %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteAll removes every area.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM areas")
	if err != nil {
		return 0, fmt.Errorf("deleting areas: %w", err)
	}
	return res.RowsAffected()
}

// List returns the owner's areas ordered by id.
func (r *SQLiteRepository) List(ctx context.Context, owner int64) ([]Area, error) {
	from, args := ownerJoin(owner)
	return queryAreas(ctx, r.db, selectArea+from+" ORDER BY a.id", args...)
}

// ListPage returns one page of List and the total count.
func (r *SQLiteRepository) ListPage(ctx context.Context, owner int64, req entity.PageRequest) ([]Area, int, error) {
	req = req.Normalize()
	from, args := ownerJoin(owner)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM areas a"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting areas: %w", err)
	}
	items, err := queryAreas(ctx, r.db, selectArea+from+" ORDER BY a.id LIMIT ? OFFSET ?",
		append(args, req.Delta, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByProject returns every area of the project.
func (r *SQLiteRepository) ListByProject(ctx context.Context, projectID int64) ([]Area, error) {
	return queryAreas(ctx, r.db, selectArea+" WHERE a.project_id = ? ORDER BY a.id", projectID)
}

// RootAreas returns the project's areas that have no parent.
func (r *SQLiteRepository) RootAreas(ctx context.Context, projectID int64) ([]Area, error) {
	return queryAreas(ctx, r.db,
		selectArea+" WHERE a.project_id = ? AND a.parent_area_id IS NULL ORDER BY a.id", projectID)
}

// Subtree returns the area and all its descendants ordered by id.
func (r *SQLiteRepository) Subtree(ctx context.Context, rootID int64) ([]Area, error) {
	return querySubtree(ctx, r.db, rootID)
}

func querySubtree(ctx context.Context, q database.Querier, rootID int64) ([]Area, error) {
	return queryAreas(ctx, q,
		subtreeCTE+"SELECT "+areaColumns+" FROM areas a JOIN sub s ON s.id = a.id ORDER BY s.depth = 0 DESC, a.id",
		rootID, maxDepth)
}

// Path returns the chain from the root down to the area. An unknown id
// yields an empty slice.
func (r *SQLiteRepository) Path(ctx context.Context, id int64) ([]Area, error) {
	return queryAreas(ctx, r.db, `WITH RECURSIVE chain(id, parent_area_id, depth) AS (
			SELECT id, parent_area_id, 0 FROM areas WHERE id = ?
			UNION ALL
			SELECT p.id, p.parent_area_id, c.depth + 1 FROM areas p JOIN chain c ON p.id = c.parent_area_id
			WHERE c.depth < ?
		) SELECT `+areaColumns+` FROM areas a JOIN chain c ON c.id = a.id ORDER BY c.depth DESC`,
		id, maxDepth)
}

// ImagePaths lists the stored image keys of every area in the project.
func (r *SQLiteRepository) ImagePaths(ctx context.Context, projectID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT image_path FROM areas WHERE project_id = ? AND image_path IS NOT NULL AND image_path != ''", projectID)
	if err != nil {
		return nil, fmt.Errorf("querying image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning image path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

const selectAreaDevice = `SELECT ad.id, ad.entity_version, ad.entity_create_date, ad.entity_modify_date,
	ad.area_id, ad.device_id, ad.map_info,
	d.id, d.entity_version, d.entity_create_date, d.entity_modify_date,
	d.device_name, d.brand, d.model, d.description, d.project_id
	FROM area_devices ad JOIN devices d ON d.id = ad.device_id`

// CreateAreaDevice inserts a placement. A second placement of the same
// device in the same area returns ErrDeviceMapped.
func (r *SQLiteRepository) CreateAreaDevice(ctx context.Context, ad *AreaDevice) error {
	mapInfo, err := encodeMapInfo(ad.MapInfo)
	if err != nil {
		return err
	}
	ad.StampCreated(entity.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO area_devices (entity_version, entity_create_date, entity_modify_date, area_id, device_id, map_info)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ad.EntityVersion, ad.EntityCreateDate.Millis(), ad.EntityModifyDate.Millis(), ad.AreaID, ad.DeviceID, mapInfo)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDeviceMapped
		}
		if database.IsForeignKeyViolation(err) {
			return entity.ErrNotFound
		}
		return fmt.Errorf("inserting area device: %w", err)
	}
	ad.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading area device id: %w", err)
	}
	return nil
}

// GetAreaDevice returns entity.ErrNotFound when the placement does not exist.
func (r *SQLiteRepository) GetAreaDevice(ctx context.Context, id int64) (*AreaDevice, error) {
	ad, err := scanAreaDevice(r.db.QueryRowContext(ctx, selectAreaDevice+" WHERE ad.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying area device %d: %w", id, err)
	}
	return ad, nil
}

// FindAreaDevice returns the placement of deviceID in areaID, or
// entity.ErrNotFound.
func (r *SQLiteRepository) FindAreaDevice(ctx context.Context, areaID, deviceID int64) (*AreaDevice, error) {
	ad, err := scanAreaDevice(r.db.QueryRowContext(ctx,
		selectAreaDevice+" WHERE ad.area_id = ? AND ad.device_id = ?", areaID, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying placement of device %d in area %d: %w", deviceID, areaID, err)
	}
	return ad, nil
}

// UpdateAreaDevice rewrites a placement with a version check.
func (r *SQLiteRepository) UpdateAreaDevice(ctx context.Context, ad *AreaDevice) error {
	mapInfo, err := encodeMapInfo(ad.MapInfo)
	if err != nil {
		return err
	}
	err = entity.UpdateVersioned(ctx, r.db, DeviceTable, &ad.Base, entity.Now(),
		[]string{"area_id = ?", "device_id = ?", "map_info = ?"}, ad.AreaID, ad.DeviceID, mapInfo)
	if database.IsUniqueViolation(err) {
		return ErrDeviceMapped
	}
	return err
}

// DeleteAreaDevice removes one placement.
func (r *SQLiteRepository) DeleteAreaDevice(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM area_devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting area device %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// ListAreaDevices returns the placements of one area ordered by id.
func (r *SQLiteRepository) ListAreaDevices(ctx context.Context, areaID int64) ([]AreaDevice, error) {
	return r.queryAreaDevices(ctx, selectAreaDevice+" WHERE ad.area_id = ? ORDER BY ad.id", areaID)
}

// DeepAreaDevices returns the placements of the area and of every area
// below it, ordered by id.
func (r *SQLiteRepository) DeepAreaDevices(ctx context.Context, areaID int64) ([]AreaDevice, error) {
	return r.queryAreaDevices(ctx,
		subtreeCTE+strings.Replace(selectAreaDevice, "FROM area_devices ad", "FROM area_devices ad JOIN sub s ON s.id = ad.area_id", 1)+
			" ORDER BY ad.id",
		areaID, maxDepth)
}

func (r *SQLiteRepository) queryAreaDevices(ctx context.Context, query string, args ...any) ([]AreaDevice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying area devices: %w", err)
	}
	defer rows.Close()

	out := []AreaDevice{}
	for rows.Next() {
		ad, err := scanAreaDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning area device: %w", err)
		}
		out = append(out, *ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating area devices: %w", err)
	}
	return out, nil
}

func queryAreas(ctx context.Context, q database.Querier, query string, args ...any) ([]Area, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	areas := []Area{}
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning area: %w", err)
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating areas: %w", err)
	}
	return areas, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArea(s scanner) (*Area, error) {
	var a Area
	var created, modified int64
	var parent sql.NullInt64
	var description, imagePath, config, mapInfo sql.NullString
	var view string
	if err := s.Scan(&a.ID, &a.EntityVersion, &created, &modified,
		&a.Name, &description, &a.ProjectID, &parent, &view,
		&imagePath, &config, &mapInfo); err != nil {
		return nil, err
	}
	a.EntityCreateDate = entity.Timestamp(created)
	a.EntityModifyDate = entity.Timestamp(modified)
	a.Description = description.String
	if parent.Valid {
		a.ParentAreaID = &parent.Int64
	}
	a.AreaViewType = ViewType(view)
	a.ImagePath = imagePath.String
	a.AreaConfiguration = config.String

	mi, err := decodeMapInfo(mapInfo)
	if err != nil {
		return nil, err
	}
	a.MapInfo = mi
	return &a, nil
}

func scanAreaDevice(s scanner) (*AreaDevice, error) {
	var ad AreaDevice
	var created, modified, dCreated, dModified int64
	var mapInfo, brand, model, description sql.NullString
	d := new(device.Device)
	if err := s.Scan(&ad.ID, &ad.EntityVersion, &created, &modified,
		&ad.AreaID, &ad.DeviceID, &mapInfo,
		&d.ID, &d.EntityVersion, &dCreated, &dModified,
		&d.DeviceName, &brand, &model, &description, &d.ProjectID); err != nil {
		return nil, err
	}
	ad.EntityCreateDate = entity.Timestamp(created)
	ad.EntityModifyDate = entity.Timestamp(modified)
	d.EntityCreateDate = entity.Timestamp(dCreated)
	d.EntityModifyDate = entity.Timestamp(dModified)
	d.Brand = brand.String
	d.Model = model.String
	d.Description = description.String
	ad.Device = d

	mi, err := decodeMapInfo(mapInfo)
	if err != nil {
		return nil, err
	}
	ad.MapInfo = mi
	return &ad, nil
}

func ownerJoin(owner int64) (string, []any) {
	if owner <= 0 {
		return "", nil
	}
	return " JOIN projects p ON p.id = a.project_id WHERE p.user_id = ?", []any{owner}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
