package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

// Repository defines device persistence. An owner of 0 means every owner.
type Repository interface {
	// Create inserts a device. Returns ErrDuplicate on a name clash.
	Create(ctx context.Context, d *Device) error

	// GetByID returns entity.ErrNotFound when the device does not exist.
	GetByID(ctx context.Context, id int64) (*Device, error)

	// List returns devices in projects owned by owner, ordered by id.
	List(ctx context.Context, owner int64) ([]Device, error)

	// ListPage returns one page of List and the total count.
	ListPage(ctx context.Context, owner int64, req entity.PageRequest) ([]Device, int, error)

	// ListByProject returns the project's devices ordered by id.
	ListByProject(ctx context.Context, projectID int64) ([]Device, error)

	// Update is a versioned write of every mutable column.
	Update(ctx context.Context, d *Device) error

	// Delete removes the device and its area placements.
	Delete(ctx context.Context, id int64) error

	// DeleteAll removes every device.
	DeleteAll(ctx context.Context) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectDevice = `SELECT d.id, d.entity_version, d.entity_create_date, d.entity_modify_date,
	d.device_name, d.brand, d.model, d.description, d.project_id
	FROM devices d`

// Create inserts d and fills in its id and lifecycle fields.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	d.StampCreated(entity.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (entity_version, entity_create_date, entity_modify_date,
			device_name, brand, model, description, project_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.EntityVersion, d.EntityCreateDate.Millis(), d.EntityModifyDate.Millis(),
		d.DeviceName, nullString(d.Brand), nullString(d.Model), nullString(d.Description), d.ProjectID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	d.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading device id: %w", err)
	}
	return nil
}

// GetByID retrieves one device.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, selectDevice+" WHERE d.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying device %d: %w", id, err)
	}
	return d, nil
}

// List retrieves the owner's devices.
func (r *SQLiteRepository) List(ctx context.Context, owner int64) ([]Device, error) {
	from, args := ownerJoin(owner)
	return r.query(ctx, selectDevice+from+" ORDER BY d.id", args...)
}

// ListPage retrieves one page of the owner's devices.
func (r *SQLiteRepository) ListPage(ctx context.Context, owner int64, req entity.PageRequest) ([]Device, int, error) {
	req = req.Normalize()
	from, args := ownerJoin(owner)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM devices d"+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting devices: %w", err)
	}
	items, err := r.query(ctx, selectDevice+from+" ORDER BY d.id LIMIT ? OFFSET ?",
		append(args, req.Delta, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListByProject retrieves the devices of one project.
func (r *SQLiteRepository) ListByProject(ctx context.Context, projectID int64) ([]Device, error) {
	return r.query(ctx, selectDevice+" WHERE d.project_id = ? ORDER BY d.id", projectID)
}

// Update writes the device with a version check.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	err := entity.UpdateVersioned(ctx, r.db, Table, &d.Base, entity.Now(),
		[]string{"device_name = ?", "brand = ?", "model = ?", "description = ?", "project_id = ?"},
		d.DeviceName, nullString(d.Brand), nullString(d.Model), nullString(d.Description), d.ProjectID)
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes a device by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %d: %w", id, err)
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

// DeleteAll removes every device.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM devices")
	if err != nil {
		return 0, fmt.Errorf("deleting devices: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var created, modified int64
	var brand, model, description sql.NullString
	if err := s.Scan(&d.ID, &d.EntityVersion, &created, &modified,
		&d.DeviceName, &brand, &model, &description, &d.ProjectID); err != nil {
		return nil, err
	}
	d.EntityCreateDate = entity.Timestamp(created)
	d.EntityModifyDate = entity.Timestamp(modified)
	d.Brand = brand.String
	d.Model = model.String
	d.Description = description.String
	return &d, nil
}

func ownerJoin(owner int64) (string, []any) {
	if owner <= 0 {
		return "", nil
	}
	return " JOIN projects p ON p.id = d.project_id WHERE p.user_id = ?", []any{owner}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
