package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/area-core/internal/entity"
	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

// ErrDuplicate is returned when the owner already has a project with the
// same name.
var ErrDuplicate = errors.New("project name already used by owner")

// Repository persists projects. An owner of 0 means "every owner".
type Repository interface {
	Create(ctx context.Context, p *Project) error
	GetByID(ctx context.Context, id int64) (*Project, error)
	List(ctx context.Context, owner int64) ([]Project, error)
	ListPage(ctx context.Context, owner int64, req entity.PageRequest) ([]Project, int, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) (int64, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed project repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectProject = `SELECT id, entity_version, entity_create_date, entity_modify_date,
	name, description, user_id FROM projects`

// Create inserts p and fills in its id and lifecycle fields.
func (r *SQLiteRepository) Create(ctx context.Context, p *Project) error {
	p.StampCreated(entity.Now())
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (entity_version, entity_create_date, entity_modify_date, name, description, user_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.EntityVersion, p.EntityCreateDate.Millis(), p.EntityModifyDate.Millis(),
		p.Name, nullString(p.Description), p.UserID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading project id: %w", err)
	}
	return nil
}

// GetByID returns entity.ErrNotFound when id is unknown.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, selectProject+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying project %d: %w", id, err)
	}
	return p, nil
}

// List returns the owner's projects ordered by id.
func (r *SQLiteRepository) List(ctx context.Context, owner int64) ([]Project, error) {
	where, args := ownerClause(owner)
	return r.query(ctx, selectProject+where+" ORDER BY id", args...)
}

// ListPage returns one page of the owner's projects and the total count.
func (r *SQLiteRepository) ListPage(ctx context.Context, owner int64, req entity.PageRequest) ([]Project, int, error) {
	req = req.Normalize()
	where, args := ownerClause(owner)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting projects: %w", err)
	}
	items, err := r.query(ctx, selectProject+where+" ORDER BY id LIMIT ? OFFSET ?",
		append(args, req.Delta, req.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update writes name and description with a version check. Ownership is
// never changed here.
func (r *SQLiteRepository) Update(ctx context.Context, p *Project) error {
	err := entity.UpdateVersioned(ctx, r.db, Table, &p.Base, entity.Now(),
		[]string{"name = ?", "description = ?"}, p.Name, nullString(p.Description))
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// Delete removes the project. Areas, area devices and devices go with it
// through foreign-key cascades.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting project %d: %w", id, err)
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

// DeleteAll removes every project and returns how many went.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM projects")
	if err != nil {
		return 0, fmt.Errorf("deleting projects: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*Project, error) {
	var p Project
	var created, modified int64
	var description sql.NullString
	if err := s.Scan(&p.ID, &p.EntityVersion, &created, &modified, &p.Name, &description, &p.UserID); err != nil {
		return nil, err
	}
	p.EntityCreateDate = entity.Timestamp(created)
	p.EntityModifyDate = entity.Timestamp(modified)
	p.Description = description.String
	return &p, nil
}

func ownerClause(owner int64) (string, []any) {
	if owner <= 0 {
		return "", nil
	}
	return " WHERE user_id = ?", []any{owner}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
