package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/nerrad567/area-core/internal/infrastructure/database"
)

// UpdateVersioned runs a compare-and-swap UPDATE on table for the row b
// describes. assignments are "column = ?" fragments matched by args.
//
// On success b receives the incremented version and the new modify date,
// which is always strictly later than the previous one even when two writes
// land in the same millisecond.
func UpdateVersioned(ctx context.Context, q database.Querier, table string, b *Base, now Timestamp, assignments []string, args ...any) error {
	set := "entity_version = entity_version + 1, entity_modify_date = MAX(?, entity_modify_date + 1)"
	if len(assignments) > 0 {
		set = strings.Join(assignments, ", ") + ", " + set
	}
	query := fmt.Sprintf( //nolint:gosec // table and columns are compile-time constants
		"UPDATE %s SET %s WHERE id = ? AND entity_version = ? RETURNING entity_version, entity_create_date, entity_modify_date",
		table, set,
	)
	args = append(args, now.Millis(), b.ID, b.EntityVersion)

	var version int
	var created, modified int64
	err := q.QueryRowContext(ctx, query, args...).Scan(&version, &created, &modified)
	if errors.Is(err, sql.ErrNoRows) {
		return ResolveStaleWrite(ctx, q, table, b.ID)
	}
	if err != nil {
		return err
	}

	b.EntityVersion = version
	b.EntityCreateDate = Timestamp(created)
	b.EntityModifyDate = Timestamp(modified)
	return nil
}

// ResolveStaleWrite explains an UPDATE that matched no row: ErrNotFound when
// the id is gone, ErrConflict when the version moved on.
func ResolveStaleWrite(ctx context.Context, q database.Querier, table string, id int64) error {
	var exists int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table) //nolint:gosec // constant table name
	if err := q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// Exists reports whether table has a row with id.
func Exists(ctx context.Context, q database.Querier, table string, id int64) (bool, error) {
	var n int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table) //nolint:gosec // constant table name
	if err := q.QueryRowContext(ctx, query, id).Scan(&n); err != nil {
		return false, fmt.Errorf("checking %s %d: %w", table, id, err)
	}
	return n > 0, nil
}
