package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// The row operations below back the scoped REST resources. They work on
// plain column maps so resources can be declared for any table; the scope
// predicate computed by the permission checker composes into every query.

// ListRows returns all rows of table matching pred.
func (s *Store) ListRows(ctx context.Context, table string, columns []string, pred sq.Sqlizer) ([]map[string]any, error) {
	query, args, err := s.stbl.
		Select(columns...).
		From(table).
		Where(pred).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query for %s: %w", table, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var result []map[string]any

	for rows.Next() {
		row, err := scanRow(rows, columns)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// GetRow returns the single row of table matching pred, or ErrNotFound.
func (s *Store) GetRow(ctx context.Context, table string, columns []string, pred sq.Sqlizer) (map[string]any, error) {
	query, args, err := s.stbl.
		Select(columns...).
		From(table).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query for %s: %w", table, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", table, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}

		return nil, ErrNotFound
	}

	row, err := scanRow(rows, columns)
	if err != nil {
		return nil, fmt.Errorf("scan %s row: %w", table, err)
	}

	return row, nil
}

// InsertRow inserts values into table and returns the new row id.
func (s *Store) InsertRow(ctx context.Context, table string, values map[string]any) (int64, error) {
	builder := s.stbl.
		Insert(table).
		SetMap(values)

	id, err := s.insert(ctx, builder)
	if err != nil {
		return 0, fmt.Errorf("insert into %s: %w", table, err)
	}

	return id, nil
}

// UpdateRows updates the rows of table matching pred and returns the number
// of rows changed.
func (s *Store) UpdateRows(ctx context.Context, table string, values map[string]any, pred sq.Sqlizer) (int64, error) {
	query, args, err := s.stbl.
		Update(table).
		SetMap(values).
		Where(pred).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update query for %s: %w", table, err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}

	return result.RowsAffected()
}

// DeleteRows deletes the rows of table matching pred and returns the number
// of rows removed.
func (s *Store) DeleteRows(ctx context.Context, table string, pred sq.Sqlizer) (int64, error) {
	query, args, err := s.stbl.
		Delete(table).
		Where(pred).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete query for %s: %w", table, err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", table, err)
	}

	return result.RowsAffected()
}

func scanRow(rows *sql.Rows, columns []string) (map[string]any, error) {
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))

	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	row := make(map[string]any, len(columns))

	for i, col := range columns {
		switch v := values[i].(type) {
		case []byte:
			row[col] = string(v)
		default:
			row[col] = v
		}
	}

	return row, nil
}

// IsNotFound reports whether err is the storage not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
