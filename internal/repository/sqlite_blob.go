package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/arbor/internal/db"
)

// SQLiteBlobRepo stores named export blobs.
type SQLiteBlobRepo struct {
	db db.DBTX
}

func NewSQLiteBlobRepo(conn db.DBTX) *SQLiteBlobRepo {
	return &SQLiteBlobRepo{db: conn}
}

// Put inserts or overwrites a blob and returns its new revision.
func (r *SQLiteBlobRepo) Put(ctx context.Context, name string, data []byte) (int64, error) {
	query := `INSERT INTO blobs (name, data, revision, updated_at) VALUES (?, ?, 1, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			revision = blobs.revision + 1,
			updated_at = excluded.updated_at
		RETURNING revision`
	var rev int64
	if err := r.db.QueryRowContext(ctx, query, name, data, nowUTC()).Scan(&rev); err != nil {
		return 0, fmt.Errorf("putting blob %s: %w", name, err)
	}
	return rev, nil
}

func (r *SQLiteBlobRepo) Get(ctx context.Context, name string) (*Blob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT name, data, revision, updated_at FROM blobs WHERE name = ?`, name)
	var (
		b       Blob
		updated string
	)
	if err := row.Scan(&b.Name, &b.Data, &b.Revision, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("blob %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning blob %s: %w", name, err)
	}
	b.UpdatedAt = parseTime(updated)
	return &b, nil
}

// List returns blob names in ascending order.
func (r *SQLiteBlobRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM blobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning blob name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *SQLiteBlobRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("deleting blob %s: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("blob %s: %w", name, ErrNotFound)
	}
	return nil
}
