package cursors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/driftsync/driftsync/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM cursors WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor[%s]: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cursors (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set cursor[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) GetRevision(ctx context.Context, key string) (int64, error) {
	b, err := r.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	rev, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse cursor[%s]: %w", key, err)
	}
	return rev, nil
}

func (r *SQLiteRepository) SetRevision(ctx context.Context, key string, revision int64) error {
	return r.Set(ctx, key, []byte(strconv.FormatInt(revision, 10)))
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cursors WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cursor[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cursors`)
	if err != nil {
		return fmt.Errorf("failed to clear cursors: %w", err)
	}
	return nil
}
