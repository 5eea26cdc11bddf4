// Package store wires the SQLite-backed repositories of the local replica
// together with schema migrations (via goose) and transactional helpers.
package store

import (
	"context"
	"database/sql"

	"github.com/driftsync/driftsync/internal/client/migrations"
	"github.com/driftsync/driftsync/internal/client/repositories/cards"
	"github.com/driftsync/driftsync/internal/client/repositories/channels"
	"github.com/driftsync/driftsync/internal/client/repositories/cursors"
	"github.com/driftsync/driftsync/internal/client/repositories/topics"
	"github.com/driftsync/driftsync/internal/dbx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Store bundles the repositories of the local replica over one database
// handle.
type Store struct {
	db *sql.DB

	Cards    cards.Repository
	Channels channels.Repository
	Topics   topics.Repository
	Cursors  cursors.Repository
}

// New binds the repositories to an already opened database. The schema must
// be in place; callers normally use Open instead.
func New(db *sql.DB) *Store {
	return &Store{
		db:       db,
		Cards:    cards.NewSQLiteRepository(db),
		Channels: channels.NewSQLiteRepository(db),
		Topics:   topics.NewSQLiteRepository(db),
		Cursors:  cursors.NewSQLiteRepository(db),
	}
}

// Open opens (creating if needed) the replica database at dsn, runs the
// embedded migrations and returns a ready Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// Atomic runs fn against transaction-scoped repositories. Either every write
// fn makes lands, or none does.
func (s *Store) Atomic(ctx context.Context, fn func(r *Store) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(&Store{
			db:       s.db,
			Cards:    cards.NewSQLiteRepository(tx),
			Channels: channels.NewSQLiteRepository(tx),
			Topics:   topics.NewSQLiteRepository(tx),
			Cursors:  cursors.NewSQLiteRepository(tx),
		})
	})
}

// Wipe clears every replica table. Used on logout and when a view reset
// requires rebuilding from revision zero.
func (s *Store) Wipe(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, stmt := range []string{
			"DELETE FROM topics",
			"DELETE FROM channels",
			"DELETE FROM cards",
			"DELETE FROM cursors",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
