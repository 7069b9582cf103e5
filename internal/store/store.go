// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package store manages the embedded SQLite dataset: opening the database
// file, bootstrapping it with the sample dataset on first run, and
// read-only catalog introspection.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Driver is the database/sql driver name of the embedded engine.
const Driver = "sqlite"

// ErrNotFound is returned when a named table does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store is an open handle to the dataset.  It is safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

// Open opens (and if necessary creates and seeds) the database at path and
// returns a Store ready to serve queries.  Bootstrap is run to completion
// before Open returns: if it fails, no Store is returned and the caller
// must not serve.  Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open(Driver, path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	if path == ":memory:" {
		// A plain in-memory DSN gives every pooled connection its own
		// empty database; pin the pool to a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %q: %w", path, err)
	}
	if err := Migrate(ctx, db.DB, false); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: bootstrap %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}
