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

package store

// In this file: read-only catalog introspection.  None of these functions
// ever execute caller-supplied SQL; table names are verified against the
// catalog before being interpolated into a PRAGMA.

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Column describes one column of a table.
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default"`
	PrimaryKey bool    `json:"primary_key"`
}

// ForeignKey describes one foreign-key relationship of a table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencesTable  string `json:"references_table"`
	ReferencesColumn string `json:"references_column"`
}

// TableInfo is the full metadata of one table.
type TableInfo struct {
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Schema maps table names to their metadata.
type Schema map[string]TableInfo

// qTables lists user tables; sqlite internals and the migration
// bookkeeping table are not part of the dataset.
const qTables = `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND name <> 'goose_db_version' ORDER BY name`

// Tables returns the names of all tables in the store.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, qTables); err != nil {
		return nil, fmt.Errorf("store: list tables: %w", err)
	}
	return names, nil
}

// TableInfo returns the metadata for the named table, or ErrNotFound if no
// such table exists.
func (s *Store) TableInfo(ctx context.Context, name string) (TableInfo, error) {
	exists, err := s.hasTable(ctx, name)
	if err != nil {
		return TableInfo{}, err
	}
	if !exists {
		return TableInfo{}, fmt.Errorf("store: table %q: %w", name, ErrNotFound)
	}

	var cols []struct {
		CID     int            `db:"cid"`
		Name    string         `db:"name"`
		Type    string         `db:"type"`
		NotNull int            `db:"notnull"`
		Default sql.NullString `db:"dflt_value"`
		PK      int            `db:"pk"`
	}
	if err := s.db.SelectContext(ctx, &cols, "PRAGMA table_info("+QuoteIdent(name)+")"); err != nil {
		return TableInfo{}, fmt.Errorf("store: table_info %q: %w", name, err)
	}

	var fks []struct {
		ID       int            `db:"id"`
		Seq      int            `db:"seq"`
		Table    string         `db:"table"`
		From     string         `db:"from"`
		To       sql.NullString `db:"to"`
		OnUpdate string         `db:"on_update"`
		OnDelete string         `db:"on_delete"`
		Match    string         `db:"match"`
	}
	if err := s.db.SelectContext(ctx, &fks, "PRAGMA foreign_key_list("+QuoteIdent(name)+")"); err != nil {
		return TableInfo{}, fmt.Errorf("store: foreign_key_list %q: %w", name, err)
	}

	ti := TableInfo{
		Columns:     make([]Column, 0, len(cols)),
		ForeignKeys: make([]ForeignKey, 0, len(fks)),
	}
	for _, c := range cols {
		var def *string
		if c.Default.Valid {
			def = &c.Default.String
		}
		ti.Columns = append(ti.Columns, Column{
			Name:       c.Name,
			Type:       c.Type,
			Nullable:   c.NotNull == 0,
			Default:    def,
			PrimaryKey: c.PK > 0,
		})
	}
	for _, fk := range fks {
		ti.ForeignKeys = append(ti.ForeignKeys, ForeignKey{
			Column:           fk.From,
			ReferencesTable:  fk.Table,
			ReferencesColumn: fk.To.String,
		})
	}
	return ti, nil
}

// Schema returns the metadata of every table in the store.
func (s *Store) Schema(ctx context.Context) (Schema, error) {
	names, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	sch := make(Schema, len(names))
	for _, name := range names {
		ti, err := s.TableInfo(ctx, name)
		if err != nil {
			return nil, err
		}
		sch[name] = ti
	}
	return sch, nil
}

func (s *Store) hasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("store: lookup table %q: %w", name, err)
	}
	return n > 0, nil
}

// QuoteIdent quotes name as a double-quoted SQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
