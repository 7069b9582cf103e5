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

package gate

// In this file: the Row result shape.

import (
	"bytes"
	"encoding/json"
)

// Row is one result record: a mapping from column name to scalar value
// (nil, int64, float64, string or []byte) that preserves the store's
// column order.  When a statement produces duplicate column names, the
// name is emitted once at its first position and keeps the last value —
// a known lossy property of the name-keyed shape.
type Row struct {
	cols []string
	vals map[string]any
}

func newRow(cols []string, vals []any) Row {
	m := make(map[string]any, len(cols))
	for i, c := range cols {
		if i < len(vals) {
			m[c] = vals[i]
		}
	}
	return Row{cols: cols, vals: m}
}

// Columns returns the column names in store order, duplicates included.
func (r Row) Columns() []string {
	return r.cols
}

// Value returns the value for the named column and whether the column
// exists in the row.
func (r Row) Value(name string) (any, bool) {
	v, ok := r.vals[name]
	return v, ok
}

// Len returns the number of distinct column names in the row.
func (r Row) Len() int {
	return len(r.vals)
}

// MarshalJSON emits the row as a JSON object with keys in store column
// order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	seen := make(map[string]struct{}, len(r.cols))
	first := true
	for _, c := range r.cols {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.vals[c])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
