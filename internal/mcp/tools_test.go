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

package mcp

import (
	"encoding/json"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── execute_query ────────────────────────────────────────────────────────────

func TestHandleExecuteQuery(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		wantIsError bool
		wantText    string // substring expected in first text content
	}{
		{
			name:     "select returns rows",
			args:     map[string]any{"query": "SELECT name FROM users ORDER BY id"},
			wantText: "John Doe",
		},
		{
			name:     "scalar select",
			args:     map[string]any{"query": "SELECT 42 AS answer"},
			wantText: "42",
		},
		{
			name:     "positional params",
			args:     map[string]any{"query": "SELECT name FROM users WHERE id = ?", "params": []any{float64(2)}},
			wantText: "Jane Smith",
		},
		{
			name:        "policy denial",
			args:        map[string]any{"query": "DROP TABLE users"},
			wantIsError: true,
			wantText:    "not permitted",
		},
		{
			name:        "execution error carries the query",
			args:        map[string]any{"query": "SELECT x FROM missing_table"},
			wantIsError: true,
			wantText:    "missing_table",
		},
		{
			name:        "missing query argument",
			args:        map[string]any{},
			wantIsError: true,
			wantText:    "query is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			result, err := srv.handleExecuteQuery(t.Context(), toolReq(tt.args))
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.wantIsError, isErrorResult(result))
			assert.Contains(t, firstText(t, result), tt.wantText)
		})
	}
}

func TestHandleExecuteQuery_shape(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleExecuteQuery(t.Context(),
		toolReq(map[string]any{"query": "SELECT id, name, email FROM users WHERE id = 1"}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result))

	var payload struct {
		Success  bool             `json:"success"`
		Data     []map[string]any `json:"data"`
		RowCount int              `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, 1, payload.RowCount)
	require.Len(t, payload.Data, 1)
	assert.Equal(t, map[string]any{
		"id":    float64(1),
		"name":  "John Doe",
		"email": "john@example.com",
	}, payload.Data[0])
}

func TestHandleExecuteQuery_deniedDoesNotMutate(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleExecuteQuery(t.Context(), toolReq(map[string]any{"query": "DELETE FROM users"}))
	require.NoError(t, err)
	require.True(t, isErrorResult(result))

	var n int
	require.NoError(t, srv.st.DB().Get(&n, "SELECT COUNT(1) FROM users"))
	assert.Equal(t, 2, n)
}

// ─── get_table_info ───────────────────────────────────────────────────────────

func TestHandleGetTableInfo(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]any
		wantIsError bool
		wantText    string
	}{
		{
			name:     "existing table",
			args:     map[string]any{"table_name": "users"},
			wantText: `"email"`,
		},
		{
			name:     "foreign keys reported",
			args:     map[string]any{"table_name": "posts"},
			wantText: `"user_id"`,
		},
		{
			name:     "missing table returns structured not-found",
			args:     map[string]any{"table_name": "nonexistent"},
			wantText: "not found",
		},
		{
			name:        "missing argument",
			args:        map[string]any{},
			wantIsError: true,
			wantText:    "table_name is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)

			result, err := srv.handleGetTableInfo(t.Context(), toolReq(tt.args))
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.wantIsError, isErrorResult(result))
			assert.Contains(t, firstText(t, result), tt.wantText)
		})
	}
}

func TestHandleGetTableInfo_shape(t *testing.T) {
	srv := newTestServer(t)

	result, err := srv.handleGetTableInfo(t.Context(), toolReq(map[string]any{"table_name": "posts"}))
	require.NoError(t, err)
	require.False(t, isErrorResult(result))

	var ti struct {
		Columns []struct {
			Name       string `json:"name"`
			PrimaryKey bool   `json:"primary_key"`
		} `json:"columns"`
		ForeignKeys []struct {
			Column           string `json:"column"`
			ReferencesTable  string `json:"references_table"`
			ReferencesColumn string `json:"references_column"`
		} `json:"foreign_keys"`
	}
	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &ti))
	require.NotEmpty(t, ti.Columns)
	assert.Equal(t, "id", ti.Columns[0].Name)
	assert.True(t, ti.Columns[0].PrimaryKey)
	require.Len(t, ti.ForeignKeys, 1)
	assert.Equal(t, "user_id", ti.ForeignKeys[0].Column)
	assert.Equal(t, "users", ti.ForeignKeys[0].ReferencesTable)
	assert.Equal(t, "id", ti.ForeignKeys[0].ReferencesColumn)
}

// ─── sample_data ──────────────────────────────────────────────────────────────

func TestHandleSampleData(t *testing.T) {
	// seed extra users so limits can be observed.
	seed := func(t *testing.T, srv *Server) {
		t.Helper()
		for _, q := range []string{
			`INSERT INTO users (name, email) VALUES ('U3', 'u3@example.com')`,
			`INSERT INTO users (name, email) VALUES ('U4', 'u4@example.com')`,
			`INSERT INTO users (name, email) VALUES ('U5', 'u5@example.com')`,
		} {
			_, err := srv.st.DB().Exec(q)
			require.NoError(t, err)
		}
	}

	t.Run("limit honored", func(t *testing.T) {
		srv := newTestServer(t)
		seed(t, srv)

		result, err := srv.handleSampleData(t.Context(),
			toolReq(map[string]any{"table_name": "users", "limit": float64(2)}))
		require.NoError(t, err)
		require.False(t, isErrorResult(result))
		assert.Equal(t, 2, sampleRowCount(t, result))
	})

	t.Run("default limit returns all five rows", func(t *testing.T) {
		srv := newTestServer(t)
		seed(t, srv)

		result, err := srv.handleSampleData(t.Context(), toolReq(map[string]any{"table_name": "users"}))
		require.NoError(t, err)
		require.False(t, isErrorResult(result))
		// default limit is 10, the table has 5 rows.
		assert.Equal(t, 5, sampleRowCount(t, result))
	})

	t.Run("limit clamped to minimum", func(t *testing.T) {
		srv := newTestServer(t)

		result, err := srv.handleSampleData(t.Context(),
			toolReq(map[string]any{"table_name": "users", "limit": float64(-5)}))
		require.NoError(t, err)
		require.False(t, isErrorResult(result))
		assert.Equal(t, 1, sampleRowCount(t, result))
	})

	t.Run("missing table returns structured not-found", func(t *testing.T) {
		srv := newTestServer(t)

		result, err := srv.handleSampleData(t.Context(), toolReq(map[string]any{"table_name": "nonexistent"}))
		require.NoError(t, err)
		assert.False(t, isErrorResult(result))
		assert.Contains(t, firstText(t, result), "not found")
	})

	t.Run("missing argument", func(t *testing.T) {
		srv := newTestServer(t)

		result, err := srv.handleSampleData(t.Context(), toolReq(map[string]any{}))
		require.NoError(t, err)
		assert.True(t, isErrorResult(result))
		assert.Contains(t, firstText(t, result), "table_name is required")
	})
}

// sampleRowCount decodes the queryResult payload and returns row_count.
func sampleRowCount(t *testing.T, result *mcplib.CallToolResult) int {
	t.Helper()
	var payload struct {
		RowCount int `json:"row_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(firstText(t, result)), &payload))
	return payload.RowCount
}
