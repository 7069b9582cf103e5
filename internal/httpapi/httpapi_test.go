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

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/rusq/sqlgate/internal/gate"
)

// stubQuerier is a querier with a canned response.
type stubQuerier struct {
	rows []gate.Row
	err  error

	gotQuery string
}

func (s *stubQuerier) Query(_ context.Context, query string, _ ...any) ([]gate.Row, error) {
	s.gotQuery = query
	return s.rows, s.err
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestToolCallHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		stub       stubQuerier
		wantStatus int
		wantBody   string // substring
	}{
		{
			name:       "success",
			body:       `{"tool":"query_sql","input":{"query":"SELECT 1"}}`,
			stub:       stubQuerier{rows: []gate.Row{}},
			wantStatus: http.StatusOK,
			wantBody:   `"result":[]`,
		},
		{
			name:       "execute_query alias accepted",
			body:       `{"tool":"execute_query","input":{"query":"SELECT 1"}}`,
			stub:       stubQuerier{rows: []gate.Row{}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "unsupported tool",
			body:       `{"tool":"drop_everything","input":{"query":"SELECT 1"}}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "unsupported tool",
		},
		{
			name:       "missing tool name",
			body:       `{"input":{"query":"SELECT 1"}}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid request",
		},
		{
			name:       "missing query",
			body:       `{"tool":"query_sql","input":{}}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid request",
		},
		{
			name:       "mis-typed query",
			body:       `{"tool":"query_sql","input":{"query":42}}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid JSON body",
		},
		{
			name:       "malformed JSON",
			body:       `{"tool":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "invalid JSON body",
		},
		{
			name:       "policy denial maps to 403",
			body:       `{"tool":"query_sql","input":{"query":"DROP TABLE users"}}`,
			stub:       stubQuerier{err: &gate.PolicyError{Query: "DROP TABLE users", Reason: "only read-only statements are allowed"}},
			wantStatus: http.StatusForbidden,
			wantBody:   "not permitted",
		},
		{
			name:       "execution error maps to 500",
			body:       `{"tool":"query_sql","input":{"query":"SELECT x"}}`,
			stub:       stubQuerier{err: &gate.ExecError{Query: "SELECT x", Err: assert.AnError}},
			wantStatus: http.StatusInternalServerError,
			wantBody:   "query execution failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := tt.stub
			h := New(&stub).Handler()

			rec := postJSON(t, h, "/v1/tools/call", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestToolCallHandler_endToEnd(t *testing.T) {
	// Real gateway over a seeded in-memory store.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sqlx.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, email TEXT)`,
		`INSERT INTO users (id, name, email) VALUES (1, 'John Doe', 'john@example.com')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	h := New(gate.New(db)).Handler()

	rec := postJSON(t, h, "/v1/tools/call",
		`{"tool":"query_sql","input":{"query":"SELECT id, name, email FROM users WHERE id = 1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result []map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Result, 1)
	assert.Equal(t, map[string]any{
		"id":    float64(1),
		"name":  "John Doe",
		"email": "john@example.com",
	}, resp.Result[0])
}

func TestManifestHandler(t *testing.T) {
	h := New(&stubQuerier{}).Handler()

	req := httptest.NewRequest(http.MethodGet, manifestPath, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var manifest struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"input_schema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &manifest))
	require.Len(t, manifest.Tools, 1)
	assert.Equal(t, "query_sql", manifest.Tools[0].Name)
	assert.Contains(t, manifest.Tools[0].InputSchema, "properties")
}

func TestRootAndHealth(t *testing.T) {
	h := New(&stubQuerier{}).Handler()

	for _, path := range []string{"/", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestHandler_mountsMCP(t *testing.T) {
	mounted := false
	mcpStub := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mounted = true
		w.WriteHeader(http.StatusOK)
	})
	h := New(&stubQuerier{}, WithMCPHandler(mcpStub)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, mounted)
}
