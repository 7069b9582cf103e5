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

// Package gate implements the guarded read-only query gateway: a policy
// check over the raw query text, scoped execution against the embedded
// store, and a uniform ordered-row result shape shared by every transport.
package gate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Gateway executes policy-approved queries against the store.  It is safe
// for concurrent use; each call acquires its own connection from the pool
// and releases it before returning.
type Gateway struct {
	db     *sqlx.DB
	policy *Policy
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPolicy overrides the default read-only policy.
func WithPolicy(p *Policy) Option {
	return func(g *Gateway) {
		if p != nil {
			g.policy = p
		}
	}
}

// WithLogger sets the logger.  A nil logger falls back to slog.Default.
func WithLogger(lg *slog.Logger) Option {
	return func(g *Gateway) {
		if lg != nil {
			g.logger = lg
		}
	}
}

// New creates a Gateway over db with the default read-only policy.
func New(db *sqlx.DB, opt ...Option) *Gateway {
	g := &Gateway{
		db:     db,
		policy: DefaultPolicy(),
		logger: slog.Default(),
	}
	for _, o := range opt {
		o(g)
	}
	return g
}

// ExecError is returned when the store rejects or fails an approved
// statement.  It carries the original query text for diagnostics.
type ExecError struct {
	Query string
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("query execution failed: %v", e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// Query runs a single read-only statement and returns all result rows in
// store iteration order.  The query text is checked against the policy
// before any connection is acquired; a denied query never touches the
// store.  Execution errors are returned as *ExecError and are never
// retried: a malformed statement is a caller problem, not a transient
// fault.
func (g *Gateway) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := g.policy.Check(query); err != nil {
		g.logger.InfoContext(ctx, "query denied", "reason", err)
		return nil, err
	}

	conn, err := g.db.Connx(ctx)
	if err != nil {
		return nil, &ExecError{Query: query, Err: err}
	}
	defer conn.Close()

	rows, err := conn.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, &ExecError{Query: query, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecError{Query: query, Err: err}
	}
	if len(cols) == 0 {
		// Non-row-returning statement; unreachable for select-classified
		// queries, but the contract is an empty sequence, not a failure.
		return []Row{}, nil
	}

	result := []Row{}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, &ExecError{Query: query, Err: err}
		}
		result = append(result, newRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecError{Query: query, Err: err}
	}

	g.logger.DebugContext(ctx, "query executed", "rows", len(result))
	return result, nil
}
