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

// In this file: MCP tool definitions and handler implementations.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/rusq/sqlgate/internal/gate"
	"github.com/rusq/sqlgate/internal/store"
)

// tools returns all MCP tools that this server exposes.
func (s *Server) tools() []mcpsrv.ServerTool {
	return []mcpsrv.ServerTool{
		s.toolExecuteQuery(),
		s.toolGetTableInfo(),
		s.toolSampleData(),
	}
}

// queryResult is the JSON payload of a successful execute_query call.
type queryResult struct {
	Success  bool       `json:"success"`
	Data     []gate.Row `json:"data"`
	RowCount int        `json:"row_count"`
}

// queryFailure is the JSON payload of a failed execute_query call.  The
// original query is carried for diagnostics.
type queryFailure struct {
	Error string `json:"error"`
	Query string `json:"query,omitempty"`
}

// resultQueryErr wraps a gateway failure into an IsError tool result whose
// text is the structured failure payload.
func resultQueryErr(err error, query string) *mcplib.CallToolResult {
	b, merr := json.MarshalIndent(queryFailure{Error: err.Error(), Query: query}, "", "  ")
	if merr != nil {
		return resultErr(err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{mcplib.NewTextContent(string(b))},
		IsError: true,
	}
}

// ─── execute_query ────────────────────────────────────────────────────────────

func (s *Server) toolExecuteQuery() mcpsrv.ServerTool {
	tool := mcplib.NewTool("execute_query",
		mcplib.WithDescription(`Execute a read-only SQL query on the dataset.

Only SELECT statements (including WITH ... SELECT) are permitted; any other
statement is denied by the policy gate.  Positional "?" placeholders may be
bound via the optional params array, which is preferred over interpolating
values into the query text.`),
		mcplib.WithString("query",
			mcplib.Description("The SQL query to execute (SELECT only for safety)."),
			mcplib.Required(),
		),
		mcplib.WithArray("params",
			mcplib.Description("Optional positional values bound to \"?\" placeholders in the query."),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithIdempotentHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleExecuteQuery}
}

func (s *Server) handleExecuteQuery(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	query, ok := stringArg(req, "query")
	if !ok || query == "" {
		return resultErr(errors.New("execute_query: query is required")), nil
	}
	params, _ := sliceArg(req, "params")

	rows, err := s.gw.Query(ctx, query, params...)
	if err != nil {
		s.logger.InfoContext(ctx, "mcp: execute_query failed", "error", err)
		return resultQueryErr(err, query), nil
	}

	result, err := resultJSON(queryResult{Success: true, Data: rows, RowCount: len(rows)})
	if err != nil {
		return resultErr(fmt.Errorf("execute_query: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── get_table_info ───────────────────────────────────────────────────────────

func (s *Server) toolGetTableInfo() mcpsrv.ServerTool {
	tool := mcplib.NewTool("get_table_info",
		mcplib.WithDescription("Get detailed information about a specific table: column names, declared types, nullability, defaults, primary-key membership, and foreign keys."),
		mcplib.WithString("table_name",
			mcplib.Description("Name of the table to inspect."),
			mcplib.Required(),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
		mcplib.WithIdempotentHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleGetTableInfo}
}

func (s *Server) handleGetTableInfo(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	tableName, ok := stringArg(req, "table_name")
	if !ok || tableName == "" {
		return resultErr(errors.New("get_table_info: table_name is required")), nil
	}

	ti, err := s.st.TableInfo(ctx, tableName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Structured not-found payload, not a protocol fault: the
			// dispatch loop keeps serving.
			result, jerr := resultJSON(queryFailure{Error: fmt.Sprintf("Table %q not found", tableName)})
			if jerr != nil {
				return resultErr(jerr), nil
			}
			return result, nil
		}
		return resultErr(fmt.Errorf("get_table_info: %w", err)), nil
	}

	result, err := resultJSON(ti)
	if err != nil {
		return resultErr(fmt.Errorf("get_table_info: serialise: %w", err)), nil
	}
	return result, nil
}

// ─── sample_data ──────────────────────────────────────────────────────────────

const (
	defSampleLimit = 10
	minSampleLimit = 1
	maxSampleLimit = 1000
)

func (s *Server) toolSampleData() mcpsrv.ServerTool {
	tool := mcplib.NewTool("sample_data",
		mcplib.WithDescription("Get a sample of rows from a table."),
		mcplib.WithString("table_name",
			mcplib.Description("Name of the table to sample from."),
			mcplib.Required(),
		),
		mcplib.WithNumber("limit",
			mcplib.Description(fmt.Sprintf("Number of rows to return (1–%d, default %d).", maxSampleLimit, defSampleLimit)),
		),
		mcplib.WithReadOnlyHintAnnotation(true),
	)
	return mcpsrv.ServerTool{Tool: tool, Handler: s.handleSampleData}
}

func (s *Server) handleSampleData(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	tableName, ok := stringArg(req, "table_name")
	if !ok || tableName == "" {
		return resultErr(errors.New("sample_data: table_name is required")), nil
	}
	limit := intArg(req, "limit", defSampleLimit)
	limit = max(min(limit, maxSampleLimit), minSampleLimit)

	// The table identifier cannot be bound as a parameter; verify it
	// against the catalog before interpolating.
	if _, err := s.st.TableInfo(ctx, tableName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			result, jerr := resultJSON(queryFailure{Error: fmt.Sprintf("Table %q not found", tableName)})
			if jerr != nil {
				return resultErr(jerr), nil
			}
			return result, nil
		}
		return resultErr(fmt.Errorf("sample_data: %w", err)), nil
	}

	query := "SELECT * FROM " + store.QuoteIdent(tableName) + " LIMIT ?"
	rows, err := s.gw.Query(ctx, query, limit)
	if err != nil {
		s.logger.InfoContext(ctx, "mcp: sample_data failed", "table", tableName, "error", err)
		return resultQueryErr(err, query), nil
	}

	result, err := resultJSON(queryResult{Success: true, Data: rows, RowCount: len(rows)})
	if err != nil {
		return resultErr(fmt.Errorf("sample_data: serialise: %w", err)), nil
	}
	return result, nil
}
