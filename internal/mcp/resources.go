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

// In this file: MCP resource definitions and read handlers.

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"
)

const (
	uriSchema = "sqlite:///schema"
	uriTables = "sqlite:///tables"
)

// serverResource pairs a resource with its read handler.
type serverResource struct {
	resource mcplib.Resource
	handler  mcpsrv.ResourceHandlerFunc
}

// resources returns all MCP resources that this server exposes.
func (s *Server) resources() []serverResource {
	return []serverResource{
		{
			resource: mcplib.NewResource(uriSchema, "Database Schema",
				mcplib.WithResourceDescription("Complete database schema with tables, columns and foreign keys"),
				mcplib.WithMIMEType("application/json"),
			),
			handler: s.readSchema,
		},
		{
			resource: mcplib.NewResource(uriTables, "Table List",
				mcplib.WithResourceDescription("List of all tables in the database"),
				mcplib.WithMIMEType("application/json"),
			),
			handler: s.readTables,
		},
	}
}

func (s *Server) readSchema(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	schema, err := s.st.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return jsonContents(uriSchema, schema)
}

func (s *Server) readTables(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	tables, err := s.st.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	return jsonContents(uriTables, tables)
}

// jsonContents serialises v into a single JSON text resource.
func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serialise %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
