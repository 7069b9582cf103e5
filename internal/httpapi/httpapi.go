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

// Package httpapi serves the HTTP tool-call surface: the static tool
// manifest, a validated tool invocation endpoint, and (optionally) the
// MCP Streamable HTTP endpoint mounted on the same router.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/rusq/sqlgate/internal/gate"
)

// querier runs a read-only query.  *gate.Gateway satisfies it.
type querier interface {
	Query(ctx context.Context, query string, args ...any) ([]gate.Row, error)
}

// Server is the HTTP tool-call API.
type Server struct {
	gw       querier
	validate *validator.Validate
	logger   *slog.Logger
	mcp      http.Handler // optional streamable MCP endpoint
	srv      *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.  A nil logger falls back to slog.Default.
func WithLogger(lg *slog.Logger) Option {
	return func(s *Server) {
		if lg != nil {
			s.logger = lg
		}
	}
}

// WithMCPHandler mounts h at /mcp on the router.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// New creates the HTTP API over the given gateway.
func New(gw querier, opt ...Option) *Server {
	s := &Server{
		gw:       gw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, o := range opt {
		o(s)
	}
	return s
}

// Handler returns the root http.Handler with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.rootHandler)
	r.Get("/healthz", s.healthHandler)
	r.Get(manifestPath, s.manifestHandler)
	r.Post("/v1/tools/call", s.toolCallHandler)
	if s.mcp != nil {
		r.Mount("/mcp", s.mcp)
	}
	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.InfoContext(ctx, "http api listening", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.InfoContext(ctx, "http api shutting down")
		sdctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(sdctx)
	case err := <-errCh:
		return err
	}
}

// toolCallRequest is the tool invocation envelope.
type toolCallRequest struct {
	Tool  string        `json:"tool" validate:"required"`
	Input toolCallInput `json:"input" validate:"required"`
}

type toolCallInput struct {
	Query string `json:"query" validate:"required"`
}

// toolCallResponse wraps the query result rows.
type toolCallResponse struct {
	Result []gate.Row `json:"result"`
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "sqlgate is serving"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) toolCallHandler(w http.ResponseWriter, r *http.Request) {
	var req toolCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if err := s.validate.StructCtx(r.Context(), &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	if !supportedTool(req.Tool) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unsupported tool: " + req.Tool})
		return
	}

	rows, err := s.gw.Query(r.Context(), req.Input.Query)
	if err != nil {
		var policyErr *gate.PolicyError
		if errors.As(err, &policyErr) {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: policyErr.Error()})
			return
		}
		s.logger.ErrorContext(r.Context(), "tool call failed", "tool", req.Tool, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toolCallResponse{Result: rows})
}

// supportedTool reports whether name refers to the query tool.  The
// manifest advertises "query_sql"; "execute_query" is accepted as an
// alias for MCP-styled clients.
func supportedTool(name string) bool {
	return name == "query_sql" || name == "execute_query"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response write failed", "error", err)
	}
}
