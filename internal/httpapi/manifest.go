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

// In this file: the static tool manifest served at the well-known path.

import (
	_ "embed"
	"net/http"
)

// manifestPath is the well-known location of the tool manifest.
const manifestPath = "/.well-known/mcp-schema.json"

//go:embed manifest.json
var manifestJSON []byte

func (s *Server) manifestHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(manifestJSON); err != nil {
		s.logger.ErrorContext(r.Context(), "manifest write failed", "error", err)
	}
}
