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

// Command sqlgate serves a read-only SQL query gateway over a local SQLite
// dataset, either as an HTTP tool-call API (with the MCP Streamable HTTP
// endpoint mounted at /mcp) or as an MCP stdio server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rusq/osenv/v2"

	"github.com/rusq/sqlgate/internal/gate"
	"github.com/rusq/sqlgate/internal/httpapi"
	"github.com/rusq/sqlgate/internal/mcp"
	"github.com/rusq/sqlgate/internal/store"
)

var build = "dev"

// secrets defines the names of the supported secret files that we load our
// environment from.  Inexperienced windows users might have bad experience
// trying to create .env file with the notepad as it will battle for having
// the "txt" extension.  Let it have it.
var secrets = []string{".env", ".env.txt", "secrets.txt"}

const (
	defDBPath = "sqlgate.sqlite"
	defAddr   = ":8080"
)

// params is the command line parameters.
type params struct {
	dbPath    string
	addr      string
	transport string

	logFile      string
	jsonLog      bool
	verbose      bool
	traceFile    string
	printVersion bool
}

func main() {
	loadSecrets(secrets)

	var p params
	flag.StringVar(&p.dbPath, "db", osenv.Value("DATABASE_PATH", defDBPath), "database `file` (created and seeded on first run)")
	flag.StringVar(&p.addr, "addr", osenv.Value("SQLGATE_ADDR", defAddr), "HTTP listen `address`")
	flag.StringVar(&p.transport, "transport", osenv.Value("SQLGATE_TRANSPORT", string(mcp.TransportHTTP)), "transport to serve: \"http\" or \"stdio\"")
	flag.StringVar(&p.logFile, "log", os.Getenv("LOG_FILE"), "log `file`, if not specified, messages are printed to STDERR")
	flag.BoolVar(&p.jsonLog, "log-json", osenv.Value("JSON_LOG", false), "log in JSON format")
	flag.BoolVar(&p.verbose, "v", osenv.Value("DEBUG", false), "verbose messages")
	flag.StringVar(&p.traceFile, "trace", os.Getenv("TRACE_FILE"), "trace `filename`")
	flag.BoolVar(&p.printVersion, "version", false, "print version and exit")
	flag.Parse()

	if p.printVersion {
		fmt.Println(build)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, p); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, p params) error {
	lg, stopLog, err := initLog(p.logFile, p.jsonLog, p.verbose)
	if err != nil {
		return err
	}
	defer stopLog()
	stopTrace := initTrace(p.traceFile)
	defer stopTrace()

	// Bootstrap must complete before any transport accepts calls.
	st, err := store.Open(ctx, p.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	lg.InfoContext(ctx, "store ready", "db", p.dbPath)

	gw := gate.New(st.DB(), gate.WithLogger(lg))
	msrv := mcp.New(gw, st, mcp.WithLogger(lg))

	switch mcp.Transport(p.transport) {
	case mcp.TransportStdio:
		return msrv.ServeStdio(ctx)
	case mcp.TransportHTTP:
		api := httpapi.New(gw,
			httpapi.WithLogger(lg),
			httpapi.WithMCPHandler(msrv.StreamableHandler()),
		)
		return api.ListenAndServe(ctx, p.addr)
	default:
		return fmt.Errorf("unknown transport %q", p.transport)
	}
}

// loadSecrets load secrets from the files in secrets slice.
func loadSecrets(files []string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}
