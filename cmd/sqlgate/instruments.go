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

package main

// In this file: logging and tracing instrumentation.

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/rusq/tracer"
)

// initLog initialises the logging and sets the default logger.  If
// filename is not empty, the file is opened in append mode and the logger
// output is switched to that file.  The returned stop function must be
// called in a deferred call; it closes the log file if one is open.  Note
// that stdio transport reserves stdout for the protocol, so all logging
// goes to stderr or the file.
func initLog(filename string, jsonHandler bool, verbose bool) (*slog.Logger, func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}

	w := os.Stderr
	stop := func() {}
	if filename != "" {
		slog.Debug("log messages will be written to file", "filename", filename)
		lf, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o666)
		if err != nil {
			return slog.Default(), nil, fmt.Errorf("failed to create the log file: %w", err)
		}
		log.SetOutput(lf) // redirect the standard log to the file just in case, panics will be logged there.
		w = lf
		stop = func() {
			if err := lf.Close(); err != nil {
				slog.Warn("failed to close the log file", "filename", filename, "error", err)
			}
		}
	}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if jsonHandler {
		h = slog.NewJSONHandler(w, opts)
	}
	lg := slog.New(h)
	slog.SetDefault(lg)
	return lg, stop, nil
}

// initTrace initialises the trace file if filename is not empty.  The
// returned stop function finalises the trace; it is safe to call even when
// tracing was not started.
func initTrace(filename string) (stop func()) {
	stop = func() {}
	if filename == "" {
		return
	}

	slog.Info("trace will be written to", "filename", filename)

	trc := tracer.New(filename)
	if err := trc.Start(); err != nil {
		slog.Warn("failed to start the trace", "filename", filename, "error", err)
		return
	}

	stop = func() {
		if err := trc.End(); err != nil {
			slog.Warn("failed to write the trace file", "filename", filename, "error", err)
		}
	}
	return
}
