/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a fatal panic into a report file, a last save of open
// work and an optional anonymized upload.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "godesigner/internal/log"
	"godesigner/internal/telemetry"
	"godesigner/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// flushTimeout bounds the autosave attempted while crashing.
const flushTimeout = 5 * time.Second

// Flusher persists pending work. The editor store satisfies it.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Recover captures a panic, logs it with the stack, writes a report into dir
// (the temp dir when empty), flushes f and exits with code 2.
//
// Usage: defer crash.Recover(store, dir)
func Recover(f Flusher, dir string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(dir, r, stack)
	if err != nil {
		l.Error("write crash report failed", applog.Err(err))
	}
	if f != nil {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := f.Flush(ctx); err != nil {
			l.Error("autosave on crash failed", applog.Err(err))
		} else {
			l.Info("autosave on crash written")
		}
		cancel()
	}

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", applog.Err(err))
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", applog.Err(err))
	}
	exitFn(2)
}

func writeReport(dir string, panicVal any, stack []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "GoDesigner Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}
