/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type flushRecorder struct {
	calls int
	err   error
}

func (f *flushRecorder) Flush(ctx context.Context) error {
	f.calls++
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("flush without deadline")
	}
	return f.err
}

func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, r)
		close(done)
	}()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func crashReports(t *testing.T, dir string) []string {
	t.Helper()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var out []string
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			out = append(out, filepath.Join(dir, f.Name()))
		}
	}
	return out
}

func TestWriteReportCreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := writeReport(dir, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("report written to %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "GoDesigner Crash Report") {
		t.Fatalf("report header missing")
	}
	if !strings.Contains(s, "Panic: boom") || !strings.Contains(s, "stacktrace") {
		t.Fatalf("panic content missing: %s", s)
	}
}

func TestRecoverFlushesAndExits(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	dir := t.TempDir()
	f := &flushRecorder{}

	func() {
		defer Recover(f, dir)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
	if f.calls != 1 {
		t.Fatalf("expected one flush, got %d", f.calls)
	}
	reports := crashReports(t, dir)
	if len(reports) != 1 {
		t.Fatalf("expected one crash report, got %v", reports)
	}
	b, _ := os.ReadFile(reports[0])
	if !strings.Contains(string(b), "Panic: boom") {
		t.Fatalf("report does not contain panic: %s", b)
	}
}

func TestRecoverSurvivesFlushError(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	f := &flushRecorder{err: errors.New("disk full")}

	func() {
		defer Recover(f, t.TempDir())
		panic(errors.New("bad state"))
	}()

	if *code != 2 || f.calls != 1 {
		t.Fatalf("code=%d calls=%d", *code, f.calls)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	code := stubExit(t)
	dir := t.TempDir()
	f := &flushRecorder{}

	func() {
		defer Recover(f, dir)
	}()

	if *code != -1 || f.calls != 0 || len(crashReports(t, dir)) != 0 {
		t.Fatalf("unexpected side effects: code=%d calls=%d", *code, f.calls)
	}
}
