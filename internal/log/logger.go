/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package log provides centralized slog-based logging for the editor.
// It wraps slog with a small configuration surface, a compact console format,
// optional rotating file output, and a handler that lifts the design/page
// identifiers carried in a context.Context onto every record.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"godesigner/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Values can be provided directly or via environment variables:
//   - GDS_LOG_LEVEL=debug|info|warn|error
//   - GDS_LOG_FORMAT=console|json
//   - GDS_LOG_FILE=<path> (enables rotated JSON file logging)
//   - GDS_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
}

var (
	defaultLoggerMu sync.RWMutex
	defaultLogger   *slog.Logger
)

// L returns the application logger, initializing it from the environment on first use.
func L() *slog.Logger {
	defaultLoggerMu.RLock()
	l := defaultLogger
	defaultLoggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	defaultLoggerMu.RLock()
	l = defaultLogger
	defaultLoggerMu.RUnlock()
	return l
}

// Init configures the global logger writing console output to stderr.
func Init(opts Options) { Setup(opts, os.Stderr) }

// Setup configures the global logger with console output going to w.
// It also installs the logger as slog.Default.
func Setup(opts Options, w io.Writer) *slog.Logger {
	lvl := parseLevel(opts.Level)
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	var sinks []slog.Handler
	if format == "json" {
		sinks = append(sinks, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	} else {
		sinks = append(sinks, &lineHandler{level: lvl, addSource: opts.AddSource, w: w, mu: &sync.Mutex{}})
	}
	if strings.TrimSpace(opts.File) != "" {
		rot := &lj.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	}

	var h slog.Handler = sinks[0]
	if len(sinks) > 1 {
		h = &fanout{hs: sinks}
	}
	logger := slog.New(&contextHandler{next: h}).With(
		slog.String("app", "godesigner"),
		slog.String("ver", version.Version),
	)

	defaultLoggerMu.Lock()
	defaultLogger = logger
	defaultLoggerMu.Unlock()
	slog.SetDefault(logger)
	return logger
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("GDS_LOG_LEVEL", "info"),
		Format:    getenv("GDS_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("GDS_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("GDS_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// Err is shorthand for the error attribute used across the code base.
func Err(err error) slog.Attr { return slog.Any("err", err) }

type ctxKey int

const (
	designKey ctxKey = iota
	pageKey
)

// WithDesign returns a context whose log records carry design_id.
func WithDesign(ctx context.Context, designID string) context.Context {
	return context.WithValue(ctx, designKey, designID)
}

// WithPage returns a context whose log records carry page_id.
func WithPage(ctx context.Context, pageID string) context.Context {
	return context.WithValue(ctx, pageKey, pageID)
}

func parseLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// contextHandler copies identifiers stored with WithDesign/WithPage onto the record.
type contextHandler struct{ next slog.Handler }

func (c *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return c.next.Enabled(ctx, level)
}

func (c *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if v, ok := ctx.Value(designKey).(string); ok && v != "" {
			r.AddAttrs(slog.String("design_id", v))
		}
		if v, ok := ctx.Value(pageKey).(string); ok && v != "" {
			r.AddAttrs(slog.String("page_id", v))
		}
	}
	return c.next.Handle(ctx, r)
}

func (c *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: c.next.WithAttrs(attrs)}
}

func (c *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: c.next.WithGroup(name)}
}

// fanout sends every record to all sinks and reports the first failure.
type fanout struct{ hs []slog.Handler }

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	res := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		res[i] = h.WithAttrs(attrs)
	}
	return &fanout{hs: res}
}

func (f *fanout) WithGroup(name string) slog.Handler {
	res := make([]slog.Handler, len(f.hs))
	for i, h := range f.hs {
		res[i] = h.WithGroup(name)
	}
	return &fanout{hs: res}
}

// lineHandler prints one human-friendly line per record:
//
//	15:04:05.000 INF msg component=editor k=v
type lineHandler struct {
	level     slog.Leveler
	addSource bool
	w         io.Writer
	mu        *sync.Mutex
	attrs     []slog.Attr
	prefix    string
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	floor := slog.LevelInfo
	if h.level != nil {
		floor = h.level.Level()
	}
	return level >= floor
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	b := &strings.Builder{}
	b.Grow(160)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	if r.Message != "" {
		b.WriteByte(' ')
		b.WriteString(r.Message)
	}
	for _, a := range h.attrs {
		writeAttr(b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(b, h.prefix, a)
		return true
	})
	if h.addSource {
		if r.PC != 0 {
			fr, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
			b.WriteString(" src=")
			b.WriteString(fr.File)
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(fr.Line))
		}
	}
	b.WriteByte('\n')
	if h.mu != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	na := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	na = append(na, h.attrs...)
	for _, a := range attrs {
		na = append(na, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	c := *h
	c.attrs = na
	return &c
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(valueString(a.Value))
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}

func valueString(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	}
	s := v.String()
	if strings.ContainsAny(s, " =\"") {
		return strconv.Quote(s)
	}
	return s
}
