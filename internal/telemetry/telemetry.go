/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous, opt-in usage events and crash reports.
// Nothing leaves the machine unless the user opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"godesigner/internal/config"
	applog "godesigner/internal/log"
	"godesigner/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn     = "GDS_TELEMETRY_OPT_IN"
	EnvEventsURL = "GDS_TELEMETRY_URL"
	EnvCrashURL  = "GDS_CRASH_UPLOAD_URL"
	EnvTimeoutMs = "GDS_TELEMETRY_TIMEOUT_MS"
	EnvDebug     = "GDS_TELEMETRY_DEBUG"
)

// Config holds the endpoints and the user's consent.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

// Sink receives named events. *Client implements it.
type Sink interface {
	Event(name string, props map[string]any)
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvEventsURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeoutMs)); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

// FromConfig reads endpoints from the environment and consent from either the
// environment or the user's config file.
func FromConfig(general config.GeneralConfig) Config {
	cfg := FromEnv()
	cfg.OptIn = cfg.OptIn || general.TelemetryOptIn
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client sends events from a background goroutine over a bounded queue.
// Events are dropped when the queue is full or a send fails.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan map[string]any
	once   sync.Once
	closed chan struct{}
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
	defaultMu     sync.Mutex
)

// InitDefault installs a default client from the environment on first use.
func InitDefault() {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		if defaultClient == nil {
			defaultClient = New(FromEnv())
		}
	})
}

// NewDefault replaces the default client.
func NewDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// Default returns the package-level client.
func Default() *Client {
	InitDefault()
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan map[string]any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether the user opted in and an events endpoint is set.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

func Enabled() bool { return Default().Enabled() }

// Event queues a small JSON event. props must not carry personal data such as
// design names or file paths.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	select {
	case c.q <- payload:
	default:
	}
}

// Event sends through the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// Flush waits briefly for queued events to go out.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the sender goroutine.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
		}
	}
}

func (c *Client) send(item map[string]any) {
	buf, err := json.Marshal(item)
	if err != nil {
		return
	}
	c.post(c.cfg.EventsURL, "application/json", buf, "telemetry event")
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "godesigner/"+version.String())
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", applog.Err(err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", "status", resp.StatusCode)
	}
}

// UploadCrash posts a crash report in the background when the user opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", append([]byte(nil), report...), "crash upload")
}

func UploadCrash(report []byte) { Default().UploadCrash(report) }
