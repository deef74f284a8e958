/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"godesigner/internal/config"
)

type collector struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.events = append(c.events, b)
		c.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.crashes = append(c.crashes, b)
		c.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (c *collector) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events), len(c.crashes)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestEventAndCrashUpload(t *testing.T) {
	col := &collector{}
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}
	c.Event("export", map[string]any{"format": "png", "name": "spoofed"})
	c.Flush(context.Background())
	if !waitFor(func() bool { e, _ := col.counts(); return e == 1 }) {
		t.Fatalf("event not delivered")
	}
	var m map[string]any
	if err := json.Unmarshal(col.events[0], &m); err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if m["name"] != "export" || m["format"] != "png" {
		t.Fatalf("unexpected payload %v", m)
	}
	if _, ok := m["ts"].(string); !ok {
		t.Fatalf("missing ts")
	}
	c.UploadCrash([]byte("STACK"))
	if !waitFor(func() bool { _, n := col.counts(); return n == 1 }) {
		t.Fatalf("crash report not uploaded")
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))

	c2 := New(Config{OptIn: true, EventsURL: srv.URL})
	defer c2.Close()
	c2.Event("", nil)
	c2.Flush(nil)
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no requests, got %d", hits)
	}
	var nilClient *Client
	nilClient.UploadCrash([]byte("x"))
	if nilClient.Enabled() {
		t.Fatalf("nil client must be disabled")
	}
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", CrashURL: "http://127.0.0.1:1/crash", Timeout: 50 * time.Millisecond, DebugLogging: true})
	defer c.Close()
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	time.Sleep(100 * time.Millisecond)
}

func TestFromEnvAndConfig(t *testing.T) {
	t.Setenv(EnvOptIn, "")
	t.Setenv(EnvEventsURL, "http://127.0.0.1:0")
	t.Setenv(EnvCrashURL, "")
	t.Setenv(EnvTimeoutMs, "100")
	cfg := FromEnv()
	if cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv: %+v", cfg)
	}
	cfg = FromConfig(config.GeneralConfig{TelemetryOptIn: true})
	if !cfg.OptIn {
		t.Fatalf("config opt-in ignored")
	}
	NewDefault(cfg)
	if !Enabled() {
		t.Fatalf("default client should be enabled")
	}
	NewDefault(Config{})
	if Enabled() {
		t.Fatalf("default client should be disabled after reset")
	}
}
