/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history keeps a bounded, linear undo/redo timeline of serialized
// scene states.
package history

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	applog "godesigner/internal/log"
	"godesigner/internal/scene"
)

// DefaultMaxEntries is the number of snapshots retained when Config leaves it unset.
const DefaultMaxEntries = 50

// Scene is the part of a scene adapter the history needs.
type Scene interface {
	ToSerializable() ([]byte, error)
	LoadFromSerializable(data []byte) error
	Subscribe(fn func(scene.Event)) (unsubscribe func())
}

// Config controls depth and memory caps and coalescing behavior.
type Config struct {
	// MaxEntries caps the timeline length; the oldest entries are evicted first.
	MaxEntries int
	// MaxBytes is a soft memory cap (0 means unlimited). At least one entry is always kept.
	MaxBytes int
	// CoalesceWindow replaces the newest entry instead of appending when a capture
	// lands within the window of the previous one. Zero disables coalescing.
	CoalesceWindow time.Duration
}

type entry struct {
	data []byte
	at   time.Time
}

// Manager is an index-based timeline: entries[pos] is the state on screen.
// It is safe for concurrent use.
type Manager struct {
	cfg   Config
	scene Scene
	now   func() time.Time
	log   *slog.Logger

	// replaying is checked before mu so events raised while a snapshot is being
	// applied never block on or append to the timeline.
	replaying atomic.Bool

	mu      sync.Mutex
	entries []entry
	pos     int
	bytes   int
}

// NewManager returns an empty manager for s; zero config fields take defaults.
func NewManager(s Scene, cfg Config) *Manager {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.CoalesceWindow < 0 {
		cfg.CoalesceWindow = 0
	}
	return &Manager{cfg: cfg, scene: s, now: time.Now, pos: -1, log: applog.WithComponent("history")}
}

// Capture serializes the scene and appends it after the current position,
// discarding any redo future. It reports whether an entry was recorded.
func (m *Manager) Capture() bool {
	if m.replaying.Load() {
		return false
	}
	data, err := m.scene.ToSerializable()
	if err != nil {
		m.log.Warn("capture skipped", applog.Err(err))
		return false
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	truncated := m.pos < len(m.entries)-1
	if truncated {
		for _, e := range m.entries[m.pos+1:] {
			m.bytes -= len(e.data)
		}
		m.entries = m.entries[:m.pos+1]
	}
	// never coalesce into the baseline or into the entry an undo landed on
	if n := len(m.entries); !truncated && n > 1 && m.cfg.CoalesceWindow > 0 && now.Sub(m.entries[n-1].at) < m.cfg.CoalesceWindow {
		m.bytes += len(data) - len(m.entries[n-1].data)
		m.entries[n-1] = entry{data: data, at: now}
		m.enforceCapsLocked()
		return true
	}
	m.entries = append(m.entries, entry{data: data, at: now})
	m.bytes += len(data)
	m.pos = len(m.entries) - 1
	m.enforceCapsLocked()
	return true
}

func (m *Manager) enforceCapsLocked() {
	drop := 0
	for len(m.entries)-drop > m.cfg.MaxEntries {
		m.bytes -= len(m.entries[drop].data)
		drop++
	}
	for m.cfg.MaxBytes > 0 && m.bytes > m.cfg.MaxBytes && len(m.entries)-drop > 1 {
		m.bytes -= len(m.entries[drop].data)
		drop++
	}
	if drop == 0 {
		return
	}
	m.entries = append([]entry(nil), m.entries[drop:]...)
	m.pos -= drop
	if m.pos < 0 {
		m.pos = 0
	}
}

// Undo steps back one entry. It is a no-op at the oldest entry and leaves the
// position unchanged when the snapshot cannot be applied.
func (m *Manager) Undo() bool { return m.step(-1) }

// Redo steps forward one entry; a no-op at the newest.
func (m *Manager) Redo() bool { return m.step(+1) }

func (m *Manager) step(delta int) bool {
	if m.replaying.Load() {
		return false
	}
	m.mu.Lock()
	target := m.pos + delta
	if m.pos < 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	data := m.entries[target].data
	m.mu.Unlock()

	if err := m.apply(data); err != nil {
		m.log.Error("history navigation failed", "delta", delta, applog.Err(err))
		return false
	}
	m.mu.Lock()
	m.pos = target
	m.mu.Unlock()
	return true
}

func (m *Manager) apply(data []byte) error {
	m.replaying.Store(true)
	defer m.replaying.Store(false)
	return m.scene.LoadFromSerializable(data)
}

// CanUndo reports whether an older entry exists.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos > 0
}

// CanRedo reports whether a newer entry exists.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos >= 0 && m.pos < len(m.entries)-1
}

// Len is the number of retained entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Position is the index of the current entry, -1 when empty.
func (m *Manager) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Snapshots returns copies of the retained entries, oldest first.
func (m *Manager) Snapshots() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.entries))
	for i, e := range m.entries {
		out[i] = append([]byte(nil), e.data...)
	}
	return out
}

// Reset drops every entry.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries, m.pos, m.bytes = nil, -1, 0
}

// Replaying reports whether a snapshot is currently being applied.
func (m *Manager) Replaying() bool { return m.replaying.Load() }

// Track captures the current state as the baseline and then after every
// completed user edit. Gesture frames, selection changes and replayed or
// editor-driven changes are ignored. The returned func stops tracking.
func (m *Manager) Track() (stop func()) {
	unsubscribe := m.scene.Subscribe(func(ev scene.Event) {
		if ev.Origin != scene.OriginUser {
			return
		}
		switch ev.Type {
		case scene.ObjectAdded, scene.ObjectRemoved, scene.ObjectModified:
			m.Capture()
		}
	})
	m.Capture()
	return unsubscribe
}
