/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"godesigner/internal/scene"
)

// counterScene serializes to its current counter value.
type counterScene struct {
	n       int
	loadErr error
	loads   []string
	onLoad  func()
	subs    []func(scene.Event)
}

func (s *counterScene) ToSerializable() ([]byte, error) { return []byte(strconv.Itoa(s.n)), nil }

func (s *counterScene) LoadFromSerializable(data []byte) error {
	if s.loadErr != nil {
		return s.loadErr
	}
	v, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	s.n = v
	s.loads = append(s.loads, string(data))
	if s.onLoad != nil {
		s.onLoad()
	}
	return nil
}

func (s *counterScene) Subscribe(fn func(scene.Event)) func() {
	s.subs = append(s.subs, fn)
	return func() { s.subs = nil }
}

func (s *counterScene) set(n int, m *Manager) {
	s.n = n
	m.Capture()
}

func TestCapCountAndOldestEntry(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{MaxEntries: 50})
	for i := 1; i <= 51; i++ {
		s.set(i, m)
	}
	if m.Len() != 50 {
		t.Fatalf("expected 50 entries, got %d", m.Len())
	}
	snaps := m.Snapshots()
	if string(snaps[0]) != "2" || string(snaps[49]) != "51" {
		t.Fatalf("expected entries 2..51, got %s..%s", snaps[0], snaps[49])
	}
	if m.Position() != 49 {
		t.Fatalf("position should track the newest entry, got %d", m.Position())
	}
}

func TestCapNeverExceededAndChronological(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{MaxEntries: 7})
	for i := 1; i <= 100; i++ {
		s.set(i, m)
		if m.Len() > 7 {
			t.Fatalf("cap exceeded at %d: %d", i, m.Len())
		}
	}
	snaps := m.Snapshots()
	for k, b := range snaps {
		if want := strconv.Itoa(94 + k); string(b) != want {
			t.Fatalf("entry %d = %s, want %s", k, b, want)
		}
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{})
	for i := 0; i < 5; i++ {
		s.set(i, m)
	}
	for pos := 4; pos > 0; pos-- {
		before := s.n
		if !m.Undo() {
			t.Fatalf("undo failed at %d", pos)
		}
		if !m.Redo() || s.n != before {
			t.Fatalf("redo did not restore %d, got %d", before, s.n)
		}
		m.Undo()
	}
	if m.CanUndo() || m.Undo() {
		t.Fatalf("undo at oldest entry must be a no-op")
	}
	for m.Redo() {
	}
	if m.CanRedo() || m.Redo() || s.n != 4 {
		t.Fatalf("redo at newest entry must be a no-op, n=%d", s.n)
	}
}

func TestBranchOverwrite(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{})
	for i := 0; i < 4; i++ {
		s.set(i, m)
	}
	m.Undo()
	m.Undo()
	s.set(99, m)
	snaps := m.Snapshots()
	if len(snaps) != 3 || string(snaps[2]) != "99" || string(snaps[1]) != "1" {
		t.Fatalf("future not discarded: %q", snaps)
	}
	if m.CanRedo() {
		t.Fatalf("redo must be unavailable after a branch")
	}
}

func TestReplayDoesNotCapture(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{})
	s.onLoad = func() {
		if m.Capture() {
			t.Fatalf("capture during replay must be suppressed")
		}
		if !m.Replaying() {
			t.Fatalf("replay flag not set during load")
		}
	}
	s.set(1, m)
	s.set(2, m)
	m.Undo()
	if m.Len() != 2 || m.Replaying() {
		t.Fatalf("history polluted by replay: len=%d", m.Len())
	}
}

func TestUndoFailureKeepsPosition(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{})
	s.set(1, m)
	s.set(2, m)
	s.loadErr = errors.New("corrupt")
	if m.Undo() {
		t.Fatalf("undo should fail")
	}
	if m.Position() != 1 || s.n != 2 {
		t.Fatalf("state changed after failed undo: pos=%d n=%d", m.Position(), s.n)
	}
}

func TestEmptyHistoryIsSafe(t *testing.T) {
	m := NewManager(&counterScene{}, Config{})
	if m.Undo() || m.Redo() || m.CanUndo() || m.CanRedo() || m.Position() != -1 {
		t.Fatalf("empty history should be inert")
	}
}

func TestCoalesceWindow(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{CoalesceWindow: 50 * time.Millisecond})
	t0 := time.Unix(1000, 0)
	clock := t0
	m.now = func() time.Time { return clock }
	s.set(0, m) // baseline
	clock = t0.Add(10 * time.Millisecond)
	s.set(1, m)
	clock = t0.Add(20 * time.Millisecond)
	s.set(2, m) // replaces 1
	clock = t0.Add(200 * time.Millisecond)
	s.set(3, m)
	snaps := m.Snapshots()
	if len(snaps) != 3 || string(snaps[0]) != "0" || string(snaps[1]) != "2" || string(snaps[2]) != "3" {
		t.Fatalf("unexpected coalescing: %q", snaps)
	}
}

func TestCoalesceAfterUndoAppends(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{CoalesceWindow: time.Second})
	t0 := time.Unix(1000, 0)
	clock := t0
	m.now = func() time.Time { return clock }
	s.set(0, m)
	clock = t0.Add(2 * time.Second)
	s.set(1, m)
	clock = t0.Add(4 * time.Second)
	s.set(2, m)
	if !m.Undo() || s.n != 1 {
		t.Fatalf("undo landed on %d", s.n)
	}
	// within the window of the entry the undo landed on
	clock = t0.Add(2*time.Second + 10*time.Millisecond)
	s.set(5, m)
	snaps := m.Snapshots()
	if len(snaps) != 3 || string(snaps[1]) != "1" || string(snaps[2]) != "5" || m.Position() != 2 {
		t.Fatalf("capture after undo: %q pos=%d", snaps, m.Position())
	}
	if !m.Undo() || s.n != 1 {
		t.Fatalf("undo after branch = %d, want 1", s.n)
	}
}

func TestMaxBytesKeepsNewest(t *testing.T) {
	s := &counterScene{}
	m := NewManager(s, Config{MaxBytes: 4})
	for i := 10; i < 20; i++ {
		s.set(i, m)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 two-byte entries under a 4 byte cap, got %d", m.Len())
	}
	s.set(123456, m)
	if m.Len() != 1 {
		t.Fatalf("an oversized entry must still be kept alone, got %d", m.Len())
	}
}

func TestTrackWithCanvas(t *testing.T) {
	c := scene.NewCanvas(100, 100, "#ffffff")
	m := NewManager(c, Config{})
	stop := m.Track()
	defer stop()
	if m.Len() != 1 || m.Undo() {
		t.Fatalf("initial snapshot missing or undo not a no-op")
	}
	id, _ := c.AddObject(scene.NewObject(scene.TypeRect))
	for i := 0; i < 10; i++ {
		_ = c.PreviewObject(id, scene.ObjectMoving, func(o *scene.Object) { o.Left += 1 })
	}
	_ = c.ModifyObject(id, func(o *scene.Object) { o.Left = 50 })
	_ = c.SetActiveObject(id)
	_ = c.UpdateObject(id, func(o *scene.Object) { o.Fill = "#000000" })
	if m.Len() != 3 {
		t.Fatalf("expected baseline+add+modify, got %d", m.Len())
	}
	if !m.Undo() {
		t.Fatalf("undo failed")
	}
	if o, _ := c.Object(id); o.Left != 0 {
		t.Fatalf("undo did not restore position: %v", o.Left)
	}
	if m.Len() != 3 {
		t.Fatalf("replay captured: %d", m.Len())
	}
	m.Undo()
	if len(c.Objects()) != 0 {
		t.Fatalf("second undo should remove the object")
	}
	m.Redo()
	m.Redo()
	if o, ok := c.Object(id); !ok || o.Left != 50 {
		t.Fatalf("redo did not restore: %+v", o)
	}
}
