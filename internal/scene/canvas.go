/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"godesigner/internal/domain"
	applog "godesigner/internal/log"
	"godesigner/internal/vector"
)

type subscriber struct {
	id int
	fn func(Event)
}

// Canvas is the in-memory scene of one page. Mutations apply under the lock;
// events are delivered after it is released so subscribers may read back.
type Canvas struct {
	mu      sync.RWMutex
	objects []Object
	active  string
	bg      string
	w, h    int
	ready   bool

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int

	log *slog.Logger
}

var _ Adapter = (*Canvas)(nil)

// NewCanvas creates an empty, not yet ready scene.
func NewCanvas(w, h int, background string) *Canvas {
	if background == "" {
		background = "#ffffff"
	}
	return &Canvas{w: w, h: h, bg: background, log: applog.WithComponent("scene")}
}

// MarkReady signals that the surface is attached and may receive data.
func (c *Canvas) MarkReady() {
	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

func (c *Canvas) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *Canvas) Subscribe(fn func(Event)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.nextSub++
	id := c.nextSub
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Canvas) emit(evs ...Event) {
	c.subMu.Lock()
	subs := append([]subscriber(nil), c.subs...)
	c.subMu.Unlock()
	for _, ev := range evs {
		for _, s := range subs {
			c.deliver(s.fn, ev)
		}
	}
}

// deliver isolates subscribers so one failing handler cannot break the session.
func (c *Canvas) deliver(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("scene subscriber panicked", "event", string(ev.Type), "object", ev.ObjectID, "panic", fmt.Sprint(r))
		}
	}()
	fn(ev)
}

func (c *Canvas) indexLocked(id string) int {
	for i := range c.objects {
		if c.objects[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Canvas) IndexOf(id string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexLocked(id)
}

func (c *Canvas) Object(id string) (Object, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.objects[i], true
	}
	return Object{}, false
}

// Objects returns a copy in z-order, bottom first.
func (c *Canvas) Objects() []Object {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Object(nil), c.objects...)
}

func (c *Canvas) prepare(obj Object) (Object, error) {
	if !obj.Type.Valid() {
		return obj, fmt.Errorf("%w: type %q", ErrInvalidObject, obj.Type)
	}
	if obj.ID == "" {
		obj.ID = ulid.Make().String()
	}
	obj.normalize()
	obj.fitText()
	return obj, nil
}

// AddObject appends obj on top, assigning an id when empty.
func (c *Canvas) AddObject(obj Object) (string, error) {
	obj, err := c.prepare(obj)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	if c.indexLocked(obj.ID) >= 0 {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, obj.ID)
	}
	c.objects = append(c.objects, obj)
	idx := len(c.objects) - 1
	c.mu.Unlock()
	c.emit(Event{Type: ObjectAdded, Origin: OriginUser, ObjectID: obj.ID, Index: idx})
	return obj.ID, nil
}

// InsertObject puts obj back at index; used to undo a half-finished edit.
func (c *Canvas) InsertObject(obj Object, index int) error {
	obj, err := c.prepare(obj)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.indexLocked(obj.ID) >= 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, obj.ID)
	}
	index = clampIndex(index, len(c.objects))
	c.objects = append(c.objects, Object{})
	copy(c.objects[index+1:], c.objects[index:])
	c.objects[index] = obj
	c.mu.Unlock()
	c.emit(Event{Type: ObjectAdded, Origin: OriginProgrammatic, ObjectID: obj.ID, Index: index})
	return nil
}

// RemoveObject is a user deletion.
func (c *Canvas) RemoveObject(id string) (Object, int, error) {
	return c.remove(id, OriginUser)
}

// DetachObject removes without user intent; used for rollback.
func (c *Canvas) DetachObject(id string) (Object, int, error) {
	return c.remove(id, OriginProgrammatic)
}

func (c *Canvas) remove(id string, origin Origin) (Object, int, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return Object{}, -1, fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	obj := c.objects[i]
	c.objects = append(c.objects[:i], c.objects[i+1:]...)
	wasActive := c.active == id
	if wasActive {
		c.active = ""
	}
	c.mu.Unlock()
	evs := []Event{{Type: ObjectRemoved, Origin: origin, ObjectID: id, Index: i}}
	if wasActive {
		evs = append(evs, Event{Type: SelectionCleared, Origin: origin})
	}
	c.emit(evs...)
	return obj, i, nil
}

func (c *Canvas) mutate(id string, fn func(*Object)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	o := c.objects[i]
	fn(&o)
	o.ID, o.Type = c.objects[i].ID, c.objects[i].Type
	o.normalize()
	c.objects[i] = o
	return nil
}

// UpdateObject applies fn silently. Editor-driven attribute pushes use it.
func (c *Canvas) UpdateObject(id string, fn func(*Object)) error {
	return c.mutate(id, fn)
}

// ModifyObject commits a finished user edit.
func (c *Canvas) ModifyObject(id string, fn func(*Object)) error {
	if err := c.mutate(id, fn); err != nil {
		return err
	}
	c.emit(Event{Type: ObjectModified, Origin: OriginUser, ObjectID: id})
	return nil
}

// PreviewObject applies one intermediate frame of a gesture.
func (c *Canvas) PreviewObject(id string, kind EventType, fn func(*Object)) error {
	if !kind.Gesture() {
		return fmt.Errorf("preview kind %q is not a gesture", kind)
	}
	if err := c.mutate(id, fn); err != nil {
		return err
	}
	c.emit(Event{Type: kind, Origin: OriginUser, ObjectID: id})
	return nil
}

// MoveObjectTo changes the z-index of id; out of range targets are clamped.
func (c *Canvas) MoveObjectTo(id string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	obj := c.objects[i]
	rest := append(c.objects[:i:i], c.objects[i+1:]...)
	index = clampIndex(index, len(rest))
	out := make([]Object, 0, len(c.objects))
	out = append(out, rest[:index]...)
	out = append(out, obj)
	out = append(out, rest[index:]...)
	c.objects = out
	return nil
}

func (c *Canvas) SetActiveObject(id string) error {
	if id == "" {
		c.DiscardActiveObject()
		return nil
	}
	c.mu.Lock()
	if c.indexLocked(id) < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrObjectNotFound, id)
	}
	prev := c.active
	if prev == id {
		c.mu.Unlock()
		return nil
	}
	c.active = id
	c.mu.Unlock()
	typ := SelectionCreated
	if prev != "" {
		typ = SelectionUpdated
	}
	c.emit(Event{Type: typ, Origin: OriginUser, ObjectID: id})
	return nil
}

func (c *Canvas) DiscardActiveObject() {
	c.mu.Lock()
	if c.active == "" {
		c.mu.Unlock()
		return
	}
	c.active = ""
	c.mu.Unlock()
	c.emit(Event{Type: SelectionCleared, Origin: OriginUser})
}

func (c *Canvas) ActiveObjectID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// FindTarget returns the top-most pickable object under p.
func (c *Canvas) FindTarget(p vector.Pt) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.objects) - 1; i >= 0; i-- {
		o := c.objects[i]
		if !o.Visible || !o.Evented {
			continue
		}
		if o.Node().Hit(p) {
			return o.ID, true
		}
	}
	return "", false
}

func (c *Canvas) Background() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bg
}

func (c *Canvas) SetBackground(hex string) error {
	if _, err := domain.ParseColor(hex); err != nil {
		return err
	}
	c.mu.Lock()
	c.bg = hex
	c.mu.Unlock()
	return nil
}

func (c *Canvas) Size() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w, c.h
}

func (c *Canvas) SetSize(w, h int) {
	c.mu.Lock()
	c.w, c.h = w, h
	c.mu.Unlock()
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
