/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"sort"
	"sync"

	"godesigner/internal/history"
	"godesigner/internal/scene"
)

// BindingState is the lifecycle of a page's canvas.
type BindingState int

const (
	// Unbound means no canvas is mounted for the page.
	Unbound BindingState = iota
	// Initializing means a canvas is mounted but its snapshot is not applied yet.
	Initializing
	// Loaded means the snapshot was applied or confirmed absent.
	Loaded
)

func (s BindingState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Loaded:
		return "loaded"
	}
	return "unbound"
}

type binding struct {
	adapter scene.Adapter
	state   BindingState
	history *history.Manager
	stops   []func()
}

func (b *binding) release() {
	for i := len(b.stops) - 1; i >= 0; i-- {
		b.stops[i]()
	}
	b.stops = nil
	b.state = Unbound
}

// CanvasRegistry maps page ids to the canvas currently representing them.
// Callers must look the canvas up on every access instead of holding on to it
// across page switches.
type CanvasRegistry struct {
	mu sync.RWMutex
	m  map[string]*binding
}

func NewCanvasRegistry() *CanvasRegistry {
	return &CanvasRegistry{m: make(map[string]*binding)}
}

// Get returns the canvas registered for pageID or nil.
func (r *CanvasRegistry) Get(pageID string) scene.Adapter {
	if b := r.lookup(pageID); b != nil {
		return b.adapter
	}
	return nil
}

// State reports the binding state of pageID.
func (r *CanvasRegistry) State(pageID string) BindingState {
	if b := r.lookup(pageID); b != nil {
		return b.state
	}
	return Unbound
}

// PageIDs lists pages with a mounted canvas, sorted.
func (r *CanvasRegistry) PageIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.m))
	for id := range r.m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *CanvasRegistry) lookup(pageID string) *binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m[pageID]
}

// current returns the binding only while a still owns it.
func (r *CanvasRegistry) current(pageID string, a scene.Adapter) *binding {
	b := r.lookup(pageID)
	if b == nil || b.adapter != a {
		return nil
	}
	return b
}

// put registers b and returns the binding it displaced, if any.
func (r *CanvasRegistry) put(pageID string, b *binding) *binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.m[pageID]
	r.m[pageID] = b
	return old
}

// remove drops the entry for pageID if it still refers to a. A nil adapter
// removes whatever is registered.
func (r *CanvasRegistry) remove(pageID string, a scene.Adapter) *binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := r.m[pageID]
	if b == nil || (a != nil && b.adapter != a) {
		return nil
	}
	delete(r.m, pageID)
	return b
}
