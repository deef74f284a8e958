/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the Design → Page → Layer tree edited by the store.
// Scene object data never lives here; a Layer only points at its object by id.

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LayerKind is the fixed set of things a layer can wrap.
type LayerKind string

const (
	KindText      LayerKind = "text"
	KindImage     LayerKind = "image"
	KindRectangle LayerKind = "rectangle"
	KindCircle    LayerKind = "circle"
	KindTriangle  LayerKind = "triangle"
)

// Valid reports whether k is one of the known kinds.
func (k LayerKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindRectangle, KindCircle, KindTriangle:
		return true
	}
	return false
}

// Design is the top-level project.
type Design struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Pages        []Page    `json:"pages"`
	ActivePageID string    `json:"activePageId"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PageConfig is the user-editable geometry of a page.
type PageConfig struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"` // CSS hex, e.g. "#ffffff"
}

// Page is one canvas-sized surface. Layers are ordered bottom first.
type Page struct {
	ID            string     `json:"id"`
	Config        PageConfig `json:"config"`
	Layers        []Layer    `json:"layers"`
	ActiveLayerID string     `json:"activeLayerId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Layer is the user-facing record wrapping one scene object.
type Layer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Kind          LayerKind `json:"kind"`
	Visible       bool      `json:"visible"`
	Locked        bool      `json:"locked"`
	Opacity       float64   `json:"opacity"`
	SceneObjectID string    `json:"sceneObjectId,omitempty"`
}

// Linked reports whether the layer can be synchronized to a scene object.
func (l Layer) Linked() bool { return l.SceneObjectID != "" }

// PageSnapshot is the persisted scene of one page, stored apart from the design record.
type PageSnapshot struct {
	PageID     string    `json:"pageId"`
	DesignID   string    `json:"designId"`
	CanvasJSON string    `json:"canvasJSON"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// NewID returns a fresh entity identifier.
func NewID() string { return uuid.NewString() }

// NewDesign creates a design holding a single page built from first.
func NewDesign(name string, first PageConfig, now time.Time) Design {
	pg := NewPage(first, now)
	return Design{
		ID:           NewID(),
		Name:         name,
		Pages:        []Page{pg},
		ActivePageID: pg.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewPage creates a page with an empty layer list. The config id always mirrors the page id.
func NewPage(cfg PageConfig, now time.Time) Page {
	id := NewID()
	cfg.ID = id
	if cfg.Background == "" {
		cfg.Background = "#ffffff"
	}
	return Page{ID: id, Config: cfg, Layers: []Layer{}, CreatedAt: now, UpdatedAt: now}
}

// PageIndex returns the index of the page with id or -1.
func (d *Design) PageIndex(id string) int {
	for i := range d.Pages {
		if d.Pages[i].ID == id {
			return i
		}
	}
	return -1
}

// Page returns a pointer into d.Pages for id, or nil.
func (d *Design) Page(id string) *Page {
	if i := d.PageIndex(id); i >= 0 {
		return &d.Pages[i]
	}
	return nil
}

// ActivePage returns the active page or nil.
func (d *Design) ActivePage() *Page { return d.Page(d.ActivePageID) }

// LayerIndex returns the index of the layer with id or -1.
func (p *Page) LayerIndex(id string) int {
	for i := range p.Layers {
		if p.Layers[i].ID == id {
			return i
		}
	}
	return -1
}

// Layer returns a pointer into p.Layers for id, or nil.
func (p *Page) Layer(id string) *Layer {
	if i := p.LayerIndex(id); i >= 0 {
		return &p.Layers[i]
	}
	return nil
}

// LayerByObject finds the layer linked to a scene object id.
func (p *Page) LayerByObject(objectID string) *Layer {
	if objectID == "" {
		return nil
	}
	for i := range p.Layers {
		if p.Layers[i].SceneObjectID == objectID {
			return &p.Layers[i]
		}
	}
	return nil
}

// Clone returns a deep copy so readers never alias store state.
func (d Design) Clone() Design {
	out := d
	out.Pages = make([]Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// Clone returns a deep copy of the page.
func (p Page) Clone() Page {
	out := p
	out.Layers = append(make([]Layer, 0, len(p.Layers)), p.Layers...)
	return out
}

var (
	ErrNoPages       = errors.New("design has no pages")
	ErrDanglingPage  = errors.New("active page does not exist")
	ErrDanglingLayer = errors.New("active layer does not exist")
	ErrDuplicateID   = errors.New("duplicate id")
)

// Validate checks the structural invariants of a design tree.
func (d *Design) Validate() error {
	if len(d.Pages) == 0 {
		return ErrNoPages
	}
	if d.Page(d.ActivePageID) == nil {
		return fmt.Errorf("%w: %q", ErrDanglingPage, d.ActivePageID)
	}
	seen := make(map[string]struct{})
	for _, p := range d.Pages {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: page %q", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
		for _, l := range p.Layers {
			if _, dup := seen[l.ID]; dup {
				return fmt.Errorf("%w: layer %q", ErrDuplicateID, l.ID)
			}
			seen[l.ID] = struct{}{}
		}
		if p.ActiveLayerID != "" && p.LayerIndex(p.ActiveLayerID) < 0 {
			return fmt.Errorf("%w: %q on page %q", ErrDanglingLayer, p.ActiveLayerID, p.ID)
		}
	}
	return nil
}
