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
	"encoding/json"
	"fmt"

	"godesigner/internal/domain"
)

// FormatVersion is written into every serialized scene.
const FormatVersion = "1"

type document struct {
	Version    string   `json:"version"`
	Background string   `json:"background"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Objects    []Object `json:"objects"`
}

func (d *document) validate() error {
	if d.Version != "" && d.Version != FormatVersion {
		return fmt.Errorf("unsupported scene version %q", d.Version)
	}
	if _, err := domain.ParseColor(d.Background); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Objects))
	for i := range d.Objects {
		o := &d.Objects[i]
		if o.ID == "" || !o.Type.Valid() {
			return fmt.Errorf("object %d: %w", i, ErrInvalidObject)
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("object %s: %w", o.ID, ErrDuplicateID)
		}
		seen[o.ID] = struct{}{}
		o.normalize()
	}
	return nil
}

// ToSerializable returns the whole scene as JSON.
func (c *Canvas) ToSerializable() ([]byte, error) {
	c.mu.RLock()
	doc := document{
		Version:    FormatVersion,
		Background: c.bg,
		Width:      c.w,
		Height:     c.h,
		Objects:    append([]Object{}, c.objects...),
	}
	c.mu.RUnlock()
	return json.Marshal(doc)
}

// LoadFromSerializable replaces the scene with data. Nothing changes unless
// data parses and validates completely. Events carry OriginReplay.
func (c *Canvas) LoadFromSerializable(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := doc.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	c.mu.Lock()
	c.objects = doc.Objects
	if c.objects == nil {
		c.objects = []Object{}
	}
	if doc.Background != "" {
		c.bg = doc.Background
	}
	if doc.Width > 0 && doc.Height > 0 {
		c.w, c.h = doc.Width, doc.Height
	}
	hadSelection := c.active != ""
	c.active = ""
	c.mu.Unlock()

	evs := make([]Event, 0, len(doc.Objects)+2)
	if hadSelection {
		evs = append(evs, Event{Type: SelectionCleared, Origin: OriginReplay})
	}
	for i, o := range doc.Objects {
		evs = append(evs, Event{Type: ObjectAdded, Origin: OriginReplay, ObjectID: o.ID, Index: i})
	}
	evs = append(evs, Event{Type: Loaded, Origin: OriginReplay})
	c.emit(evs...)
	return nil
}
