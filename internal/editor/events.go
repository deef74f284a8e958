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
	"log/slog"
	"runtime/debug"

	"godesigner/internal/scene"
)

// handleEvent keeps the layer registry and persistence in step with a page's
// canvas. Events from a canvas that is no longer registered are ignored, as
// are events naming objects without a layer.
func (s *Store) handleEvent(pageID string, a scene.Adapter, ev scene.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scene event handler panicked", "page_id", pageID, "event", ev.Type,
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
		}
	}()
	b := s.canvases.current(pageID, a)
	if b == nil || s.design == nil {
		return
	}
	p := s.design.Page(pageID)
	if p == nil {
		return
	}
	switch ev.Type {
	case scene.SelectionCreated, scene.SelectionUpdated:
		// the scene already shows this selection; only the pointer moves
		l := p.LayerByObject(ev.ObjectID)
		if l == nil {
			s.log.Debug("selection without layer", "page_id", pageID, "object", ev.ObjectID)
			return
		}
		if p.ActiveLayerID != l.ID {
			p.ActiveLayerID = l.ID
			s.designChanged()
		}
	case scene.SelectionCleared:
		if p.ActiveLayerID != "" {
			p.ActiveLayerID = ""
			s.designChanged()
		}
	case scene.ObjectRemoved:
		if ev.Origin == scene.OriginUser {
			if l := p.LayerByObject(ev.ObjectID); l != nil {
				s.removeLayerAt(pageID, p, p.LayerIndex(l.ID))
			}
		}
		s.scenePersist(pageID, b)
	case scene.ObjectAdded, scene.ObjectModified:
		s.scenePersist(pageID, b)
	case scene.Loaded:
		if ev.Origin == scene.OriginReplay {
			s.reconcile(pageID, a)
		}
		s.scenePersist(pageID, b)
	}
}

// scenePersist schedules a snapshot save once the page has finished loading;
// events raised while the snapshot is applied describe the stored state.
func (s *Store) scenePersist(pageID string, b *binding) {
	if b.state == Loaded {
		s.pageChanged(pageID)
	}
}
