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
	"errors"
	"fmt"

	"godesigner/internal/domain"
	applog "godesigner/internal/log"
	"godesigner/internal/scene"
	"godesigner/internal/vector"
)

// loadedCanvas returns the page's canvas when it is ready for edits.
func (s *Store) loadedCanvas(pageID string) (scene.Adapter, error) {
	b := s.canvases.lookup(pageID)
	if b == nil || b.state != Loaded {
		return nil, fmt.Errorf("%w: page %s", ErrNotReady, pageID)
	}
	return b.adapter, nil
}

// AddObject puts obj on the page's canvas and pairs it with a new layer on
// top of the list. If the layer cannot be created the object is taken back
// out again.
func (s *Store) AddObject(pageID string, obj scene.Object, name string) (domain.Layer, error) {
	if _, err := s.page(pageID); err != nil {
		return domain.Layer{}, err
	}
	kind, ok := KindForType(obj.Type)
	if !ok {
		return domain.Layer{}, fmt.Errorf("%w: type %q", scene.ErrInvalidObject, obj.Type)
	}
	a, err := s.loadedCanvas(pageID)
	if err != nil {
		return domain.Layer{}, err
	}
	id, err := a.AddObject(obj)
	if err != nil {
		return domain.Layer{}, fmt.Errorf("add object: %w", err)
	}
	l, err := s.AddLayer(pageID, LayerData{Name: name, Kind: kind, SceneObjectID: id})
	if err != nil {
		if _, _, derr := a.DetachObject(id); derr != nil {
			s.log.Error("rollback of added object failed", "page_id", pageID, "object", id, applog.Err(derr))
		}
		return domain.Layer{}, fmt.Errorf("add layer: %w", err)
	}
	return l, nil
}

// AddShape adds a default object of the given kind.
func (s *Store) AddShape(pageID string, kind domain.LayerKind) (domain.Layer, error) {
	t, ok := TypeForKind(kind)
	if !ok || t == scene.TypeImage {
		return domain.Layer{}, fmt.Errorf("cannot create a %q layer without content", kind)
	}
	return s.AddObject(pageID, scene.NewObject(t), "")
}

// AddText adds a text object with the given content.
func (s *Store) AddText(pageID, text string) (domain.Layer, error) {
	o := scene.NewObject(scene.TypeText)
	if text != "" {
		o.Text = text
		o.Width, o.Height = 0, 0
	}
	return s.AddObject(pageID, o, "")
}

// AddImage decodes an upload and adds it as an image layer. A decode failure
// is shown to the user.
func (s *Store) AddImage(pageID string, data []byte, name string) (domain.Layer, error) {
	o, err := scene.NewImageObject(data)
	if err != nil {
		s.notifier.Notify(Notice{Level: NoticeError, Message: "The image could not be read.", Err: err})
		return domain.Layer{}, err
	}
	return s.AddObject(pageID, o, name)
}

// RemoveObject deletes a layer together with its object. The layer goes first;
// if the object cannot be removed the layer is put back where it was. A layer
// whose object is already gone is simply deleted.
func (s *Store) RemoveObject(pageID, layerID string) error {
	p, l, err := s.layer(pageID, layerID)
	if err != nil {
		return err
	}
	idx := p.LayerIndex(l.ID)
	wasActive := p.ActiveLayerID == l.ID
	removed := s.removeLayerAt(pageID, p, idx)

	a := s.canvases.Get(pageID)
	if a == nil || !removed.Linked() {
		return nil
	}
	if _, _, err := a.RemoveObject(removed.SceneObjectID); err != nil {
		if errors.Is(err, scene.ErrObjectNotFound) {
			s.log.Debug("layer had no live object", "page_id", pageID, "layer_id", layerID)
			return nil
		}
		// the page pointer may have moved while events were handled
		if p = s.design.Page(pageID); p != nil {
			s.insertLayerAt(pageID, p, idx, removed)
			if wasActive {
				p.ActiveLayerID = removed.ID
			}
		}
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// ModifyObject commits an edit to a layer's object as one undo step. Locked
// layers reject edits. Visibility, lock state and opacity belong to the layer,
// so fn cannot change them.
func (s *Store) ModifyObject(pageID, layerID string, fn func(*scene.Object)) error {
	_, l, err := s.layer(pageID, layerID)
	if err != nil {
		return err
	}
	if l.Locked {
		return fmt.Errorf("%w: %s", ErrLayerLocked, layerID)
	}
	if !l.Linked() {
		return nil
	}
	a, err := s.loadedCanvas(pageID)
	if err != nil {
		return err
	}
	owner := *l
	return a.ModifyObject(l.SceneObjectID, func(o *scene.Object) {
		fn(o)
		applyInteraction(o, owner)
		o.Opacity = owner.Opacity
	})
}

// PreviewObject applies one frame of a move, scale or rotate gesture. Frames
// are not recorded; the gesture ends with ModifyObject. Locked layers reject
// gestures.
func (s *Store) PreviewObject(pageID, layerID string, kind scene.EventType, fn func(*scene.Object)) error {
	_, l, err := s.layer(pageID, layerID)
	if err != nil {
		return err
	}
	if l.Locked {
		return fmt.Errorf("%w: %s", ErrLayerLocked, layerID)
	}
	if !l.Linked() {
		return nil
	}
	a, err := s.loadedCanvas(pageID)
	if err != nil {
		return err
	}
	return a.PreviewObject(l.SceneObjectID, kind, fn)
}

// SelectAt selects the top-most pickable object under pt, or clears the
// selection when there is none. It returns the active layer id.
func (s *Store) SelectAt(pageID string, pt vector.Pt) (string, error) {
	p, err := s.page(pageID)
	if err != nil {
		return "", err
	}
	a, err := s.loadedCanvas(pageID)
	if err != nil {
		return "", err
	}
	id, ok := a.FindTarget(pt)
	if !ok {
		a.DiscardActiveObject()
		return "", nil
	}
	if err := a.SetActiveObject(id); err != nil {
		return "", err
	}
	if p = s.design.Page(pageID); p == nil {
		return "", nil
	}
	return p.ActiveLayerID, nil
}
