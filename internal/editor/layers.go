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
	"strings"

	"godesigner/internal/domain"
	applog "godesigner/internal/log"
	"godesigner/internal/scene"
)

// LayerData describes a layer to add. SceneObjectID must name the object the
// caller already created on the page's canvas; empty makes a placeholder.
type LayerData struct {
	Name          string
	Kind          domain.LayerKind
	SceneObjectID string
}

// KindForType maps a scene object type to the layer kind that wraps it.
func KindForType(t scene.Type) (domain.LayerKind, bool) {
	switch t {
	case scene.TypeText:
		return domain.KindText, true
	case scene.TypeImage:
		return domain.KindImage, true
	case scene.TypeRect:
		return domain.KindRectangle, true
	case scene.TypeCircle:
		return domain.KindCircle, true
	case scene.TypeTriangle:
		return domain.KindTriangle, true
	}
	return "", false
}

// TypeForKind is the inverse of KindForType.
func TypeForKind(k domain.LayerKind) (scene.Type, bool) {
	switch k {
	case domain.KindText:
		return scene.TypeText, true
	case domain.KindImage:
		return scene.TypeImage, true
	case domain.KindRectangle:
		return scene.TypeRect, true
	case domain.KindCircle:
		return scene.TypeCircle, true
	case domain.KindTriangle:
		return scene.TypeTriangle, true
	}
	return "", false
}

func defaultLayerName(p *domain.Page, k domain.LayerKind) string {
	n := 1
	for _, l := range p.Layers {
		if l.Kind == k {
			n++
		}
	}
	s := string(k)
	return fmt.Sprintf("%s %d", strings.ToUpper(s[:1])+s[1:], n)
}

func (s *Store) layer(pageID, layerID string) (*domain.Page, *domain.Layer, error) {
	p, err := s.page(pageID)
	if err != nil {
		return nil, nil, err
	}
	l := p.Layer(layerID)
	if l == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	return p, l, nil
}

// AddLayer appends a layer on top of the page's list. It does not touch the
// scene; the object named by data.SceneObjectID must already exist.
func (s *Store) AddLayer(pageID string, data LayerData) (domain.Layer, error) {
	p, err := s.page(pageID)
	if err != nil {
		return domain.Layer{}, err
	}
	if !data.Kind.Valid() {
		return domain.Layer{}, fmt.Errorf("invalid layer kind %q", data.Kind)
	}
	if data.SceneObjectID != "" {
		if other := p.LayerByObject(data.SceneObjectID); other != nil {
			return domain.Layer{}, fmt.Errorf("%w: object %s already belongs to layer %s", ErrObjectPaired, data.SceneObjectID, other.ID)
		}
	}
	name := strings.TrimSpace(data.Name)
	if name == "" {
		name = defaultLayerName(p, data.Kind)
	}
	l := domain.Layer{
		ID:            domain.NewID(),
		Name:          name,
		Kind:          data.Kind,
		Visible:       true,
		Opacity:       1,
		SceneObjectID: data.SceneObjectID,
	}
	p.Layers = append(p.Layers, l)
	p.UpdatedAt = s.now()
	s.designChanged()
	return l, nil
}

// DeleteLayer removes the layer record and clears the active pointer when it
// referred to it. The scene object is left alone.
func (s *Store) DeleteLayer(pageID, layerID string) error {
	p, l, err := s.layer(pageID, layerID)
	if err != nil {
		return err
	}
	s.removeLayerAt(pageID, p, p.LayerIndex(l.ID))
	return nil
}

func (s *Store) removeLayerAt(pageID string, p *domain.Page, i int) domain.Layer {
	l := p.Layers[i]
	p.Layers = append(p.Layers[:i], p.Layers[i+1:]...)
	if p.ActiveLayerID == l.ID {
		p.ActiveLayerID = ""
	}
	if l.Linked() {
		s.retired[retiredKey(pageID, l.SceneObjectID)] = l
	}
	p.UpdatedAt = s.now()
	s.designChanged()
	return l
}

// insertLayerAt puts a previously removed layer back.
func (s *Store) insertLayerAt(pageID string, p *domain.Page, i int, l domain.Layer) {
	if i < 0 || i > len(p.Layers) {
		i = len(p.Layers)
	}
	p.Layers = append(p.Layers, domain.Layer{})
	copy(p.Layers[i+1:], p.Layers[i:])
	p.Layers[i] = l
	if l.Linked() {
		delete(s.retired, retiredKey(pageID, l.SceneObjectID))
	}
	p.UpdatedAt = s.now()
	s.designChanged()
}

func retiredKey(pageID, objectID string) string { return pageID + "/" + objectID }

func (s *Store) dropRetired(pageID string) {
	prefix := pageID + "/"
	for k := range s.retired {
		if strings.HasPrefix(k, prefix) {
			delete(s.retired, k)
		}
	}
}

// ReorderLayers moves the layer at oldIndex to newIndex and restacks the scene
// to match. Out of range indexes make it a no-op.
func (s *Store) ReorderLayers(pageID string, oldIndex, newIndex int) error {
	p, err := s.page(pageID)
	if err != nil {
		return err
	}
	n := len(p.Layers)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n || oldIndex == newIndex {
		return nil
	}
	l := p.Layers[oldIndex]
	rest := append(p.Layers[:oldIndex:oldIndex], p.Layers[oldIndex+1:]...)
	out := make([]domain.Layer, 0, n)
	out = append(out, rest[:newIndex]...)
	out = append(out, l)
	out = append(out, rest[newIndex:]...)
	p.Layers = out
	p.UpdatedAt = s.now()
	s.designChanged()

	if a := s.canvases.Get(pageID); a != nil {
		s.restack(pageID, a, p, l, newIndex)
	}
	return nil
}

// restack makes the scene's stacking order follow the layer list. A single
// move is enough while both were in step; otherwise every linked object is
// lifted to the top in list order.
func (s *Store) restack(pageID string, a scene.Adapter, p *domain.Page, moved domain.Layer, newIndex int) {
	if moved.Linked() {
		if err := a.MoveObjectTo(moved.SceneObjectID, newIndex); err != nil {
			s.log.Debug("z-order sync skipped", "page_id", pageID, applog.Err(err))
		}
	}
	if !stackMatches(a.Objects(), p.Layers) {
		top := len(a.Objects()) - 1
		for _, l := range p.Layers {
			if !l.Linked() {
				continue
			}
			if err := a.MoveObjectTo(l.SceneObjectID, top); err != nil && !errors.Is(err, scene.ErrObjectNotFound) {
				s.log.Warn("z-order sync failed", "page_id", pageID, applog.Err(err))
			}
		}
	}
	s.pageChanged(pageID)
	s.commitStep(pageID)
}

// commitStep records a layer-panel edit pushed through the silent scene calls
// as one undo step of the page.
func (s *Store) commitStep(pageID string) {
	if b := s.canvases.lookup(pageID); b != nil && b.state == Loaded && b.history != nil {
		b.history.Capture()
	}
}

// stackMatches reports whether the objects that have layers are stacked in
// layer list order.
func stackMatches(objs []scene.Object, layers []domain.Layer) bool {
	want := make([]string, 0, len(layers))
	linked := make(map[string]bool, len(layers))
	for _, l := range layers {
		if l.Linked() {
			want = append(want, l.SceneObjectID)
			linked[l.SceneObjectID] = true
		}
	}
	got := make([]string, 0, len(objs))
	present := make(map[string]bool, len(objs))
	for _, o := range objs {
		present[o.ID] = true
		if linked[o.ID] {
			got = append(got, o.ID)
		}
	}
	j := 0
	for _, id := range want {
		if !present[id] {
			continue
		}
		if j >= len(got) || got[j] != id {
			return false
		}
		j++
	}
	return j == len(got)
}

// ToggleLayerVisibility flips the visible flag and pushes it to the object.
// Hidden objects cannot be picked; hiding the selected object clears the
// selection.
func (s *Store) ToggleLayerVisibility(pageID, layerID string) (bool, error) {
	_, l, err := s.layer(pageID, layerID)
	if err != nil {
		return false, err
	}
	l.Visible = !l.Visible
	s.pushInteraction(pageID, *l)
	s.designChanged()
	return l.Visible, nil
}

// ToggleLayerLock flips the locked flag. A locked object keeps rendering but
// loses its transform handles and cannot be picked.
func (s *Store) ToggleLayerLock(pageID, layerID string) (bool, error) {
	_, l, err := s.layer(pageID, layerID)
	if err != nil {
		return false, err
	}
	l.Locked = !l.Locked
	s.pushInteraction(pageID, *l)
	s.designChanged()
	return l.Locked, nil
}

// pushInteraction writes visibility and lock state to the layer's object.
// Picking requires visible and unlocked, so unlocking a hidden layer keeps it
// unpickable.
func (s *Store) pushInteraction(pageID string, l domain.Layer) {
	a := s.canvases.Get(pageID)
	if a == nil || !l.Linked() {
		return
	}
	err := a.UpdateObject(l.SceneObjectID, func(o *scene.Object) { applyInteraction(o, l) })
	if err != nil {
		s.log.Debug("layer has no live object", "page_id", pageID, "layer_id", l.ID, applog.Err(err))
		return
	}
	if !l.Visible && a.ActiveObjectID() == l.SceneObjectID {
		a.DiscardActiveObject()
	}
	s.pageChanged(pageID)
	s.commitStep(pageID)
}

// applyInteraction copies the layer's visibility and lock state onto o.
func applyInteraction(o *scene.Object, l domain.Layer) {
	pickable := l.Visible && !l.Locked
	o.Visible = l.Visible
	o.Selectable = pickable
	o.Evented = pickable
	o.HasControls = !l.Locked
	o.LockMovementX, o.LockMovementY = l.Locked, l.Locked
	o.LockScalingX, o.LockScalingY = l.Locked, l.Locked
	o.LockRotation = l.Locked
}

// SetActiveLayer points the page at layerID, or at nothing when empty, and
// selects the matching object. The scene is only told when its selection
// differs, so selection events coming from the scene never echo back.
func (s *Store) SetActiveLayer(pageID, layerID string) error {
	p, err := s.page(pageID)
	if err != nil {
		return err
	}
	a := s.canvases.Get(pageID)
	if layerID == "" {
		if p.ActiveLayerID != "" {
			p.ActiveLayerID = ""
			s.designChanged()
		}
		if a != nil && a.ActiveObjectID() != "" {
			a.DiscardActiveObject()
		}
		return nil
	}
	l := p.Layer(layerID)
	if l == nil {
		return fmt.Errorf("%w: %s", ErrLayerNotFound, layerID)
	}
	if p.ActiveLayerID != layerID {
		p.ActiveLayerID = layerID
		s.designChanged()
	}
	if a == nil || !l.Linked() || a.ActiveObjectID() == l.SceneObjectID {
		return nil
	}
	if err := a.SetActiveObject(l.SceneObjectID); err != nil {
		s.log.Debug("selection sync skipped", "page_id", pageID, "layer_id", layerID, applog.Err(err))
	}
	return nil
}

// RenameLayer changes a layer's display name.
func (s *Store) RenameLayer(pageID, layerID, name string) error {
	_, l, err := s.layer(pageID, layerID)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("layer name must not be empty")
	}
	l.Name = name
	s.designChanged()
	return nil
}

// SetLayerOpacity clamps v to [0,1] and applies it to the object.
func (s *Store) SetLayerOpacity(pageID, layerID string, v float64) (float64, error) {
	_, l, err := s.layer(pageID, layerID)
	if err != nil {
		return 0, err
	}
	v = min(max(v, 0), 1)
	l.Opacity = v
	s.designChanged()
	if a := s.canvases.Get(pageID); a != nil && l.Linked() {
		if err := a.UpdateObject(l.SceneObjectID, func(o *scene.Object) { o.Opacity = v }); err == nil {
			s.pageChanged(pageID)
			s.commitStep(pageID)
		}
	}
	return v, nil
}

// ReconcileLayers rebuilds the page's layer list from its canvas: layers whose
// object vanished are dropped, objects without a layer get one, the order
// follows the scene and the flags are read back from the objects.
func (s *Store) ReconcileLayers(pageID string) error {
	if _, err := s.page(pageID); err != nil {
		return err
	}
	a := s.canvases.Get(pageID)
	if a == nil {
		return ErrNotReady
	}
	s.reconcile(pageID, a)
	return nil
}

func (s *Store) reconcile(pageID string, a scene.Adapter) {
	p := s.design.Page(pageID)
	if p == nil {
		return
	}
	byObject := make(map[string]domain.Layer, len(p.Layers))
	var placeholders []domain.Layer
	for _, l := range p.Layers {
		if l.Linked() {
			byObject[l.SceneObjectID] = l
		} else {
			placeholders = append(placeholders, l)
		}
	}
	seen := make(map[string]bool, len(p.Layers))
	next := &domain.Page{Layers: make([]domain.Layer, 0, len(p.Layers))}
	for _, o := range a.Objects() {
		l, ok := byObject[o.ID]
		if !ok {
			if r, found := s.retired[retiredKey(pageID, o.ID)]; found && p.LayerIndex(r.ID) < 0 && !seen[r.ID] {
				l, ok = r, true
				delete(s.retired, retiredKey(pageID, o.ID))
			}
		}
		if !ok {
			kind, known := KindForType(o.Type)
			if !known {
				continue
			}
			l = domain.Layer{ID: domain.NewID(), Name: defaultLayerName(next, kind), Kind: kind, SceneObjectID: o.ID}
		}
		l.Visible = o.Visible
		l.Locked = o.Locked()
		l.Opacity = o.Opacity
		seen[l.ID] = true
		next.Layers = append(next.Layers, l)
	}
	next.Layers = append(next.Layers, placeholders...)
	for objID, l := range byObject {
		if !seen[l.ID] {
			s.retired[retiredKey(pageID, objID)] = l
		}
	}

	changed := len(next.Layers) != len(p.Layers)
	for i := 0; !changed && i < len(next.Layers); i++ {
		changed = next.Layers[i] != p.Layers[i]
	}
	if p.ActiveLayerID != "" && next.LayerIndex(p.ActiveLayerID) < 0 {
		p.ActiveLayerID = ""
		changed = true
	}
	if !changed {
		return
	}
	p.Layers = next.Layers
	p.UpdatedAt = s.now()
	s.designChanged()
	s.log.Debug("layers reconciled", "page_id", pageID, "layers", len(p.Layers))
}
