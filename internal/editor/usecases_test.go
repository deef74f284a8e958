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
	"testing"

	"godesigner/internal/domain"
	"godesigner/internal/scene"
	"godesigner/internal/vector"
)

func TestAddObjectPairsLayer(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	if _, err := h.store.AddShape(pageID, domain.KindRectangle); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before mount, got %v", err)
	}
	c := h.mount(t, pageID)
	l, err := h.store.AddObject(pageID, scene.NewObject(scene.TypeCircle), "Sun")
	if err != nil {
		t.Fatal(err)
	}
	if l.Name != "Sun" || l.Kind != domain.KindCircle || !l.Visible || l.Opacity != 1 {
		t.Fatalf("unexpected layer %+v", l)
	}
	if _, ok := c.Object(l.SceneObjectID); !ok {
		t.Fatalf("object missing from scene")
	}
	if _, err := h.store.AddShape(pageID, domain.KindImage); err == nil {
		t.Fatalf("an image layer needs content")
	}
}

func TestAddObjectRollsBackWhenLayerFails(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	if _, err := h.store.AddPage(domain.PageConfig{}); err != nil {
		t.Fatal(err)
	}
	c := h.mount(t, pageID)
	// the page disappears between the two halves of the edit
	stop := c.Subscribe(func(ev scene.Event) {
		if ev.Type == scene.ObjectAdded && ev.Origin == scene.OriginUser {
			_ = h.store.DeletePage(pageID)
		}
	})
	defer stop()
	if _, err := h.store.AddShape(pageID, domain.KindRectangle); !errors.Is(err, ErrPageNotFound) {
		t.Fatalf("expected ErrPageNotFound, got %v", err)
	}
	if n := len(c.Objects()); n != 0 {
		t.Fatalf("object left behind after rollback: %d", n)
	}
}

func TestRemoveObjectRemovesBothHalves(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	keep, _ := h.store.AddShape(pageID, domain.KindCircle)
	if err := h.store.RemoveObject(pageID, l.ID); err != nil {
		t.Fatal(err)
	}
	p := h.page(t, pageID)
	if len(p.Layers) != 1 || p.Layers[0].ID != keep.ID {
		t.Fatalf("unexpected layers %+v", p.Layers)
	}
	if _, ok := c.Object(l.SceneObjectID); ok {
		t.Fatalf("object still in scene")
	}
	// a layer whose object is already gone is just dropped
	if _, _, err := c.DetachObject(keep.SceneObjectID); err != nil {
		t.Fatal(err)
	}
	if err := h.store.RemoveObject(pageID, keep.ID); err != nil {
		t.Fatalf("missing linkage must not fail: %v", err)
	}
}

func TestRemoveObjectRestoresLayerOnFailure(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	base := scene.NewCanvas(400, 300, "")
	base.MarkReady()
	if err := h.store.MountCanvas(pageID, &stuckCanvas{Canvas: base}); err != nil {
		t.Fatal(err)
	}
	h.queue.Drain()
	a, _ := h.store.AddShape(pageID, domain.KindRectangle)
	_, _ = h.store.AddShape(pageID, domain.KindCircle)
	_ = h.store.SetActiveLayer(pageID, a.ID)
	before := layerIDs(h.page(t, pageID))
	if err := h.store.RemoveObject(pageID, a.ID); err == nil {
		t.Fatalf("expected failure from the scene")
	}
	p := h.page(t, pageID)
	if layerIDs(p) != before || p.ActiveLayerID != a.ID {
		t.Fatalf("layer not restored: %s active=%s", layerIDs(p), p.ActiveLayerID)
	}
}

func TestDeleteKeyRemovesPairedLayer(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindTriangle)
	_ = h.store.SetActiveLayer(pageID, l.ID)
	if _, _, err := c.RemoveObject(l.SceneObjectID); err != nil {
		t.Fatal(err)
	}
	p := h.page(t, pageID)
	if len(p.Layers) != 0 || p.ActiveLayerID != "" {
		t.Fatalf("delete key left layer state behind: %+v", p)
	}
	// an object that never had a layer is removed without touching the registry
	id, _ := c.AddObject(scene.NewObject(scene.TypeRect))
	if _, _, err := c.RemoveObject(id); err != nil {
		t.Fatal(err)
	}
	if n := len(h.page(t, pageID).Layers); n != 0 {
		t.Fatalf("layers = %d", n)
	}
}

func TestUndoRedoKeepsLayersInStep(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	if h.store.CanUndo() {
		t.Fatalf("fresh page must not be undoable")
	}
	if h.store.Undo() {
		t.Fatalf("undo at the initial state must be a no-op")
	}
	a, _ := h.store.AddShape(pageID, domain.KindRectangle)
	b, _ := h.store.AddShape(pageID, domain.KindCircle)
	_ = h.store.RenameLayer(pageID, b.ID, "Moon")

	if !h.store.Undo() {
		t.Fatalf("undo failed")
	}
	p := h.page(t, pageID)
	if len(c.Objects()) != 1 || len(p.Layers) != 1 || p.Layers[0].ID != a.ID {
		t.Fatalf("after undo: objects=%d layers=%+v", len(c.Objects()), p.Layers)
	}
	if !h.store.CanRedo() || !h.store.Redo() {
		t.Fatalf("redo failed")
	}
	p = h.page(t, pageID)
	if len(p.Layers) != 2 || p.Layers[1].ID != b.ID || p.Layers[1].Name != "Moon" {
		t.Fatalf("redo did not bring the layer back: %+v", p.Layers)
	}
	if h.store.Redo() {
		t.Fatalf("redo at the newest entry must be a no-op")
	}

	if err := h.store.RemoveObject(pageID, a.ID); err != nil {
		t.Fatal(err)
	}
	if !h.store.Undo() {
		t.Fatal("undo of removal failed")
	}
	p = h.page(t, pageID)
	if len(p.Layers) != 2 || p.Layers[0].ID != a.ID {
		t.Fatalf("undo of removal did not restore the layer: %+v", p.Layers)
	}
	if n := h.store.History(pageID).Len(); n != 4 {
		t.Fatalf("history length = %d, want 4", n)
	}
}

func TestGestureFramesAreNotRecorded(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	hist := h.store.History(pageID)
	n := hist.Len()
	for i := 1; i <= 5; i++ {
		x := float64(i * 10)
		if err := h.store.PreviewObject(pageID, l.ID, scene.ObjectMoving, func(o *scene.Object) { o.Left = x }); err != nil {
			t.Fatal(err)
		}
	}
	if hist.Len() != n {
		t.Fatalf("gesture frames were recorded")
	}
	if err := h.store.ModifyObject(pageID, l.ID, func(o *scene.Object) { o.Left = 50 }); err != nil {
		t.Fatal(err)
	}
	if hist.Len() != n+1 {
		t.Fatalf("gesture end must record one entry, have %d", hist.Len()-n)
	}
	if err := h.store.PreviewObject(pageID, l.ID, scene.ObjectModified, func(*scene.Object) {}); err == nil {
		t.Fatalf("a commit is not a gesture frame")
	}
	_, _ = h.store.ToggleLayerLock(pageID, l.ID)
	if err := h.store.PreviewObject(pageID, l.ID, scene.ObjectRotating, func(o *scene.Object) { o.Angle = 45 }); !errors.Is(err, ErrLayerLocked) {
		t.Fatalf("expected ErrLayerLocked, got %v", err)
	}
	if o, _ := c.Object(l.SceneObjectID); o.Angle != 0 || o.Left != 50 {
		t.Fatalf("unexpected object %+v", o)
	}
}

func TestSelectAt(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	id, err := h.store.SelectAt(pageID, vector.Pt{X: 50, Y: 50})
	if err != nil || id != l.ID {
		t.Fatalf("SelectAt = %q, %v", id, err)
	}
	if id, _ := h.store.SelectAt(pageID, vector.Pt{X: 350, Y: 250}); id != "" {
		t.Fatalf("empty spot selected %q", id)
	}
	if h.page(t, pageID).ActiveLayerID != "" {
		t.Fatalf("clicking an empty spot must clear the active layer")
	}
}

func TestAddImageReportsDecodeFailure(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	h.mount(t, pageID)
	if _, err := h.store.AddImage(pageID, []byte("not an image"), ""); err == nil {
		t.Fatalf("expected decode error")
	}
	if len(h.notifier.notices) != 1 || h.notifier.notices[0].Level != NoticeError {
		t.Fatalf("decode failure must be shown: %+v", h.notifier.notices)
	}
}

func TestLayerPanelEditsAreUndoSteps(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	rect, _ := h.store.AddShape(pageID, domain.KindRectangle)
	circle, _ := h.store.AddShape(pageID, domain.KindCircle)

	edits := map[string]func() error{
		"visibility": func() error { _, err := h.store.ToggleLayerVisibility(pageID, rect.ID); return err },
		"lock":       func() error { _, err := h.store.ToggleLayerLock(pageID, circle.ID); return err },
		"opacity":    func() error { _, err := h.store.SetLayerOpacity(pageID, rect.ID, 0.4); return err },
		"reorder":    func() error { return h.store.ReorderLayers(pageID, 1, 0) },
	}
	for _, name := range []string{"visibility", "lock", "opacity", "reorder"} {
		before, _ := c.ToSerializable()
		if err := edits[name](); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		edited, _ := c.ToSerializable()
		if string(edited) == string(before) {
			t.Fatalf("%s did not change the scene", name)
		}
		if !h.store.Undo() {
			t.Fatalf("%s: undo failed", name)
		}
		if got, _ := c.ToSerializable(); string(got) != string(before) {
			t.Fatalf("%s: undo did not restore the previous scene", name)
		}
		if !h.store.Redo() {
			t.Fatalf("%s: redo failed", name)
		}
		if got, _ := c.ToSerializable(); string(got) != string(edited) {
			t.Fatalf("%s: redo did not restore the edit", name)
		}
	}

	p := h.page(t, pageID)
	r := p.Layer(rect.ID)
	if r == nil || r.Visible || r.Opacity != 0.4 {
		t.Fatalf("rect layer after redo = %+v", r)
	}
	if cl := p.Layer(circle.ID); cl == nil || !cl.Locked {
		t.Fatalf("circle layer after redo = %+v", cl)
	}
	if p.Layers[0].ID != circle.ID {
		t.Fatalf("reorder lost after redo: %s", layerIDs(p))
	}
}

func TestUndoClearsActiveLayer(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	rect, _ := h.store.AddShape(pageID, domain.KindRectangle)
	_, _ = h.store.AddShape(pageID, domain.KindCircle)
	if err := h.store.SetActiveLayer(pageID, rect.ID); err != nil {
		t.Fatal(err)
	}
	if c.ActiveObjectID() != rect.SceneObjectID {
		t.Fatalf("selection not pushed to the scene")
	}
	if !h.store.Undo() {
		t.Fatal("undo failed")
	}
	if c.ActiveObjectID() != "" {
		t.Fatalf("scene still has a selection")
	}
	if p := h.page(t, pageID); p.ActiveLayerID != "" {
		t.Fatalf("active layer %q survived undo while the scene has none", p.ActiveLayerID)
	}
}

func TestModifyObjectRespectsLayerState(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)

	if _, err := h.store.ToggleLayerLock(pageID, l.ID); err != nil {
		t.Fatal(err)
	}
	err := h.store.ModifyObject(pageID, l.ID, func(o *scene.Object) { o.Left = 250 })
	if !errors.Is(err, ErrLayerLocked) {
		t.Fatalf("edit on locked layer err = %v", err)
	}
	if o, _ := c.Object(l.SceneObjectID); o.Left == 250 {
		t.Fatalf("locked object moved")
	}

	if _, err := h.store.ToggleLayerLock(pageID, l.ID); err != nil {
		t.Fatal(err)
	}
	err = h.store.ModifyObject(pageID, l.ID, func(o *scene.Object) {
		o.Left = 250
		o.Visible = false
		o.Evented = false
		o.LockMovementX = true
		o.Opacity = 0.2
	})
	if err != nil {
		t.Fatalf("ModifyObject: %v", err)
	}
	o, _ := c.Object(l.SceneObjectID)
	if o.Left != 250 {
		t.Fatalf("geometry edit lost: %+v", o)
	}
	if !o.Visible || !o.Evented || o.LockMovementX || o.Opacity != 1 {
		t.Fatalf("edit bypassed the layer's state: %+v", o)
	}
	if p := h.page(t, pageID); !p.Layers[0].Visible || p.Layers[0].Locked {
		t.Fatalf("layer = %+v", p.Layers[0])
	}
}
