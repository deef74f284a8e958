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
)

func TestLockScenario(t *testing.T) {
	h := newHarness(t)
	h.createDesign(t, "D")
	p, err := h.store.AddPage(domain.PageConfig{Name: "P1", Width: 800, Height: 600})
	if err != nil {
		t.Fatal(err)
	}
	c := h.mount(t, p.ID)
	objID, err := c.AddObject(scene.NewObject(scene.TypeRect))
	if err != nil {
		t.Fatal(err)
	}
	l, err := h.store.AddLayer(p.ID, LayerData{Name: "Box", Kind: domain.KindRectangle, SceneObjectID: objID})
	if err != nil {
		t.Fatal(err)
	}
	locked, err := h.store.ToggleLayerLock(p.ID, l.ID)
	if err != nil || !locked {
		t.Fatalf("ToggleLayerLock = %v, %v", locked, err)
	}
	o, _ := c.Object(objID)
	if !o.LockMovementX || !o.LockMovementY || !o.LockScalingX || !o.LockScalingY || !o.LockRotation {
		t.Fatalf("lock attributes not set: %+v", o)
	}
	if o.Selectable || o.Evented || o.HasControls {
		t.Fatalf("locked object must not be pickable: %+v", o)
	}
	if !o.Visible {
		t.Fatalf("locking must keep the object visible")
	}

	if _, err := h.store.ToggleLayerLock(p.ID, l.ID); err != nil {
		t.Fatal(err)
	}
	o, _ = c.Object(objID)
	if o.Locked() || !o.Selectable || !o.Evented || !o.HasControls {
		t.Fatalf("unlock did not restore handles: %+v", o)
	}
}

func TestUnlockKeepsHiddenLayerUnpickable(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	_, _ = h.store.ToggleLayerLock(pageID, l.ID)
	_, _ = h.store.ToggleLayerVisibility(pageID, l.ID)
	_, _ = h.store.ToggleLayerLock(pageID, l.ID)
	o, _ := c.Object(l.SceneObjectID)
	if o.Visible || o.Selectable || o.Evented {
		t.Fatalf("hidden layer became pickable: %+v", o)
	}
	if _, ok := c.FindTarget(o.Bounds().Center()); ok {
		t.Fatalf("hidden object was hit")
	}
}

func TestVisibilityDoubleToggle(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	base := scene.NewCanvas(400, 300, "")
	base.MarkReady()
	rc := &recordingCanvas{Canvas: base}
	if err := h.store.MountCanvas(pageID, rc); err != nil {
		t.Fatal(err)
	}
	h.queue.Drain()
	l, err := h.store.AddShape(pageID, domain.KindCircle)
	if err != nil {
		t.Fatal(err)
	}
	v1, _ := h.store.ToggleLayerVisibility(pageID, l.ID)
	v2, _ := h.store.ToggleLayerVisibility(pageID, l.ID)
	if v1 || !v2 || !h.page(t, pageID).Layers[0].Visible {
		t.Fatalf("visibility did not return to its original value: %v %v", v1, v2)
	}
	if len(rc.pushes) != 2 || rc.pushes[0] || !rc.pushes[1] {
		t.Fatalf("expected two opposite pushes, got %v", rc.pushes)
	}
}

func TestHidingActiveObjectClearsSelection(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	if err := h.store.SetActiveLayer(pageID, l.ID); err != nil {
		t.Fatal(err)
	}
	if c.ActiveObjectID() != l.SceneObjectID {
		t.Fatalf("selection not synced to the scene")
	}
	if _, err := h.store.ToggleLayerVisibility(pageID, l.ID); err != nil {
		t.Fatal(err)
	}
	if c.ActiveObjectID() != "" || h.page(t, pageID).ActiveLayerID != "" {
		t.Fatalf("hidden object is still selected")
	}
}

func TestReorderRoundTrip(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	for _, k := range []domain.LayerKind{domain.KindRectangle, domain.KindCircle, domain.KindTriangle} {
		if _, err := h.store.AddShape(pageID, k); err != nil {
			t.Fatal(err)
		}
	}
	orig := layerIDs(h.page(t, pageID))
	if err := h.store.ReorderLayers(pageID, 0, 2); err != nil {
		t.Fatal(err)
	}
	p := h.page(t, pageID)
	if layerIDs(p) == orig {
		t.Fatalf("reorder had no effect")
	}
	if linkedObjectIDs(p) != objectIDs(c) {
		t.Fatalf("scene order %s does not follow layers %s", objectIDs(c), linkedObjectIDs(p))
	}
	if err := h.store.ReorderLayers(pageID, 2, 0); err != nil {
		t.Fatal(err)
	}
	p = h.page(t, pageID)
	if layerIDs(p) != orig || linkedObjectIDs(p) != objectIDs(c) {
		t.Fatalf("round trip did not restore the order")
	}
	for _, idx := range [][2]int{{-1, 0}, {0, 3}, {5, 1}, {1, 1}} {
		if err := h.store.ReorderLayers(pageID, idx[0], idx[1]); err != nil {
			t.Fatal(err)
		}
		if layerIDs(h.page(t, pageID)) != orig {
			t.Fatalf("out of range reorder %v changed the list", idx)
		}
	}
}

func TestReorderRestacksDriftedScene(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	_, _ = h.store.AddShape(pageID, domain.KindRectangle)
	b, _ := h.store.AddShape(pageID, domain.KindCircle)
	tri, _ := h.store.AddShape(pageID, domain.KindTriangle)
	// an unmanaged change of stacking the layer list does not know about
	if err := c.MoveObjectTo(tri.SceneObjectID, 0); err != nil {
		t.Fatal(err)
	}
	if err := h.store.ReorderLayers(pageID, 1, 2); err != nil {
		t.Fatal(err)
	}
	p := h.page(t, pageID)
	if p.Layers[2].ID != b.ID || linkedObjectIDs(p) != objectIDs(c) {
		t.Fatalf("scene %s not restacked to %s", objectIDs(c), linkedObjectIDs(p))
	}
}

func TestSetActiveLayerSyncsOnlyOnChange(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	a, _ := h.store.AddShape(pageID, domain.KindRectangle)
	b, _ := h.store.AddShape(pageID, domain.KindCircle)

	var selections int
	stop := c.Subscribe(func(ev scene.Event) {
		if ev.Type.Selection() {
			selections++
		}
	})
	defer stop()

	if err := h.store.SetActiveLayer(pageID, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := h.store.SetActiveLayer(pageID, a.ID); err != nil {
		t.Fatal(err)
	}
	if selections != 1 {
		t.Fatalf("selecting the current target again must not reach the scene (%d events)", selections)
	}
	// a selection made on the canvas moves the pointer without an echo
	if err := c.SetActiveObject(b.SceneObjectID); err != nil {
		t.Fatal(err)
	}
	if got := h.page(t, pageID).ActiveLayerID; got != b.ID || selections != 2 {
		t.Fatalf("active layer = %s after canvas selection (%d events)", got, selections)
	}
	if err := h.store.SetActiveLayer(pageID, ""); err != nil {
		t.Fatal(err)
	}
	if c.ActiveObjectID() != "" || h.page(t, pageID).ActiveLayerID != "" {
		t.Fatalf("clearing the active layer must clear the selection")
	}
	if err := h.store.SetActiveLayer(pageID, "missing"); !errors.Is(err, ErrLayerNotFound) {
		t.Fatalf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestDeleteLayerClearsActivePointer(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	_ = h.store.SetActiveLayer(pageID, l.ID)
	if err := h.store.DeleteLayer(pageID, l.ID); err != nil {
		t.Fatal(err)
	}
	p := h.page(t, pageID)
	if len(p.Layers) != 0 || p.ActiveLayerID != "" {
		t.Fatalf("layer not removed cleanly: %+v", p)
	}
	if _, ok := c.Object(l.SceneObjectID); !ok {
		t.Fatalf("DeleteLayer must leave the scene object alone")
	}
	if err := h.store.DeleteLayer(pageID, l.ID); !errors.Is(err, ErrLayerNotFound) {
		t.Fatalf("expected ErrLayerNotFound, got %v", err)
	}
}

func TestRenameAndOpacity(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)
	if l.Name != "Rectangle 1" {
		t.Fatalf("default name = %q", l.Name)
	}
	if err := h.store.RenameLayer(pageID, l.ID, "Backdrop"); err != nil {
		t.Fatal(err)
	}
	v, err := h.store.SetLayerOpacity(pageID, l.ID, 1.7)
	if err != nil || v != 1 {
		t.Fatalf("opacity = %v, %v", v, err)
	}
	if v, _ = h.store.SetLayerOpacity(pageID, l.ID, 0.25); v != 0.25 {
		t.Fatalf("opacity = %v", v)
	}
	o, _ := c.Object(l.SceneObjectID)
	if o.Opacity != 0.25 {
		t.Fatalf("opacity not pushed: %v", o.Opacity)
	}
	got := h.page(t, pageID).Layers[0]
	if got.Name != "Backdrop" || got.Opacity != 0.25 {
		t.Fatalf("unexpected layer %+v", got)
	}
}

func TestReconcileLayers(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	c := h.mount(t, pageID)
	kept, _ := h.store.AddShape(pageID, domain.KindRectangle)
	if _, err := h.store.AddLayer(pageID, LayerData{Kind: domain.KindCircle, SceneObjectID: "gone"}); err != nil {
		t.Fatal(err)
	}
	placeholder, _ := h.store.AddLayer(pageID, LayerData{Kind: domain.KindText})
	orphan := scene.NewObject(scene.TypeTriangle)
	orphan.Visible = false
	if err := c.InsertObject(orphan, 0); err != nil {
		t.Fatal(err)
	}
	if err := h.store.ReconcileLayers(pageID); err != nil {
		t.Fatal(err)
	}
	p := h.page(t, pageID)
	if len(p.Layers) != 3 {
		t.Fatalf("layers = %+v", p.Layers)
	}
	if p.Layers[0].Kind != domain.KindTriangle || p.Layers[0].Visible {
		t.Fatalf("orphan object did not get a hidden triangle layer: %+v", p.Layers[0])
	}
	if p.Layers[1].ID != kept.ID || p.Layers[2].ID != placeholder.ID {
		t.Fatalf("unexpected order: %+v", p.Layers)
	}
}

func TestAddLayerRejectsPairedObject(t *testing.T) {
	h := newHarness(t)
	d := h.createDesign(t, "D")
	pageID := d.Pages[0].ID
	h.mount(t, pageID)
	l, _ := h.store.AddShape(pageID, domain.KindRectangle)

	_, err := h.store.AddLayer(pageID, LayerData{Kind: domain.KindRectangle, SceneObjectID: l.SceneObjectID})
	if !errors.Is(err, ErrObjectPaired) {
		t.Fatalf("second layer for one object err = %v", err)
	}
	if p := h.page(t, pageID); len(p.Layers) != 1 {
		t.Fatalf("layers = %s", layerIDs(p))
	}
	if _, err := h.store.AddLayer(pageID, LayerData{Kind: domain.KindText}); err != nil {
		t.Fatalf("placeholder layer: %v", err)
	}
}
