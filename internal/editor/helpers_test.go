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
	"context"
	"errors"
	"strings"
	"testing"

	"godesigner/internal/config"
	"godesigner/internal/domain"
	"godesigner/internal/scene"
	"godesigner/internal/storage"
)

type recordingNotifier struct{ notices []Notice }

func (r *recordingNotifier) Notify(n Notice) { r.notices = append(r.notices, n) }

type harness struct {
	store    *Store
	queue    *Queue
	gateway  storage.Gateway
	notifier *recordingNotifier
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessOn(t, storage.NewMemoryGateway())
}

func newHarnessOn(t *testing.T, g storage.Gateway) *harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.Editor = config.EditorConfig{PageName: "Page 1", PageWidth: 400, PageHeight: 300, Background: "#ffffff"}
	h := &harness{queue: NewQueue(), gateway: g, notifier: &recordingNotifier{}}
	h.store = NewStore(storage.NewDesignRepository(g), storage.NewPageRepository(g), cfg, h.notifier, h.queue)
	return h
}

func (h *harness) createDesign(t *testing.T, name string) domain.Design {
	t.Helper()
	d, err := h.store.CreateDesign(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateDesign: %v", err)
	}
	return d
}

// mount attaches a ready canvas to pageID and drains the load.
func (h *harness) mount(t *testing.T, pageID string) *scene.Canvas {
	t.Helper()
	c, err := h.store.MountNewCanvas(pageID)
	if err != nil {
		t.Fatalf("MountNewCanvas: %v", err)
	}
	h.queue.Drain()
	if st := h.store.BindingState(pageID); st != Loaded {
		t.Fatalf("binding state = %s, want loaded", st)
	}
	return c
}

func (h *harness) page(t *testing.T, pageID string) domain.Page {
	t.Helper()
	p, err := h.store.Page(pageID)
	if err != nil {
		t.Fatalf("Page(%s): %v", pageID, err)
	}
	return p
}

func layerIDs(p domain.Page) string {
	ids := make([]string, len(p.Layers))
	for i, l := range p.Layers {
		ids[i] = l.ID
	}
	return strings.Join(ids, ",")
}

func objectIDs(a scene.Adapter) string {
	objs := a.Objects()
	ids := make([]string, len(objs))
	for i, o := range objs {
		ids[i] = o.ID
	}
	return strings.Join(ids, ",")
}

func linkedObjectIDs(p domain.Page) string {
	ids := make([]string, 0, len(p.Layers))
	for _, l := range p.Layers {
		ids = append(ids, l.SceneObjectID)
	}
	return strings.Join(ids, ",")
}

// recordingCanvas records the visibility pushed by every silent update.
type recordingCanvas struct {
	*scene.Canvas
	pushes []bool
}

func (r *recordingCanvas) UpdateObject(id string, fn func(*scene.Object)) error {
	if err := r.Canvas.UpdateObject(id, fn); err != nil {
		return err
	}
	o, _ := r.Canvas.Object(id)
	r.pushes = append(r.pushes, o.Visible)
	return nil
}

// stuckCanvas refuses user removals.
type stuckCanvas struct{ *scene.Canvas }

func (stuckCanvas) RemoveObject(string) (scene.Object, int, error) {
	return scene.Object{}, -1, errors.New("surface busy")
}

// flakyGateway fails writes to one store while fail is set.
type flakyGateway struct {
	storage.Gateway
	store string
	fail  bool
}

func (f *flakyGateway) Put(ctx context.Context, store, key string, value []byte) error {
	if f.fail && store == f.store {
		return errors.New("disk full")
	}
	return f.Gateway.Put(ctx, store, key, value)
}
