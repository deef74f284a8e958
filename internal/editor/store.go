/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor owns the Design → Page → Layer tree and keeps it in step
// with the live scenes of its pages. Store is the single authoritative state
// container: surfaces read and write only through it.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"godesigner/internal/config"
	"godesigner/internal/domain"
	"godesigner/internal/history"
	applog "godesigner/internal/log"
	"godesigner/internal/scene"
	"godesigner/internal/storage"
)

// Store is confined to one goroutine at a time, the owner's event loop.
// Scene events raised by its own calls are handled synchronously.
type Store struct {
	designs  *storage.DesignRepository
	pages    *storage.PageRepository
	editor   config.EditorConfig
	histCfg  history.Config
	notifier Notifier
	deferrer Deferrer
	canvases *CanvasRegistry

	design *domain.Design

	designSavePending bool
	pageSavePending   map[string]bool
	dirtyPages        map[string]bool
	// retired keeps deleted layers by page and object id so an undo that brings
	// the object back also restores its layer record.
	retired map[string]domain.Layer

	now func() time.Time
	log *slog.Logger
}

// NewStore wires a store to its repositories. A nil notifier logs notices and
// a nil deferrer runs deferred work immediately.
func NewStore(designs *storage.DesignRepository, pages *storage.PageRepository, cfg config.AppConfig, n Notifier, d Deferrer) *Store {
	if n == nil {
		n = LogNotifier{}
	}
	if d == nil {
		d = Immediate{}
	}
	return &Store{
		designs:  designs,
		pages:    pages,
		editor:   cfg.Editor,
		histCfg:  history.Config{MaxEntries: cfg.History.MaxEntries, CoalesceWindow: time.Duration(cfg.History.CoalesceMs) * time.Millisecond},
		notifier: n,
		deferrer: d,
		canvases: NewCanvasRegistry(),
		now:      func() time.Time { return time.Now().UTC() },
		log:      applog.WithComponent("editor"),

		pageSavePending: make(map[string]bool),
		dirtyPages:      make(map[string]bool),
		retired:         make(map[string]domain.Layer),
	}
}

// Canvases exposes the page → canvas map.
func (s *Store) Canvases() *CanvasRegistry { return s.canvases }

// Design returns a deep copy of the open design.
func (s *Store) Design() (domain.Design, bool) {
	if s.design == nil {
		return domain.Design{}, false
	}
	return s.design.Clone(), true
}

// ActivePageID is empty when no design is open.
func (s *Store) ActivePageID() string {
	if s.design == nil {
		return ""
	}
	return s.design.ActivePageID
}

// Page returns a copy of one page.
func (s *Store) Page(pageID string) (domain.Page, error) {
	p, err := s.page(pageID)
	if err != nil {
		return domain.Page{}, err
	}
	return p.Clone(), nil
}

func (s *Store) page(pageID string) (*domain.Page, error) {
	if s.design == nil {
		return nil, ErrNoDesign
	}
	p := s.design.Page(pageID)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pageID)
	}
	return p, nil
}

func (s *Store) defaultPageConfig(cfg domain.PageConfig) domain.PageConfig {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = s.editor.PageName
		if s.design != nil {
			cfg.Name = fmt.Sprintf("Page %d", len(s.design.Pages)+1)
		}
		if cfg.Name == "" {
			cfg.Name = "Page 1"
		}
	}
	if cfg.Width <= 0 {
		cfg.Width = s.editor.PageWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = s.editor.PageHeight
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 1080, 1080
	}
	if cfg.Background == "" {
		cfg.Background = s.editor.Background
	}
	return cfg
}

// CreateDesign starts a new design with one default page and persists it.
func (s *Store) CreateDesign(ctx context.Context, name string) (domain.Design, error) {
	if strings.TrimSpace(name) == "" {
		name = "Untitled design"
	}
	s.closeDesign(ctx, true)
	d := domain.NewDesign(name, s.defaultPageConfig(domain.PageConfig{}), s.now())
	if err := s.designs.Save(ctx, d); err != nil {
		return domain.Design{}, fmt.Errorf("save design: %w", err)
	}
	s.design = &d
	s.log.Info("design created", "design_id", d.ID, "name", d.Name)
	return d.Clone(), nil
}

// OpenDesign loads a persisted design and makes it current.
func (s *Store) OpenDesign(ctx context.Context, id string) (domain.Design, error) {
	// flushed before loading so reopening the same design sees its edits
	if s.design != nil {
		if err := s.Flush(ctx); err != nil {
			s.log.Warn("save on close failed", "design_id", s.design.ID, applog.Err(err))
		}
	}
	d, err := s.designs.Load(ctx, id)
	if err != nil {
		return domain.Design{}, fmt.Errorf("open design %s: %w", id, err)
	}
	s.closeDesign(ctx, false)
	s.design = &d
	s.log.Info("design opened", "design_id", d.ID, "pages", len(d.Pages))
	return d.Clone(), nil
}

// ListDesigns returns the persisted designs, newest first.
func (s *Store) ListDesigns(ctx context.Context) ([]domain.Design, error) {
	return s.designs.List(ctx)
}

// DeleteDesign removes a design and all of its page snapshots. Deleting the
// open design closes it.
func (s *Store) DeleteDesign(ctx context.Context, id string) error {
	if s.design != nil && s.design.ID == id {
		s.closeDesign(ctx, false)
	}
	if err := s.pages.DeleteByDesign(ctx, id); err != nil {
		return fmt.Errorf("delete page snapshots: %w", err)
	}
	return s.designs.Delete(ctx, id)
}

// closeDesign unbinds every canvas and forgets the open design. With save set,
// pending design and scene changes are written first.
func (s *Store) closeDesign(ctx context.Context, save bool) {
	if save && s.design != nil {
		if err := s.Flush(ctx); err != nil {
			s.log.Warn("save on close failed", "design_id", s.design.ID, applog.Err(err))
		}
	}
	for _, id := range s.canvases.PageIDs() {
		if b := s.canvases.remove(id, nil); b != nil {
			b.release()
		}
	}
	s.design = nil
	s.designSavePending = false
	clear(s.pageSavePending)
	clear(s.dirtyPages)
	clear(s.retired)
}

// AddPage appends a page built from cfg and makes it active. Zero fields take
// the configured defaults.
func (s *Store) AddPage(cfg domain.PageConfig) (domain.Page, error) {
	if s.design == nil {
		return domain.Page{}, ErrNoDesign
	}
	cfg = s.defaultPageConfig(cfg)
	if _, err := domain.ParseColor(cfg.Background); err != nil {
		return domain.Page{}, err
	}
	p := domain.NewPage(cfg, s.now())
	s.design.Pages = append(s.design.Pages, p)
	s.design.ActivePageID = p.ID
	s.designChanged()
	s.log.Debug("page added", "page_id", p.ID, "name", cfg.Name)
	return p.Clone(), nil
}

// DeletePage removes a page. The last page cannot be deleted; the rejection is
// returned and also shown to the user. The page snapshot is deleted after the
// in-memory removal.
func (s *Store) DeletePage(pageID string) error {
	if _, err := s.page(pageID); err != nil {
		return err
	}
	if len(s.design.Pages) <= 1 {
		s.notifier.Notify(Notice{Level: NoticeWarning, Message: "The last page of a design cannot be deleted.", Err: ErrLastPage})
		return ErrLastPage
	}
	i := s.design.PageIndex(pageID)
	s.design.Pages = append(s.design.Pages[:i], s.design.Pages[i+1:]...)
	if s.design.ActivePageID == pageID {
		s.design.ActivePageID = s.design.Pages[0].ID
	}
	if b := s.canvases.remove(pageID, nil); b != nil {
		b.release()
	}
	delete(s.dirtyPages, pageID)
	s.dropRetired(pageID)
	s.designChanged()

	designID := s.design.ID
	s.deferrer.Defer(func() {
		if err := s.pages.Delete(context.Background(), designID, pageID); err != nil {
			s.log.Warn("delete page snapshot failed", "page_id", pageID, applog.Err(err))
		}
	})
	return nil
}

// SetActivePage persists the outgoing page before the pointer moves. When that
// save fails the switch is aborted. Loading the target is left to the mount of
// its canvas.
func (s *Store) SetActivePage(ctx context.Context, pageID string) error {
	if _, err := s.page(pageID); err != nil {
		return err
	}
	if s.design.ActivePageID == pageID {
		return nil
	}
	if err := s.SaveCurrentPageData(ctx); err != nil {
		return fmt.Errorf("save outgoing page: %w", err)
	}
	s.design.ActivePageID = pageID
	s.designChanged()
	return nil
}

// RenamePage changes the display name of a page.
func (s *Store) RenamePage(pageID, name string) error {
	p, err := s.page(pageID)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("page name must not be empty")
	}
	p.Config.Name = name
	p.UpdatedAt = s.now()
	s.designChanged()
	return nil
}

// UpdatePageConfig changes size and background. Zero sizes and an empty name
// keep the current values. The change is pushed to a mounted canvas.
func (s *Store) UpdatePageConfig(pageID string, cfg domain.PageConfig) error {
	p, err := s.page(pageID)
	if err != nil {
		return err
	}
	next := p.Config
	if strings.TrimSpace(cfg.Name) != "" {
		next.Name = strings.TrimSpace(cfg.Name)
	}
	if cfg.Width > 0 {
		next.Width = cfg.Width
	}
	if cfg.Height > 0 {
		next.Height = cfg.Height
	}
	if cfg.Background != "" {
		if _, err := domain.ParseColor(cfg.Background); err != nil {
			return err
		}
		next.Background = cfg.Background
	}
	p.Config = next
	p.UpdatedAt = s.now()
	if a := s.canvases.Get(pageID); a != nil {
		if err := a.SetBackground(next.Background); err != nil {
			s.log.Warn("push background failed", "page_id", pageID, applog.Err(err))
		}
		a.SetSize(next.Width, next.Height)
		s.pageChanged(pageID)
	}
	s.designChanged()
	return nil
}

// DuplicatePage copies a page and its scene right after the original. The
// copy gets fresh page and layer ids and is not activated.
func (s *Store) DuplicatePage(ctx context.Context, pageID string) (domain.Page, error) {
	src, err := s.page(pageID)
	if err != nil {
		return domain.Page{}, err
	}
	var canvasJSON string
	if b := s.canvases.lookup(pageID); b != nil && b.state == Loaded {
		data, err := b.adapter.ToSerializable()
		if err != nil {
			return domain.Page{}, fmt.Errorf("serialize page: %w", err)
		}
		canvasJSON = string(data)
	} else {
		snap, err := s.pages.Load(ctx, s.design.ID, pageID)
		switch {
		case err == nil:
			canvasJSON = snap.CanvasJSON
		case !errors.Is(err, storage.ErrNotFound):
			return domain.Page{}, fmt.Errorf("load page snapshot: %w", err)
		}
	}

	cfg := src.Config
	cfg.Name = src.Config.Name + " copy"
	dup := domain.NewPage(cfg, s.now())
	for _, l := range src.Layers {
		l.ID = domain.NewID()
		dup.Layers = append(dup.Layers, l)
	}
	if canvasJSON != "" {
		snap := domain.PageSnapshot{PageID: dup.ID, DesignID: s.design.ID, CanvasJSON: canvasJSON, UpdatedAt: s.now()}
		if err := s.pages.Save(ctx, snap); err != nil {
			return domain.Page{}, fmt.Errorf("save page copy: %w", err)
		}
	}
	i := s.design.PageIndex(pageID) + 1
	s.design.Pages = append(s.design.Pages, domain.Page{})
	copy(s.design.Pages[i+1:], s.design.Pages[i:])
	s.design.Pages[i] = dup
	s.designChanged()
	return dup.Clone(), nil
}

// MountCanvas registers a for pageID and defers loading the page snapshot into
// it. A canvas already mounted for the page is released.
func (s *Store) MountCanvas(pageID string, a scene.Adapter) error {
	if _, err := s.page(pageID); err != nil {
		return err
	}
	if a == nil {
		return errors.New("mount: nil canvas")
	}
	b := &binding{adapter: a, state: Initializing}
	b.stops = append(b.stops, a.Subscribe(func(ev scene.Event) { s.handleEvent(pageID, a, ev) }))
	if old := s.canvases.put(pageID, b); old != nil && old.adapter != a {
		old.release()
	}
	s.log.Debug("canvas mounted", "page_id", pageID)
	s.deferLoad(pageID, a)
	return nil
}

// MountNewCanvas creates a ready, headless canvas sized to the page and mounts it.
func (s *Store) MountNewCanvas(pageID string) (*scene.Canvas, error) {
	p, err := s.page(pageID)
	if err != nil {
		return nil, err
	}
	c := scene.NewCanvas(p.Config.Width, p.Config.Height, p.Config.Background)
	c.MarkReady()
	if err := s.MountCanvas(pageID, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UnmountCanvas unbinds a from pageID. Unsaved scene changes are written
// first. It reports false when a is no longer the registered canvas.
func (s *Store) UnmountCanvas(pageID string, a scene.Adapter) bool {
	b := s.canvases.current(pageID, a)
	if b == nil {
		return false
	}
	if b.state == Loaded && s.dirtyPages[pageID] {
		if err := s.savePage(context.Background(), pageID); err != nil {
			s.log.Warn("save on unmount failed", "page_id", pageID, applog.Err(err))
		}
	}
	if s.canvases.remove(pageID, a) == nil {
		return false
	}
	b.release()
	s.log.Debug("canvas unmounted", "page_id", pageID)
	return true
}

// BindingState reports the canvas lifecycle of a page.
func (s *Store) BindingState(pageID string) BindingState { return s.canvases.State(pageID) }

// Canvas returns the canvas currently registered for pageID or nil.
func (s *Store) Canvas(pageID string) scene.Adapter { return s.canvases.Get(pageID) }

func (s *Store) deferLoad(pageID string, a scene.Adapter) {
	s.deferrer.Defer(func() {
		b := s.canvases.current(pageID, a)
		if b == nil || b.state != Initializing {
			s.log.Debug("stale canvas load discarded", "page_id", pageID)
			return
		}
		if !a.Ready() {
			s.deferLoad(pageID, a)
			return
		}
		if err := s.loadInto(context.Background(), pageID, a, b); err != nil {
			s.log.Warn("page load failed", "page_id", pageID, applog.Err(err))
		}
	})
}

// LoadPageData applies the persisted snapshot of pageID to its mounted canvas.
// A page that was never saved keeps its empty scene.
func (s *Store) LoadPageData(ctx context.Context, pageID string) error {
	if _, err := s.page(pageID); err != nil {
		return err
	}
	b := s.canvases.lookup(pageID)
	if b == nil || !b.adapter.Ready() {
		return ErrNotReady
	}
	return s.loadInto(ctx, pageID, b.adapter, b)
}

func (s *Store) loadInto(ctx context.Context, pageID string, a scene.Adapter, b *binding) error {
	l := applog.WithOperation(s.log, "loadPage")
	designID := s.design.ID
	snap, err := s.pages.Load(ctx, designID, pageID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		// the canvas stays Initializing so it never overwrites the stored scene
		return fmt.Errorf("read page snapshot: %w", err)
	}
	if s.canvases.current(pageID, a) != b || s.design == nil || s.design.ID != designID {
		l.Debug("canvas replaced while loading; result discarded", "page_id", pageID)
		return nil
	}
	loaded := false
	if err == nil {
		if lerr := a.LoadFromSerializable([]byte(snap.CanvasJSON)); lerr != nil {
			l.Error("page snapshot unreadable; starting empty", "page_id", pageID, applog.Err(lerr))
		} else {
			loaded = true
		}
	}
	if !loaded {
		// a successful load reconciles from its Loaded event
		s.reconcile(pageID, a)
	}
	if b.state == Loaded {
		// an explicit reload starts a fresh timeline
		b.history.Reset()
		b.history.Capture()
	} else {
		b.state = Loaded
		b.history = history.NewManager(a, s.histCfg)
		b.stops = append(b.stops, b.history.Track())
	}
	l.Debug("page loaded", "page_id", pageID, "objects", len(a.Objects()))
	return nil
}

// SaveCurrentPageData persists the active page's scene. Without an open
// design or a loaded canvas it does nothing.
func (s *Store) SaveCurrentPageData(ctx context.Context) error {
	if s.design == nil {
		return nil
	}
	return s.savePage(ctx, s.design.ActivePageID)
}

func (s *Store) savePage(ctx context.Context, pageID string) error {
	b := s.canvases.lookup(pageID)
	if b == nil || b.state != Loaded || s.design.Page(pageID) == nil {
		return nil
	}
	data, err := b.adapter.ToSerializable()
	if err != nil {
		return fmt.Errorf("serialize page: %w", err)
	}
	snap := domain.PageSnapshot{PageID: pageID, DesignID: s.design.ID, CanvasJSON: string(data), UpdatedAt: s.now()}
	if err := s.pages.Save(ctx, snap); err != nil {
		return fmt.Errorf("save page snapshot: %w", err)
	}
	delete(s.dirtyPages, pageID)
	return nil
}

// SaveDesign persists the design record now.
func (s *Store) SaveDesign(ctx context.Context) error {
	if s.design == nil {
		return ErrNoDesign
	}
	return s.designs.Save(ctx, s.design.Clone())
}

// Flush writes the design and every page with unsaved scene changes.
func (s *Store) Flush(ctx context.Context) error {
	if s.design == nil {
		return nil
	}
	var errs []error
	for _, id := range s.canvases.PageIDs() {
		if s.dirtyPages[id] {
			if err := s.savePage(ctx, id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := s.SaveDesign(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// designChanged stamps the design and schedules one save of its record.
func (s *Store) designChanged() {
	s.design.UpdatedAt = s.now()
	if s.designSavePending {
		return
	}
	s.designSavePending = true
	designID := s.design.ID
	s.deferrer.Defer(func() {
		s.designSavePending = false
		if s.design == nil || s.design.ID != designID {
			return
		}
		if err := s.SaveDesign(context.Background()); err != nil {
			s.log.Warn("design save failed", "design_id", designID, applog.Err(err))
		}
	})
}

// pageChanged marks a page's scene dirty and schedules one snapshot save.
// Saves scheduled for a page deleted in the meantime are dropped.
func (s *Store) pageChanged(pageID string) {
	s.dirtyPages[pageID] = true
	if s.pageSavePending[pageID] {
		return
	}
	s.pageSavePending[pageID] = true
	s.deferrer.Defer(func() {
		delete(s.pageSavePending, pageID)
		if s.design == nil || s.design.Page(pageID) == nil || !s.dirtyPages[pageID] {
			return
		}
		if err := s.savePage(context.Background(), pageID); err != nil {
			s.log.Warn("page save failed", "page_id", pageID, applog.Err(err))
		}
	})
}

// Undo steps the active page's history back.
func (s *Store) Undo() bool {
	if h := s.activeHistory(); h != nil {
		return h.Undo()
	}
	return false
}

// Redo steps the active page's history forward.
func (s *Store) Redo() bool {
	if h := s.activeHistory(); h != nil {
		return h.Redo()
	}
	return false
}

func (s *Store) CanUndo() bool {
	h := s.activeHistory()
	return h != nil && h.CanUndo()
}

func (s *Store) CanRedo() bool {
	h := s.activeHistory()
	return h != nil && h.CanRedo()
}

// History returns the timeline of a loaded page or nil.
func (s *Store) History(pageID string) *history.Manager {
	if b := s.canvases.lookup(pageID); b != nil {
		return b.history
	}
	return nil
}

func (s *Store) activeHistory() *history.Manager {
	if s.design == nil {
		return nil
	}
	return s.History(s.design.ActivePageID)
}
