//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"godesigner/internal/config"
	"godesigner/internal/crash"
	"godesigner/internal/domain"
	"godesigner/internal/editor"
	"godesigner/internal/export"
	applog "godesigner/internal/log"
	"godesigner/internal/scene"
	"godesigner/internal/storage"
	"godesigner/internal/vector"
	"godesigner/internal/version"
)

const recentPrefsKey = "designs.recent"

// shell is the editor window. Every callback runs on the fyne event loop, which
// is the only goroutine touching the store.
type shell struct {
	cfg   config.AppConfig
	app   fyne.App
	win   fyne.Window
	store *editor.Store
	queue *editor.Queue
	log   *slog.Logger

	status *widget.Label
	pages  *widget.List
	layers *widget.List
	view   *PageView

	pageCache  []domain.Page
	layerCache []domain.Layer
	syncing    bool
}

// Run starts the desktop editor on an opened gateway. designID picks the
// design to open; empty reopens the last one or starts a new design.
func Run(cfg config.AppConfig, g storage.Gateway, designID string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", "version", version.String())

	s := &shell{cfg: cfg, queue: editor.NewQueue(), log: l}
	s.store = editor.NewStore(storage.NewDesignRepository(g), storage.NewPageRepository(g), cfg, editor.NotifierFunc(s.notify), s.queue)
	defer crash.Recover(s.store, reportDir())

	s.app = app.NewWithID("godesigner")
	s.win = s.app.NewWindow("GoDesigner")
	prefs := s.app.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1280), 800)
	winH := max(prefs.IntWithFallback("window.height", 800), 600)
	s.win.Resize(fyne.NewSize(float32(winW), float32(winH)))

	s.status = widget.NewLabel("Ready")
	s.view = NewPageView(s)
	s.pages = s.buildPageList()
	s.layers = s.buildLayerList()

	left := container.NewBorder(
		container.NewHBox(widget.NewLabel("Pages"), layout.NewSpacer(),
			widget.NewButtonWithIcon("", theme.ContentAddIcon(), s.addPage),
			widget.NewButtonWithIcon("", theme.ContentCopyIcon(), s.duplicatePage),
			widget.NewButtonWithIcon("", theme.DeleteIcon(), s.deletePage)),
		nil, nil, nil, s.pages)
	right := container.NewBorder(
		container.NewHBox(widget.NewLabel("Layers"), layout.NewSpacer(),
			widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() { s.moveActiveLayer(1) }),
			widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() { s.moveActiveLayer(-1) }),
			widget.NewButtonWithIcon("", theme.DeleteIcon(), s.deleteActiveLayer)),
		nil, nil, nil, s.layers)
	center := container.NewHSplit(left, container.NewHSplit(s.view, right))
	center.Offset = 0.18
	s.win.SetContent(container.NewBorder(s.buildToolbar(), s.status, nil, nil, center))
	s.bindShortcuts()

	if err := s.openInitial(designID); err != nil {
		return err
	}

	s.win.SetCloseIntercept(func() {
		size := s.win.Canvas().Size()
		prefs.SetInt("window.width", int(size.Width))
		prefs.SetInt("window.height", int(size.Height))
		s.queue.Drain()
		if err := s.store.Flush(context.Background()); err != nil {
			l.Error("save on close failed", applog.Err(err))
		}
		s.win.Close()
	})
	s.win.ShowAndRun()
	return nil
}

func reportDir() string {
	dir, err := config.Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "crash")
}

func (s *shell) notify(n editor.Notice) {
	s.log.Log(context.Background(), noticeLevel(n.Level), n.Message, applog.Err(n.Err))
	if s.status != nil {
		s.status.SetText(n.Message)
	}
	if n.Level == editor.NoticeError && s.win != nil {
		dialog.ShowError(errors.New(n.Message), s.win)
	}
}

func noticeLevel(l editor.NoticeLevel) slog.Level {
	switch l {
	case editor.NoticeError:
		return slog.LevelError
	case editor.NoticeWarning:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

func (s *shell) openInitial(designID string) error {
	ctx := context.Background()
	prefs := s.app.Preferences()
	if designID == "" {
		var recent []string
		_ = json.Unmarshal([]byte(prefs.StringWithFallback(recentPrefsKey, "[]")), &recent)
		if len(recent) > 0 {
			designID = recent[0]
		}
	}
	var (
		d   domain.Design
		err error
	)
	if designID != "" {
		d, err = s.store.OpenDesign(ctx, designID)
		if errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("last design is gone", "design_id", designID)
			designID = ""
		} else if err != nil {
			return err
		}
	}
	if designID == "" {
		if d, err = s.store.CreateDesign(ctx, ""); err != nil {
			return err
		}
	}
	var recent []string
	_ = json.Unmarshal([]byte(prefs.StringWithFallback(recentPrefsKey, "[]")), &recent)
	b, _ := json.Marshal(pushRecent(recent, d.ID))
	prefs.SetString(recentPrefsKey, string(b))
	s.win.SetTitle("GoDesigner - " + d.Name)
	s.showPage(d.ActivePageID)
	return nil
}

// act runs one user action, drains the deferred work it scheduled and
// refreshes the widgets.
func (s *shell) act(what string, fn func() error) {
	if err := fn(); err != nil {
		s.log.Warn(what+" failed", applog.Err(err))
		s.status.SetText(fmt.Sprintf("%s failed: %v", what, err))
	}
	s.queue.Drain()
	s.refresh()
}

func (s *shell) pageID() string { return s.store.ActivePageID() }

// showPage mounts a canvas for pageID when it has none yet.
func (s *shell) showPage(pageID string) {
	s.act("open page", func() error {
		if s.store.Canvas(pageID) == nil {
			if _, err := s.store.MountNewCanvas(pageID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *shell) refresh() {
	d, ok := s.store.Design()
	if !ok {
		return
	}
	s.pageCache = d.Pages
	s.layerCache = nil
	activeRow := -1
	if p := d.Page(d.ActivePageID); p != nil {
		s.layerCache = p.Layers
		if i := p.LayerIndex(p.ActiveLayerID); i >= 0 {
			activeRow = layerRow(len(p.Layers), i)
		}
	}
	s.syncing = true
	s.pages.Refresh()
	if i := d.PageIndex(d.ActivePageID); i >= 0 {
		s.pages.Select(i)
	}
	s.layers.Refresh()
	if activeRow >= 0 {
		s.layers.Select(activeRow)
	} else {
		s.layers.UnselectAll()
	}
	s.syncing = false
	s.view.Refresh()
}

func (s *shell) buildPageList() *widget.List {
	list := widget.NewList(
		func() int { return len(s.pageCache) },
		func() fyne.CanvasObject { return widget.NewLabel("page") },
		func(id widget.ListItemID, o fyne.CanvasObject) {
			if id < len(s.pageCache) {
				c := s.pageCache[id].Config
				o.(*widget.Label).SetText(fmt.Sprintf("%s  %dx%d", c.Name, c.Width, c.Height))
			}
		})
	list.OnSelected = func(id widget.ListItemID) {
		if s.syncing || id >= len(s.pageCache) {
			return
		}
		pageID := s.pageCache[id].ID
		if pageID == s.pageID() {
			return
		}
		s.act("switch page", func() error { return s.store.SetActivePage(context.Background(), pageID) })
		s.showPage(pageID)
	}
	return list
}

func (s *shell) buildLayerList() *widget.List {
	list := widget.NewList(
		func() int { return len(s.layerCache) },
		func() fyne.CanvasObject {
			return container.NewHBox(
				widget.NewLabel("layer"), layout.NewSpacer(),
				widget.NewButtonWithIcon("", theme.VisibilityIcon(), nil),
				widget.NewButtonWithIcon("", theme.LoginIcon(), nil))
		},
		func(id widget.ListItemID, o fyne.CanvasObject) {
			i := layerRow(len(s.layerCache), id)
			if i < 0 || i >= len(s.layerCache) {
				return
			}
			l := s.layerCache[i]
			row := o.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(layerCaption(l))
			vis := row.Objects[2].(*widget.Button)
			if l.Visible {
				vis.SetIcon(theme.VisibilityIcon())
			} else {
				vis.SetIcon(theme.VisibilityOffIcon())
			}
			vis.OnTapped = func() {
				s.act("toggle visibility", func() error {
					_, err := s.store.ToggleLayerVisibility(s.pageID(), l.ID)
					return err
				})
			}
			lock := row.Objects[3].(*widget.Button)
			if l.Locked {
				lock.SetIcon(theme.LogoutIcon())
			} else {
				lock.SetIcon(theme.LoginIcon())
			}
			lock.OnTapped = func() {
				s.act("toggle lock", func() error {
					_, err := s.store.ToggleLayerLock(s.pageID(), l.ID)
					return err
				})
			}
		})
	list.OnSelected = func(id widget.ListItemID) {
		if s.syncing {
			return
		}
		i := layerRow(len(s.layerCache), id)
		if i < 0 || i >= len(s.layerCache) {
			return
		}
		layerID := s.layerCache[i].ID
		s.act("select layer", func() error { return s.store.SetActiveLayer(s.pageID(), layerID) })
	}
	return list
}

func (s *shell) buildToolbar() *widget.Toolbar {
	shape := func(kind domain.LayerKind) func() {
		return func() {
			s.act("add "+string(kind), func() error {
				_, err := s.store.AddShape(s.pageID(), kind)
				return err
			})
		}
	}
	return widget.NewToolbar(
		widget.NewToolbarAction(theme.CheckButtonIcon(), shape(domain.KindRectangle)),
		widget.NewToolbarAction(theme.RadioButtonIcon(), shape(domain.KindCircle)),
		widget.NewToolbarAction(theme.MenuDropUpIcon(), shape(domain.KindTriangle)),
		widget.NewToolbarAction(theme.DocumentCreateIcon(), s.addText),
		widget.NewToolbarAction(theme.FileImageIcon(), s.addImage),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), s.undo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), s.redo),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), s.exportPage),
		widget.NewToolbarSpacer(),
		widget.NewToolbarAction(theme.InfoIcon(), func() {
			dialog.ShowInformation("About", "GoDesigner "+version.String(), s.win)
		}),
	)
}

func (s *shell) bindShortcuts() {
	c := s.win.Canvas()
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { s.undo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { s.redo() })
	c.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		s.act("save", func() error { return s.store.Flush(context.Background()) })
		s.status.SetText("Saved")
	})
	c.SetOnTypedKey(func(e *fyne.KeyEvent) {
		switch e.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			s.deleteActiveLayer()
		case fyne.KeyEscape:
			s.act("clear selection", func() error { return s.store.SetActiveLayer(s.pageID(), "") })
		}
	})
}

func (s *shell) undo() {
	s.act("undo", func() error {
		if !s.store.Undo() {
			s.status.SetText("Nothing to undo")
		}
		return nil
	})
}

func (s *shell) redo() {
	s.act("redo", func() error {
		if !s.store.Redo() {
			s.status.SetText("Nothing to redo")
		}
		return nil
	})
}

func (s *shell) activeLayer() (domain.Layer, bool) {
	p, err := s.store.Page(s.pageID())
	if err != nil {
		return domain.Layer{}, false
	}
	i := p.LayerIndex(p.ActiveLayerID)
	if i < 0 {
		return domain.Layer{}, false
	}
	return p.Layers[i], true
}

func (s *shell) deleteActiveLayer() {
	l, ok := s.activeLayer()
	if !ok {
		return
	}
	s.act("delete layer", func() error { return s.store.RemoveObject(s.pageID(), l.ID) })
}

// moveActiveLayer shifts the active layer up (+1) or down (-1) the stack.
func (s *shell) moveActiveLayer(delta int) {
	l, ok := s.activeLayer()
	if !ok {
		return
	}
	s.act("reorder layers", func() error {
		p, err := s.store.Page(s.pageID())
		if err != nil {
			return err
		}
		i := p.LayerIndex(l.ID)
		return s.store.ReorderLayers(p.ID, i, i+delta)
	})
}

func (s *shell) addText() {
	entry := widget.NewMultiLineEntry()
	entry.SetText("Text")
	dialog.ShowForm("Add text", "Add", "Cancel", []*widget.FormItem{widget.NewFormItem("Text", entry)}, func(ok bool) {
		if !ok {
			return
		}
		s.act("add text", func() error {
			_, err := s.store.AddText(s.pageID(), entry.Text)
			return err
		})
	}, s.win)
}

func (s *shell) addImage() {
	dialog.ShowFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			dialog.ShowError(err, s.win)
			return
		}
		name := strings.TrimSuffix(rc.URI().Name(), rc.URI().Extension())
		s.act("add image", func() error {
			_, err := s.store.AddImage(s.pageID(), data, name)
			return err
		})
	}, s.win)
}

func (s *shell) addPage() {
	name := widget.NewEntry()
	name.SetText(fmt.Sprintf("Page %d", len(s.pageCache)+1))
	width := widget.NewEntry()
	width.SetText(fmt.Sprint(s.cfg.Editor.PageWidth))
	height := widget.NewEntry()
	height.SetText(fmt.Sprint(s.cfg.Editor.PageHeight))
	bg := widget.NewEntry()
	bg.SetText(s.cfg.Editor.Background)
	items := []*widget.FormItem{
		widget.NewFormItem("Name", name),
		widget.NewFormItem("Width", width),
		widget.NewFormItem("Height", height),
		widget.NewFormItem("Background", bg),
	}
	dialog.ShowForm("Add page", "Add", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		cfg := domain.PageConfig{Name: name.Text, Background: bg.Text}
		_, _ = fmt.Sscan(width.Text, &cfg.Width)
		_, _ = fmt.Sscan(height.Text, &cfg.Height)
		var added domain.Page
		s.act("add page", func() error {
			if err := s.store.SaveCurrentPageData(context.Background()); err != nil {
				return err
			}
			p, err := s.store.AddPage(cfg)
			added = p
			return err
		})
		if added.ID != "" {
			s.showPage(added.ID)
		}
	}, s.win)
}

func (s *shell) duplicatePage() {
	s.act("duplicate page", func() error {
		_, err := s.store.DuplicatePage(context.Background(), s.pageID())
		return err
	})
}

func (s *shell) deletePage() {
	pageID := s.pageID()
	dialog.ShowConfirm("Delete page", "Delete the current page and everything on it?", func(ok bool) {
		if !ok {
			return
		}
		s.act("delete page", func() error { return s.store.DeletePage(pageID) })
		s.showPage(s.pageID())
	}, s.win)
}

func (s *shell) exportPage() {
	names := make([]string, 0, len(export.Formats))
	for _, f := range export.Formats {
		names = append(names, string(f))
	}
	pick := widget.NewSelect(names, nil)
	pick.SetSelected(string(export.PNG))
	dialog.ShowForm("Export page", "Export", "Cancel", []*widget.FormItem{widget.NewFormItem("Format", pick)}, func(ok bool) {
		if !ok {
			return
		}
		f, err := export.ParseFormat(pick.Selected)
		if err != nil {
			dialog.ShowError(err, s.win)
			return
		}
		p, err := s.store.Page(s.pageID())
		if err != nil {
			dialog.ShowError(err, s.win)
			return
		}
		a := s.store.Canvas(p.ID)
		if a == nil {
			dialog.ShowError(editor.ErrNotReady, s.win)
			return
		}
		opt := export.DefaultOptions(s.cfg.Export)
		opt.Name = p.Config.Name
		out, err := export.Render(a, f, opt)
		if err == nil {
			var path string
			if path, err = export.WriteFile(s.cfg.Export.Dir, out); err == nil {
				s.status.SetText("Exported " + path)
				return
			}
		}
		dialog.ShowError(err, s.win)
	}, s.win)
}

// PageView previews the active page and turns taps and drags into selection
// and move gestures.
type PageView struct {
	widget.BaseWidget
	s *shell

	dragLayer string
	dragFrom  vector.Pt
	dragLast  vector.Pt
}

func NewPageView(s *shell) *PageView {
	v := &PageView{s: s}
	v.ExtendBaseWidget(v)
	return v
}

func (v *PageView) viewport() viewport {
	w, h := 0, 0
	if a := v.s.store.Canvas(v.s.pageID()); a != nil {
		w, h = a.Size()
	}
	size := v.Size()
	return fitPage(size.Width, size.Height, w, h)
}

func (v *PageView) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleSmooth
	sel := canvas.NewRectangle(color.Transparent)
	sel.StrokeColor = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	sel.StrokeWidth = 1
	sel.Hide()
	return &pageViewRenderer{v: v, bg: bg, img: img, sel: sel, objects: []fyne.CanvasObject{bg, img, sel}}
}

func (v *PageView) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

func (v *PageView) Tapped(e *fyne.PointEvent) {
	pt := v.viewport().toPage(e.Position.X, e.Position.Y)
	v.s.act("select", func() error {
		_, err := v.s.store.SelectAt(v.s.pageID(), pt)
		return err
	})
}

func (v *PageView) Dragged(e *fyne.DragEvent) {
	vp := v.viewport()
	pt := vp.toPage(e.Position.X, e.Position.Y)
	if v.dragLayer == "" {
		start := vp.toPage(e.Position.X-e.Dragged.DX, e.Position.Y-e.Dragged.DY)
		id, err := v.s.store.SelectAt(v.s.pageID(), start)
		if err != nil || id == "" {
			return
		}
		v.dragLayer, v.dragFrom, v.dragLast = id, start, start
	}
	dx, dy := pt.X-v.dragLast.X, pt.Y-v.dragLast.Y
	err := v.s.store.PreviewObject(v.s.pageID(), v.dragLayer, scene.ObjectMoving, func(o *scene.Object) {
		o.Left += dx
		o.Top += dy
	})
	if err != nil {
		if errors.Is(err, editor.ErrLayerLocked) {
			v.s.status.SetText("Layer is locked")
		}
		v.dragLayer = ""
		return
	}
	v.dragLast = pt
	v.Refresh()
}

// DragEnd commits the gesture as one undo step.
func (v *PageView) DragEnd() {
	layerID := v.dragLayer
	v.dragLayer = ""
	if layerID == "" || v.dragLast == v.dragFrom {
		return
	}
	v.s.act("move", func() error {
		return v.s.store.ModifyObject(v.s.pageID(), layerID, func(*scene.Object) {})
	})
}

type pageViewRenderer struct {
	v       *PageView
	bg      *canvas.Rectangle
	img     *canvas.Image
	sel     *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *pageViewRenderer) Destroy()                     {}
func (r *pageViewRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *pageViewRenderer) MinSize() fyne.Size           { return r.v.MinSize() }

func (r *pageViewRenderer) Refresh() {
	if a := r.v.s.store.Canvas(r.v.s.pageID()); a != nil {
		if img, err := a.RenderImage(1); err == nil {
			r.img.Image = img
		} else {
			r.v.s.log.Debug("preview render failed", applog.Err(err))
		}
	}
	r.Layout(r.v.Size())
	r.img.Refresh()
	canvas.Refresh(r.v)
}

func (r *pageViewRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	vp := r.v.viewport()
	w, h := 0, 0
	a := r.v.s.store.Canvas(r.v.s.pageID())
	if a != nil {
		w, h = a.Size()
	}
	r.img.Move(fyne.NewPos(vp.X, vp.Y))
	r.img.Resize(fyne.NewSize(float32(w)*vp.Scale, float32(h)*vp.Scale))

	r.sel.Hide()
	if a == nil {
		return
	}
	id := a.ActiveObjectID()
	o, ok := a.Object(id)
	if id == "" || !ok {
		return
	}
	b := o.Bounds()
	x, y := vp.toView(vector.Pt{X: b.X, Y: b.Y})
	r.sel.Move(fyne.NewPos(x, y))
	r.sel.Resize(fyne.NewSize(float32(b.W)*vp.Scale, float32(b.H)*vp.Scale))
	r.sel.Show()
}
