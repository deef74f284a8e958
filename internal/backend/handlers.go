/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"godesigner/internal/domain"
	"godesigner/internal/editor"
	"godesigner/internal/export"
	applog "godesigner/internal/log"
	"godesigner/internal/scene"
	"godesigner/internal/storage"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, scene.ErrDecode),
		errors.Is(err, scene.ErrInvalidObject):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, editor.ErrPageNotFound),
		errors.Is(err, editor.ErrLayerNotFound),
		errors.Is(err, scene.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrLastPage),
		errors.Is(err, editor.ErrLayerLocked),
		errors.Is(err, editor.ErrObjectPaired),
		errors.Is(err, scene.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, editor.ErrNotReady):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, applog.Err(err))
	} else {
		s.log.Debug("request rejected", "path", r.URL.Path, "status", code, applog.Err(err))
	}
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

func created(w http.ResponseWriter, r *http.Request, v any) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, v)
}

type designSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Pages     int    `json:"pages"`
	UpdatedAt string `json:"updatedAt"`
}

func (s *Server) handleCreateDesign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			s.renderError(w, r, err)
			return
		}
	}
	q := editor.NewQueue()
	st := s.newStore(q)
	d, err := st.CreateDesign(r.Context(), req.Name)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.mu.Lock()
	s.sessions[d.ID] = &session{store: st, queue: q}
	s.mu.Unlock()
	created(w, r, d)
}

func (s *Server) handleListDesigns(w http.ResponseWriter, r *http.Request) {
	list, err := s.designs.List(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	out := make([]designSummary, 0, len(list))
	for _, d := range list {
		out = append(out, designSummary{ID: d.ID, Name: d.Name, Pages: len(d.Pages), UpdatedAt: d.UpdatedAt.Format(time.RFC3339)})
	}
	render.JSON(w, r, out)
}

func (s *Server) handleGetDesign(w http.ResponseWriter, r *http.Request, sess *session) {
	d, ok := sess.store.Design()
	if !ok {
		s.renderError(w, r, editor.ErrNoDesign)
		return
	}
	render.JSON(w, r, d)
}

func (s *Server) handleDeleteDesign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.session(r.Context(), id)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	sess.mu.Lock()
	err = sess.store.DeleteDesign(r.Context(), id)
	sess.mu.Unlock()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.dropSession(id)
	render.NoContent(w, r)
}

type historyResponse struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request, sess *session) {
	s.step(w, r, sess, sess.store.Undo)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request, sess *session) {
	s.step(w, r, sess, sess.store.Redo)
}

func (s *Server) step(w http.ResponseWriter, r *http.Request, sess *session, fn func() bool) {
	if err := sess.activeCanvas(); err != nil {
		s.renderError(w, r, err)
		return
	}
	applied := fn()
	render.JSON(w, r, historyResponse{Applied: applied, CanUndo: sess.store.CanUndo(), CanRedo: sess.store.CanRedo()})
}

func (s *Server) handleSetActivePage(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		PageID string `json:"pageId"`
	}
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := sess.store.SetActivePage(r.Context(), req.PageID); err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"activePageId": sess.store.ActivePageID()})
}

type pageRequest struct {
	Name       string `json:"name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Background string `json:"background"`
}

func (req pageRequest) config() (domain.PageConfig, error) {
	if req.Width < 0 || req.Height < 0 {
		return domain.PageConfig{}, badRequest("page size must not be negative")
	}
	if req.Background != "" {
		if _, err := domain.ParseColor(req.Background); err != nil {
			return domain.PageConfig{}, badRequest("%v", err)
		}
	}
	return domain.PageConfig{Name: req.Name, Width: req.Width, Height: req.Height, Background: req.Background}, nil
}

func (s *Server) handleAddPage(w http.ResponseWriter, r *http.Request, sess *session) {
	var req pageRequest
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	cfg, err := req.config()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	p, err := sess.store.AddPage(cfg)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	created(w, r, p)
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request, sess *session) {
	p, err := sess.store.Page(chi.URLParam(r, "pageID"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, p)
}

// handleUpdatePage renames and resizes a page. Zero fields keep their value.
func (s *Server) handleUpdatePage(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID := chi.URLParam(r, "pageID")
	var req pageRequest
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	cfg, err := req.config()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	p, err := sess.store.Page(pageID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	next := p.Config
	if cfg.Name != "" {
		next.Name = cfg.Name
	}
	if cfg.Width > 0 {
		next.Width = cfg.Width
	}
	if cfg.Height > 0 {
		next.Height = cfg.Height
	}
	if cfg.Background != "" {
		next.Background = cfg.Background
	}
	if err := sess.store.UpdatePageConfig(pageID, next); err != nil {
		s.renderError(w, r, err)
		return
	}
	p, _ = sess.store.Page(pageID)
	render.JSON(w, r, p)
}

func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request, sess *session) {
	if err := sess.store.DeletePage(chi.URLParam(r, "pageID")); err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"activePageId": sess.store.ActivePageID()})
}

func (s *Server) handleDuplicatePage(w http.ResponseWriter, r *http.Request, sess *session) {
	p, err := sess.store.DuplicatePage(r.Context(), chi.URLParam(r, "pageID"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	created(w, r, p)
}

func (s *Server) handleGetScene(w http.ResponseWriter, r *http.Request, sess *session) {
	a, err := sess.canvas(chi.URLParam(r, "pageID"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data, err := a.ToSerializable()
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID := chi.URLParam(r, "pageID")
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.renderError(w, r, badRequest("%v", err))
		return
	}
	opt := export.DefaultOptions(s.cfg.Export)
	if v := r.URL.Query().Get("multiplier"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil || m <= 0 || m > 8 {
			s.renderError(w, r, badRequest("multiplier must be in (0, 8]"))
			return
		}
		opt.Multiplier = m
	}
	p, err := sess.store.Page(pageID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	opt.Name = p.Config.Name
	a, err := sess.canvas(pageID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	out, err := export.Render(a, f, opt)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", out.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	_, _ = w.Write(out.Data)
}

type objectRequest struct {
	Kind  domain.LayerKind `json:"kind"`
	Name  string           `json:"name"`
	Text  string           `json:"text"`
	Image string           `json:"image"` // base64 file content
}

func (s *Server) handleAddObject(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID := chi.URLParam(r, "pageID")
	var req objectRequest
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	if !req.Kind.Valid() {
		s.renderError(w, r, badRequest("unknown layer kind %q", req.Kind))
		return
	}
	if _, err := sess.canvas(pageID); err != nil {
		s.renderError(w, r, err)
		return
	}
	var (
		l   domain.Layer
		err error
	)
	switch req.Kind {
	case domain.KindText:
		l, err = sess.store.AddText(pageID, req.Text)
	case domain.KindImage:
		data, derr := base64.StdEncoding.DecodeString(req.Image)
		if derr != nil || len(data) == 0 {
			s.renderError(w, r, badRequest("image must be base64 encoded"))
			return
		}
		l, err = sess.store.AddImage(pageID, data, req.Name)
	default:
		l, err = sess.store.AddShape(pageID, req.Kind)
	}
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if req.Name != "" && req.Kind != domain.KindImage {
		if err := sess.store.RenameLayer(pageID, l.ID, req.Name); err == nil {
			l.Name = req.Name
		}
	}
	created(w, r, l)
}

type layerRequest struct {
	Name    *string  `json:"name"`
	Opacity *float64 `json:"opacity"`
}

func (s *Server) handleUpdateLayer(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID, layerID := chi.URLParam(r, "pageID"), chi.URLParam(r, "layerID")
	var req layerRequest
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		s.renderError(w, r, badRequest("layer name must not be empty"))
		return
	}
	if req.Opacity != nil {
		if _, err := sess.canvas(pageID); err != nil {
			s.renderError(w, r, err)
			return
		}
	}
	if req.Name != nil {
		if err := sess.store.RenameLayer(pageID, layerID, *req.Name); err != nil {
			s.renderError(w, r, err)
			return
		}
	}
	if req.Opacity != nil {
		if _, err := sess.store.SetLayerOpacity(pageID, layerID, *req.Opacity); err != nil {
			s.renderError(w, r, err)
			return
		}
	}
	s.renderLayer(w, r, sess, pageID, layerID)
}

func (s *Server) renderLayer(w http.ResponseWriter, r *http.Request, sess *session, pageID, layerID string) {
	p, err := sess.store.Page(pageID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	i := p.LayerIndex(layerID)
	if i < 0 {
		s.renderError(w, r, editor.ErrLayerNotFound)
		return
	}
	render.JSON(w, r, p.Layers[i])
}

func (s *Server) handleDeleteLayer(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID := chi.URLParam(r, "pageID")
	if _, err := sess.canvas(pageID); err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := sess.store.RemoveObject(pageID, chi.URLParam(r, "layerID")); err != nil {
		s.renderError(w, r, err)
		return
	}
	render.NoContent(w, r)
}

func (s *Server) handleToggleVisibility(w http.ResponseWriter, r *http.Request, sess *session) {
	s.toggle(w, r, sess, "visible", sess.store.ToggleLayerVisibility)
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request, sess *session) {
	s.toggle(w, r, sess, "locked", sess.store.ToggleLayerLock)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, sess *session, key string, fn func(pageID, layerID string) (bool, error)) {
	pageID := chi.URLParam(r, "pageID")
	if _, err := sess.canvas(pageID); err != nil {
		s.renderError(w, r, err)
		return
	}
	v, err := fn(pageID, chi.URLParam(r, "layerID"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{key: v})
}

func (s *Server) handleSetActiveLayer(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID := chi.URLParam(r, "pageID")
	var req struct {
		LayerID string `json:"layerId"`
	}
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	if _, err := sess.canvas(pageID); err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := sess.store.SetActiveLayer(pageID, req.LayerID); err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"activeLayerId": req.LayerID})
}

func (s *Server) handleReorderLayers(w http.ResponseWriter, r *http.Request, sess *session) {
	pageID := chi.URLParam(r, "pageID")
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := decode(r, &req); err != nil {
		s.renderError(w, r, err)
		return
	}
	if _, err := sess.canvas(pageID); err != nil {
		s.renderError(w, r, err)
		return
	}
	if err := sess.store.ReorderLayers(pageID, req.From, req.To); err != nil {
		s.renderError(w, r, err)
		return
	}
	p, err := sess.store.Page(pageID)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, p.Layers)
}
