/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend serves the editor over HTTP. Every open design gets its own
// editor session; requests against one design are handled one at a time.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"godesigner/internal/config"
	"godesigner/internal/editor"
	applog "godesigner/internal/log"
	"godesigner/internal/storage"
	"godesigner/internal/version"
)

// Server owns the sessions of all designs opened through the API.
type Server struct {
	cfg     config.AppConfig
	designs *storage.DesignRepository
	pages   *storage.PageRepository
	log     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// New builds a server on top of an opened storage gateway.
func New(cfg config.AppConfig, g storage.Gateway) *Server {
	return &Server{
		cfg:      cfg,
		designs:  storage.NewDesignRepository(g),
		pages:    storage.NewPageRepository(g),
		log:      applog.WithComponent("backend"),
		sessions: map[string]*session{},
	}
}

// Router wires middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "ok")
	})
	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"version": version.String()})
	})

	r.Route("/designs", func(r chi.Router) {
		r.Post("/", s.handleCreateDesign)
		r.Get("/", s.handleListDesigns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.handleGetDesign))
			r.Delete("/", s.handleDeleteDesign)
			r.Post("/undo", s.withSession(s.handleUndo))
			r.Post("/redo", s.withSession(s.handleRedo))
			r.Put("/active-page", s.withSession(s.handleSetActivePage))
			r.Post("/pages", s.withSession(s.handleAddPage))
			r.Route("/pages/{pageID}", func(r chi.Router) {
				r.Get("/", s.withSession(s.handleGetPage))
				r.Put("/", s.withSession(s.handleUpdatePage))
				r.Delete("/", s.withSession(s.handleDeletePage))
				r.Post("/duplicate", s.withSession(s.handleDuplicatePage))
				r.Get("/scene", s.withSession(s.handleGetScene))
				r.Get("/export", s.withSession(s.handleExport))
				r.Post("/objects", s.withSession(s.handleAddObject))
				r.Put("/active-layer", s.withSession(s.handleSetActiveLayer))
				r.Post("/layers/reorder", s.withSession(s.handleReorderLayers))
				r.Route("/layers/{layerID}", func(r chi.Router) {
					r.Put("/", s.withSession(s.handleUpdateLayer))
					r.Delete("/", s.withSession(s.handleDeleteLayer))
					r.Post("/visibility", s.withSession(s.handleToggleVisibility))
					r.Post("/lock", s.withSession(s.handleToggleLock))
				})
			})
		})
	})
	return r
}

// requestLogger logs one line per request through the application logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Start listens on the configured address until ctx is cancelled, then shuts
// down and flushes every session.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("shutdown", applog.Err(err))
	}
	return s.Close(shutdownCtx)
}

// Close flushes and drops every session.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = map[string]*session{}
	s.mu.Unlock()
	var errs []error
	for id, sess := range sessions {
		if err := sess.flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush design %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Flush saves every open session. It lets crash recovery treat the server as
// a single unit of pending work.
func (s *Server) Flush(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	var errs []error
	for _, sess := range sessions {
		if err := sess.flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) newStore(q *editor.Queue) *editor.Store {
	n := editor.LogNotifier{Log: s.log}
	return editor.NewStore(s.designs, s.pages, s.cfg, n, q)
}

// session returns the open session for a design, opening it on first use.
func (s *Server) session(ctx context.Context, id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}
	q := editor.NewQueue()
	st := s.newStore(q)
	if _, err := st.OpenDesign(ctx, id); err != nil {
		return nil, err
	}
	sess := &session{store: st, queue: q}
	s.sessions[id] = sess
	s.log.Debug("session opened", "design_id", id)
	return sess, nil
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// sessionHandler runs with the session of the {id} design locked.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

// withSession serializes requests per design and drains deferred work
// (scheduled saves and loads) before the lock is released.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.session(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		sess.mu.Lock()
		defer sess.mu.Unlock()
		defer sess.queue.Drain()
		h(w, r, sess)
	}
}
