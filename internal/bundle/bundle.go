/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */


// Package bundle packs a design and its page snapshots into a single zip
// archive and installs such archives back into storage.
package bundle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"godesigner/internal/domain"
	applog "godesigner/internal/log"
	"godesigner/internal/storage"
)

const (
	manifestName = "bundle.manifest.txt"
	designName   = "design.json"
	pagesDir     = "pages/"
)

// ErrExists is returned by Install when the bundled design id is already stored.
var ErrExists = errors.New("design already exists")

// Export writes design id and every stored page snapshot into destZipPath.
// Pages that were never saved are simply absent from the archive.
func Export(ctx context.Context, g storage.Gateway, id, destZipPath string) error {
	l := applog.WithOperation(applog.WithComponent("bundle"), "export").With(slog.String("design", id))
	if strings.TrimSpace(id) == "" {
		return errors.New("design id is required")
	}
	if strings.TrimSpace(destZipPath) == "" {
		return errors.New("destination path is required")
	}
	d, err := storage.NewDesignRepository(g).Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load design: %w", err)
	}
	snaps, err := storage.NewPageRepository(g).ListByDesign(ctx, id)
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destZipPath), 0o755); err != nil {
		return fmt.Errorf("ensure zip dir: %w", err)
	}
	_ = os.Remove(destZipPath)
	zf, err := os.Create(destZipPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	manifest := fmt.Sprintf("GoDesigner Bundle\nCreated: %s\nDesign: %s (%s)\nPages: %d\n",
		time.Now().Format(time.RFC3339), d.Name, d.ID, len(d.Pages))
	if err := writeEntry(zw, manifestName, []byte(manifest)); err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	doc, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode design: %w", err)
	}
	if err := writeEntry(zw, designName, doc); err != nil {
		return fmt.Errorf("add design: %w", err)
	}
	for _, s := range snaps {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode page %s: %w", s.PageID, err)
		}
		if err := writeEntry(zw, pagesDir+s.PageID+".json", data); err != nil {
			l.Error("zip build failed", applog.Err(err))
			return fmt.Errorf("add page %s: %w", s.PageID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	l.Info("bundle exported", slog.Int("pages", len(snaps)), slog.String("zip", destZipPath))
	return nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Install reads a bundle and stores its design and snapshots. Snapshots for
// pages the design does not list are skipped. It returns the design and the
// number of snapshots stored.
func Install(ctx context.Context, g storage.Gateway, packZipPath string) (domain.Design, int, error) {
	l := applog.WithOperation(applog.WithComponent("bundle"), "install").With(slog.String("zip", packZipPath))
	if strings.TrimSpace(packZipPath) == "" {
		return domain.Design{}, 0, errors.New("bundle path is required")
	}
	r, err := zip.OpenReader(packZipPath)
	if err != nil {
		return domain.Design{}, 0, fmt.Errorf("open bundle: %w", err)
	}
	defer func() { _ = r.Close() }()

	var (
		d     domain.Design
		found bool
		snaps []domain.PageSnapshot
	)
	for _, f := range r.File {
		name := path.Clean(f.Name)
		switch {
		case name == designName:
			if err := readJSON(f, &d); err != nil {
				return domain.Design{}, 0, fmt.Errorf("%w: design: %v", storage.ErrCorrupt, err)
			}
			found = true
		case strings.HasPrefix(name, pagesDir) && path.Ext(name) == ".json" && !strings.Contains(name[len(pagesDir):], "/"):
			var s domain.PageSnapshot
			if err := readJSON(f, &s); err != nil {
				return domain.Design{}, 0, fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, name, err)
			}
			snaps = append(snaps, s)
		}
	}
	if !found {
		return domain.Design{}, 0, fmt.Errorf("%w: bundle has no %s", storage.ErrCorrupt, designName)
	}
	if err := d.Validate(); err != nil {
		return domain.Design{}, 0, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}

	designs := storage.NewDesignRepository(g)
	if _, err := designs.Load(ctx, d.ID); err == nil {
		return domain.Design{}, 0, fmt.Errorf("%w: %s", ErrExists, d.ID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.Design{}, 0, err
	}

	pages := storage.NewPageRepository(g)
	installed := 0
	for _, s := range snaps {
		if s.DesignID != d.ID || d.PageIndex(s.PageID) < 0 {
			l.Warn("skip foreign page", slog.String("page", s.PageID))
			continue
		}
		if err := pages.Save(ctx, s); err != nil {
			return domain.Design{}, installed, fmt.Errorf("save page %s: %w", s.PageID, err)
		}
		installed++
	}
	// Design last: a stored design always has its snapshots.
	if err := designs.Save(ctx, d); err != nil {
		return domain.Design{}, installed, fmt.Errorf("save design: %w", err)
	}
	l.Info("bundle installed", slog.String("design", d.ID), slog.Int("pages", installed))
	return d, installed, nil
}

func readJSON(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
