/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemGateway stores each record as <root>/<store>/<escaped key>.json.
type FilesystemGateway struct {
	root string
}

func NewFilesystemGateway(root string) (*FilesystemGateway, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("filesystem root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FilesystemGateway{root: root}, nil
}

func (g *FilesystemGateway) path(store, key string) (string, error) {
	if err := checkArgs(store, key); err != nil {
		return "", err
	}
	s := url.PathEscape(store)
	if s == "." || s == ".." {
		return "", fmt.Errorf("invalid store name %q", store)
	}
	return filepath.Join(g.root, s, url.PathEscape(key)+".json"), nil
}

// Put writes to a temp file, syncs and renames so readers never see a torn record.
func (g *FilesystemGateway) Put(_ context.Context, store, key string, value []byte) error {
	p, err := g.path(store, key)
	if err != nil {
		return err
	}
	if err := checkJSON(value); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("ensure store dir: %w", err)
	}
	tmp := p + ".tmp"
	if err := writeFileSync(tmp, value); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s/%s: %w", store, key, err)
	}
	return nil
}

func (g *FilesystemGateway) Get(_ context.Context, store, key string) ([]byte, error) {
	p, err := g.path(store, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", store, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", store, key, err)
	}
	return data, nil
}

func (g *FilesystemGateway) Delete(_ context.Context, store, key string) error {
	p, err := g.path(store, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", store, key, err)
	}
	return nil
}

func (g *FilesystemGateway) ListByIndex(_ context.Context, store, indexName, indexValue string) ([][]byte, error) {
	dir := filepath.Join(g.root, url.PathEscape(store))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", store, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	var out [][]byte
	for _, n := range names {
		data, err := os.ReadFile(filepath.Join(dir, n))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue // deleted while listing
			}
			return nil, fmt.Errorf("read %s/%s: %w", store, n, err)
		}
		if got, ok := indexValueOf(data, indexName); ok && got == indexValue {
			out = append(out, data)
		}
	}
	return out, nil
}

func (g *FilesystemGateway) Close() error { return nil }

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
