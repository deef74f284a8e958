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
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"godesigner/internal/domain"
)

//go:embed schema/*.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemas    map[string]*gojsonschema.Schema
	schemaErr  error
)

func loadSchemas() (map[string]*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schemas = make(map[string]*gojsonschema.Schema)
		for _, name := range []string{"design", "page"} {
			data, err := schemaFS.ReadFile("schema/" + name + ".schema.json")
			if err != nil {
				schemaErr = err
				return
			}
			s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
			if err != nil {
				schemaErr = fmt.Errorf("compile %s schema: %w", name, err)
				return
			}
			schemas[name] = s
		}
	})
	return schemas, schemaErr
}

// validate checks doc against the named embedded schema; violations are ErrCorrupt.
func validate(name string, doc []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	res, err := all[name].Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrCorrupt, strings.Join(msgs, "; "))
	}
	return nil
}

// DesignRepository persists Design records keyed by design id.
type DesignRepository struct{ g Gateway }

func NewDesignRepository(g Gateway) *DesignRepository { return &DesignRepository{g: g} }

func (r *DesignRepository) Save(ctx context.Context, d domain.Design) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode design: %w", err)
	}
	return r.g.Put(ctx, StoreDesigns, d.ID, data)
}

// Load reads and validates a design. Records that fail the schema or the
// structural checks are ErrCorrupt.
func (r *DesignRepository) Load(ctx context.Context, id string) (domain.Design, error) {
	data, err := r.g.Get(ctx, StoreDesigns, id)
	if err != nil {
		return domain.Design{}, err
	}
	return decodeDesign(data)
}

func decodeDesign(data []byte) (domain.Design, error) {
	if err := validate("design", data); err != nil {
		return domain.Design{}, err
	}
	var d domain.Design
	if err := json.Unmarshal(data, &d); err != nil {
		return domain.Design{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i := range d.Pages {
		if d.Pages[i].Layers == nil {
			d.Pages[i].Layers = []domain.Layer{}
		}
	}
	if err := d.Validate(); err != nil {
		return domain.Design{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return d, nil
}

func (r *DesignRepository) Delete(ctx context.Context, id string) error {
	return r.g.Delete(ctx, StoreDesigns, id)
}

// List returns all readable designs, most recently updated first. Corrupt
// records are skipped.
func (r *DesignRepository) List(ctx context.Context) ([]domain.Design, error) {
	raw, err := r.g.ListByIndex(ctx, StoreDesigns, "", "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Design, 0, len(raw))
	for _, data := range raw {
		d, err := decodeDesign(data)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// PageRepository persists per-page scene snapshots keyed by "designID:pageID".
type PageRepository struct{ g Gateway }

func NewPageRepository(g Gateway) *PageRepository { return &PageRepository{g: g} }

// PageKey is the composite key of a page snapshot.
func PageKey(designID, pageID string) string { return designID + ":" + pageID }

func (r *PageRepository) Save(ctx context.Context, s domain.PageSnapshot) error {
	if s.DesignID == "" || s.PageID == "" {
		return errors.New("page snapshot needs design and page ids")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode page snapshot: %w", err)
	}
	return r.g.Put(ctx, StorePages, PageKey(s.DesignID, s.PageID), data)
}

// Load returns ErrNotFound when the page has never been saved.
func (r *PageRepository) Load(ctx context.Context, designID, pageID string) (domain.PageSnapshot, error) {
	data, err := r.g.Get(ctx, StorePages, PageKey(designID, pageID))
	if err != nil {
		return domain.PageSnapshot{}, err
	}
	return decodePage(data)
}

func decodePage(data []byte) (domain.PageSnapshot, error) {
	if err := validate("page", data); err != nil {
		return domain.PageSnapshot{}, err
	}
	var s domain.PageSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.PageSnapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}

func (r *PageRepository) Delete(ctx context.Context, designID, pageID string) error {
	return r.g.Delete(ctx, StorePages, PageKey(designID, pageID))
}

func (r *PageRepository) ListByDesign(ctx context.Context, designID string) ([]domain.PageSnapshot, error) {
	raw, err := r.g.ListByIndex(ctx, StorePages, IndexDesignID, designID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PageSnapshot, 0, len(raw))
	for _, data := range raw {
		s, err := decodePage(data)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// DeleteByDesign removes every snapshot of a design.
func (r *PageRepository) DeleteByDesign(ctx context.Context, designID string) error {
	snaps, err := r.ListByDesign(ctx, designID)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		if err := r.Delete(ctx, designID, s.PageID); err != nil {
			return err
		}
	}
	return nil
}
