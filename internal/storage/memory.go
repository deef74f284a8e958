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
	"fmt"
	"sort"
	"sync"
)

// MemoryGateway keeps records in process memory.
type MemoryGateway struct {
	mu     sync.RWMutex
	stores map[string]map[string][]byte
}

func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{stores: make(map[string]map[string][]byte)}
}

func (m *MemoryGateway) Put(_ context.Context, store, key string, value []byte) error {
	if err := checkArgs(store, key); err != nil {
		return err
	}
	if err := checkJSON(value); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stores[store]
	if s == nil {
		s = make(map[string][]byte)
		m.stores[store] = s
	}
	s[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryGateway) Get(_ context.Context, store, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.stores[store][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", store, key, ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryGateway) Delete(_ context.Context, store, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores[store], key)
	return nil
}

func (m *MemoryGateway) ListByIndex(_ context.Context, store, indexName, indexValue string) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.stores[store]))
	for k := range m.stores[store] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out [][]byte
	for _, k := range keys {
		v := m.stores[store][k]
		if got, ok := indexValueOf(v, indexName); ok && got == indexValue {
			out = append(out, append([]byte(nil), v...))
		}
	}
	return out, nil
}

func (m *MemoryGateway) Close() error { return nil }

// indexValueOf treats an empty index name as "match everything".
func indexValueOf(doc []byte, field string) (string, bool) {
	if field == "" {
		return "", true
	}
	return indexValue(doc, field)
}
