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
	"encoding/json"
	"errors"
	"fmt"
)

// Store names used by the repositories.
const (
	StoreDesigns = "designs"
	StorePages   = "pages"
)

// IndexDesignID is the page-snapshot index.
const IndexDesignID = "designId"

var (
	ErrNotFound = errors.New("record not found")
	ErrCorrupt  = errors.New("record is corrupt")
)

// Gateway is a key-value store of JSON documents.
type Gateway interface {
	Put(ctx context.Context, store, key string, value []byte) error
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, store, key string) ([]byte, error)
	// Delete is idempotent.
	Delete(ctx context.Context, store, key string) error
	// ListByIndex returns every value in store whose top-level field
	// indexName equals indexValue, ordered by key. An empty indexName lists
	// the whole store.
	ListByIndex(ctx context.Context, store, indexName, indexValue string) ([][]byte, error)
	Close() error
}

// Indexes lists the fields each store maintains secondary indexes for.
// Backends with real indexes (sqlite, postgres) materialize these.
var Indexes = map[string][]string{
	StorePages: {IndexDesignID},
}

// indexValue extracts the string value of a top-level field. Non-string
// scalars are rendered with their JSON text.
func indexValue(doc []byte, field string) (string, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(doc, &top); err != nil {
		return "", false
	}
	raw, ok := top[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return string(raw), true
}

func checkArgs(store, key string) error {
	if store == "" || key == "" {
		return fmt.Errorf("storage: store and key are required")
	}
	return nil
}

func checkJSON(value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("storage: value is not valid JSON")
	}
	return nil
}
