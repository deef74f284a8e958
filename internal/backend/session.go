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
	"context"
	"fmt"
	"sync"

	"godesigner/internal/editor"
	"godesigner/internal/scene"
)

// session is one open design. The store is not safe for concurrent use, so
// every access holds mu.
type session struct {
	mu    sync.Mutex
	store *editor.Store
	queue *editor.Queue
}

// canvas returns the loaded canvas of a page, mounting a headless one on
// first use. The mount defers the snapshot load, so the queue is drained
// right away.
func (sess *session) canvas(pageID string) (scene.Adapter, error) {
	if a := sess.store.Canvas(pageID); a != nil && sess.store.BindingState(pageID) == editor.Loaded {
		return a, nil
	}
	if sess.store.Canvas(pageID) == nil {
		if _, err := sess.store.MountNewCanvas(pageID); err != nil {
			return nil, err
		}
	}
	sess.queue.Drain()
	if sess.store.BindingState(pageID) != editor.Loaded {
		return nil, fmt.Errorf("%w: page %s", editor.ErrNotReady, pageID)
	}
	return sess.store.Canvas(pageID), nil
}

// activeCanvas makes sure the active page has a timeline to undo against.
func (sess *session) activeCanvas() error {
	id := sess.store.ActivePageID()
	if id == "" {
		return editor.ErrNoDesign
	}
	_, err := sess.canvas(id)
	return err
}

func (sess *session) flush(ctx context.Context) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.queue.Drain()
	return sess.store.Flush(ctx)
}
