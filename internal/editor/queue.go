/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import "sync"

// Deferrer schedules work to run after the current event handler returns.
type Deferrer interface {
	Defer(fn func())
}

// Immediate runs deferred work synchronously. Handy for one-shot CLI commands.
type Immediate struct{}

func (Immediate) Defer(fn func()) { fn() }

// maxDrainRounds bounds how often Drain picks up work queued by the tasks it
// ran, so a task that keeps re-deferring itself cannot spin forever.
const maxDrainRounds = 32

// Queue is a FIFO of deferred tasks drained explicitly by the owner's loop.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) Defer(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Drain runs queued tasks in order, including tasks queued while draining,
// and returns how many ran.
func (q *Queue) Drain() int {
	n := 0
	for round := 0; round < maxDrainRounds; round++ {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			break
		}
		for _, fn := range batch {
			fn()
			n++
		}
	}
	return n
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
