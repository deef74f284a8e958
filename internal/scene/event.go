/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

// EventType enumerates scene notifications.
type EventType string

const (
	ObjectAdded      EventType = "object:added"
	ObjectRemoved    EventType = "object:removed"
	ObjectModified   EventType = "object:modified"
	ObjectMoving     EventType = "object:moving"
	ObjectScaling    EventType = "object:scaling"
	ObjectRotating   EventType = "object:rotating"
	SelectionCreated EventType = "selection:created"
	SelectionUpdated EventType = "selection:updated"
	SelectionCleared EventType = "selection:cleared"
	Loaded           EventType = "scene:loaded"
)

// Gesture reports whether t is an intermediate frame of a drag, resize or rotate.
func (t EventType) Gesture() bool {
	return t == ObjectMoving || t == ObjectScaling || t == ObjectRotating
}

// Selection reports whether t is a selection change.
func (t EventType) Selection() bool {
	return t == SelectionCreated || t == SelectionUpdated || t == SelectionCleared
}

// Origin tells subscribers who caused a change.
type Origin uint8

const (
	// OriginUser is a direct user edit.
	OriginUser Origin = iota
	// OriginProgrammatic is editor-driven sync or a rollback.
	OriginProgrammatic
	// OriginReplay is a snapshot being applied by undo, redo or load.
	OriginReplay
)

func (o Origin) String() string {
	switch o {
	case OriginUser:
		return "user"
	case OriginProgrammatic:
		return "programmatic"
	case OriginReplay:
		return "replay"
	}
	return "unknown"
}

// Event is delivered synchronously to subscribers after the change is applied.
type Event struct {
	Type     EventType
	Origin   Origin
	ObjectID string // target; empty for SelectionCleared and Loaded
	Index    int    // z-index for ObjectAdded/ObjectRemoved
}
