/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package scene is the in-process scene graph the editor draws on: objects in
// z-order, a single active selection, change events, serialization and
// rendering to raster and SVG.
package scene

import (
	"errors"
	"image"

	"godesigner/internal/vector"
)

var (
	ErrObjectNotFound = errors.New("scene object not found")
	ErrDuplicateID    = errors.New("scene object id already present")
	ErrDecode         = errors.New("decode scene data")
	ErrInvalidObject  = errors.New("invalid scene object")
)

// Adapter is what the editor needs from a scene. *Canvas is the implementation.
type Adapter interface {
	AddObject(obj Object) (string, error)
	RemoveObject(id string) (Object, int, error)
	InsertObject(obj Object, index int) error
	DetachObject(id string) (Object, int, error)
	Object(id string) (Object, bool)
	Objects() []Object
	IndexOf(id string) int
	UpdateObject(id string, fn func(*Object)) error
	ModifyObject(id string, fn func(*Object)) error
	PreviewObject(id string, kind EventType, fn func(*Object)) error
	MoveObjectTo(id string, index int) error

	SetActiveObject(id string) error
	DiscardActiveObject()
	ActiveObjectID() string

	ToSerializable() ([]byte, error)
	LoadFromSerializable(data []byte) error

	Subscribe(fn func(Event)) (unsubscribe func())

	Ready() bool
	FindTarget(p vector.Pt) (string, bool)
	Background() string
	SetBackground(hex string) error
	Size() (w, h int)
	SetSize(w, h int)

	RenderImage(multiplier float64) (*image.RGBA, error)
	ToSVG() ([]byte, error)
}
