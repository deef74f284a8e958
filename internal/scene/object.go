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

import (
	"godesigner/internal/vector"
)

// Type names the primitive an Object renders as.
type Type string

const (
	TypeText     Type = "text"
	TypeImage    Type = "image"
	TypeRect     Type = "rect"
	TypeCircle   Type = "circle"
	TypeTriangle Type = "triangle"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeRect, TypeCircle, TypeTriangle:
		return true
	}
	return false
}

// Object is one renderable primitive. Geometry is an unscaled Width×Height box
// anchored at Left/Top, scaled by ScaleX/ScaleY and rotated by Angle degrees
// around the anchor.
type Object struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`

	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ScaleX float64 `json:"scaleX"`
	ScaleY float64 `json:"scaleY"`
	Angle  float64 `json:"angle"`

	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`

	Visible       bool `json:"visible"`
	Selectable    bool `json:"selectable"`
	Evented       bool `json:"evented"`
	HasControls   bool `json:"hasControls"`
	LockMovementX bool `json:"lockMovementX"`
	LockMovementY bool `json:"lockMovementY"`
	LockScalingX  bool `json:"lockScalingX"`
	LockScalingY  bool `json:"lockScalingY"`
	LockRotation  bool `json:"lockRotation"`

	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Src        string  `json:"src,omitempty"`
}

// NewObject returns an interactive object of type t with neutral defaults.
func NewObject(t Type) Object {
	o := Object{
		Type:        t,
		Width:       100,
		Height:      100,
		ScaleX:      1,
		ScaleY:      1,
		Fill:        "#cccccc",
		Opacity:     1,
		Visible:     true,
		Selectable:  true,
		Evented:     true,
		HasControls: true,
	}
	if t == TypeText {
		o.Fill = "#000000"
		o.Text = "Text"
		o.FontSize = 24
		o.FontFamily = "sans-serif"
		o.Width, o.Height = 0, 0
		o.fitText()
	}
	return o
}

// fitText sizes a text box to its content when no explicit width is set.
func (o *Object) fitText() {
	if o.Type != TypeText {
		return
	}
	if o.FontSize <= 0 {
		o.FontSize = 24
	}
	if o.Width <= 0 {
		o.Width = textAdvance(o.Text, o.FontSize)
		o.Height = o.FontSize * lineHeight * float64(len(textLines(o.Text)))
	}
}

// normalize fills zero values that would make an object unrenderable.
func (o *Object) normalize() {
	if o.ScaleX == 0 {
		o.ScaleX = 1
	}
	if o.ScaleY == 0 {
		o.ScaleY = 1
	}
	o.Opacity = clamp01(o.Opacity)
}

// Placement returns the local-to-page transform.
func (o Object) Placement() vector.Affine2D {
	return vector.Placement(o.Left, o.Top, o.ScaleX, o.ScaleY, o.Angle)
}

// Box is the unscaled local box.
func (o Object) Box() vector.Rect { return vector.R(0, 0, o.Width, o.Height) }

// Bounds is the page-space bounding box.
func (o Object) Bounds() vector.Rect { return o.Placement().TransformRect(o.Box()) }

// Node builds the hit-test and render geometry for o.
func (o Object) Node() vector.Node {
	var n vector.Node
	switch o.Type {
	case TypeCircle:
		n = vector.NewEllipse(o.Box(), vector.Fill{}, vector.Stroke{})
	case TypeTriangle:
		n = vector.NewPolygon(vector.TrianglePoints(o.Box()), vector.Fill{}, vector.Stroke{})
	default:
		n = vector.NewRect(o.Box(), vector.Fill{}, vector.Stroke{})
	}
	n.SetTransform(o.Placement())
	return n
}

// Locked reports whether every transform handle is locked.
func (o Object) Locked() bool {
	return o.LockMovementX && o.LockMovementY && o.LockScalingX && o.LockScalingY && o.LockRotation
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
