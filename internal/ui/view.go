/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package ui hosts the desktop editor. The window itself needs the fyne build
// tag; the geometry and list helpers here build everywhere.
package ui

import (
	"strings"

	"godesigner/internal/domain"
	"godesigner/internal/vector"
)

// viewport maps a page into a widget area, centered and scaled to fit.
type viewport struct {
	X, Y  float32 // top-left of the page inside the widget
	Scale float32 // widget units per page unit
}

// fitPage letterboxes a pw x ph page into a w x h area.
func fitPage(w, h float32, pw, ph int) viewport {
	if pw <= 0 || ph <= 0 || w <= 0 || h <= 0 {
		return viewport{Scale: 1}
	}
	sx, sy := w/float32(pw), h/float32(ph)
	s := min(sx, sy)
	return viewport{X: (w - float32(pw)*s) / 2, Y: (h - float32(ph)*s) / 2, Scale: s}
}

// toPage converts a widget position to page coordinates.
func (v viewport) toPage(x, y float32) vector.Pt {
	return vector.Pt{X: float64((x - v.X) / v.Scale), Y: float64((y - v.Y) / v.Scale)}
}

// toView converts a page position to widget coordinates.
func (v viewport) toView(p vector.Pt) (float32, float32) {
	return v.X + float32(p.X)*v.Scale, v.Y + float32(p.Y)*v.Scale
}

// layerRow maps a list row to a layer index. The list shows the top-most
// layer first while layers are stored bottom first.
func layerRow(n, row int) int { return n - 1 - row }

// layerCaption is the text shown for a layer row.
func layerCaption(l domain.Layer) string {
	var b strings.Builder
	b.WriteString(l.Name)
	if !l.Visible {
		b.WriteString(" (hidden)")
	}
	if l.Locked {
		b.WriteString(" (locked)")
	}
	return b.String()
}

const recentMax = 10

// pushRecent moves id to the front of the recent designs list.
func pushRecent(items []string, id string) []string {
	id = strings.TrimSpace(id)
	if id == "" {
		return items
	}
	out := make([]string, 0, len(items)+1)
	out = append(out, id)
	for _, s := range items {
		if s != id && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	if len(out) > recentMax {
		out = out[:recentMax]
	}
	return out
}
