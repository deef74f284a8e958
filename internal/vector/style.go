/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

// Styles and paint definitions.

import "image/color"

type Fill struct {
	Color   color.NRGBA
	Enabled bool
}

type Stroke struct {
	Color   color.NRGBA
	Width   float64
	Enabled bool
}

var (
	Black       = color.NRGBA{0, 0, 0, 255}
	White       = color.NRGBA{255, 255, 255, 255}
	Transparent = color.NRGBA{}
)

// Fade scales the alpha of c by opacity, clamped to [0,1].
func Fade(c color.NRGBA, opacity float64) color.NRGBA {
	switch {
	case opacity <= 0:
		c.A = 0
	case opacity < 1:
		c.A = uint8(float64(c.A)*opacity + 0.5)
	}
	return c
}

// Premultiply converts c to the alpha-premultiplied form image/draw expects.
func Premultiply(c color.NRGBA) color.RGBA {
	r, g, b, a := c.RGBA()
	return color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
}
