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

// Basic 2D geometry and transforms shared by hit-testing, rasterizing and the
// vector exporters. Coordinates are page pixels, y pointing down.

import "math"

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by min corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt    { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt    { return Pt{r.X + r.W, r.Y + r.H} }
func (r Rect) Center() Pt { return Pt{r.X + r.W/2, r.Y + r.H/2} }
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Corners returns the four corners clockwise from the min corner.
func (r Rect) Corners() [4]Pt {
	return [4]Pt{{r.X, r.Y}, {r.X + r.W, r.Y}, {r.X + r.W, r.Y + r.H}, {r.X, r.Y + r.H}}
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Intersects reports whether the two rects overlap.
func (r Rect) Intersects(o Rect) bool {
	return r.X <= o.X+o.W && o.X <= r.X+r.W && r.Y <= o.Y+o.H && o.Y <= r.Y+r.H
}

// BoundsOf returns the bounding box of pts; the zero Rect when pts is empty.
func BoundsOf(pts ...Pt) Rect {
	if len(pts) == 0 {
		return Rect{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

// Mul returns m·n, i.e. n is applied first.
func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Invert returns the inverse and false when m is singular.
func (m Affine2D) Invert() (Affine2D, bool) {
	det := m.A*m.D - m.B*m.C
	if det == 0 {
		return Identity, false
	}
	inv := 1 / det
	return Affine2D{
		A: m.D * inv,
		B: -m.B * inv,
		C: -m.C * inv,
		D: m.A * inv,
		E: (m.C*m.F - m.D*m.E) * inv,
		F: (m.B*m.E - m.A*m.F) * inv,
	}, true
}

// TransformRect returns the bounds of r after applying m.
func (m Affine2D) TransformRect(r Rect) Rect {
	c := r.Corners()
	return BoundsOf(m.Apply(c[0]), m.Apply(c[1]), m.Apply(c[2]), m.Apply(c[3]))
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }
func Rotate(rad float64) Affine2D {
	c, s := math.Cos(rad), math.Sin(rad)
	return Affine2D{A: c, B: s, C: -s, D: c}
}

// Placement builds the local-to-page transform of an object whose unscaled
// box is anchored at (left, top), scaled by sx/sy and rotated by deg around
// that anchor.
func Placement(left, top, sx, sy, deg float64) Affine2D {
	return Translate(left, top).Mul(Rotate(deg * math.Pi / 180)).Mul(Scale(sx, sy))
}

// Round rounds v to n decimal places deterministically.
func Round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
