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

// Path commands and shapes.

import "math"

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float64 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float64{x, y}})
}
func (p *Path) LineTo(x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float64{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float64{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float64) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float64{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// points returns the number of coordinate pairs carried by op.
func (op PathOp) points() int {
	switch op {
	case MoveTo, LineTo:
		return 1
	case QuadTo:
		return 2
	case CubicTo:
		return 3
	}
	return 0
}

// Transform returns a copy of p with every point mapped through m.
func (p Path) Transform(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		for k := 0; k < c.Op.points(); k++ {
			q := m.Apply(Pt{c.Data[2*k], c.Data[2*k+1]})
			c.Data[2*k], c.Data[2*k+1] = q.X, q.Y
		}
		out.Cmds[i] = c
	}
	return out
}

// Bounds approximates the bounding box by its control points, which is
// enough for selection rectangles and page fitting.
func (p Path) Bounds() Rect {
	var pts []Pt
	for _, c := range p.Cmds {
		for k := 0; k < c.Op.points(); k++ {
			pts = append(pts, Pt{c.Data[2*k], c.Data[2*k+1]})
		}
	}
	return BoundsOf(pts...)
}

// kappa places cubic control points for a quarter ellipse.
const kappa = 0.5522847498

// RectPath outlines r clockwise.
func RectPath(r Rect) Path {
	var p Path
	p.MoveTo(r.X, r.Y)
	p.LineTo(r.X+r.W, r.Y)
	p.LineTo(r.X+r.W, r.Y+r.H)
	p.LineTo(r.X, r.Y+r.H)
	p.Close()
	return p
}

// EllipsePath outlines the ellipse inscribed in r with four cubic segments.
func EllipsePath(r Rect) Path {
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	rx, ry := r.W/2, r.H/2
	ox, oy := rx*kappa, ry*kappa
	var p Path
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	p.CubicTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	p.CubicTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	p.CubicTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	p.Close()
	return p
}

// PolygonPath outlines the closed polygon through pts.
func PolygonPath(pts ...Pt) Path {
	var p Path
	for i, q := range pts {
		if i == 0 {
			p.MoveTo(q.X, q.Y)
			continue
		}
		p.LineTo(q.X, q.Y)
	}
	if len(pts) > 0 {
		p.Close()
	}
	return p
}

// TrianglePoints returns the isosceles triangle inscribed in r, apex at the top.
func TrianglePoints(r Rect) []Pt {
	return []Pt{{r.X + r.W/2, r.Y}, {r.X + r.W, r.Y + r.H}, {r.X, r.Y + r.H}}
}

// Dist returns the euclidean distance between a and b.
func Dist(a, b Pt) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }
