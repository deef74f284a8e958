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

// Node is a placed shape used for hit-testing and rendering. Geometry is kept
// in local coordinates and mapped to the page by the node transform.
type Node interface {
	Bounds() Rect
	Transform() Affine2D
	SetTransform(Affine2D)
	Fill() Fill
	Stroke() Stroke
	SetFill(Fill)
	SetStroke(Stroke)
	Outline() Path
	Hit(p Pt) bool
}

type baseNode struct {
	xf     Affine2D
	fill   Fill
	stroke Stroke
}

func (b *baseNode) Transform() Affine2D     { return b.xf }
func (b *baseNode) SetTransform(m Affine2D) { b.xf = m }
func (b *baseNode) Fill() Fill              { return b.fill }
func (b *baseNode) Stroke() Stroke          { return b.stroke }
func (b *baseNode) SetFill(f Fill)          { b.fill = f }
func (b *baseNode) SetStroke(s Stroke)      { b.stroke = s }

// local maps a page point into node space; ok is false for degenerate transforms.
func (b *baseNode) local(p Pt) (Pt, bool) {
	inv, ok := b.xf.Invert()
	if !ok {
		return Pt{}, false
	}
	return inv.Apply(p), true
}

// RectNode draws an axis-aligned rectangle before transform.
type RectNode struct {
	baseNode
	rect Rect
}

func NewRect(r Rect, f Fill, s Stroke) *RectNode {
	return &RectNode{baseNode: baseNode{xf: Identity, fill: f, stroke: s}, rect: r}
}

func (n *RectNode) Bounds() Rect  { return n.xf.TransformRect(n.rect) }
func (n *RectNode) Outline() Path { return RectPath(n.rect).Transform(n.xf) }
func (n *RectNode) Hit(p Pt) bool {
	q, ok := n.local(p)
	return ok && n.rect.Contains(q)
}

// EllipseNode represents an ellipse inside rect.
type EllipseNode struct {
	baseNode
	rect Rect
}

func NewEllipse(r Rect, f Fill, s Stroke) *EllipseNode {
	return &EllipseNode{baseNode: baseNode{xf: Identity, fill: f, stroke: s}, rect: r}
}

func (n *EllipseNode) Bounds() Rect  { return n.xf.TransformRect(n.rect) }
func (n *EllipseNode) Outline() Path { return EllipsePath(n.rect).Transform(n.xf) }
func (n *EllipseNode) Hit(p Pt) bool {
	q, ok := n.local(p)
	if !ok {
		return false
	}
	// point-in-ellipse: ((x-cx)/rx)^2 + ((y-cy)/ry)^2 <= 1
	rx, ry := n.rect.W/2, n.rect.H/2
	if rx == 0 || ry == 0 {
		return false
	}
	c := n.rect.Center()
	dx := (q.X - c.X) / rx
	dy := (q.Y - c.Y) / ry
	return dx*dx+dy*dy <= 1
}

// PolygonNode is a closed polygon, e.g. a triangle.
type PolygonNode struct {
	baseNode
	pts []Pt
}

func NewPolygon(pts []Pt, f Fill, s Stroke) *PolygonNode {
	return &PolygonNode{baseNode: baseNode{xf: Identity, fill: f, stroke: s}, pts: append([]Pt(nil), pts...)}
}

func (n *PolygonNode) Bounds() Rect  { return n.xf.TransformRect(BoundsOf(n.pts...)) }
func (n *PolygonNode) Outline() Path { return PolygonPath(n.pts...).Transform(n.xf) }

// Hit uses the even-odd ray casting rule.
func (n *PolygonNode) Hit(p Pt) bool {
	q, ok := n.local(p)
	if !ok || len(n.pts) < 3 {
		return false
	}
	in := false
	for i, j := 0, len(n.pts)-1; i < len(n.pts); j, i = i, i+1 {
		a, b := n.pts[i], n.pts[j]
		if (a.Y > q.Y) != (b.Y > q.Y) && q.X < (b.X-a.X)*(q.Y-a.Y)/(b.Y-a.Y)+a.X {
			in = !in
		}
	}
	return in
}

// Group is a container for child nodes; hits are tested top-most first.
type Group struct {
	Children []Node
}

func NewGroup(children ...Node) *Group {
	return &Group{Children: append([]Node(nil), children...)}
}

func (g *Group) Bounds() Rect {
	var b Rect
	for i, c := range g.Children {
		if i == 0 {
			b = c.Bounds()
			continue
		}
		b = b.Union(c.Bounds())
	}
	return b
}

// HitIndex returns the index of the top-most child containing p, or -1.
func (g *Group) HitIndex(p Pt) int {
	for i := len(g.Children) - 1; i >= 0; i-- {
		if g.Children[i].Hit(p) {
			return i
		}
	}
	return -1
}
