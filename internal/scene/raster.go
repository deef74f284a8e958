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
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"godesigner/internal/domain"
	"godesigner/internal/vector"
)

// lineHeight is the text line advance relative to the font size.
const lineHeight = 1.16

var face = basicfont.Face7x13

func textLines(s string) []string { return strings.Split(s, "\n") }

// textAdvance estimates the width of s at size using the fixed-width face.
func textAdvance(s string, size float64) float64 {
	longest := 0
	for _, ln := range textLines(s) {
		longest = max(longest, utf8.RuneCountInString(ln))
	}
	return float64(longest*face.Advance) * size / float64(face.Height)
}

// RenderImage rasterizes the scene at multiplier times its page size.
func (c *Canvas) RenderImage(multiplier float64) (*image.RGBA, error) {
	if multiplier <= 0 {
		multiplier = 1
	}
	c.mu.RLock()
	objs := append([]Object(nil), c.objects...)
	bg, w, h := c.bg, c.w, c.h
	c.mu.RUnlock()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: empty page size %dx%d", w, h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(math.Ceil(float64(w)*multiplier)), int(math.Ceil(float64(h)*multiplier))))
	bgc, err := domain.ParseColor(bg)
	if err != nil {
		return nil, fmt.Errorf("render background: %w", err)
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bgc), image.Point{}, draw.Src)

	view := vector.Scale(multiplier, multiplier)
	for _, o := range objs {
		if !o.Visible || o.Opacity <= 0 {
			continue
		}
		m := view.Mul(o.Placement())
		switch o.Type {
		case TypeText:
			drawText(dst, o, m)
		case TypeImage:
			if err := drawImage(dst, o, m); err != nil {
				c.log.Warn("skip unrenderable image", "object", o.ID, "err", err)
			}
		default:
			drawShape(dst, o, m, multiplier)
		}
	}
	return dst, nil
}

func aff3(m vector.Affine2D) f64.Aff3 { return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F} }

func paint(hex string, opacity float64) (color.NRGBA, bool) {
	c, err := domain.ParseColor(hex)
	if err != nil {
		return color.NRGBA{}, false
	}
	c = vector.Fade(c, opacity)
	return c, c.A > 0
}

func drawShape(dst *image.RGBA, o Object, m vector.Affine2D, multiplier float64) {
	n := o.Node()
	n.SetTransform(m)
	outline := n.Outline()
	if col, ok := paint(o.Fill, o.Opacity); ok {
		fillPath(dst, outline, col)
	}
	if o.Stroke == "" || o.StrokeWidth <= 0 {
		return
	}
	if col, ok := paint(o.Stroke, o.Opacity); ok {
		width := o.StrokeWidth * multiplier * (math.Abs(o.ScaleX) + math.Abs(o.ScaleY)) / 2
		strokePath(dst, outline, width, col)
	}
}

func newRasterizer(dst *image.RGBA) *xvector.Rasterizer {
	b := dst.Bounds()
	z := xvector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	return z
}

func fillPath(dst *image.RGBA, p vector.Path, col color.NRGBA) {
	z := newRasterizer(dst)
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			z.MoveTo(float32(d[0]), float32(d[1]))
		case vector.LineTo:
			z.LineTo(float32(d[0]), float32(d[1]))
		case vector.QuadTo:
			z.QuadTo(float32(d[0]), float32(d[1]), float32(d[2]), float32(d[3]))
		case vector.CubicTo:
			z.CubeTo(float32(d[0]), float32(d[1]), float32(d[2]), float32(d[3]), float32(d[4]), float32(d[5]))
		case vector.Close:
			z.ClosePath()
		}
	}
	z.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

// flatten converts p into polylines, subdividing curves.
func flatten(p vector.Path) [][]vector.Pt {
	const steps = 16
	var out [][]vector.Pt
	var cur []vector.Pt
	var start vector.Pt
	last := func() vector.Pt { return cur[len(cur)-1] }
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			if len(cur) > 1 {
				out = append(out, cur)
			}
			start = vector.Pt{X: d[0], Y: d[1]}
			cur = []vector.Pt{start}
		case vector.LineTo:
			cur = append(cur, vector.Pt{X: d[0], Y: d[1]})
		case vector.QuadTo:
			p0 := last()
			for i := 1; i <= steps; i++ {
				t := float64(i) / steps
				u := 1 - t
				cur = append(cur, vector.Pt{
					X: u*u*p0.X + 2*u*t*d[0] + t*t*d[2],
					Y: u*u*p0.Y + 2*u*t*d[1] + t*t*d[3],
				})
			}
		case vector.CubicTo:
			p0 := last()
			for i := 1; i <= steps; i++ {
				t := float64(i) / steps
				u := 1 - t
				cur = append(cur, vector.Pt{
					X: u*u*u*p0.X + 3*u*u*t*d[0] + 3*u*t*t*d[2] + t*t*t*d[4],
					Y: u*u*u*p0.Y + 3*u*u*t*d[1] + 3*u*t*t*d[3] + t*t*t*d[5],
				})
			}
		case vector.Close:
			cur = append(cur, start)
		}
	}
	if len(cur) > 1 {
		out = append(out, cur)
	}
	return out
}

// strokePath draws each segment as a quad and each vertex as an octagon. All
// sub-shapes share one winding so overlaps merge instead of cancelling.
func strokePath(dst *image.RGBA, p vector.Path, width float64, col color.NRGBA) {
	hw := width / 2
	z := newRasterizer(dst)
	for _, line := range flatten(p) {
		for i := 1; i < len(line); i++ {
			a, b := line[i-1], line[i]
			l := vector.Dist(a, b)
			if l == 0 {
				continue
			}
			nx, ny := -(b.Y-a.Y)/l*hw, (b.X-a.X)/l*hw
			z.MoveTo(float32(a.X+nx), float32(a.Y+ny))
			z.LineTo(float32(b.X+nx), float32(b.Y+ny))
			z.LineTo(float32(b.X-nx), float32(b.Y-ny))
			z.LineTo(float32(a.X-nx), float32(a.Y-ny))
			z.ClosePath()
		}
		for _, v := range line {
			for k := 0; k < 8; k++ {
				ang := -float64(k) * math.Pi / 4
				x, y := float32(v.X+hw*math.Cos(ang)), float32(v.Y+hw*math.Sin(ang))
				if k == 0 {
					z.MoveTo(x, y)
					continue
				}
				z.LineTo(x, y)
			}
			z.ClosePath()
		}
	}
	z.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

func drawText(dst *image.RGBA, o Object, m vector.Affine2D) {
	col, ok := paint(o.Fill, o.Opacity)
	if !ok || o.Text == "" {
		return
	}
	lines := textLines(o.Text)
	longest := 0
	for _, ln := range lines {
		longest = max(longest, utf8.RuneCountInString(ln))
	}
	step := int(math.Round(float64(face.Height) * lineHeight))
	tw, th := max(1, longest*face.Advance), len(lines)*step
	glyphs := image.NewRGBA(image.Rect(0, 0, tw, th))
	d := font.Drawer{Dst: glyphs, Src: image.NewUniform(col), Face: face}
	for i, ln := range lines {
		d.Dot = fixed.P(0, face.Ascent+i*step)
		d.DrawString(ln)
	}
	k := o.FontSize / float64(face.Height)
	full := m.Mul(vector.Scale(k, k))
	xdraw.BiLinear.Transform(dst, aff3(full), glyphs, glyphs.Bounds(), xdraw.Over, nil)
}

func drawImage(dst *image.RGBA, o Object, m vector.Affine2D) error {
	img, err := decodeSource(o.Src)
	if err != nil {
		return err
	}
	b := img.Bounds()
	if b.Empty() || o.Width <= 0 || o.Height <= 0 {
		return nil
	}
	full := m.Mul(vector.Scale(o.Width/float64(b.Dx()), o.Height/float64(b.Dy()))).Mul(vector.Translate(-float64(b.Min.X), -float64(b.Min.Y)))
	var opts *xdraw.Options
	if o.Opacity < 1 {
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(o.Opacity*255 + 0.5)})}
	}
	xdraw.CatmullRom.Transform(dst, aff3(full), img, b, xdraw.Over, opts)
	return nil
}
