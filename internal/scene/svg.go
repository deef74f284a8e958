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
	"bytes"
	"fmt"

	"godesigner/internal/domain"
	"godesigner/internal/vector"
)

// ToSVG serializes the scene as a standalone SVG document in page units.
func (c *Canvas) ToSVG() ([]byte, error) {
	c.mu.RLock()
	objs := append([]Object(nil), c.objects...)
	bg, w, h := c.bg, c.w, c.h
	c.mu.RUnlock()

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n", w, h, w, h)
	wf("  <rect x=\"0\" y=\"0\" width=\"%d\" height=\"%d\"%s/>\n", w, h, svgPaint("fill", bg))

	for _, o := range objs {
		if !o.Visible {
			continue
		}
		attrs := fmt.Sprintf(" transform=\"%s\" opacity=\"%g\"", svgMatrix(o.Placement()), vector.Round(o.Opacity, 3))
		stroke := ""
		if o.Stroke != "" && o.StrokeWidth > 0 {
			stroke = fmt.Sprintf("%s stroke-width=\"%g\"", svgPaint("stroke", o.Stroke), o.StrokeWidth)
		}
		switch o.Type {
		case TypeRect:
			wf("  <rect id=\"%s\" x=\"0\" y=\"0\" width=\"%g\" height=\"%g\"%s%s%s/>\n", escAttr(o.ID), o.Width, o.Height, svgPaint("fill", o.Fill), stroke, attrs)
		case TypeCircle:
			wf("  <ellipse id=\"%s\" cx=\"%g\" cy=\"%g\" rx=\"%g\" ry=\"%g\"%s%s%s/>\n", escAttr(o.ID), o.Width/2, o.Height/2, o.Width/2, o.Height/2, svgPaint("fill", o.Fill), stroke, attrs)
		case TypeTriangle:
			pts := vector.TrianglePoints(o.Box())
			wf("  <polygon id=\"%s\" points=\"%g,%g %g,%g %g,%g\"%s%s%s/>\n", escAttr(o.ID), pts[0].X, pts[0].Y, pts[1].X, pts[1].Y, pts[2].X, pts[2].Y, svgPaint("fill", o.Fill), stroke, attrs)
		case TypeImage:
			wf("  <image id=\"%s\" x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"none\" xlink:href=\"%s\"%s/>\n", escAttr(o.ID), o.Width, o.Height, escAttr(o.Src), attrs)
		case TypeText:
			family := o.FontFamily
			if family == "" {
				family = "sans-serif"
			}
			wf("  <text id=\"%s\" font-family=\"%s\" font-size=\"%g\"%s%s>", escAttr(o.ID), escAttr(family), o.FontSize, svgPaint("fill", o.Fill), attrs)
			for i, ln := range textLines(o.Text) {
				wf("<tspan x=\"0\" y=\"%g\">%s</tspan>", vector.Round(o.FontSize*(0.85+float64(i)*lineHeight), 3), escText(ln))
			}
			wf("</text>\n")
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

func svgMatrix(m vector.Affine2D) string {
	r := func(v float64) float64 { return vector.Round(v, 6) }
	return fmt.Sprintf("matrix(%g %g %g %g %g %g)", r(m.A), r(m.B), r(m.C), r(m.D), r(m.E), r(m.F))
}

// svgPaint renders a fill or stroke attribute; translucent colours get a
// separate *-opacity attribute since SVG 1.1 has no 8-digit hex.
func svgPaint(attr, hex string) string {
	c, err := domain.ParseColor(hex)
	if err != nil || c.A == 0 {
		return fmt.Sprintf(" %s=\"none\"", attr)
	}
	s := fmt.Sprintf(" %s=\"#%02x%02x%02x\"", attr, c.R, c.G, c.B)
	if c.A < 255 {
		s += fmt.Sprintf(" %s-opacity=\"%g\"", attr, vector.Round(float64(c.A)/255, 3))
	}
	return s
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
