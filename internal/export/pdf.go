/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"godesigner/internal/domain"
	"godesigner/internal/scene"
	"godesigner/internal/vector"
	"godesigner/internal/version"
)

// pdfLineHeight matches the line advance of the raster and SVG text renderers.
const pdfLineHeight = 1.16

// renderPDF writes a single page sized to the scene. Units are points with a
// top-left origin, so scene coordinates map 1:1. Text uses the built-in
// Helvetica and stays vector.
func renderPDF(src Source, opt Options) ([]byte, error) {
	w, h := src.Size()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty page size %dx%d", w, h)
	}
	size := gofpdf.SizeType{Wd: float64(w), Ht: float64(h)}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	title := opt.Name
	if title == "" {
		title = "Design"
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("GoDesigner "+version.String(), false)
	pdf.AddPageFormat("", size)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if bg, err := domain.ParseColor(src.Background()); err == nil && bg.A > 0 {
		pdf.SetAlpha(float64(bg.A)/255, "Normal")
		pdf.SetFillColor(int(bg.R), int(bg.G), int(bg.B))
		pdf.Rect(0, 0, float64(w), float64(h), "F")
	}

	for i, o := range src.Objects() {
		if !o.Visible || o.Opacity <= 0 {
			continue
		}
		switch o.Type {
		case scene.TypeText:
			pdfText(pdf, o, tr)
		case scene.TypeImage:
			if err := pdfImage(pdf, o, fmt.Sprintf("img%d", i)); err != nil {
				return nil, err
			}
		default:
			pdfShape(pdf, o)
		}
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}
	pdf.SetAlpha(1, "Normal")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func pdfShape(pdf *gofpdf.Fpdf, o scene.Object) {
	outline := o.Node().Outline()
	if c, err := domain.ParseColor(o.Fill); err == nil && c.A > 0 {
		pdf.SetAlpha(float64(c.A)/255*o.Opacity, "Normal")
		pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
		tracePath(pdf, outline)
		pdf.DrawPath("F")
	}
	if o.Stroke == "" || o.StrokeWidth <= 0 {
		return
	}
	if c, err := domain.ParseColor(o.Stroke); err == nil && c.A > 0 {
		pdf.SetAlpha(float64(c.A)/255*o.Opacity, "Normal")
		pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
		pdf.SetLineWidth(o.StrokeWidth * (abs(o.ScaleX) + abs(o.ScaleY)) / 2)
		tracePath(pdf, outline)
		pdf.DrawPath("D")
	}
}

// tracePath replays a page-space outline onto the PDF path builder.
func tracePath(pdf *gofpdf.Fpdf, p vector.Path) {
	var cur vector.Pt
	for _, c := range p.Cmds {
		d := c.Data
		switch c.Op {
		case vector.MoveTo:
			pdf.MoveTo(d[0], d[1])
			cur = vector.Pt{X: d[0], Y: d[1]}
		case vector.LineTo:
			pdf.LineTo(d[0], d[1])
			cur = vector.Pt{X: d[0], Y: d[1]}
		case vector.QuadTo:
			// raise to a cubic; PDF has no quadratic segments
			c1x, c1y := cur.X+2.0/3*(d[0]-cur.X), cur.Y+2.0/3*(d[1]-cur.Y)
			c2x, c2y := d[2]+2.0/3*(d[0]-d[2]), d[3]+2.0/3*(d[1]-d[3])
			pdf.CurveBezierCubicTo(c1x, c1y, c2x, c2y, d[2], d[3])
			cur = vector.Pt{X: d[2], Y: d[3]}
		case vector.CubicTo:
			pdf.CurveBezierCubicTo(d[0], d[1], d[2], d[3], d[4], d[5])
			cur = vector.Pt{X: d[4], Y: d[5]}
		case vector.Close:
			pdf.ClosePath()
		}
	}
}

// placeBegin applies the object's placement: rotate then scale about its anchor.
func placeBegin(pdf *gofpdf.Fpdf, o scene.Object) {
	pdf.TransformBegin()
	if o.Angle != 0 {
		pdf.TransformRotate(-o.Angle, o.Left, o.Top)
	}
	if o.ScaleX != 1 || o.ScaleY != 1 {
		pdf.TransformScale(o.ScaleX*100, o.ScaleY*100, o.Left, o.Top)
	}
}

func pdfText(pdf *gofpdf.Fpdf, o scene.Object, tr func(string) string) {
	c, err := domain.ParseColor(o.Fill)
	if err != nil || c.A == 0 || o.FontSize <= 0 {
		return
	}
	placeBegin(pdf, o)
	defer pdf.TransformEnd()
	pdf.SetAlpha(float64(c.A)/255*o.Opacity, "Normal")
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	pdf.SetFont("Helvetica", "", o.FontSize)
	for i, ln := range strings.Split(o.Text, "\n") {
		pdf.Text(o.Left, o.Top+o.FontSize*(0.85+float64(i)*pdfLineHeight), tr(ln))
	}
}

func pdfImage(pdf *gofpdf.Fpdf, o scene.Object, name string) error {
	data, kind, err := pdfImageData(o.Src)
	if err != nil {
		return fmt.Errorf("image %s: %w", o.ID, err)
	}
	opts := gofpdf.ImageOptions{ImageType: kind}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	placeBegin(pdf, o)
	defer pdf.TransformEnd()
	pdf.SetAlpha(o.Opacity, "Normal")
	pdf.ImageOptions(name, o.Left, o.Top, o.Width, o.Height, false, opts, 0, "")
	return nil
}

// pdfImageData returns bytes gofpdf can embed. PNG and JPEG pass through;
// other formats are re-encoded as PNG.
func pdfImageData(src string) ([]byte, string, error) {
	const marker = ";base64,"
	i := strings.Index(src, marker)
	if !strings.HasPrefix(src, "data:image/") || i < 0 {
		return nil, "", fmt.Errorf("source is not a base64 data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(src[i+len(marker):])
	if err != nil {
		return nil, "", err
	}
	switch strings.ToLower(src[len("data:image/"):i]) {
	case "png":
		return raw, "PNG", nil
	case "jpeg", "jpg":
		return raw, "JPG", nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "PNG", nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
