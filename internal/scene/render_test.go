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
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestRenderImageDrawsShapesAtMultiplier(t *testing.T) {
	c, _ := newTestCanvas(t)
	r := rectAt(10, 10, 40, 40)
	r.Fill = "#ff0000"
	_, _ = c.AddObject(r)
	hidden := rectAt(100, 10, 40, 40)
	hidden.Fill = "#00ff00"
	hidden.Visible = false
	_, _ = c.AddObject(hidden)

	img, err := c.RenderImage(2)
	if err != nil {
		t.Fatalf("RenderImage: %v", err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 200 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	if got := img.RGBAAt(60, 60); got.R < 250 || got.G > 5 || got.B > 5 {
		t.Fatalf("inside rect = %v", got)
	}
	if got := img.RGBAAt(5, 5); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("background = %v", got)
	}
	if got := img.RGBAAt(240, 60); got != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("hidden object rendered: %v", got)
	}
}

func TestRenderImageRejectsEmptyPage(t *testing.T) {
	c := NewCanvas(0, 0, "")
	if _, err := c.RenderImage(1); err == nil {
		t.Fatalf("expected error for empty page")
	}
}

func TestToSVGContainsShapes(t *testing.T) {
	c, _ := newTestCanvas(t)
	_, _ = c.AddObject(rectAt(1, 2, 3, 4))
	_, _ = c.AddObject(NewObject(TypeCircle))
	_, _ = c.AddObject(NewObject(TypeTriangle))
	txt := NewObject(TypeText)
	txt.Text = "a<b"
	_, _ = c.AddObject(txt)
	out, err := c.ToSVG()
	if err != nil {
		t.Fatalf("ToSVG: %v", err)
	}
	s := string(out)
	for _, want := range []string{"<svg", "<rect", "<ellipse", "<polygon", "a&lt;b", `viewBox="0 0 200 100"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("svg missing %q:\n%s", want, s)
		}
	}
}

func pngBytes(t *testing.T, w, h int, col color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, col)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestNewImageObjectAndRender(t *testing.T) {
	obj, err := NewImageObject(pngBytes(t, 20, 10, color.RGBA{0, 0, 255, 255}))
	if err != nil {
		t.Fatalf("NewImageObject: %v", err)
	}
	if obj.Width != 20 || obj.Height != 10 || !strings.HasPrefix(obj.Src, "data:image/png;base64,") {
		t.Fatalf("unexpected image object: %v %v %.30s", obj.Width, obj.Height, obj.Src)
	}
	obj.Left, obj.Top = 50, 50
	c, _ := newTestCanvas(t)
	_, _ = c.AddObject(obj)
	img, err := c.RenderImage(1)
	if err != nil {
		t.Fatalf("RenderImage: %v", err)
	}
	if got := img.RGBAAt(60, 55); got.B < 200 || got.R > 50 {
		t.Fatalf("image not drawn, pixel %v", got)
	}
}

func TestDecodeImageSourceRejectsGarbage(t *testing.T) {
	if _, _, _, err := DecodeImageSource([]byte("not an image")); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if _, err := decodeSource("http://example.com/a.png"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode for non data URL, got %v", err)
	}
}
