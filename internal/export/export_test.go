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
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"godesigner/internal/scene"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []map[string]any
}

func (r *eventRecorder) Event(name string, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := map[string]any{"event": name}
	for k, v := range props {
		cp[k] = v
	}
	r.events = append(r.events, cp)
}

func sampleCanvas(t *testing.T) *scene.Canvas {
	t.Helper()
	c := scene.NewCanvas(200, 100, "#ffffff")
	r := scene.NewObject(scene.TypeRect)
	r.Left, r.Top, r.Width, r.Height = 10, 10, 50, 40
	r.Fill = "#ff0000"
	if _, err := c.AddObject(r); err != nil {
		t.Fatalf("add rect: %v", err)
	}
	circle := scene.NewObject(scene.TypeCircle)
	circle.Left, circle.Top = 90, 10
	circle.Stroke, circle.StrokeWidth = "#000000", 2
	if _, err := c.AddObject(circle); err != nil {
		t.Fatalf("add circle: %v", err)
	}
	tri := scene.NewObject(scene.TypeTriangle)
	tri.Angle = 30
	if _, err := c.AddObject(tri); err != nil {
		t.Fatalf("add triangle: %v", err)
	}
	txt := scene.NewObject(scene.TypeText)
	txt.Text = "Hello\nwörld"
	txt.Left, txt.Top = 20, 60
	if _, err := c.AddObject(txt); err != nil {
		t.Fatalf("add text: %v", err)
	}
	return c
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{0, 0, 255, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"png": PNG, ".JPG": JPEG, "jpeg": JPEG, " json ": JSON, "svg": SVG, "PDF": PDF}
	for in, want := range cases {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("bmp"); err == nil {
		t.Fatalf("expected error for bmp")
	}
	if JPEG.Extension() != "jpg" || PDF.Extension() != "pdf" {
		t.Fatalf("unexpected extensions")
	}
}

func TestFileNameSanitizes(t *testing.T) {
	cases := map[string]string{
		"":                 "design.png",
		"  My Poster! v2 ": "my-poster-v2.png",
		"../../etc/passwd": "etc-passwd.png",
		"already_fine":     "already_fine.png",
		"---":              "design.png",
	}
	for in, want := range cases {
		if got := fileName(in, PNG); got != want {
			t.Fatalf("fileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderPNGAndJPEG(t *testing.T) {
	c := sampleCanvas(t)
	rec := &eventRecorder{}
	p, err := Render(c, PNG, Options{Multiplier: 1, Name: "Poster", Events: rec})
	if err != nil {
		t.Fatalf("png: %v", err)
	}
	if p.Filename != "poster.png" || p.ContentType != "image/png" {
		t.Fatalf("unexpected payload %q %q", p.Filename, p.ContentType)
	}
	img, err := png.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 100 {
		t.Fatalf("png size %v", img.Bounds())
	}

	j, err := Render(c, JPEG, Options{Multiplier: 2, Events: rec})
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	jimg, err := jpeg.Decode(bytes.NewReader(j.Data))
	if err != nil {
		t.Fatalf("decode jpeg: %v", err)
	}
	if jimg.Bounds().Dx() != 400 || j.Filename != "design.jpg" {
		t.Fatalf("jpeg %v %q", jimg.Bounds(), j.Filename)
	}
	if len(rec.events) != 2 || rec.events[0]["format"] != "png" || rec.events[1]["format"] != "jpeg" {
		t.Fatalf("events = %v", rec.events)
	}
	if rec.events[0]["bytes"] != len(p.Data) {
		t.Fatalf("bytes prop = %v", rec.events[0]["bytes"])
	}
}

func TestRenderJPEGFlattensTransparentBackground(t *testing.T) {
	c := scene.NewCanvas(10, 10, "#00000000")
	p, err := Render(c, JPEG, Options{Multiplier: 1, Events: &eventRecorder{}})
	if err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("expected white, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestRenderJSONIsIndentedSceneDocument(t *testing.T) {
	c := sampleCanvas(t)
	p, err := Render(c, JSON, Options{Events: &eventRecorder{}})
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if !bytes.HasSuffix(p.Data, []byte("\n")) || !bytes.Contains(p.Data, []byte("\n  ")) {
		t.Fatalf("json not indented: %s", p.Data)
	}
	var doc map[string]any
	if err := json.Unmarshal(p.Data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored := scene.NewCanvas(1, 1, "")
	if err := restored.LoadFromSerializable(p.Data); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(restored.Objects()) != 4 {
		t.Fatalf("reloaded %d objects", len(restored.Objects()))
	}
}

func TestRenderSVG(t *testing.T) {
	p, err := Render(sampleCanvas(t), SVG, Options{Events: &eventRecorder{}})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := string(p.Data)
	if !strings.Contains(s, "<svg") || !strings.Contains(s, "<ellipse") || p.ContentType != "image/svg+xml" {
		t.Fatalf("unexpected svg: %s", s)
	}
}

func TestRenderPDF(t *testing.T) {
	c := sampleCanvas(t)
	img, err := scene.NewImageObject(pngBytes(t))
	if err != nil {
		t.Fatalf("image object: %v", err)
	}
	img.Left, img.Top, img.Opacity = 150, 50, 0.5
	if _, err := c.AddObject(img); err != nil {
		t.Fatal(err)
	}
	hidden := scene.NewObject(scene.TypeRect)
	hidden.Visible = false
	if _, err := c.AddObject(hidden); err != nil {
		t.Fatal(err)
	}
	p, err := Render(c, PDF, Options{Name: "flyer", Events: &eventRecorder{}})
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(p.Data, []byte("%PDF-")) || p.Filename != "flyer.pdf" {
		t.Fatalf("not a pdf: %q %q", p.Data[:min(8, len(p.Data))], p.Filename)
	}
}

func TestRenderPDFRejectsBrokenImage(t *testing.T) {
	c := scene.NewCanvas(50, 50, "#ffffff")
	o := scene.NewObject(scene.TypeImage)
	o.Src = "data:image/png;base64,!!!"
	if _, err := c.AddObject(o); err != nil {
		t.Fatal(err)
	}
	if _, err := Render(c, PDF, Options{Events: &eventRecorder{}}); err == nil {
		t.Fatalf("expected error for undecodable image")
	}
}

func TestRenderUnknownFormat(t *testing.T) {
	rec := &eventRecorder{}
	if _, err := Render(sampleCanvas(t), Format("tiff"), Options{Events: rec}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Render(nil, PNG, Options{Events: rec}); err == nil {
		t.Fatalf("expected error for nil source")
	}
	if len(rec.events) != 0 {
		t.Fatalf("failed exports must not emit events: %v", rec.events)
	}
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteFile(dir, Payload{Filename: "a.svg", Data: []byte("<svg/>")})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "<svg/>" {
		t.Fatalf("read back %q %v", b, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp file left behind: %v", entries)
	}
	if _, err := WriteFile(dir, Payload{Filename: "../x.svg"}); err == nil {
		t.Fatalf("expected path traversal to be rejected")
	}
}

func TestPresetsAndBatchExport(t *testing.T) {
	if p, err := ParsePreset("PRINT"); err != nil || p != PresetPrint {
		t.Fatalf("ParsePreset: %v %v", p, err)
	}
	if _, err := ParsePreset("tabloid"); err == nil {
		t.Fatalf("expected unknown preset error")
	}
	opt, formats := PresetOptions(PresetPrint)
	if opt.Multiplier != 4 || len(formats) != 2 {
		t.Fatalf("print preset = %+v %v", opt, formats)
	}

	dir := t.TempDir()
	paths, err := BatchExport(sampleCanvas(t), BatchOptions{Preset: PresetWeb, Name: "card", OutDir: dir})
	if err != nil {
		t.Fatalf("BatchExport: %v", err)
	}
	want := []string{"card.png", "card.jpg", "card.svg"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i, p := range paths {
		if filepath.Base(p) != want[i] {
			t.Fatalf("path %d = %s", i, p)
		}
	}

	paths, err = BatchExport(sampleCanvas(t), BatchOptions{Formats: []Format{JSON, "bogus"}, OutDir: dir})
	if err == nil || len(paths) != 1 {
		t.Fatalf("partial batch: %v %v", paths, err)
	}
}
