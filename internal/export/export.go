/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export turns a page's scene into downloadable files.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"godesigner/internal/config"
	applog "godesigner/internal/log"
	"godesigner/internal/scene"
	"godesigner/internal/telemetry"
)

// Format names an export target.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	JSON Format = "json"
	SVG  Format = "svg"
	PDF  Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{PNG, JPEG, JSON, SVG, PDF}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png":
		return PNG, nil
	case "jpeg", "jpg":
		return JPEG, nil
	case "json":
		return JSON, nil
	case "svg":
		return SVG, nil
	case "pdf":
		return PDF, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Extension is the file extension without the dot.
func (f Format) Extension() string {
	if f == JPEG {
		return "jpg"
	}
	return string(f)
}

// ContentType is the MIME type of the payload.
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPEG:
		return "image/jpeg"
	case JSON:
		return "application/json"
	case SVG:
		return "image/svg+xml"
	case PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Source is what an export reads from a scene.
type Source interface {
	RenderImage(multiplier float64) (*image.RGBA, error)
	ToSerializable() ([]byte, error)
	ToSVG() ([]byte, error)
	Objects() []scene.Object
	Background() string
	Size() (w, h int)
}

// Options tunes an export. Zero values fall back to the configured defaults.
type Options struct {
	Multiplier float64 // raster scale factor
	Quality    int     // JPEG quality 1..100
	Name       string  // base file name; sanitized
	Events     telemetry.Sink
}

// DefaultOptions maps the export section of the user config.
func DefaultOptions(cfg config.ExportConfig) Options {
	return Options{Multiplier: cfg.Multiplier, Quality: cfg.JPEGQuality}
}

func (o Options) withDefaults() Options {
	if o.Multiplier <= 0 {
		o.Multiplier = 2
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = 92
	}
	if o.Events == nil {
		o.Events = telemetry.Default()
	}
	return o
}

// Payload is a finished export.
type Payload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Render produces the payload for format f.
func Render(src Source, f Format, opt Options) (Payload, error) {
	if src == nil {
		return Payload{}, errors.New("export: no scene")
	}
	opt = opt.withDefaults()
	var (
		data []byte
		err  error
	)
	switch f {
	case PNG:
		data, err = renderPNG(src, opt)
	case JPEG:
		data, err = renderJPEG(src, opt)
	case JSON:
		data, err = renderJSON(src)
	case SVG:
		data, err = src.ToSVG()
	case PDF:
		data, err = renderPDF(src, opt)
	default:
		return Payload{}, fmt.Errorf("unknown export format %q", f)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("export %s: %w", f, err)
	}
	opt.Events.Event("export", map[string]any{"format": string(f), "bytes": len(data)})
	applog.WithComponent("export").Debug("export rendered", "format", string(f), "bytes", len(data))
	return Payload{Filename: fileName(opt.Name, f), ContentType: f.ContentType(), Data: data}, nil
}

func renderPNG(src Source, opt Options) ([]byte, error) {
	img, err := src.RenderImage(opt.Multiplier)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// renderJPEG flattens onto white so a translucent background does not turn black.
func renderJPEG(src Source, opt Options) ([]byte, error) {
	img, err := src.RenderImage(opt.Multiplier)
	if err != nil {
		return nil, err
	}
	flat := image.NewRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Over)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: opt.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderJSON(src Source) ([]byte, error) {
	raw, err := src.ToSerializable()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func fileName(name string, f Format) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	base := strings.TrimRight(b.String(), "-")
	if base == "" {
		base = "design"
	}
	return base + "." + f.Extension()
}

// WriteFile stores p in dir through a temp file and rename, and returns the path.
func WriteFile(dir string, p Payload) (string, error) {
	if p.Filename == "" || filepath.Base(p.Filename) != p.Filename {
		return "", fmt.Errorf("invalid export file name %q", p.Filename)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure export dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+p.Filename+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(p.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close export: %w", err)
	}
	out := filepath.Join(dir, p.Filename)
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename export: %w", err)
	}
	return out, nil
}
