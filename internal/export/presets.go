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
	"errors"
	"fmt"
	"strings"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// ParsePreset accepts a preset name case-insensitively. Empty means web.
func ParsePreset(s string) (PresetName, error) {
	switch PresetName(strings.ToLower(strings.TrimSpace(s))) {
	case "", PresetWeb:
		return PresetWeb, nil
	case PresetPrint:
		return PresetPrint, nil
	}
	return "", fmt.Errorf("unknown preset %q", s)
}

// PresetOptions returns the options and default formats of a preset.
// Web favours small files; print favours resolution.
func PresetOptions(p PresetName) (Options, []Format) {
	if p == PresetPrint {
		return Options{Multiplier: 4, Quality: 95}, []Format{PNG, PDF}
	}
	return Options{Multiplier: 1, Quality: 85}, []Format{PNG, JPEG, SVG}
}

// BatchOptions controls a multi-format export of one page.
type BatchOptions struct {
	Preset  PresetName
	Formats []Format // empty means the preset's defaults
	Name    string
	OutDir  string
}

// BatchExport renders src in every requested format and writes the files to
// OutDir. It keeps going after a failed format and returns the written paths
// together with the joined errors.
func BatchExport(src Source, opt BatchOptions) ([]string, error) {
	if src == nil {
		return nil, errors.New("export: no scene")
	}
	base, formats := PresetOptions(opt.Preset)
	if len(opt.Formats) > 0 {
		formats = opt.Formats
	}
	base.Name = opt.Name
	var (
		paths []string
		errs  []error
	)
	for _, f := range formats {
		p, err := Render(src, f, base)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out, err := WriteFile(opt.OutDir, p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f, err))
			continue
		}
		paths = append(paths, out)
	}
	return paths, errors.Join(errs...)
}
