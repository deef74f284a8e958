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
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DecodeImageSource validates uploaded image bytes and returns a data URL
// plus the pixel size. Formats: PNG, JPEG, GIF, BMP and WebP.
func DecodeImageSource(data []byte) (src string, w, h int, err error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: image: %v", ErrDecode, err)
	}
	b := img.Bounds()
	src = "data:image/" + format + ";base64," + base64.StdEncoding.EncodeToString(data)
	return src, b.Dx(), b.Dy(), nil
}

// NewImageObject builds an image object sized to the decoded pixels.
func NewImageObject(data []byte) (Object, error) {
	src, w, h, err := DecodeImageSource(data)
	if err != nil {
		return Object{}, err
	}
	o := NewObject(TypeImage)
	o.Src = src
	o.Width, o.Height = float64(w), float64(h)
	o.Fill = ""
	return o, nil
}

func decodeSource(src string) (image.Image, error) {
	const marker = ";base64,"
	i := strings.Index(src, marker)
	if !strings.HasPrefix(src, "data:") || i < 0 {
		return nil, fmt.Errorf("%w: image source is not a base64 data URL", ErrDecode)
	}
	raw, err := base64.StdEncoding.DecodeString(src[i+len(marker):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}
