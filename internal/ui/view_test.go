/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"testing"

	"godesigner/internal/domain"
)

func almostEqual(a, b, eps float32) bool {
	if a > b {
		return a-b <= eps
	}
	return b-a <= eps
}

func TestFitPageLetterboxes(t *testing.T) {
	v := fitPage(1000, 500, 400, 400)
	if !almostEqual(v.Scale, 1.25, 1e-4) || !almostEqual(v.X, 250, 1e-3) || v.Y != 0 {
		t.Fatalf("viewport = %+v", v)
	}
	p := v.toPage(250+125, 250)
	if p.X != 100 || p.Y != 200 {
		t.Fatalf("toPage = %+v", p)
	}
	x, y := v.toView(p)
	if !almostEqual(x, 375, 1e-3) || !almostEqual(y, 250, 1e-3) {
		t.Fatalf("toView = %v,%v", x, y)
	}
}

func TestFitPageDegenerate(t *testing.T) {
	if v := fitPage(0, 0, 100, 100); v.Scale != 1 {
		t.Fatalf("viewport = %+v", v)
	}
	if v := fitPage(100, 100, 0, 10); v.Scale != 1 {
		t.Fatalf("viewport = %+v", v)
	}
}

func TestLayerRowAndCaption(t *testing.T) {
	if layerRow(3, 0) != 2 || layerRow(3, 2) != 0 {
		t.Fatalf("layerRow mapping broken")
	}
	l := domain.Layer{Name: "Logo", Visible: false, Locked: true}
	if got := layerCaption(l); got != "Logo (hidden) (locked)" {
		t.Fatalf("caption = %q", got)
	}
}

func TestPushRecent(t *testing.T) {
	var items []string
	for i := 0; i < 12; i++ {
		items = pushRecent(items, fmt.Sprintf("d%d", i))
	}
	if len(items) != recentMax || items[0] != "d11" {
		t.Fatalf("items = %v", items)
	}
	items = pushRecent(items, "d5")
	if items[0] != "d5" || len(items) != recentMax {
		t.Fatalf("items = %v", items)
	}
	for _, s := range items[1:] {
		if s == "d5" {
			t.Fatalf("duplicate kept: %v", items)
		}
	}
	if got := pushRecent(items, " "); len(got) != len(items) {
		t.Fatalf("blank id changed list")
	}
}
