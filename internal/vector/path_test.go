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

import "testing"

func TestPolygonNode_BoundsAndHit(t *testing.T) {
	n := NewPolygon(TrianglePoints(R(0, 0, 100, 100)), Fill{Enabled: true}, Stroke{})
	b := n.Bounds()
	if b.X != 0 || b.Y != 0 || b.W != 100 || b.H != 100 {
		t.Fatalf("unexpected bounds: %+v", b)
	}
	if !n.Hit(Pt{50, 80}) {
		t.Fatalf("interior point should hit")
	}
	if n.Hit(Pt{5, 5}) {
		t.Fatalf("corner outside triangle should miss")
	}
}

func TestPathTransformAndBounds(t *testing.T) {
	p := EllipsePath(R(0, 0, 20, 10)).Transform(Translate(5, 5))
	b := p.Bounds()
	if b.X != 5 || b.Y != 5 || b.W != 20 || b.H != 10 {
		t.Fatalf("ellipse bounds: %+v", b)
	}
	if got := len(RectPath(R(0, 0, 1, 1)).Cmds); got != 5 {
		t.Fatalf("rect path cmds = %d", got)
	}
	if len(PolygonPath().Cmds) != 0 {
		t.Fatalf("empty polygon should have no commands")
	}
}
