/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"errors"
	"log/slog"

	applog "godesigner/internal/log"
)

var (
	// ErrNoDesign is returned when an operation needs an open design.
	ErrNoDesign = errors.New("no design is open")
	// ErrPageNotFound is returned for an unknown page id.
	ErrPageNotFound = errors.New("page not found")
	// ErrLayerNotFound is returned for an unknown layer id.
	ErrLayerNotFound = errors.New("layer not found")
	// ErrLastPage rejects deleting the only remaining page.
	ErrLastPage = errors.New("a design needs at least one page")
	// ErrNotReady is returned when a page has no loaded canvas.
	ErrNotReady = errors.New("canvas is not ready")
	// ErrLayerLocked rejects gestures and edits on a locked layer.
	ErrLayerLocked = errors.New("layer is locked")
	// ErrObjectPaired rejects a second layer for the same scene object.
	ErrObjectPaired = errors.New("scene object already has a layer")
)

// NoticeLevel grades a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	}
	return "info"
}

// Notice is something the user must be told about, typically a rejected edit.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Notifier shows notices to the user. Desktop builds pop a dialog, the API
// returns them with the response.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to the log. It is used when no UI is attached.
type LogNotifier struct{ Log *slog.Logger }

func (n LogNotifier) Notify(notice Notice) {
	l := n.Log
	if l == nil {
		l = applog.WithComponent("editor")
	}
	attrs := []any{"level", notice.Level.String()}
	if notice.Err != nil {
		attrs = append(attrs, applog.Err(notice.Err))
	}
	switch notice.Level {
	case NoticeError:
		l.Error(notice.Message, attrs...)
	case NoticeWarning:
		l.Warn(notice.Message, attrs...)
	default:
		l.Info(notice.Message, attrs...)
	}
}
