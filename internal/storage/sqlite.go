/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "godesigner/internal/log"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

// DefaultSQLiteFile is used when no path is configured.
const DefaultSQLiteFile = "godesigner.sqlite"

// OpenSQLite opens (creating if needed) an embedded database at path with WAL
// enabled and the schema migrated.
func OpenSQLite(ctx context.Context, path string) (*SQLGateway, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "sqlite_open").With(slog.String("path", path))
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create data dir failed", applog.Err(err))
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", applog.Err(err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer connection avoids SQLITE_BUSY under WAL
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", applog.Err(err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", applog.Err(err))
	}
	g, err := newSQLGateway(ctx, db, sqliteDialect)
	if err != nil {
		_ = db.Close()
		l.Error("schema setup failed", applog.Err(err))
		return nil, err
	}
	l.Info("sqlite store ready")
	return g, nil
}

// QuickCheck runs PRAGMA quick_check and reports corruption as ErrCorrupt.
func (g *SQLGateway) QuickCheck(ctx context.Context) error {
	if g.d != sqliteDialect {
		return nil
	}
	var chk string
	if err := g.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return fmt.Errorf("quick_check: %w", err)
	}
	if !strings.EqualFold(strings.TrimSpace(chk), "ok") {
		return fmt.Errorf("%w: %s", ErrCorrupt, chk)
	}
	return nil
}
