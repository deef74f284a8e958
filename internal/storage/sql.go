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
	"strconv"
	"strings"
	"time"

	applog "godesigner/internal/log"
	"godesigner/internal/version"
)

// schemaVersion tracks the relational layout shared by the sqlite and
// postgres backends. Bump it together with a new case in runMigrations.
const schemaVersion = 2

// dialect captures the few differences between the SQL backends.
type dialect struct {
	name       string
	dollarArgs bool // $1..$n instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite"}
	postgresDialect = dialect{name: "postgres", dollarArgs: true}
)

// rebind rewrites ? placeholders for dialects that number their arguments.
func (d dialect) rebind(q string) string {
	if !d.dollarArgs {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLGateway implements Gateway on database/sql.
type SQLGateway struct {
	db  *sql.DB
	d   dialect
	log *slog.Logger
}

func newSQLGateway(ctx context.Context, db *sql.DB, d dialect) (*SQLGateway, error) {
	g := &SQLGateway{db: db, d: d, log: applog.WithComponent("storage").With(slog.String("driver", d.name))}
	if err := g.ensureMetaAndVersion(ctx); err != nil {
		return nil, err
	}
	if err := g.runMigrations(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// DB exposes the handle for diagnostics and tests.
func (g *SQLGateway) DB() *sql.DB { return g.db }

func (g *SQLGateway) exec(ctx context.Context, q sqlExecer, query string, args ...any) error {
	_, err := q.ExecContext(ctx, g.d.rebind(query), args...)
	return err
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (g *SQLGateway) ensureMetaAndVersion(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
	}
	for _, q := range ddl {
		if err := g.exec(ctx, g.db, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := g.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh database starts at 0 so every migration runs
		if err := g.exec(ctx, g.db, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, 0, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if err := g.exec(ctx, g.db, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func (g *SQLGateway) runMigrations(ctx context.Context) error {
	var cur int
	if err := g.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		g.log.Warn("database schema is newer than this build", "schema", cur, "supported", schemaVersion)
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := g.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		if err := g.migrate(ctx, tx, next); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", next, err)
		}
		if err := g.exec(ctx, tx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		g.log.Info("schema migrated", "schema", next)
		cur = next
	}
	return nil
}

func (g *SQLGateway) migrate(ctx context.Context, tx *sql.Tx, step int) error {
	switch step {
	case 1:
		return g.exec(ctx, tx, `CREATE TABLE IF NOT EXISTS records (
			store      TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY(store, key)
		)`)
	case 2:
		stmts := []string{
			`CREATE TABLE IF NOT EXISTS record_index (
				store TEXT NOT NULL,
				key   TEXT NOT NULL,
				name  TEXT NOT NULL,
				value TEXT NOT NULL,
				PRIMARY KEY(store, key, name)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_record_index_lookup ON record_index(store, name, value)`,
		}
		for _, q := range stmts {
			if err := g.exec(ctx, tx, q); err != nil {
				return err
			}
		}
		return g.backfillIndexes(ctx, tx)
	}
	return nil
}

// backfillIndexes populates record_index for rows written before it existed.
func (g *SQLGateway) backfillIndexes(ctx context.Context, tx *sql.Tx) error {
	for store := range Indexes {
		rows, err := tx.QueryContext(ctx, g.d.rebind(`SELECT key, value FROM records WHERE store=?`), store)
		if err != nil {
			return err
		}
		type rec struct{ key, value string }
		var recs []rec
		for rows.Next() {
			var r rec
			if err := rows.Scan(&r.key, &r.value); err != nil {
				_ = rows.Close()
				return err
			}
			recs = append(recs, r)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		for _, r := range recs {
			if err := g.writeIndexes(ctx, tx, store, r.key, []byte(r.value)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *SQLGateway) writeIndexes(ctx context.Context, tx *sql.Tx, store, key string, value []byte) error {
	if err := g.exec(ctx, tx, `DELETE FROM record_index WHERE store=? AND key=?`, store, key); err != nil {
		return err
	}
	for _, name := range Indexes[store] {
		v, ok := indexValue(value, name)
		if !ok {
			continue
		}
		if err := g.exec(ctx, tx, `INSERT INTO record_index (store, key, name, value) VALUES(?, ?, ?, ?)`, store, key, name, v); err != nil {
			return err
		}
	}
	return nil
}

func (g *SQLGateway) Put(ctx context.Context, store, key string, value []byte) error {
	if err := checkArgs(store, key); err != nil {
		return err
	}
	if err := checkJSON(value); err != nil {
		return err
	}
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put %s/%s: begin: %w", store, key, err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := g.exec(ctx, tx, `INSERT INTO records (store, key, value, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(store, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, store, key, string(value), now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("put %s/%s: %w", store, key, err)
	}
	if err := g.writeIndexes(ctx, tx, store, key, value); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("put %s/%s: index: %w", store, key, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put %s/%s: commit: %w", store, key, err)
	}
	return nil
}

func (g *SQLGateway) Get(ctx context.Context, store, key string) ([]byte, error) {
	var v string
	err := g.db.QueryRowContext(ctx, g.d.rebind(`SELECT value FROM records WHERE store=? AND key=?`), store, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", store, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", store, key, err)
	}
	return []byte(v), nil
}

func (g *SQLGateway) Delete(ctx context.Context, store, key string) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete %s/%s: begin: %w", store, key, err)
	}
	for _, q := range []string{`DELETE FROM record_index WHERE store=? AND key=?`, `DELETE FROM records WHERE store=? AND key=?`} {
		if err := g.exec(ctx, tx, q, store, key); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete %s/%s: %w", store, key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete %s/%s: commit: %w", store, key, err)
	}
	return nil
}

func (g *SQLGateway) ListByIndex(ctx context.Context, store, indexName, indexValue string) ([][]byte, error) {
	var (
		rows *sql.Rows
		err  error
	)
	switch {
	case indexName == "":
		rows, err = g.db.QueryContext(ctx, g.d.rebind(`SELECT value FROM records WHERE store=? ORDER BY key`), store)
	case indexed(store, indexName):
		rows, err = g.db.QueryContext(ctx, g.d.rebind(`SELECT r.value FROM records r
			JOIN record_index i ON i.store = r.store AND i.key = r.key
			WHERE i.store=? AND i.name=? AND i.value=? ORDER BY r.key`), store, indexName, indexValue)
	default:
		return g.scan(ctx, store, indexName, indexValue)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s by %s: %w", store, indexName, err)
	}
	defer rows.Close()
	var out [][]byte
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("list %s: scan: %w", store, err)
		}
		out = append(out, []byte(v))
	}
	return out, rows.Err()
}

// scan filters the whole store in Go for fields without an index table entry.
func (g *SQLGateway) scan(ctx context.Context, store, indexName, want string) ([][]byte, error) {
	all, err := g.ListByIndex(ctx, store, "", "")
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for _, v := range all {
		if got, ok := indexValue(v, indexName); ok && got == want {
			out = append(out, v)
		}
	}
	return out, nil
}

func (g *SQLGateway) Close() error { return g.db.Close() }

func indexed(store, name string) bool {
	for _, n := range Indexes[store] {
		if n == name {
			return true
		}
	}
	return false
}
