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
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	applog "godesigner/internal/log"
)

// OpenPostgres connects to dsn. A non-empty password overrides the one in the
// DSN so it can live in the OS keyring instead of the config file.
func OpenPostgres(ctx context.Context, dsn, password string) (*SQLGateway, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "postgres_open")
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if password != "" {
		cfg.Password = password
	}
	db := stdlib.OpenDB(*cfg)
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		l.Error("postgres ping failed", "host", cfg.Host, applog.Err(err))
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	g, err := newSQLGateway(pingCtx, db, postgresDialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	l.Info("postgres store ready", "host", cfg.Host, "database", cfg.Database)
	return g, nil
}
