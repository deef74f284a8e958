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
	"path/filepath"
	"strings"

	"godesigner/internal/config"
	applog "godesigner/internal/log"
)

// Open returns the gateway selected by cfg.Driver. secret is the keyring
// value: the postgres password or the S3 "ACCESS_KEY:SECRET_KEY" pair.
func Open(ctx context.Context, cfg config.StorageConfig, secret string) (Gateway, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	l := applog.WithComponent("storage")
	var (
		g   Gateway
		err error
	)
	switch driver {
	case "", "memory":
		g = NewMemoryGateway()
		driver = "memory"
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = DefaultSQLiteFile
		}
		g, err = OpenSQLite(ctx, path)
	case "postgres", "postgresql":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a dsn")
		}
		g, err = OpenPostgres(ctx, cfg.DSN, secret)
	case "filesystem", "fs":
		root := cfg.Path
		if root == "" {
			root = "data"
		}
		// a database file path from the defaults becomes a sibling directory
		if ext := filepath.Ext(root); ext != "" {
			root = strings.TrimSuffix(root, ext)
		}
		g, err = NewFilesystemGateway(root)
	case "s3":
		g, err = OpenS3(ctx, cfg.Bucket, cfg.Prefix, cfg.Region, secret)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	l.Info("use storage", "driver", driver)
	return g, nil
}
