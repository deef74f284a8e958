/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Command godesignerd serves the design editor over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"godesigner/internal/backend"
	"godesigner/internal/config"
	"godesigner/internal/crash"
	applog "godesigner/internal/log"
	"godesigner/internal/storage"
	"godesigner/internal/telemetry"
	"godesigner/internal/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			fmt.Println(version.String())
			return
		}
	}
	if err := serve(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serve() error {
	cfg, secret, err := config.Load()
	if err != nil {
		return err
	}
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	l := applog.WithComponent("server")
	l.Info("starting", "version", version.String(), "storage", cfg.Storage.Driver)

	telemetry.NewDefault(telemetry.FromConfig(cfg.General))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Default().Flush(ctx)
		telemetry.Default().Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	g, err := storage.Open(ctx, cfg.Storage, secret)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := g.Close(); err != nil {
			l.Warn("close storage", applog.Err(err))
		}
	}()

	srv := backend.New(cfg, g)
	defer crash.Recover(srv, filepath.Join(os.TempDir(), "godesignerd"))
	telemetry.Event("server_start", map[string]any{"storage": cfg.Storage.Driver})
	return srv.Start(ctx)
}
