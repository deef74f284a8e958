/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type memSecrets struct{ m map[string]string }

func (s *memSecrets) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}
func (s *memSecrets) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}
func (s *memSecrets) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

// isolate points the config dir at a temp dir and swaps in an in-memory keyring.
func isolate(t *testing.T) *memSecrets {
	t.Helper()
	t.Setenv(EnvConfigDir, t.TempDir())
	old := secretStore
	ms := &memSecrets{m: map[string]string{}}
	secretStore = ms
	t.Cleanup(func() { secretStore = old })
	return ms
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, secret, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if secret != "" {
		t.Fatalf("expected no secret, got %q", secret)
	}
	if cfg.History.MaxEntries != 50 {
		t.Fatalf("History.MaxEntries = %d, want 50", cfg.History.MaxEntries)
	}
	if cfg.Export.Multiplier != 2 {
		t.Fatalf("Export.Multiplier = %v, want 2", cfg.Export.Multiplier)
	}
	if cfg.Editor.PageWidth != 1080 || cfg.Editor.Background != "#ffffff" {
		t.Fatalf("unexpected editor defaults: %#v", cfg.Editor)
	}
}

func TestSaveAndLoadRoundTripWithSecret(t *testing.T) {
	ms := isolate(t)
	cfg := Defaults()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = "postgres://designer@localhost/gds"
	cfg.History.MaxEntries = 80
	if err := Save(cfg, "s3cr3t"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ms.m[keyringService+"/"+keyringSecret] != "s3cr3t" {
		t.Fatalf("secret not written to keyring")
	}
	path, _ := Path()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	got, secret, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Storage.Driver != "postgres" || got.History.MaxEntries != 80 || secret != "s3cr3t" {
		t.Fatalf("round trip mismatch: %#v secret=%q", got.Storage, secret)
	}
	if err := ForgetSecret(); err != nil {
		t.Fatalf("ForgetSecret: %v", err)
	}
	if _, secret, _ = Load(); secret != "" {
		t.Fatalf("secret should be gone, got %q", secret)
	}
}

func TestEnvOverridesStorageAndHistory(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageDriver, "FileSystem")
	t.Setenv(EnvStoragePath, filepath.Join("tmp", "designs"))
	t.Setenv(EnvHistoryMax, "12")
	t.Setenv(EnvExportMult, "3")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Driver != "filesystem" {
		t.Fatalf("Storage.Driver = %q, want filesystem", cfg.Storage.Driver)
	}
	if cfg.History.MaxEntries != 12 || cfg.Export.Multiplier != 3 {
		t.Fatalf("overrides not applied: %#v %#v", cfg.History, cfg.Export)
	}
	if name, ok := EnvOverrideFor("storage.driver"); !ok || name != EnvStorageDriver {
		t.Fatalf("EnvOverrideFor(storage.driver) = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("server.addr"); ok {
		t.Fatalf("server.addr should not be reported as overridden")
	}
}

func TestMergeIgnoresInvalidValues(t *testing.T) {
	dst := Defaults()
	src := AppConfig{}
	src.Export.JPEGQuality = 250
	src.Logging.Level = "  DEBUG "
	src.Server.AllowedOrigins = []string{"https://designer.example"}
	mergeInto(&dst, &src)
	if dst.Export.JPEGQuality != 92 {
		t.Fatalf("out of range quality should be ignored, got %d", dst.Export.JPEGQuality)
	}
	if dst.Logging.Level != "debug" {
		t.Fatalf("Logging.Level = %q, want debug", dst.Logging.Level)
	}
	if len(dst.Server.AllowedOrigins) != 1 {
		t.Fatalf("allowed origins not merged: %v", dst.Server.AllowedOrigins)
	}
	if dst.Storage.Driver != "sqlite" {
		t.Fatalf("empty driver must keep default, got %q", dst.Storage.Driver)
	}
}
