/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration of the editor.
//
// Precedence, lowest first: built-in defaults, the YAML file in the user config
// directory, a .env file in the working directory, then GDS_* environment
// variables. The storage secret never touches the YAML file; it lives in the OS keyring.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is bumped when the YAML layout changes incompatibly.
const CurrentVersion = 1

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
}

// StorageConfig selects the persistence gateway backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // memory | sqlite | filesystem | postgres | s3
	Path   string `yaml:"path"`   // sqlite file or filesystem root
	DSN    string `yaml:"dsn"`    // postgres connection string (password may come from the keyring)
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
	CoalesceMs int `yaml:"coalesce_ms"`
}

// EditorConfig holds defaults for newly created pages.
type EditorConfig struct {
	PageName   string `yaml:"page_name"`
	PageWidth  int    `yaml:"page_width"`
	PageHeight int    `yaml:"page_height"`
	Background string `yaml:"background"`
}

type ExportConfig struct {
	Multiplier  float64 `yaml:"multiplier"`
	JPEGQuality int     `yaml:"jpeg_quality"`
	Dir         string  `yaml:"dir"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Storage       StorageConfig `yaml:"storage"`
	History       HistoryConfig `yaml:"history"`
	Editor        EditorConfig  `yaml:"editor"`
	Export        ExportConfig  `yaml:"export"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		General:       GeneralConfig{Theme: "system"},
		Storage:       StorageConfig{Driver: "sqlite", Path: defaultDataPath(), Prefix: "godesigner", Region: "us-east-1"},
		History:       HistoryConfig{MaxEntries: 50},
		Editor:        EditorConfig{PageName: "Page 1", PageWidth: 1080, PageHeight: 1080, Background: "#ffffff"},
		Export:        ExportConfig{Multiplier: 2, JPEGQuality: 92, Dir: "exports"},
		Server:        ServerConfig{Addr: ":8080", AllowedOrigins: []string{"http://*", "https://*"}},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvStorageDriver  = "GDS_STORAGE_DRIVER"
	EnvStoragePath    = "GDS_STORAGE_PATH"
	EnvStorageDSN     = "GDS_STORAGE_DSN"
	EnvStorageBucket  = "GDS_STORAGE_BUCKET"
	EnvStoragePrefix  = "GDS_STORAGE_PREFIX"
	EnvStorageRegion  = "GDS_STORAGE_REGION"
	EnvHistoryMax     = "GDS_HISTORY_MAX"
	EnvExportMult     = "GDS_EXPORT_MULTIPLIER"
	EnvExportDir      = "GDS_EXPORT_DIR"
	EnvServerAddr     = "GDS_SERVER_ADDR"
	EnvTelemetryOptIn = "GDS_TELEMETRY_OPT_IN"
	EnvLogLevel       = "GDS_LOG_LEVEL"
	EnvLogFormat      = "GDS_LOG_FORMAT"
	EnvLogSource      = "GDS_LOG_SOURCE"
	EnvLogFile        = "GDS_LOG_FILE"
	// EnvConfigDir relocates the config directory (tests, portable installs).
	EnvConfigDir = "GDS_CONFIG_DIR"
)

const (
	keyringService = "GoDesigner"
	keyringSecret  = "storage_secret"
)

// SecretStore abstracts the OS keyring so tests can stub it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var secretStore SecretStore = osKeyring{}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	if v := strings.TrimSpace(os.Getenv(EnvConfigDir)); v != "" {
		return v, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoDesigner")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoDesigner")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "godesigner")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "godesigner")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// Path returns the per-user config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func defaultDataPath() string {
	dir, err := Dir()
	if err != nil {
		return "godesigner.db"
	}
	return filepath.Join(dir, "godesigner.db")
}

// Load reads the config file (if present), a .env file (if present), applies
// environment overrides and returns the storage secret from the keyring.
// A missing keyring entry is not an error.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	// .env only fills variables that are not already set in the process
	_ = godotenv.Load()
	applyEnvOverrides(&cfg)
	secret, _ := secretStore.Get(keyringService, keyringSecret)
	return cfg, secret, nil
}

// Save writes the YAML file and stores secret in the keyring when non-empty.
func Save(cfg AppConfig, secret string) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if secret != "" {
		return secretStore.Set(keyringService, keyringSecret, secret)
	}
	return nil
}

// ForgetSecret removes the stored storage secret.
func ForgetSecret() error { return secretStore.Delete(keyringService, keyringSecret) }

func mergeInto(dst, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	setStr(&dst.General.Theme, src.General.Theme)

	setLower(&dst.Storage.Driver, src.Storage.Driver)
	setStr(&dst.Storage.Path, src.Storage.Path)
	setStr(&dst.Storage.DSN, src.Storage.DSN)
	setStr(&dst.Storage.Bucket, src.Storage.Bucket)
	setStr(&dst.Storage.Prefix, src.Storage.Prefix)
	setStr(&dst.Storage.Region, src.Storage.Region)

	if src.History.MaxEntries > 0 {
		dst.History.MaxEntries = src.History.MaxEntries
	}
	if src.History.CoalesceMs > 0 {
		dst.History.CoalesceMs = src.History.CoalesceMs
	}

	setStr(&dst.Editor.PageName, src.Editor.PageName)
	if src.Editor.PageWidth > 0 {
		dst.Editor.PageWidth = src.Editor.PageWidth
	}
	if src.Editor.PageHeight > 0 {
		dst.Editor.PageHeight = src.Editor.PageHeight
	}
	setStr(&dst.Editor.Background, src.Editor.Background)

	if src.Export.Multiplier > 0 {
		dst.Export.Multiplier = src.Export.Multiplier
	}
	if src.Export.JPEGQuality > 0 && src.Export.JPEGQuality <= 100 {
		dst.Export.JPEGQuality = src.Export.JPEGQuality
	}
	setStr(&dst.Export.Dir, src.Export.Dir)

	setStr(&dst.Server.Addr, src.Server.Addr)
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = append([]string(nil), src.Server.AllowedOrigins...)
	}

	setLower(&dst.Logging.Level, src.Logging.Level)
	setLower(&dst.Logging.Format, src.Logging.Format)
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setLower(dst *string, v string) { setStr(dst, strings.ToLower(v)) }

func applyEnvOverrides(cfg *AppConfig) {
	setLower(&cfg.Storage.Driver, os.Getenv(EnvStorageDriver))
	setStr(&cfg.Storage.Path, os.Getenv(EnvStoragePath))
	setStr(&cfg.Storage.DSN, os.Getenv(EnvStorageDSN))
	setStr(&cfg.Storage.Bucket, os.Getenv(EnvStorageBucket))
	setStr(&cfg.Storage.Prefix, os.Getenv(EnvStoragePrefix))
	setStr(&cfg.Storage.Region, os.Getenv(EnvStorageRegion))
	if v := strings.TrimSpace(os.Getenv(EnvHistoryMax)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.History.MaxEntries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvExportMult)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Export.Multiplier = f
		}
	}
	setStr(&cfg.Export.Dir, os.Getenv(EnvExportDir))
	setStr(&cfg.Server.Addr, os.Getenv(EnvServerAddr))
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	setLower(&cfg.Logging.Level, os.Getenv(EnvLogLevel))
	setLower(&cfg.Logging.Format, os.Getenv(EnvLogFormat))
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	setStr(&cfg.Logging.File, os.Getenv(EnvLogFile))
}

func truthy(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// EnvOverrideFor returns the env var name if the dotted key is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	names := map[string]string{
		"storage.driver":           EnvStorageDriver,
		"storage.path":             EnvStoragePath,
		"storage.dsn":              EnvStorageDSN,
		"storage.bucket":           EnvStorageBucket,
		"storage.prefix":           EnvStoragePrefix,
		"storage.region":           EnvStorageRegion,
		"history.max_entries":      EnvHistoryMax,
		"export.multiplier":        EnvExportMult,
		"export.dir":               EnvExportDir,
		"server.addr":              EnvServerAddr,
		"general.telemetry_opt_in": EnvTelemetryOptIn,
		"logging.level":            EnvLogLevel,
		"logging.format":           EnvLogFormat,
		"logging.source":           EnvLogSource,
		"logging.file":             EnvLogFile,
	}
	name, ok := names[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}
