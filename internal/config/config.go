// Package config loads the tablegate configuration file.
//
// The file is YAML. Every field is optional; missing fields keep the
// values of Default. Unknown fields are rejected so typos surface early.
//
//	database: tablegate.db
//	catalog: catalog
//	security:
//	  enabled: true
//	view:
//	  auto_like: false
//	  max_rows: 200
//	log:
//	  level: info
//	engine:
//	  max_items: 1000
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tablegate/internal/engine"
)

// Config is the resolved configuration.
type Config struct {
	Database string   `yaml:"database"`
	Catalog  string   `yaml:"catalog"`
	Security Security `yaml:"security"`
	View     View     `yaml:"view"`
	Log      Log      `yaml:"log"`
	Engine   Engine   `yaml:"engine"`
}

// Security switches privilege checks.
type Security struct {
	Enabled bool `yaml:"enabled"`
}

// View holds the defaults of filter requests.
type View struct {
	AutoLike bool `yaml:"auto_like"`
	MaxRows  int  `yaml:"max_rows"`
}

// Log configures the structured logger.
type Log struct {
	Level string `yaml:"level"`
}

// Engine configures the transaction orchestrator.
type Engine struct {
	MaxItems int `yaml:"max_items"`
}

// FieldError names the configuration field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsFieldError reports whether err is a FieldError.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: "tablegate.db",
		Catalog:  "catalog",
		Log:      Log{Level: "info"},
		Engine:   Engine{MaxItems: engine.DefaultMaxItems},
	}
}

// Load reads and validates the file at path. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return &FieldError{Field: "database", Message: "must not be empty"}
	}
	if strings.TrimSpace(c.Catalog) == "" {
		return &FieldError{Field: "catalog", Message: "must not be empty"}
	}
	if c.View.MaxRows < 0 {
		return &FieldError{Field: "view.max_rows", Message: "must be >= 0"}
	}
	if c.Engine.MaxItems < 0 {
		return &FieldError{Field: "engine.max_items", Message: "must be >= 0"}
	}
	if _, ok := parseLevel(c.Log.Level); !ok {
		return &FieldError{
			Field:   "log.level",
			Message: fmt.Sprintf("unknown level %q (want debug, info, warn or error)", c.Log.Level),
		}
	}
	return nil
}

// LogLevel returns the slog level of Log.Level. Unknown levels map to info.
func (c *Config) LogLevel() slog.Level {
	lvl, _ := parseLevel(c.Log.Level)
	return lvl
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}
