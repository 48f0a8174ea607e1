// Package config resolves registry settings from flags, environment and an
// optional YAML file.
//
// Precedence, highest first: command-line flag, environment variable, config
// file, built-in default.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/registry/internal/domain"
)

// Environment variables.
const (
	EnvDBPath   = "REGISTRY_DB_PATH"
	EnvConfig   = "REGISTRY_CONFIG"
	EnvUsername = "REGISTRY_USERNAME"
)

// DefaultDBPath is used when nothing else names the primary store.
var DefaultDBPath = filepath.Join("data", "app.db")

// DefaultListenAddr is the local-only address `serve` binds by default.
const DefaultListenAddr = "127.0.0.1:8733"

// Office is a selectable office code with its display label.
type Office struct {
	Code  string `yaml:"code" json:"code"`
	Label string `yaml:"label" json:"label"`
}

// FieldLabel is the Greek and English display label of a payload field.
type FieldLabel struct {
	El string `yaml:"el" json:"el"`
	En string `yaml:"en" json:"en"`
}

// Config is the decoded configuration file.
type Config struct {
	DBPath      string                `yaml:"db_path"`
	Username    string                `yaml:"username"`
	ListenAddr  string                `yaml:"listen_addr"`
	Offices     []Office              `yaml:"offices"`
	FieldLabels map[string]FieldLabel `yaml:"field_labels"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: DefaultListenAddr,
		Offices: []Office{
			{Code: "OFF-1", Label: "Office 1"},
			{Code: "OFF-2", Label: "Office 2"},
		},
		FieldLabels: map[string]FieldLabel{
			"issuer":          {El: "Αποστολέας", En: "Issuer"},
			"referenceNumber": {El: "Αρ. Αναφοράς", En: "Reference Number"},
			"subject":         {El: "Θέμα", En: "Subject"},
			"recipient":       {El: "Παραλήπτης", En: "Recipient"},
			"offices":         {El: "Γραφεία", En: "Offices"},
			"entryDate":       {El: "Ημερομηνία Καταχώρησης", En: "Entry Date"},
		},
	}
}

// Load reads the config file at path over the defaults. An empty path falls
// back to $REGISTRY_CONFIG; if that is empty too, Default() is returned.
//
// Unknown keys are rejected so that typos surface instead of being ignored.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file Config
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.merge(file)
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays the non-zero fields of file onto c.
func (c *Config) merge(file Config) {
	if file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if file.Username != "" {
		c.Username = file.Username
	}
	if file.ListenAddr != "" {
		c.ListenAddr = file.ListenAddr
	}
	if len(file.Offices) > 0 {
		c.Offices = file.Offices
	}
	for field, label := range file.FieldLabels {
		c.FieldLabels[field] = label
	}
}

func (c Config) validate() error {
	seen := make(map[string]bool, len(c.Offices))
	for _, o := range c.Offices {
		if o.Code == "" {
			return fmt.Errorf("office with label %q has no code", o.Label)
		}
		if seen[o.Code] {
			return fmt.Errorf("duplicate office code %q", o.Code)
		}
		seen[o.Code] = true
	}
	return nil
}

// ResolveDBPath picks the primary store path (flag, $REGISTRY_DB_PATH, config
// file, DefaultDBPath) and creates its parent directory.
func (c Config) ResolveDBPath(flag string) (string, error) {
	path := firstNonEmpty(flag, os.Getenv(EnvDBPath), c.DBPath, DefaultDBPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return path, nil
}

// ResolveUsername picks the audit username: flag, $REGISTRY_USERNAME, config
// file, then the OS login ($USERNAME on Windows, $USER elsewhere). Falls back
// to domain.UnknownUser.
func (c Config) ResolveUsername(flag string) string {
	return firstNonEmpty(
		flag,
		os.Getenv(EnvUsername),
		c.Username,
		os.Getenv("USERNAME"),
		os.Getenv("USER"),
		domain.UnknownUser,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
