package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel    string            `json:"log_level" yaml:"log_level"`
	Vendor      VendorConfig      `json:"vendor" yaml:"vendor"`
	Report      ReportConfig      `json:"report" yaml:"report"`
	API         APIConfig         `json:"api" yaml:"api"`
	Credentials CredentialsConfig `json:"credentials" yaml:"credentials"`
	Publish     PublishConfig     `json:"publish" yaml:"publish"`
}

// VendorConfig points at the third-party access-control API.
type VendorConfig struct {
	BaseURL      string        `json:"base_url" yaml:"base_url"`
	ClientID     string        `json:"client_id" yaml:"client_id"`
	ClientSecret string        `json:"client_secret" yaml:"client_secret"`
	SiteID       string        `json:"site_id" yaml:"site_id"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

type ReportConfig struct {
	DefaultThresholdMinutes int    `json:"default_threshold_minutes" yaml:"default_threshold_minutes"`
	AreaLabel               string `json:"area_label" yaml:"area_label"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// CredentialsConfig selects where the cached vendor token lives.
// Driver is one of memory, sqlite, postgres.
type CredentialsConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type PublishConfig struct {
	Enabled    bool     `json:"enabled" yaml:"enabled"`
	Brokers    []string `json:"brokers" yaml:"brokers"`
	Topic      string   `json:"topic" yaml:"topic"`
	StoreLimit int      `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Vendor: VendorConfig{
			Timeout: 15 * time.Second,
		},
		Report: ReportConfig{
			DefaultThresholdMinutes: 45,
			AreaLabel:               "Break Area",
		},
		API: APIConfig{Enabled: true, Addr: ":8080"},
		Credentials: CredentialsConfig{
			Driver: "memory",
		},
		Publish: PublishConfig{Enabled: false, StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Vendor.Timeout <= 0 {
		cfg.Vendor.Timeout = 15 * time.Second
	}
	if cfg.Report.DefaultThresholdMinutes < 0 {
		cfg.Report.DefaultThresholdMinutes = 0
	}
	if cfg.Report.AreaLabel == "" {
		cfg.Report.AreaLabel = "Break Area"
	}
	if cfg.Credentials.Driver == "" {
		cfg.Credentials.Driver = "memory"
	}
	if cfg.Publish.StoreLimit <= 0 {
		cfg.Publish.StoreLimit = 1000
	}
}

func Validate(cfg *Config) error {
	if cfg.Vendor.BaseURL == "" {
		return errors.New("vendor.base_url is required")
	}
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	switch strings.ToLower(cfg.Credentials.Driver) {
	case "memory", "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("credentials.driver %q is not one of memory, sqlite, postgres", cfg.Credentials.Driver)
	}
	if cfg.Publish.Enabled {
		if len(cfg.Publish.Brokers) == 0 || cfg.Publish.Topic == "" {
			return errors.New("publish requires brokers and topic when enabled")
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) NeedsReload() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

func (m *Manager) Watch(interval time.Duration, onReload func(*Config), onError func(error), stop <-chan struct{}) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := m.NeedsReload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := m.Reload()
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onReload != nil {
				onReload(cfg)
			}
		case <-stop:
			return
		}
	}
}

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
