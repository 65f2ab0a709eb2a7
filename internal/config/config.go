// Package config loads and validates dtadmin YAML configuration.
// It applies defaults and environment overrides so commands can rely on
// fully populated values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DTADMIN_"

// Store kinds.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreMemory = "memory"
)

// APIConfig holds backend connection settings.
type APIConfig struct {
	Addr      string        `yaml:"addr"`
	Insecure  bool          `yaml:"insecure"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent,omitempty"`
}

// StoreConfig selects where tokens are kept.
type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
	JSON  bool   `yaml:"json,omitempty"`
}

// UIConfig holds console settings.
type UIConfig struct {
	PageSize       int           `yaml:"page_size"`
	SearchDebounce time.Duration `yaml:"search_debounce"`
}

// Config mirrors the config.yaml schema.
type Config struct {
	API   APIConfig   `yaml:"api"`
	Store StoreConfig `yaml:"store"`
	Log   LogConfig   `yaml:"log"`
	UI    UIConfig    `yaml:"ui"`

	// Path is where the config was read from; empty when no file existed.
	Path string `yaml:"-"`
}

// Dir returns the per-user configuration directory for dtadmin.
func Dir() string {
	if d := os.Getenv(EnvPrefix + "HOME"); d != "" {
		return d
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return ".dtadmin"
	}
	return filepath.Join(base, "dtadmin")
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	if p := os.Getenv(EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// LoadEnv loads .env files into the process environment. Missing files are
// skipped; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a YAML config file, applies defaults and environment
// overrides, and validates the result. A missing file is not an error
// so that DTADMIN_* variables alone can configure a session.
func Load(path string) (Config, error) {
	var c Config
	if path == "" {
		return c, errors.New("config path is required")
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return c, err
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
		c.Path = path
	}
	if err := applyEnv(&c, os.LookupEnv); err != nil {
		return Config{}, err
	}
	applyDefaults(&c)
	if err := validate(&c); err != nil {
		return Config{}, err
	}
	c.API.Addr = strings.TrimRight(strings.TrimSpace(c.API.Addr), "/")
	c.Store.Path = strings.TrimSpace(c.Store.Path)
	c.Log.File = strings.TrimSpace(c.Log.File)
	return c, nil
}

// Save writes c to path with private permissions.
func Save(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Default returns a config with defaults applied and no API address.
func Default() Config {
	var c Config
	applyDefaults(&c)
	return c
}

type lookupFunc func(string) (string, bool)

// applyEnv overlays DTADMIN_* variables onto c.
func applyEnv(c *Config, lookup lookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("API_ADDR", &c.API.Addr)
	str("API_USER_AGENT", &c.API.UserAgent)
	str("STORE_KIND", &c.Store.Kind)
	str("STORE_PATH", &c.Store.Path)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)

	for name, dst := range map[string]*bool{
		"API_INSECURE": &c.API.Insecure,
		"LOG_JSON":     &c.Log.JSON,
	} {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	for name, dst := range map[string]*time.Duration{
		"API_TIMEOUT":        &c.API.Timeout,
		"UI_SEARCH_DEBOUNCE": &c.UI.SearchDebounce,
	} {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = d
		}
	}
	if v, ok := lookup(EnvPrefix + "UI_PAGE_SIZE"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sUI_PAGE_SIZE: %w", EnvPrefix, err)
		}
		c.UI.PageSize = n
	}
	return nil
}

// applyDefaults populates zero-values with sane defaults.
func applyDefaults(c *Config) {
	if c.API.Timeout == 0 {
		c.API.Timeout = 20 * time.Second
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreSQLite
	}
	if c.Store.Path == "" {
		switch c.Store.Kind {
		case StoreFile:
			c.Store.Path = filepath.Join(Dir(), "session.json")
		case StoreSQLite:
			c.Store.Path = filepath.Join(Dir(), "dtadmin.db")
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.UI.PageSize == 0 {
		c.UI.PageSize = 10
	}
	if c.UI.SearchDebounce == 0 {
		c.UI.SearchDebounce = 300 * time.Millisecond
	}
}

// validate performs basic sanity checks for required fields and ranges.
// It does not mutate the config. The API address may be empty until setup
// runs; commands that talk to the backend check it with RequireAPI.
func validate(c *Config) error {
	if strings.TrimSpace(c.Log.Level) == "" {
		return errors.New("log.level is required")
	}
	switch c.Store.Kind {
	case StoreSQLite, StoreFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.kind %q is invalid", c.Store.Kind)
	}
	if c.API.Timeout < time.Second || c.API.Timeout > 10*time.Minute {
		return errors.New("api.timeout is invalid")
	}
	if c.UI.PageSize < 1 || c.UI.PageSize > 100 {
		return errors.New("ui.page_size is invalid")
	}
	if c.UI.SearchDebounce < 0 || c.UI.SearchDebounce > 5*time.Second {
		return errors.New("ui.search_debounce is invalid")
	}
	if a := strings.TrimSpace(c.API.Addr); a != "" {
		if err := checkAddr(a); err != nil {
			return err
		}
	}
	return nil
}

// RequireAPI reports a missing backend address.
func (c Config) RequireAPI() error {
	if c.API.Addr == "" {
		return errors.New("api.addr is not configured; run dtadmin setup or set " + EnvPrefix + "API_ADDR")
	}
	return nil
}

func checkAddr(a string) error {
	if !strings.Contains(a, "://") {
		a = "https://" + a
	}
	u, err := url.Parse(a)
	if err != nil {
		return fmt.Errorf("api.addr: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("api.addr must be http or https")
	}
	if u.Host == "" {
		return errors.New("api.addr has no host")
	}
	return nil
}
