// Package config handles bibsync's global configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents configuration stored in ~/.config/bibsync/config.yml.
// Empty fields take their defaults in Resolve.
type Config struct {
	PapersDir         string  `yaml:"papers_dir,omitempty"`
	NotesDir          string  `yaml:"notes_dir,omitempty"`
	DataDir           string  `yaml:"data_dir,omitempty"`
	ParseTimeout      string  `yaml:"parse_timeout,omitempty"` // Go duration, e.g. "10s"
	CrossrefMailto    string  `yaml:"crossref_mailto,omitempty"`
	CrossrefRateLimit float64 `yaml:"crossref_rate_limit,omitempty"` // Requests per second
	ListenAddr        string  `yaml:"listen_addr,omitempty"`
	LogLevel          string  `yaml:"log_level,omitempty"`
	LogFormat         string  `yaml:"log_format,omitempty"` // json or console
	PDFViewer         string  `yaml:"pdf_viewer,omitempty"` // "system" or a command
}

const (
	// ConfigDir is the directory name under XDG_CONFIG_HOME and XDG_DATA_HOME.
	ConfigDir = "bibsync"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"

	DefaultPapersDir    = "~/Papers"
	DefaultParseTimeout = 10 * time.Second
	DefaultListenAddr   = "127.0.0.1:7717"
	DefaultLogLevel     = "info"
)

// Environment variables that override the config file.
const (
	EnvPapersDir      = "BIBSYNC_PAPERS_DIR"
	EnvNotesDir       = "BIBSYNC_NOTES_DIR"
	EnvDataDir        = "BIBSYNC_DATA_DIR"
	EnvCrossrefMailto = "BIBSYNC_CROSSREF_MAILTO"
)

// ErrUnknownKey is returned by Get and Set for a key that is not a config field.
var ErrUnknownKey = errors.New("unknown config key")

// Path returns the path to the config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/bibsync/config.yml.
func Path() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, ConfigDir, ConfigFile)
}

// DefaultDataDir returns $XDG_DATA_HOME/bibsync, or ~/.local/share/bibsync.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join("~", ".local", "share")
	}
	return filepath.Join(dataHome, ConfigDir)
}

// LoadEnv loads a .env file from the working directory, if present.
// Variables already set in the environment win.
func LoadEnv() {
	_ = godotenv.Load()
}

// LoadFile reads the config file at path without applying defaults.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file, applies environment overrides and defaults,
// and validates the result.
func Load() (*Config, error) {
	cfg, err := LoadFile(Path())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BIBSYNC_* environment variables.
func (c *Config) ApplyEnv() {
	overrides := map[string]*string{
		EnvPapersDir:      &c.PapersDir,
		EnvNotesDir:       &c.NotesDir,
		EnvDataDir:        &c.DataDir,
		EnvCrossrefMailto: &c.CrossrefMailto,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

// Resolve fills empty fields with defaults and expands ~ in directories.
// The notes directory defaults to "notes" under the papers directory.
func (c *Config) Resolve() {
	if c.PapersDir == "" {
		c.PapersDir = DefaultPapersDir
	}
	c.PapersDir = ExpandPath(c.PapersDir)
	if c.NotesDir == "" {
		c.NotesDir = filepath.Join(c.PapersDir, "notes")
	}
	c.NotesDir = ExpandPath(c.NotesDir)
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	c.DataDir = ExpandPath(c.DataDir)
	if c.ParseTimeout == "" {
		c.ParseTimeout = DefaultParseTimeout.String()
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks field formats.
func (c *Config) Validate() error {
	if c.ParseTimeout != "" {
		d, err := time.ParseDuration(c.ParseTimeout)
		if err != nil {
			return fmt.Errorf("invalid parse_timeout %q: %w", c.ParseTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid parse_timeout %q: must be positive", c.ParseTimeout)
		}
	}
	if c.CrossrefRateLimit < 0 {
		return fmt.Errorf("invalid crossref_rate_limit %v: must not be negative", c.CrossrefRateLimit)
	}
	switch c.LogFormat {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid log_format %q (valid: json, console)", c.LogFormat)
	}
	return nil
}

// ParseTimeoutDuration returns the parse budget, or the default when unset
// or invalid.
func (c *Config) ParseTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ParseTimeout)
	if err != nil || d <= 0 {
		return DefaultParseTimeout
	}
	return d
}

// Save writes the config to path, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// fields maps config keys to string accessors.
func (c *Config) fields() map[string]*string {
	return map[string]*string{
		"papers_dir":      &c.PapersDir,
		"notes_dir":       &c.NotesDir,
		"data_dir":        &c.DataDir,
		"parse_timeout":   &c.ParseTimeout,
		"crossref_mailto": &c.CrossrefMailto,
		"listen_addr":     &c.ListenAddr,
		"log_level":       &c.LogLevel,
		"log_format":      &c.LogFormat,
		"pdf_viewer":      &c.PDFViewer,
	}
}

// Keys returns every config key in sorted order.
func Keys() []string {
	keys := []string{"crossref_rate_limit"}
	for k := range (&Config{}).fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key as a string.
func (c *Config) Get(key string) (string, error) {
	if key == "crossref_rate_limit" {
		if c.CrossrefRateLimit == 0 {
			return "", nil
		}
		return strconv.FormatFloat(c.CrossrefRateLimit, 'f', -1, 64), nil
	}
	field, ok := c.fields()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return *field, nil
}

// Set assigns value to key and validates the result.
func (c *Config) Set(key, value string) error {
	if key == "crossref_rate_limit" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid crossref_rate_limit %q: %w", value, err)
		}
		c.CrossrefRateLimit = f
		return c.Validate()
	}
	field, ok := c.fields()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	*field = value
	return c.Validate()
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
