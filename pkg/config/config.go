package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Environment variables that override file settings. They are also read from
// a .env file in the working directory or the config directory.
const (
	EnvBackendURL = "UNISEARCH_BACKEND_URL"
	EnvCSRFToken  = "UNISEARCH_CSRF_TOKEN"
	EnvSessionID  = "UNISEARCH_SESSION_ID"
)

const (
	defaultPrefix     = "/ai_universal_search"
	defaultCSRFHeader = "X-CSRFToken"
	defaultTimeout    = 30 * time.Second
)

type Config struct {
	StorageDir string        `toml:"storage_dir"`
	Backend    BackendConfig `toml:"backend"`
	Chart      ChartConfig   `toml:"chart"`
	Web        WebConfig     `toml:"web"`
	Support    SupportConfig `toml:"support"`
}

type BackendConfig struct {
	URL        string   `toml:"url"`
	Prefix     string   `toml:"prefix"`
	CSRFToken  string   `toml:"csrf_token"`
	CSRFHeader string   `toml:"csrf_header"`
	SessionID  string   `toml:"session_id"`
	Timeout    Duration `toml:"timeout"`
}

type ChartConfig struct {
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`
	Theme      string `toml:"theme"`
	MaxRecords int    `toml:"max_records"`
}

type WebConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

type SupportConfig struct {
	Email string `toml:"email"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfig reads configPath, falling back to defaults when the file does
// not exist, and applies environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	loadDotEnv(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err := GetDefaultConfig()
		if err != nil {
			return nil, err
		}
		cfg.applyEnv()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		config.StorageDir = storageDir
	}

	config.applyDefaults()
	config.applyEnv()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Backend.URL == "" {
		c.Backend.URL = "http://localhost:8069"
	}
	if c.Backend.Prefix == "" {
		c.Backend.Prefix = defaultPrefix
	}
	if c.Backend.CSRFHeader == "" {
		c.Backend.CSRFHeader = defaultCSRFHeader
	}
	if c.Backend.Timeout.Duration == 0 {
		c.Backend.Timeout = Duration{defaultTimeout}
	}
	if c.Chart.Width <= 0 {
		c.Chart.Width = 960
	}
	if c.Chart.Height <= 0 {
		c.Chart.Height = 540
	}
	if c.Chart.Theme == "" {
		c.Chart.Theme = "light"
	}
	if c.Web.Host == "" {
		c.Web.Host = "localhost"
	}
	if c.Web.Port == "" {
		c.Web.Port = "8080"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvBackendURL); v != "" {
		c.Backend.URL = v
	}
	if v := os.Getenv(EnvCSRFToken); v != "" {
		c.Backend.CSRFToken = v
	}
	if v := os.Getenv(EnvSessionID); v != "" {
		c.Backend.SessionID = v
	}
}

// loadDotEnv loads .env files without overriding variables already set.
// Missing files are ignored.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	}
	for _, path := range candidates {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", path, err)
		}
	}
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		errs = append(errs, fmt.Errorf("backend.url must start with http:// or https://, got %q", c.Backend.URL))
	}
	if c.Chart.Theme != "light" && c.Chart.Theme != "dark" {
		errs = append(errs, fmt.Errorf("chart.theme must be light or dark, got %q", c.Chart.Theme))
	}
	if c.Chart.MaxRecords < 0 {
		errs = append(errs, fmt.Errorf("chart.max_records must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0600)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/unisearch", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0600)
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/unisearch, creating it.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "unisearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// DBPath returns the cache database path inside the storage directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, "cache.db")
}

// GetConfigDir returns $XDG_CONFIG_HOME/unisearch, creating it.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "unisearch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
