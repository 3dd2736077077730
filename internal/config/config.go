package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arcanaland/cardwatch/internal/card"
)

// Config represents the application configuration
type Config struct {
	BaseURL         string            `toml:"base_url"`
	CardsPath       string            `toml:"cards_path"`
	ContainerID     string            `toml:"container_id"`
	PollInterval    Duration          `toml:"poll_interval"`
	RequestTimeout  Duration          `toml:"request_timeout"`
	ListenAddr      string            `toml:"listen_addr"`
	SnapshotBackend string            `toml:"snapshot_backend"`
	SnapshotKey     string            `toml:"snapshot_key"`
	Templates       map[string]string `toml:"templates"`
}

// Duration is a time.Duration written as a string such as "5s"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration written on first run
func Default() *Config {
	return &Config{
		BaseURL:         "http://localhost:5000",
		CardsPath:       "/api/cards",
		ContainerID:     "cards-container",
		PollInterval:    Duration{5 * time.Second},
		ListenAddr:      "127.0.0.1:8080",
		SnapshotBackend: "file",
		SnapshotKey:     "cards",
		Templates: map[string]string{
			string(card.StatusOne):   "/card_1.html",
			string(card.StatusTwo):   "/card_2.html",
			string(card.StatusThree): "/card_3.html",
		},
	}
}

// GetXDGConfigHome returns XDG_CONFIG_HOME or default path
func GetXDGConfigHome() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return xdgConfig
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// GetXDGCacheHome returns XDG_CACHE_HOME or default path
func GetXDGCacheHome() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return xdgCache
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".cache")
}

// GetCacheDir returns the directory holding snapshots and generated art
func GetCacheDir() string {
	return filepath.Join(GetXDGCacheHome(), "cardwatch")
}

// GetConfigFilePath returns the path to the config file
func GetConfigFilePath() string {
	return filepath.Join(GetXDGConfigHome(), "cardwatch", "config.toml")
}

// LoadConfig loads the config file at the default path
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(GetConfigFilePath())
}

// LoadConfigFrom loads the config file at configPath, creating it with
// defaults if it doesn't exist. Keys missing from the file keep their
// default values.
func LoadConfigFrom(configPath string) (*Config, error) {
	// Create default config if it doesn't exist
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return createDefaultConfig(configPath)
	}

	config := Default()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// createDefaultConfig creates a default config file
func createDefaultConfig(configPath string) (*Config, error) {
	config := Default()
	if err := WriteConfig(configPath, config); err != nil {
		return nil, err
	}
	return config, nil
}

// WriteConfig encodes config as TOML at configPath
func WriteConfig(configPath string, config *Config) error {
	// Ensure the config directory exists
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return nil
}

// Validate checks the values the poller cannot run without
func (c *Config) Validate() error {
	if _, err := c.base(); err != nil {
		return err
	}
	if c.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval.Duration)
	}
	if c.RequestTimeout.Duration < 0 {
		return fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout.Duration)
	}
	if c.ContainerID == "" {
		return fmt.Errorf("container_id is required")
	}
	if c.SnapshotKey == "" {
		return fmt.Errorf("snapshot_key is required")
	}
	if len(c.Templates) == 0 {
		return fmt.Errorf("no templates configured")
	}
	return nil
}

func (c *Config) base() (*url.URL, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base_url must be an http(s) URL, got %q", c.BaseURL)
	}
	return u, nil
}

// Base returns the parsed base URL
func (c *Config) Base() (*url.URL, error) {
	return c.base()
}

// Resolve turns a ref from the config into an absolute fetchable ref.
// Absolute URLs and builtin: refs are kept, file: refs become local paths,
// paths starting with "/" are resolved against base_url and anything else is
// a relative local file path.
func (c *Config) Resolve(ref string) (string, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "builtin:"):
		return ref, nil
	case strings.HasPrefix(ref, "file:"):
		return strings.TrimPrefix(ref, "file:"), nil
	case strings.HasPrefix(ref, "/"):
		base, err := c.base()
		if err != nil {
			return "", err
		}
		rel, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("invalid ref %q: %w", ref, err)
		}
		return base.ResolveReference(rel).String(), nil
	default:
		return ref, nil
	}
}

// CardsURL returns the absolute URL of the cards endpoint
func (c *Config) CardsURL() (string, error) {
	return c.Resolve(c.CardsPath)
}

// TemplateRefs returns the resolved template refs keyed by status
func (c *Config) TemplateRefs() (map[card.Status]string, error) {
	refs := make(map[card.Status]string, len(c.Templates))
	for status, ref := range c.Templates {
		resolved, err := c.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", status, err)
		}
		refs[card.Status(status)] = resolved
	}
	return refs, nil
}
