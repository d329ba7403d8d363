package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const (
	// RecordName is the site record kept at the top of every project directory.
	RecordName = "config.toml"
	// LockName is the file sync locks to keep two runs from interleaving.
	LockName = ".neocities.lock"
	// IgnoreName holds optional gitignore-style patterns excluded from sync.
	IgnoreName = ".neocitiesignore"

	DefaultDelay = 10
)

var (
	// ErrConfigNotFound is returned when a site record is missing or unusable.
	ErrConfigNotFound = errors.New("site config not found")

	directions = []string{"both", "push", "pull"}
	policies   = []string{"newer", "local", "remote"}
)

const recordHeader = `# NeoCities site record. Keep this file private: it holds your API key.
#
# site and key are required. The remaining settings are optional:
#   loglevel         logrus level, default "info"
#   delay            seconds to wait after every API call, default 10
#   direction        both | push | pull, default "both"
#   conflict_policy  newer | local | remote, default "newer"
#   api_url          override of https://neocities.org/api/
#   site_url         override of https://<site>.neocities.org/
#   ignore           gitignore-style patterns excluded from sync

`

// Config is the site record of one project directory
type Config struct {
	Site           string   `toml:"site"`
	Key            string   `toml:"key"`
	Loglevel       string   `toml:"loglevel"`
	Delay          int      `toml:"delay"`
	Direction      string   `toml:"direction"`
	ConflictPolicy string   `toml:"conflict_policy"`
	APIURL         string   `toml:"api_url,omitempty"`
	SiteURL        string   `toml:"site_url,omitempty"`
	Ignore         []string `toml:"ignore,omitempty"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Loglevel:       "info",
		Delay:          DefaultDelay,
		Direction:      "both",
		ConflictPolicy: "newer",
	}
}

// DelayDuration returns the configured delay as a time.Duration.
func (c *Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Second
}

// ProjectDir returns the directory of site under basePath, expanding a leading ~.
func ProjectDir(basePath, site string) (string, error) {
	base, err := expand(basePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, site), nil
}

// RecordPath returns the path of the site record inside projectDir.
func RecordPath(projectDir string) string {
	return filepath.Join(projectDir, RecordName)
}

// CreateSite makes sure <basePath>/<siteName> exists and holds a site record.
// An existing record is never touched, so calling it twice is harmless.
func CreateSite(fs afero.Fs, siteName, apiKey, basePath string) error {
	dir, err := ProjectDir(basePath, siteName)
	if err != nil {
		return err
	}

	if err := fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	recordPath := RecordPath(dir)
	exists, err := afero.Exists(fs, recordPath)
	if err != nil {
		return fmt.Errorf("unable to stat %s: %w", recordPath, err)
	}
	if exists {
		return nil
	}

	cfg := DefaultConfig()
	cfg.Site = siteName
	cfg.Key = apiKey
	return write(fs, recordPath, cfg)
}

// UpdateSite replaces the site name and key of an existing record, keeping
// every other setting.
func UpdateSite(fs afero.Fs, projectDir, siteName, apiKey string) error {
	dir, err := expand(projectDir)
	if err != nil {
		return err
	}
	cfg, err := Load(fs, dir)
	if err != nil {
		return err
	}

	cfg.Site = siteName
	cfg.Key = apiKey
	return write(fs, RecordPath(dir), cfg)
}

// Load reads the site record of projectDir
func Load(fs afero.Fs, projectDir string) (*Config, error) {
	dir, err := expand(projectDir)
	if err != nil {
		return nil, err
	}
	recordPath := RecordPath(dir)

	data, err := afero.ReadFile(fs, recordPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, recordPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrConfigNotFound, recordPath, err)
	}
	if cfg.Site == "" || cfg.Key == "" {
		return nil, fmt.Errorf("%w: %s is missing site or key", ErrConfigNotFound, recordPath)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Site == "" {
		return fmt.Errorf("site is required")
	}
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if _, err := logrus.ParseLevel(c.Loglevel); err != nil {
		return fmt.Errorf("loglevel must be one of: panic, fatal, error, warn, info, debug, trace")
	}
	if !oneOf(c.Direction, directions) {
		return fmt.Errorf("direction must be one of: %v", directions)
	}
	if !oneOf(c.ConflictPolicy, policies) {
		return fmt.Errorf("conflict_policy must be one of: %v", policies)
	}

	validateURL := func(name, raw string) error {
		if raw == "" {
			return nil
		}
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("%s is invalid: %v", name, err)
		}
		return nil
	}
	if err := validateURL("api_url", c.APIURL); err != nil {
		return err
	}
	if err := validateURL("site_url", c.SiteURL); err != nil {
		return err
	}

	return nil
}

func write(fs afero.Fs, recordPath string, cfg *Config) error {
	var buf bytes.Buffer
	buf.WriteString(recordHeader)
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// The record holds the API key.
	if err := afero.WriteFile(fs, recordPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func expand(p string) (string, error) {
	if p == "" {
		p = "."
	}
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", p, err)
	}
	return expanded, nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
