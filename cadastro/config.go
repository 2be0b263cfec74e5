// Package cadastro assembles the registration shell: a page session that
// navigates in place, masks and validates the registration form, persists
// accepted registrations, and exposes all of it to scripts and MCP clients.
package cadastro

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/ongspa/form"
)

// Config is the top-level configuration.
type Config struct {
	BaseURL    string           `yaml:"base_url"`
	Index      string           `yaml:"index"`
	DBPath     string           `yaml:"db_path"`
	Navigation NavigationConfig `yaml:"navigation"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Form       FormConfig       `yaml:"form"`
	Site       SiteConfig       `yaml:"site"`
	Script     []Step           `yaml:"script"`
}

// NavigationConfig controls in-place navigation.
type NavigationConfig struct {
	ContentSelector string `yaml:"content_selector"`
	ApplyStale      bool   `yaml:"apply_stale"` // let late responses overwrite newer pages
	Sanitize        *bool  `yaml:"sanitize"`    // default true
}

// FetchConfig controls document retrieval.
type FetchConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"` // 0 = none
	MaxBody   int64         `yaml:"max_body"`
}

// FormConfig controls the registration pipeline.
type FormConfig struct {
	MinAge     int    `yaml:"min_age"`
	StorageKey string `yaml:"storage_key"`
}

// SiteConfig controls the page server.
type SiteConfig struct {
	Addr string `yaml:"addr"`
	Dir  string `yaml:"dir"` // empty = embedded demo site
}

// Step is one scripted interaction. Exactly one field is set.
type Step struct {
	Open    string     `yaml:"open,omitempty"`
	Click   string     `yaml:"click,omitempty"`
	Input   *InputStep `yaml:"input,omitempty"`
	Submit  string     `yaml:"submit,omitempty"`
	Back    bool       `yaml:"back,omitempty"`
	Forward bool       `yaml:"forward,omitempty"`
}

// InputStep types value into the element matching selector.
type InputStep struct {
	Selector string `yaml:"selector"`
	Value    string `yaml:"value"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cadastro: config: %w", err)
	}
	cfg.applyDefaults()
	if err := checkKey(cfg.Form.StorageKey); err != nil {
		return nil, fmt.Errorf("cadastro: config: form.storage_key: %w", err)
	}
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// SanitizeRegions reports whether injected regions are sanitised.
func (c *Config) SanitizeRegions() bool {
	return c.Navigation.Sanitize == nil || *c.Navigation.Sanitize
}

func (c *Config) applyDefaults() {
	if c.Site.Addr == "" {
		c.Site.Addr = ":8086"
	}
	if c.BaseURL == "" {
		host := c.Site.Addr
		if strings.HasPrefix(host, ":") {
			host = "127.0.0.1" + host
		}
		c.BaseURL = "http://" + host + "/"
	}
	if c.Index == "" {
		c.Index = "index.html"
	}
	if c.DBPath == "" {
		c.DBPath = "data/cadastro.db"
	}
	if c.Navigation.ContentSelector == "" {
		c.Navigation.ContentSelector = "main"
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (compatible; ongspa/1.0)"
	}
	if c.Fetch.MaxBody <= 0 {
		c.Fetch.MaxBody = 10 << 20
	}
	if c.Form.MinAge <= 0 {
		c.Form.MinAge = form.DefaultMinAge
	}
	if c.Form.StorageKey == "" {
		c.Form.StorageKey = "cadastros_ong"
	}
}

// checkKey accepts storage keys made of letters, digits, '_', '-' and '.'.
func checkKey(key string) error {
	if len(key) > 256 {
		return fmt.Errorf("key too long (max 256)")
	}
	for _, r := range key {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
		if !ok {
			return fmt.Errorf("invalid character %q in key", r)
		}
	}
	return nil
}
