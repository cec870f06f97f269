// Package config holds orbweaver's runtime options.
//
// Values are layered: NewConfig defaults, then a YAML file, then ORBWEAVER_*
// environment variables, then command line flags applied by the caller.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultMaxSubPages means "follow every sub-page".
	DefaultMaxSubPages = 99999

	DefaultRenderer      = RendererChrome
	DefaultQueryLanguage = "css"

	// DefaultRequestTimeout bounds one page navigation.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultNetworkIdleTimeout bounds the wait for network idle after the
	// navigation committed. Pages that never go idle are read as they are.
	DefaultNetworkIdleTimeout = 10 * time.Second

	DefaultUserAgent = "orbweaver/1.0 (+https://github.com/kareemsasa3/orbweaver)"

	// DefaultRetryAttempts of 1 means a fetch is tried once.
	DefaultRetryAttempts = 1
	DefaultRetryDelay    = 1 * time.Second

	DefaultLogLevel = "info"
	DefaultPort     = 8080

	// AppName is used for XDG paths and the environment prefix.
	AppName = "orbweaver"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ORBWEAVER_"
)

// Renderer names
const (
	RendererChrome = "chrome"
	RendererRod    = "rod"
	RendererStatic = "static"
)

// Config holds all runtime options
type Config struct {
	// MaxSubPages caps the pages visited beyond the root page.
	MaxSubPages int `yaml:"max_sub_pages"`

	// Renderer selects the page renderer: chrome, rod or static.
	Renderer string `yaml:"renderer"`

	// QueryLanguage selects how selector expressions are read: css or xpath.
	QueryLanguage string `yaml:"query_language"`

	RequestTimeout     time.Duration `yaml:"request_timeout"`
	NetworkIdleTimeout time.Duration `yaml:"network_idle_timeout"`

	// Security-related browser flags, off unless asked for.
	HeadlessNoSandbox        bool `yaml:"headless_no_sandbox"`
	HeadlessIgnoreCertErrors bool `yaml:"headless_ignore_cert_errors"`

	// ChromePath overrides browser binary discovery.
	ChromePath string `yaml:"chrome_path"`
	UserAgent  string `yaml:"user_agent"`

	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`

	LogLevel string `yaml:"log_level"`
	// LogFile switches logging to a rotated JSON file.
	LogFile string `yaml:"log_file"`

	Port          int    `yaml:"port"`
	APIToken      string `yaml:"api_token"`
	EnableMetrics bool   `yaml:"enable_metrics"`
}

// NewConfig creates a Config with default values
func NewConfig() *Config {
	return &Config{
		MaxSubPages:        DefaultMaxSubPages,
		Renderer:           DefaultRenderer,
		QueryLanguage:      DefaultQueryLanguage,
		RequestTimeout:     DefaultRequestTimeout,
		NetworkIdleTimeout: DefaultNetworkIdleTimeout,
		UserAgent:          DefaultUserAgent,
		RetryAttempts:      DefaultRetryAttempts,
		RetryDelay:         DefaultRetryDelay,
		LogLevel:           DefaultLogLevel,
		Port:               DefaultPort,
		EnableMetrics:      true,
	}
}

// XDGConfigDir returns the per-user config directory
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// DefaultConfigFile is where Load looks when no file is given
func DefaultConfigFile() string {
	return filepath.Join(XDGConfigDir(), "config.yaml")
}

// Validate checks the configuration and returns the first problem found
func (c *Config) Validate() error {
	if c.MaxSubPages < 0 {
		return ErrInvalidMaxSubPages
	}

	switch strings.ToLower(c.Renderer) {
	case RendererChrome, RendererRod, RendererStatic:
	default:
		return ErrUnknownRenderer
	}

	switch strings.ToLower(c.QueryLanguage) {
	case "css", "xpath":
	default:
		return ErrUnknownQueryLanguage
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.NetworkIdleTimeout < 0 {
		return ErrInvalidTimeout
	}

	if c.RetryAttempts < 1 {
		return ErrInvalidRetryAttempts
	}
	if c.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}

	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}

	return nil
}
