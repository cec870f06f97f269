package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path falls back to DefaultConfigFile, which may be
// absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile()
	}

	if err := cfg.loadFile(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			err = nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from ORBWEAVER_* variables. lookup is
// os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, f := range []struct {
		name string
		set  func(string) error
	}{
		{"MAX_SUB_PAGES", intSetter(&c.MaxSubPages)},
		{"RENDERER", stringSetter(&c.Renderer)},
		{"QUERY_LANGUAGE", stringSetter(&c.QueryLanguage)},
		{"REQUEST_TIMEOUT", durationSetter(&c.RequestTimeout)},
		{"NETWORK_IDLE_TIMEOUT", durationSetter(&c.NetworkIdleTimeout)},
		{"HEADLESS_NO_SANDBOX", boolSetter(&c.HeadlessNoSandbox)},
		{"HEADLESS_IGNORE_CERT_ERRORS", boolSetter(&c.HeadlessIgnoreCertErrors)},
		{"CHROME_PATH", stringSetter(&c.ChromePath)},
		{"USER_AGENT", stringSetter(&c.UserAgent)},
		{"RETRY_ATTEMPTS", intSetter(&c.RetryAttempts)},
		{"RETRY_DELAY", durationSetter(&c.RetryDelay)},
		{"LOG_LEVEL", stringSetter(&c.LogLevel)},
		{"LOG_FILE", stringSetter(&c.LogFile)},
		{"PORT", intSetter(&c.Port)},
		{"API_TOKEN", stringSetter(&c.APIToken)},
		{"ENABLE_METRICS", boolSetter(&c.EnableMetrics)},
	} {
		v, ok := lookup(EnvPrefix + f.name)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := f.set(strings.TrimSpace(v)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, f.name, err)
		}
	}
	return nil
}

func stringSetter(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

func durationSetter(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}
