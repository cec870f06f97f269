package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kareemsasa3/orbweaver/internal/types"
)

// LoadSitemap reads and validates a sitemap from a .json, .yaml or .yml file
func LoadSitemap(path string) (*types.Sitemap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var format string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = "json"
	case ".yaml", ".yml":
		format = "yaml"
	default:
		return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedSitemapFormat)
	}

	sitemap, err := ParseSitemap(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sitemap, nil
}

// ParseSitemap decodes a sitemap document in the given format ("json" or
// "yaml") and validates it.
func ParseSitemap(data []byte, format string) (*types.Sitemap, error) {
	var sitemap types.Sitemap
	switch format {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&sitemap); err != nil {
			return nil, fmt.Errorf("decode sitemap: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &sitemap); err != nil {
			return nil, fmt.Errorf("decode sitemap: %w", err)
		}
	default:
		return nil, ErrUnsupportedSitemapFormat
	}

	if err := sitemap.Validate(); err != nil {
		return nil, err
	}
	return &sitemap, nil
}
