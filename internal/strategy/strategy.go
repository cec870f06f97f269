// Package strategy provides the page renderers a crawl fetches through.
package strategy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/logger"
	"github.com/kareemsasa3/orbweaver/internal/metrics"
)

// Renderer turns a URL into rendered markup. One renderer serves one crawl
// session: Start before the first Open, Shutdown after the last page is
// closed.
type Renderer interface {
	Start(ctx context.Context) error
	// Open navigates to url and waits for the page to settle. Navigation
	// failures are returned as fetch errors.
	Open(ctx context.Context, url string) (RenderedPage, error)
	Shutdown() error
	Name() string
}

// RenderedPage is an open page handle. Callers must Close it.
type RenderedPage interface {
	// URL is the document URL, after redirects where the renderer knows them.
	URL() string
	Content(ctx context.Context) (string, error)
	Close() error
}

// New builds the renderer selected by cfg.Renderer, wrapped in a retry layer
// when cfg.RetryAttempts > 1.
func New(cfg *config.Config, log *logger.Logger, m *metrics.PrometheusMetrics) (Renderer, error) {
	var r Renderer
	switch strings.ToLower(cfg.Renderer) {
	case config.RendererChrome, "":
		r = NewHeadlessStrategy(cfg, log)
	case config.RendererRod:
		r = NewRodStrategy(cfg, log)
	case config.RendererStatic:
		r = NewStaticStrategy(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownRenderer, cfg.Renderer)
	}

	if cfg.RetryAttempts > 1 {
		r = NewRetryStrategy(r, cfg.RetryAttempts, cfg.RetryDelay, log, m)
	}
	return r, nil
}

// chromePaths are checked in order when no browser binary is configured
var chromePaths = []string{
	"/usr/bin/chromium-browser", // Alpine Linux
	"/usr/bin/chromium",
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/snap/bin/chromium",
}

// findChrome returns the configured binary or the first one installed.
// An empty result lets the browser library pick its own default.
func findChrome(configured string) string {
	if configured != "" {
		return configured
	}
	for _, p := range chromePaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
