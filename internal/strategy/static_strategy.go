package strategy

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/gocolly/colly/v2"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
)

// StaticStrategy fetches raw HTML with colly. It runs no JavaScript, so it
// suits server-rendered sites and tests.
type StaticStrategy struct {
	cfg *config.Config
	log *logger.Logger
}

func NewStaticStrategy(cfg *config.Config, log *logger.Logger) *StaticStrategy {
	if log == nil {
		log = logger.Nop()
	}
	return &StaticStrategy{cfg: cfg, log: log}
}

func (s *StaticStrategy) Name() string {
	return config.RendererStatic
}

// Start is a no-op; there is no browser to launch
func (s *StaticStrategy) Start(ctx context.Context) error {
	return nil
}

func (s *StaticStrategy) Shutdown() error {
	return nil
}

// Open fetches urlStr. A fresh collector per call keeps colly's own visited
// tracking out of the way; the crawl engine owns deduplication.
func (s *StaticStrategy) Open(ctx context.Context, urlStr string) (RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewScraperError(urlStr, "context canceled before request", err)
	}

	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.RequestTimeout)
	if s.cfg.HeadlessIgnoreCertErrors {
		c.WithTransport(&http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		})
	}

	var (
		body     []byte
		finalURL string
		status   int
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		s.log.Debug("Static fetch of %s failed with status %d: %v", urlStr, r.StatusCode, err)
	})

	if err := c.Visit(urlStr); err != nil {
		return nil, errors.NewScraperError(urlStr, "static fetch failed", err)
	}
	c.Wait()

	if body == nil && status == 0 {
		return nil, errors.NewScraperError(urlStr, "static fetch returned no response", ctx.Err())
	}
	if finalURL == "" {
		finalURL = urlStr
	}
	return &staticPage{url: finalURL, body: string(body)}, nil
}

type staticPage struct {
	url  string
	body string
}

func (p *staticPage) URL() string {
	return p.url
}

func (p *staticPage) Content(ctx context.Context) (string, error) {
	return p.body, nil
}

func (p *staticPage) Close() error {
	return nil
}
