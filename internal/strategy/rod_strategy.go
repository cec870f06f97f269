package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
)

// requestIdleWindow is how long the network must stay quiet to count as idle
const requestIdleWindow = 500 * time.Millisecond

// RodStrategy renders pages with go-rod
type RodStrategy struct {
	cfg *config.Config
	log *logger.Logger

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewRodStrategy(cfg *config.Config, log *logger.Logger) *RodStrategy {
	if log == nil {
		log = logger.Nop()
	}
	return &RodStrategy{cfg: cfg, log: log}
}

func (s *RodStrategy) Name() string {
	return config.RendererRod
}

func (s *RodStrategy) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(true).
		NoSandbox(s.cfg.HeadlessNoSandbox).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions")

	if s.cfg.HeadlessIgnoreCertErrors {
		l = l.Set("ignore-certificate-errors")
	}
	if s.cfg.UserAgent != "" {
		l = l.Set("user-agent", s.cfg.UserAgent)
	}
	if path := findChrome(s.cfg.ChromePath); path != "" {
		l = l.Bin(path)
	}
	return l
}

// Start launches and connects to the browser
func (s *RodStrategy) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		return nil
	}

	l := s.newLauncher().Context(context.WithoutCancel(ctx))
	controlURL, err := l.Launch()
	if err != nil {
		return errors.NewBrowserError("failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return errors.NewBrowserError("failed to connect to browser", err)
	}

	s.launcher = l
	s.browser = browser
	s.log.Debug("Rod browser connected at %s", controlURL)
	return nil
}

// Open creates a page, navigates and waits for load and request idle
func (s *RodStrategy) Open(ctx context.Context, urlStr string) (RenderedPage, error) {
	s.mu.Lock()
	browser := s.browser
	s.mu.Unlock()
	if browser == nil {
		return nil, errors.NewScraperError(urlStr, "browser not started", nil)
	}

	p, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errors.NewScraperError(urlStr, "failed to open page", err)
	}

	fail := func(msg string, err error) (RenderedPage, error) {
		_ = p.Close()
		return nil, errors.NewScraperError(urlStr, msg, err)
	}

	nav := p.Context(ctx).Timeout(s.cfg.RequestTimeout)
	defer nav.CancelTimeout()

	if err := nav.Navigate(urlStr); err != nil {
		return fail("failed to navigate", err)
	}
	if err := nav.WaitLoad(); err != nil {
		return fail("failed waiting for load", err)
	}

	if s.cfg.NetworkIdleTimeout > 0 {
		idle := p.Context(ctx).Timeout(s.cfg.NetworkIdleTimeout)
		idle.WaitRequestIdle(requestIdleWindow, nil, nil, nil)()
		idle.CancelTimeout()
		if err := ctx.Err(); err != nil {
			return fail("canceled waiting for network idle", err)
		}
	}

	location := urlStr
	if info, err := p.Info(); err == nil && info.URL != "" {
		location = info.URL
	}

	return &rodPage{url: location, page: p, timeout: s.cfg.RequestTimeout}, nil
}

// Shutdown closes the browser and removes the launcher's profile directory
func (s *RodStrategy) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser == nil {
		return nil
	}

	var err error
	if cerr := s.browser.Close(); cerr != nil {
		err = errors.NewBrowserError("failed to close browser", cerr)
	}
	s.launcher.Cleanup()

	s.browser = nil
	s.launcher = nil
	return err
}

type rodPage struct {
	url     string
	page    *rod.Page
	timeout time.Duration
}

func (p *rodPage) URL() string {
	return p.url
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	pg := p.page.Context(ctx).Timeout(p.timeout)
	defer pg.CancelTimeout()

	html, err := pg.HTML()
	if err != nil {
		return "", errors.NewScraperError(p.url, "failed to get HTML", err)
	}
	return html, nil
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
