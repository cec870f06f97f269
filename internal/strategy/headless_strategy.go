package strategy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
)

// HeadlessStrategy renders pages in headless Chrome through chromedp. One
// browser process lives for the whole session; every page gets its own tab.
type HeadlessStrategy struct {
	cfg *config.Config
	log *logger.Logger

	mu            sync.Mutex
	profileDir    string
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewHeadlessStrategy creates a new headless browser strategy
func NewHeadlessStrategy(cfg *config.Config, log *logger.Logger) *HeadlessStrategy {
	if log == nil {
		log = logger.Nop()
	}
	return &HeadlessStrategy{cfg: cfg, log: log}
}

func (s *HeadlessStrategy) Name() string {
	return config.RendererChrome
}

// allocatorOptions builds the Chrome flags; security-related flags are configurable
func (s *HeadlessStrategy) allocatorOptions(profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("user-data-dir", profileDir),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("window-size", "1920,1080"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}

	if path := findChrome(s.cfg.ChromePath); path != "" {
		opts = append(opts, chromedp.ExecPath(path))
		// Chromium in containers has no usable /dev/shm or GPU
		if strings.Contains(path, "chromium") {
			opts = append(opts,
				chromedp.Flag("disable-dev-shm-usage", true),
				chromedp.Flag("disable-software-rasterizer", true),
			)
		}
	}

	if s.cfg.HeadlessNoSandbox {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	if s.cfg.HeadlessIgnoreCertErrors {
		opts = append(opts,
			chromedp.Flag("ignore-certificate-errors", true),
			chromedp.Flag("ignore-ssl-errors", true),
		)
	}

	return opts
}

// Start launches the browser. The browser outlives ctx and is stopped by Shutdown.
func (s *HeadlessStrategy) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		return nil
	}

	// A private profile avoids "Failed to create SingletonLock" when several
	// sessions run side by side.
	profileDir, err := os.MkdirTemp("", "orbweaver-chrome-*")
	if err != nil {
		return errors.NewBrowserError("failed to create temp profile directory", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), s.allocatorOptions(profileDir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithBrowserOption(chromedp.WithDialTimeout(s.cfg.RequestTimeout)),
		chromedp.WithLogf(func(format string, args ...interface{}) {
			s.log.Debug("[chromedp] "+format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			s.log.Debug("[chromedp error] "+format, args...)
		}),
	)

	// The first Run starts the browser process. It must not carry a timeout:
	// the allocation is bound to this context for the browser's lifetime.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		os.RemoveAll(profileDir)
		return errors.NewBrowserError("chrome startup failed", err)
	}

	s.profileDir = profileDir
	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.log.Debug("Chrome started with profile %s", profileDir)
	return nil
}

// Open opens a new tab, navigates with a raw CDP page.Navigate and waits for
// the network to go idle, bounded by NetworkIdleTimeout.
func (s *HeadlessStrategy) Open(ctx context.Context, urlStr string) (RenderedPage, error) {
	s.mu.Lock()
	browserCtx := s.browserCtx
	s.mu.Unlock()
	if browserCtx == nil {
		return nil, errors.NewScraperError(urlStr, "browser not started", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewScraperError(urlStr, "context canceled before navigation", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	// Cancelling ctx closes the tab, which fails any pending action
	stopTab := context.AfterFunc(ctx, tabCancel)

	fail := func(msg string, err error) (RenderedPage, error) {
		stopTab()
		tabCancel()
		return nil, errors.NewScraperError(urlStr, msg, err)
	}

	idle := make(chan struct{})
	var idleOnce sync.Once
	navigating := false
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*page.EventLifecycleEvent)
		if !ok {
			return
		}
		switch e.Name {
		case "init":
			navigating = true
		case "networkIdle":
			if navigating {
				idleOnce.Do(func() { close(idle) })
			}
		}
	})

	// Creates the tab
	if err := chromedp.Run(tabCtx, page.SetLifecycleEventsEnabled(true)); err != nil {
		return fail("failed to open tab", err)
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, s.cfg.RequestTimeout)
	defer navCancel()

	// chromedp.Navigate applies its own load timeout; the raw command only
	// honours our context.
	err := chromedp.Run(navCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errorText, _, err := page.Navigate(urlStr).Do(ctx)
			if err != nil {
				return err
			}
			if errorText != "" {
				return fmt.Errorf("navigation error: %s", errorText)
			}
			return nil
		}),
	)
	if err != nil {
		return fail("headless navigation failed", err)
	}

	if s.cfg.NetworkIdleTimeout > 0 {
		timer := time.NewTimer(s.cfg.NetworkIdleTimeout)
		select {
		case <-idle:
		case <-timer.C:
			s.log.Debug("Network idle not reached for %s within %v, reading page as is", urlStr, s.cfg.NetworkIdleTimeout)
		case <-navCtx.Done():
			timer.Stop()
			return fail("headless wait for network idle failed", navCtx.Err())
		}
		timer.Stop()
	}

	if err := chromedp.Run(navCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fail("headless wait for body failed", err)
	}

	location := urlStr
	if err := chromedp.Run(navCtx, chromedp.Location(&location)); err != nil || location == "" {
		location = urlStr
	}

	return &chromePage{
		url:     location,
		ctx:     tabCtx,
		cancel:  tabCancel,
		stop:    stopTab,
		timeout: s.cfg.RequestTimeout,
	}, nil
}

// Shutdown closes the browser and removes its profile
func (s *HeadlessStrategy) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil {
		return nil
	}

	var err error
	if cerr := chromedp.Cancel(s.browserCtx); cerr != nil {
		err = errors.NewBrowserError("chrome shutdown failed", cerr)
	}
	s.browserCancel()
	s.allocCancel()
	os.RemoveAll(s.profileDir)

	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCancel = nil
	s.profileDir = ""
	return err
}

type chromePage struct {
	url     string
	ctx     context.Context
	cancel  context.CancelFunc
	stop    func() bool
	timeout time.Duration
}

func (p *chromePage) URL() string {
	return p.url
}

func (p *chromePage) Content(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var body string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &body, chromedp.ByQuery)); err != nil {
		return "", errors.NewScraperError(p.url, "headless HTML extraction failed", err)
	}
	return body, nil
}

// Close closes the tab
func (p *chromePage) Close() error {
	p.stop()
	p.cancel()
	return nil
}
