package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
	"github.com/kareemsasa3/orbweaver/internal/markup"
	"github.com/kareemsasa3/orbweaver/internal/metrics"
	"github.com/kareemsasa3/orbweaver/internal/strategy"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// ErrNotInitialized is returned by ScrapeData before Initialize
var ErrNotInitialized = stderrors.New("scraper not initialized")

// Scraper crawls a sitemap depth-first from its start URL
type Scraper struct {
	sitemap     *types.Sitemap
	config      *config.Config
	logger      *logger.Logger
	metrics     *metrics.PrometheusMetrics
	renderer    strategy.Renderer
	engine      markup.Engine
	maxSubPages int

	// ownsRenderer is false for an injected renderer, which the caller
	// starts and stops.
	ownsRenderer bool
	initialized  bool

	mu    sync.RWMutex
	pages []*Page
	stats types.CrawlStats
}

// Option configures a Scraper
type Option func(*Scraper)

// WithConfig sets the runtime options used to build the default renderer
// and query engine. MaxSubPages is taken from it unless WithMaxSubPages is
// also given.
func WithConfig(cfg *config.Config) Option {
	return func(s *Scraper) {
		s.config = cfg
		s.maxSubPages = cfg.MaxSubPages
	}
}

// WithRenderer supplies an already running renderer. The scraper neither
// starts nor shuts it down.
func WithRenderer(r strategy.Renderer) Option {
	return func(s *Scraper) {
		s.renderer = r
	}
}

// WithQueryEngine overrides the engine chosen from the query language
func WithQueryEngine(e markup.Engine) Option {
	return func(s *Scraper) {
		s.engine = e
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Scraper) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// WithMaxSubPages caps the pages fetched beyond the root
func WithMaxSubPages(n int) Option {
	return func(s *Scraper) {
		s.maxSubPages = n
	}
}

// NewScraper creates a new scraper for sitemap
func NewScraper(sitemap *types.Sitemap, opts ...Option) (*Scraper, error) {
	if sitemap == nil {
		return nil, fmt.Errorf("sitemap is required")
	}
	if err := sitemap.Validate(); err != nil {
		return nil, err
	}

	s := &Scraper{
		sitemap:     sitemap,
		config:      config.NewConfig(),
		maxSubPages: config.DefaultMaxSubPages,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.maxSubPages < 0 {
		return nil, config.ErrInvalidMaxSubPages
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	return s, nil
}

// Initialize prepares the renderer and query engine. A renderer built here
// is started here and stopped by Close.
func (s *Scraper) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	if err := errors.ValidateURL(s.sitemap.RootURL()); err != nil {
		return err
	}

	if s.engine == nil {
		engine, err := markup.NewEngine(s.config.QueryLanguage)
		if err != nil {
			return err
		}
		s.engine = engine
	}

	if s.renderer == nil {
		r, err := strategy.New(s.config, s.logger, s.metrics)
		if err != nil {
			return err
		}
		if err := r.Start(ctx); err != nil {
			return err
		}
		s.renderer = r
		s.ownsRenderer = true
	}

	s.initialized = true
	s.logger.Info("Scraper initialized for %s using %s renderer and %s queries",
		s.sitemap.RootURL(), s.renderer.Name(), s.engine.Name())
	return nil
}

// ScrapeData runs one crawl session. Each call starts from an empty visited
// set. A fetch error aborts the crawl and leaves no results.
func (s *Scraper) ScrapeData(ctx context.Context) error {
	if !s.initialized {
		return ErrNotInitialized
	}

	s.logger.Info("Scraping data from %s (max %d sub-pages)", s.sitemap.RootURL(), s.maxSubPages)
	s.metrics.CrawlStarted()

	sess := newSession(s.maxSubPages)
	err := s.crawl(ctx, sess)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.pages = nil
		s.stats = types.CrawlStats{}
		s.metrics.CrawlFinished("failed")
		s.logger.Error("Scraping aborted after %d pages: %v", len(sess.pages), err)
		return err
	}

	s.pages = sess.pages
	s.stats = sess.stats()
	s.metrics.CrawlFinished("completed")
	s.logger.Info("Scraping complete: %d pages scraped", len(sess.pages))
	return nil
}

// crawl walks the page graph depth-first with an explicit stack. On each
// page the pagination target is followed before the page's ordinary links.
func (s *Scraper) crawl(ctx context.Context, sess *session) error {
	root := s.newPage(s.sitemap.RootURL(), types.RootSelectorID)
	sess.markVisited(root.URL)
	sess.pages = append(sess.pages, root)
	if err := s.scrapePage(ctx, sess, root); err != nil {
		return err
	}

	stack := []*frame{{page: root}}
	for len(stack) > 0 && sess.hasCapacity() {
		top := stack[len(stack)-1]

		if !top.expanded {
			top.expanded = true
			top.links = top.page.CollectLinks(sess.remaining())
			sess.linksDiscovered += len(top.links)
			s.metrics.AddLinksDiscovered(len(top.links))

			next, ok := top.page.NextPageLink()
			if !ok && !sess.reportedLastPage {
				sess.reportedLastPage = true
				s.logger.Info("Found %d links, no more pages to scrape", sess.linksDiscovered)
			}
			if ok && sess.admit(next) {
				// Pagination continues the same rule context and is not a child
				nextPage := s.newPage(next, top.page.OriginRuleID)
				sess.pages = append(sess.pages, nextPage)
				if err := s.scrapePage(ctx, sess, nextPage); err != nil {
					return err
				}
				stack = append(stack, &frame{page: nextPage})
				continue
			}
		}

		var child *Page
		for top.next < len(top.links) && child == nil {
			link := top.links[top.next]
			top.next++
			if !sess.admit(link.Link) {
				continue
			}
			child = s.newPage(link.Link, link.SelectorID)
			top.page.AddChild(child)
			sess.pages = append(sess.pages, child)
			if err := s.scrapePage(ctx, sess, child); err != nil {
				return err
			}
		}

		if child == nil {
			stack = stack[:len(stack)-1]
			continue
		}
		stack = append(stack, &frame{page: child})
	}
	return nil
}

func (s *Scraper) newPage(url, originRuleID string) *Page {
	return NewPage(url, originRuleID, s.sitemap.ApplicableSelectors(originRuleID))
}

// scrapePage fetches and extracts one page and reports the outcome
func (s *Scraper) scrapePage(ctx context.Context, sess *session, p *Page) error {
	s.metrics.SetVisited(len(sess.visited))
	domain := hostOf(p.URL)

	if err := ctx.Err(); err != nil {
		return errors.NewScraperError(p.URL, "crawl canceled", err)
	}

	if err := p.Scrape(ctx, s.renderer, s.engine); err != nil {
		s.metrics.RecordFetchFailure(domain, string(errors.KindOf(err)))
		s.logger.LogFailure(p.URL, err)
		return err
	}

	s.metrics.RecordFetchSuccess(domain, int64(p.bytes), p.duration)
	s.logger.LogSuccess(p.URL, p.bytes, p.duration)

	for _, id := range p.RuleIDs() {
		records := p.extracted[id]
		if len(records) > 0 {
			s.metrics.RecordRecords(string(records[0].Type), len(records))
		}
	}
	for _, w := range p.Warnings() {
		sess.warnings++
		kind := errors.KindOf(w)
		if kind == "" {
			kind = "other"
		}
		s.metrics.RecordWarning(string(kind))
		s.logger.Warn("Extraction warning: %v", w)
	}
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

// QueryPage returns the results of every page reached through ruleID
func (s *Scraper) QueryPage(ruleID string) []PageResult {
	return s.Index().QueryByOriginRule(ruleID)
}

// Index returns a query index over the last completed crawl
func (s *Scraper) Index() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewIndex(s.pages)
}

// Pages returns every page of the last completed crawl in discovery order
func (s *Scraper) Pages() []*Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Page(nil), s.pages...)
}

// Root returns the start page of the last completed crawl
func (s *Scraper) Root() *Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.pages) == 0 {
		return nil
	}
	return s.pages[0]
}

// Stats returns counters of the last completed crawl
func (s *Scraper) Stats() types.CrawlStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Sitemap returns the crawl configuration
func (s *Scraper) Sitemap() *types.Sitemap {
	return s.sitemap
}

// Close stops a renderer the scraper started itself
func (s *Scraper) Close() error {
	if !s.ownsRenderer || s.renderer == nil {
		return nil
	}
	start := time.Now()
	err := s.renderer.Shutdown()
	s.ownsRenderer = false
	s.initialized = false
	s.renderer = nil
	s.logger.Debug("Renderer shut down in %v", time.Since(start))
	return err
}
