package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/strategy"
)

// fakeRenderer serves canned markup keyed by URL and records every open
type fakeRenderer struct {
	mu          sync.Mutex
	pages       map[string]string
	failOpen    map[string]bool
	failContent map[string]bool

	opened   []string
	open     int
	started  bool
	shutdown bool
}

func newFakeRenderer(pages map[string]string) *fakeRenderer {
	return &fakeRenderer{
		pages:       pages,
		failOpen:    make(map[string]bool),
		failContent: make(map[string]bool),
	}
}

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) Start(ctx context.Context) error {
	r.started = true
	return nil
}

func (r *fakeRenderer) Shutdown() error {
	r.shutdown = true
	return nil
}

func (r *fakeRenderer) Open(ctx context.Context, url string) (strategy.RenderedPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opened = append(r.opened, url)
	if err := ctx.Err(); err != nil {
		return nil, errors.NewScraperError(url, "canceled", err)
	}
	if r.failOpen[url] {
		return nil, errors.NewScraperError(url, "navigation failed", fmt.Errorf("net::ERR_NAME_NOT_RESOLVED"))
	}
	body, ok := r.pages[url]
	if !ok {
		body = "<html><body></body></html>"
	}
	r.open++
	return &fakePage{r: r, url: url, body: body, fail: r.failContent[url]}, nil
}

func (r *fakeRenderer) openedURLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

func (r *fakeRenderer) openHandles() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.open
}

type fakePage struct {
	r    *fakeRenderer
	url  string
	body string
	fail bool
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Content(ctx context.Context) (string, error) {
	if p.fail {
		return "", fmt.Errorf("target closed")
	}
	return p.body, nil
}

func (p *fakePage) Close() error {
	p.r.mu.Lock()
	defer p.r.mu.Unlock()
	p.r.open--
	return nil
}
