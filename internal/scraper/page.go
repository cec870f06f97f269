package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/markup"
	"github.com/kareemsasa3/orbweaver/internal/pageurl"
	"github.com/kareemsasa3/orbweaver/internal/strategy"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// Page is one fetched URL and the records extracted from it. It is scraped
// exactly once; afterwards only children are appended.
type Page struct {
	URL string
	// OriginRuleID is the rule whose link led here, or "_root".
	OriginRuleID string
	Children     []*Page

	rules     []types.Selector
	extracted map[string][]types.Record
	ruleOrder []string
	warnings  []error

	scraped  bool
	bytes    int
	duration time.Duration
}

// NewPage creates an unscraped page with the rules that apply to it
func NewPage(url, originRuleID string, rules []types.Selector) *Page {
	return &Page{
		URL:          url,
		OriginRuleID: originRuleID,
		rules:        rules,
		extracted:    make(map[string][]types.Record),
	}
}

// Scrape renders the page, releases the handle and extracts every applicable
// rule. Render failures are returned as fetch errors and are not retried.
func (p *Page) Scrape(ctx context.Context, renderer strategy.Renderer, engine markup.Engine) error {
	if p.scraped {
		return fmt.Errorf("page %s already scraped", p.URL)
	}
	p.scraped = true

	start := time.Now()
	content, docURL, err := fetch(ctx, renderer, p.URL)
	p.duration = time.Since(start)
	if err != nil {
		return err
	}
	p.bytes = len(content)

	base, err := pageurl.Parse(docURL)
	if err != nil {
		if base, err = pageurl.Parse(p.URL); err != nil {
			return errors.NewScraperError(p.URL, "page URL is not absolute", err)
		}
	}

	doc, err := engine.Parse(content)
	if err != nil {
		return errors.NewScraperError(p.URL, "failed to parse markup", err)
	}

	for _, rule := range p.rules {
		records, errs := Evaluate(doc, rule, base)
		if _, seen := p.extracted[rule.ID]; !seen {
			p.ruleOrder = append(p.ruleOrder, rule.ID)
		}
		p.extracted[rule.ID] = append(p.extracted[rule.ID], records...)
		p.warnings = append(p.warnings, errs...)
	}
	return nil
}

// fetch opens url, reads its markup and closes the handle on every path
func fetch(ctx context.Context, renderer strategy.Renderer, url string) (string, string, error) {
	handle, err := renderer.Open(ctx, url)
	if err != nil {
		return "", "", asFetchError(url, "failed to open page", err)
	}
	defer handle.Close()

	content, err := handle.Content(ctx)
	if err != nil {
		return "", "", asFetchError(url, "failed to read page content", err)
	}
	return content, handle.URL(), nil
}

func asFetchError(url, msg string, err error) error {
	if errors.KindOf(err) != "" {
		return err
	}
	return errors.NewScraperError(url, msg, err)
}

// CollectLinks returns the link records that point at http(s) URLs, in rule
// then document order. A non-negative budget caps the result length.
// Pagination records are not included.
func (p *Page) CollectLinks(budget int) []types.Record {
	var links []types.Record
	for _, id := range p.ruleOrder {
		for _, rec := range p.extracted[id] {
			if rec.Type != types.RecordLink || !pageurl.IsHTTP(rec.Link) {
				continue
			}
			links = append(links, rec)
		}
	}
	if budget >= 0 && len(links) > budget {
		links = links[:budget]
	}
	return links
}

// NextPageLink returns the last http(s) pagination link on the page
func (p *Page) NextPageLink() (string, bool) {
	next := ""
	for _, id := range p.ruleOrder {
		for _, rec := range p.extracted[id] {
			if rec.Type == types.RecordPagination && pageurl.IsHTTP(rec.Link) {
				next = rec.Link
			}
		}
	}
	return next, next != ""
}

// AddChild appends a page discovered through one of this page's links
func (p *Page) AddChild(child *Page) {
	p.Children = append(p.Children, child)
}

// RuleIDs returns the ids of the applied rules in declaration order
func (p *Page) RuleIDs() []string {
	return append([]string(nil), p.ruleOrder...)
}

// Records returns a copy of the records extracted for ruleID
func (p *Page) Records(ruleID string) []types.Record {
	return append([]types.Record(nil), p.extracted[ruleID]...)
}

// Warnings returns the extraction problems met while scraping
func (p *Page) Warnings() []error {
	return p.warnings
}

// Scraped reports whether Scrape has run
func (p *Page) Scraped() bool {
	return p.scraped
}

// Result returns the page's data in query form
func (p *Page) Result() PageResult {
	rules := make([]RuleRecords, 0, len(p.ruleOrder))
	for _, id := range p.ruleOrder {
		rules = append(rules, RuleRecords{RuleID: id, Records: p.Records(id)})
	}
	return PageResult{Link: p.URL, OriginRuleID: p.OriginRuleID, Rules: rules}
}
