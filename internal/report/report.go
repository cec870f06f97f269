// Package report writes crawl results as JSON or Markdown.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kareemsasa3/orbweaver/internal/scraper"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// AllOrigins selects every origin rule when building a report
const AllOrigins = "*"

// Group is the pages reached through one origin rule
type Group struct {
	Origin  string
	Results []scraper.PageResult
}

// Report is a finished crawl ready to be written
type Report struct {
	SitemapID string
	StartURL  string
	Stats     types.CrawlStats
	Generated time.Time
	// All is set when the report covers every origin rule.
	All    bool
	Groups []Group
}

// New builds a report over the pages of one origin rule, or of all origin
// rules in discovery order when origin is AllOrigins.
func New(sitemap *types.Sitemap, index *scraper.Index, stats types.CrawlStats, origin string) *Report {
	r := &Report{
		SitemapID: sitemap.ID,
		StartURL:  sitemap.RootURL(),
		Stats:     stats,
		Generated: time.Now(),
	}

	if origin == AllOrigins {
		r.All = true
		for _, o := range index.Origins() {
			r.Groups = append(r.Groups, Group{Origin: o, Results: index.QueryByOriginRule(o)})
		}
		return r
	}

	r.Groups = []Group{{Origin: origin, Results: index.QueryByOriginRule(origin)}}
	return r
}

// Writer writes a report in one format
type Writer interface {
	Write(r *Report) error
}

// Output formats
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// NewWriter returns the writer for format
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatMarkdown, "md":
		return NewMarkdownWriter(output), nil
	}
	return nil, fmt.Errorf("unsupported report format %q", format)
}
