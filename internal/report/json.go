package report

import (
	"encoding/json"
	"io"

	"github.com/kareemsasa3/orbweaver/internal/scraper"
)

// JSONWriter writes the query results as JSON: an array of page results for
// one origin, or an object keyed by origin rule for all of them.
type JSONWriter struct {
	output io.Writer
	indent string
}

// JSONWriterOption configures a JSONWriter
type JSONWriterOption func(*JSONWriter)

// WithPrettyPrint indents output by two spaces
func WithPrettyPrint() JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = "  "
	}
}

func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{output: output}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *JSONWriter) Write(r *Report) error {
	enc := json.NewEncoder(w.output)
	if w.indent != "" {
		enc.SetIndent("", w.indent)
	}

	if r.All {
		byOrigin := make(map[string][]scraper.PageResult, len(r.Groups))
		for _, g := range r.Groups {
			byOrigin[g.Origin] = nonNil(g.Results)
		}
		return enc.Encode(byOrigin)
	}

	var results []scraper.PageResult
	if len(r.Groups) > 0 {
		results = r.Groups[0].Results
	}
	return enc.Encode(nonNil(results))
}

func nonNil(results []scraper.PageResult) []scraper.PageResult {
	if results == nil {
		return []scraper.PageResult{}
	}
	return results
}
