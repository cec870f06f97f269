package scraper

import (
	"bytes"
	"encoding/json"

	"github.com/kareemsasa3/orbweaver/internal/types"
)

// linkKey is the result field holding the page URL. It wins over a rule of
// the same id.
const linkKey = "link"

// RuleRecords is the output of one rule on one page
type RuleRecords struct {
	RuleID  string
	Records []types.Record
}

// PageResult is a page's extracted data plus its URL
type PageResult struct {
	Link         string
	OriginRuleID string
	Rules        []RuleRecords
}

// Get returns the records of ruleID, or nil when the rule did not apply
func (r PageResult) Get(ruleID string) []types.Record {
	for _, rr := range r.Rules {
		if rr.RuleID == ruleID {
			return rr.Records
		}
	}
	return nil
}

// MarshalJSON writes {"<rule id>": [records...], ..., "link": "<url>"} with
// rules in declaration order.
func (r PageResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, rr := range r.Rules {
		if rr.RuleID == linkKey {
			continue
		}
		key, err := json.Marshal(rr.RuleID)
		if err != nil {
			return nil, err
		}
		records := rr.Records
		if records == nil {
			records = []types.Record{}
		}
		value, err := json.Marshal(records)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		buf.WriteByte(',')
	}
	link, err := json.Marshal(r.Link)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"` + linkKey + `":`)
	buf.Write(link)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ScopedKey identifies a rule within the scope it was declared for. The same
// rule id may be declared under different parents.
type ScopedKey struct {
	Origin string
	Rule   string
}

// Index answers queries over a finished crawl. It never mutates the pages.
type Index struct {
	pages []*Page
}

// NewIndex indexes pages in discovery order
func NewIndex(pages []*Page) *Index {
	return &Index{pages: pages}
}

// Len returns the number of indexed pages
func (ix *Index) Len() int {
	return len(ix.pages)
}

// QueryByOriginRule returns the results of every page reached through
// ruleID ("_root" for the start page and its pagination), in discovery order
func (ix *Index) QueryByOriginRule(ruleID string) []PageResult {
	var results []PageResult
	for _, p := range ix.pages {
		if p.OriginRuleID == ruleID {
			results = append(results, p.Result())
		}
	}
	return results
}

// Records returns all records of key.Rule on pages originating from key.Origin
func (ix *Index) Records(key ScopedKey) []types.Record {
	var records []types.Record
	for _, p := range ix.pages {
		if p.OriginRuleID != key.Origin {
			continue
		}
		records = append(records, p.Records(key.Rule)...)
	}
	return records
}

// Origins returns the distinct origin rule ids in discovery order
func (ix *Index) Origins() []string {
	seen := make(map[string]bool)
	var origins []string
	for _, p := range ix.pages {
		if !seen[p.OriginRuleID] {
			seen[p.OriginRuleID] = true
			origins = append(origins, p.OriginRuleID)
		}
	}
	return origins
}
