package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RootSelectorID is the parent id of rules that apply to the start page
const RootSelectorID = "_root"

// SelectorType is the kind of extraction a rule performs
type SelectorType string

const (
	SelectorText       SelectorType = "SelectorText"
	SelectorLink       SelectorType = "SelectorLink"
	SelectorHTML       SelectorType = "SelectorHTML"
	SelectorPagination SelectorType = "SelectorPagination"
)

// ParseSelectorType accepts both the sitemap names ("SelectorLink") and the
// short record names ("link").
func ParseSelectorType(s string) (SelectorType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "selectortext", "text":
		return SelectorText, nil
	case "selectorlink", "link":
		return SelectorLink, nil
	case "selectorhtml", "html":
		return SelectorHTML, nil
	case "selectorpagination", "pagination":
		return SelectorPagination, nil
	}
	return "", fmt.Errorf("unknown selector type %q", s)
}

// RecordType returns the record type produced by rules of this kind
func (t SelectorType) RecordType() RecordType {
	switch t {
	case SelectorLink:
		return RecordLink
	case SelectorHTML:
		return RecordHTML
	case SelectorPagination:
		return RecordPagination
	default:
		return RecordText
	}
}

// UnmarshalJSON normalizes short type names
func (t *SelectorType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSelectorType(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// UnmarshalText is used by the YAML decoder
func (t *SelectorType) UnmarshalText(text []byte) error {
	parsed, err := ParseSelectorType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Selector is one declarative extraction rule of a sitemap
type Selector struct {
	ID              string       `json:"id" yaml:"id"`
	Type            SelectorType `json:"type" yaml:"type"`
	Selector        string       `json:"selector" yaml:"selector"`
	Multiple        bool         `json:"multiple" yaml:"multiple"`
	ParentSelectors []string     `json:"parentSelectors" yaml:"parentSelectors"`
}

// AppliesTo reports whether the rule runs on pages reached through originID
func (s Selector) AppliesTo(originID string) bool {
	for _, parent := range s.ParentSelectors {
		if parent == originID {
			return true
		}
	}
	return false
}

// Sitemap is the crawl configuration: where to start and what to extract
type Sitemap struct {
	ID        string     `json:"_id,omitempty" yaml:"_id,omitempty"`
	StartURL  []string   `json:"startUrl" yaml:"startUrl"`
	Selectors []Selector `json:"selectors" yaml:"selectors"`
}

// RootURL returns the first start URL. Additional start URLs are ignored.
func (s *Sitemap) RootURL() string {
	if len(s.StartURL) == 0 {
		return ""
	}
	return s.StartURL[0]
}

// ApplicableSelectors returns the rules whose parents include originID, in
// declaration order
func (s *Sitemap) ApplicableSelectors(originID string) []Selector {
	var selectors []Selector
	for _, sel := range s.Selectors {
		if sel.AppliesTo(originID) {
			selectors = append(selectors, sel)
		}
	}
	return selectors
}

// Validate checks the sitemap for structural problems. Rule ids only need to
// be unique within one parent scope.
func (s *Sitemap) Validate() error {
	if s.RootURL() == "" {
		return fmt.Errorf("sitemap %q has no start URL", s.ID)
	}

	seen := make(map[string]bool)
	for i, sel := range s.Selectors {
		if sel.ID == "" {
			return fmt.Errorf("selector #%d has no id", i)
		}
		if sel.ID == RootSelectorID {
			return fmt.Errorf("selector id %q is reserved", RootSelectorID)
		}
		if _, err := ParseSelectorType(string(sel.Type)); err != nil {
			return fmt.Errorf("selector %q: %w", sel.ID, err)
		}
		if strings.TrimSpace(sel.Selector) == "" {
			return fmt.Errorf("selector %q has an empty query", sel.ID)
		}
		if len(sel.ParentSelectors) == 0 {
			return fmt.Errorf("selector %q has no parent selectors", sel.ID)
		}
		for _, parent := range sel.ParentSelectors {
			key := parent + "/" + sel.ID
			if seen[key] {
				return fmt.Errorf("selector id %q declared twice under parent %q", sel.ID, parent)
			}
			seen[key] = true
		}
	}
	return nil
}

// RecordType is the type tag carried by an extraction record
type RecordType string

const (
	RecordText       RecordType = "text"
	RecordLink       RecordType = "link"
	RecordHTML       RecordType = "html"
	RecordPagination RecordType = "pagination"
)

// Record is one extracted value
type Record struct {
	Type       RecordType `json:"type"`
	SelectorID string     `json:"selectorId,omitempty"`
	Text       string     `json:"text,omitempty"`
	Link       string     `json:"link,omitempty"`
	HTML       string     `json:"html,omitempty"`
}

// CrawlStats summarizes a finished crawl session
type CrawlStats struct {
	Pages           int `json:"pages"`
	Visited         int `json:"visited"`
	LinksDiscovered int `json:"links_discovered"`
	Warnings        int `json:"warnings"`
}
