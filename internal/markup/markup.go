// Package markup wraps the HTML query libraries behind a small interface so
// the selector evaluator does not depend on a particular query language.
package markup

import (
	"fmt"
	"strings"
)

// Engine parses rendered markup into a queryable document
type Engine interface {
	Parse(markup string) (Document, error)
	Name() string
}

// Document runs query expressions against a parsed page
type Document interface {
	// Query returns matching elements in document order. An expression the
	// engine cannot compile yields an invalid-selector error.
	Query(expr string) ([]Element, error)
}

// Element is one matched node
type Element interface {
	Text() string
	Attr(name string) (string, bool)
	OuterHTML() (string, error)
}

// Query languages understood by NewEngine
const (
	LanguageCSS   = "css"
	LanguageXPath = "xpath"
)

// NewEngine returns the engine for a query language name
func NewEngine(language string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "", LanguageCSS:
		return NewCSSEngine(), nil
	case LanguageXPath:
		return NewXPathEngine(), nil
	}
	return nil, fmt.Errorf("unsupported query language %q", language)
}
