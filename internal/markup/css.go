package markup

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/kareemsasa3/orbweaver/internal/errors"
)

// CSSEngine queries documents with CSS selectors through goquery
type CSSEngine struct{}

func NewCSSEngine() *CSSEngine {
	return &CSSEngine{}
}

func (e *CSSEngine) Name() string {
	return LanguageCSS
}

// Parse parses markup with goquery
func (e *CSSEngine) Parse(markup string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return &cssDocument{doc: doc}, nil
}

type cssDocument struct {
	doc *goquery.Document
}

// positional matches a trailing jQuery position filter (:first, :last, :eq(n)).
// cascadia does not implement these; sitemaps written for jQuery engines use them.
var positional = regexp.MustCompile(`^(.+?):(first|last|eq\(\s*(-?\d+)\s*\))\s*$`)

// splitPositional returns the plain selector and a function picking the
// filtered position from its matches, or nil when expr has no filter.
func splitPositional(expr string) (string, func(*goquery.Selection) *goquery.Selection) {
	m := positional.FindStringSubmatch(expr)
	if m == nil {
		return expr, nil
	}
	switch m[2] {
	case "first":
		return m[1], (*goquery.Selection).First
	case "last":
		return m[1], (*goquery.Selection).Last
	}
	n, err := strconv.Atoi(m[3])
	if err != nil {
		return expr, nil
	}
	return m[1], func(s *goquery.Selection) *goquery.Selection {
		return s.Eq(n)
	}
}

// Query compiles expr first: goquery.Find silently matches nothing on a bad
// selector, which would hide typos in sitemaps.
func (d *cssDocument) Query(expr string) ([]Element, error) {
	plain, pick := splitPositional(expr)
	sel, err := cascadia.Compile(plain)
	if err != nil {
		return nil, errors.NewInvalidSelectorError(expr, err)
	}

	matches := d.doc.FindMatcher(sel)
	if pick != nil {
		matches = pick(matches)
	}
	elements := make([]Element, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, cssElement{sel: s})
	})
	return elements, nil
}

type cssElement struct {
	sel *goquery.Selection
}

func (e cssElement) Text() string {
	return e.sel.Text()
}

func (e cssElement) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

func (e cssElement) OuterHTML() (string, error) {
	return goquery.OuterHtml(e.sel)
}
