package markup

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/kareemsasa3/orbweaver/internal/errors"
)

// XPathEngine queries documents with XPath 1.0 through htmlquery
type XPathEngine struct{}

func NewXPathEngine() *XPathEngine {
	return &XPathEngine{}
}

func (e *XPathEngine) Name() string {
	return LanguageXPath
}

func (e *XPathEngine) Parse(markup string) (Document, error) {
	root, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, err
	}
	return &xpathDocument{root: root}, nil
}

type xpathDocument struct {
	root *html.Node
}

func (d *xpathDocument) Query(expr string) ([]Element, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, errors.NewInvalidSelectorError(expr, err)
	}
	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, xpathElement{node: n})
	}
	return elements, nil
}

type xpathElement struct {
	node *html.Node
}

func (e xpathElement) Text() string {
	return htmlquery.InnerText(e.node)
}

// Attr reads an attribute of an element node. htmlquery returns attribute
// matches (//a/@href) as an element named after the attribute with the value
// as its only text child; those answer for their own name.
func (e xpathElement) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	if e.node.Data == name && e.node.FirstChild != nil && e.node.FirstChild.Type == html.TextNode && e.node.Parent == nil {
		return e.node.FirstChild.Data, true
	}
	return "", false
}

func (e xpathElement) OuterHTML() (string, error) {
	return htmlquery.OutputHTML(e.node, true), nil
}
