package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/markup"
	"github.com/kareemsasa3/orbweaver/internal/pageurl"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

const listingHTML = `<html><body>
<h1>  Books  </h1>
<p class="lead">First</p>
<p class="lead">Second</p>
<ul>
  <li><a class="book" href="/book/1">  One </a></li>
  <li><a class="book" href="book/2">Two</a></li>
  <li><a class="book">Broken</a></li>
  <li><a class="book" href="https://other.example.org/x">Elsewhere</a></li>
</ul>
<nav>
  <a class="page" href="?page=2">2</a>
  <a class="page" href="?page=3">3</a>
  <a class="page">current</a>
</nav>
<div id="promo"><em>Sale</em></div>
<span class="cafe">cafe&#x301;</span>
</body></html>`

func parseListing(t *testing.T) (markup.Document, *pageurl.Base) {
	t.Helper()
	doc, err := markup.NewCSSEngine().Parse(listingHTML)
	require.NoError(t, err)
	base, err := pageurl.Parse("https://books.example.com/catalog/index.html")
	require.NoError(t, err)
	return doc, base
}

func rule(id string, typ types.SelectorType, sel string, multiple bool) types.Selector {
	return types.Selector{ID: id, Type: typ, Selector: sel, Multiple: multiple, ParentSelectors: []string{types.RootSelectorID}}
}

func TestEvaluateText(t *testing.T) {
	t.Parallel()
	doc, base := parseListing(t)

	t.Run("single takes first match trimmed", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("lead", types.SelectorText, "p.lead", false), base)
		assert.Empty(t, errs)
		require.Len(t, recs, 1)
		assert.Equal(t, types.Record{Type: types.RecordText, SelectorID: "lead", Text: "First"}, recs[0])
	})

	t.Run("multiple takes every match", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("lead", types.SelectorText, "p.lead", true), base)
		assert.Empty(t, errs)
		require.Len(t, recs, 2)
		assert.Equal(t, "Second", recs[1].Text)
	})

	t.Run("single without match yields empty record and warning", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("missing", types.SelectorText, "h2", false), base)
		require.Len(t, recs, 1)
		assert.Equal(t, "", recs[0].Text)
		require.Len(t, errs, 1)
		assert.True(t, errors.IsKind(errs[0], errors.KindEmptyMatch))
	})

	t.Run("multiple without match yields nothing", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("missing", types.SelectorText, "h2", true), base)
		assert.Empty(t, recs)
		assert.Empty(t, errs)
	})

	t.Run("text is NFC normalized", func(t *testing.T) {
		recs, _ := Evaluate(doc, rule("cafe", types.SelectorText, "span.cafe", false), base)
		require.Len(t, recs, 1)
		assert.Equal(t, "café", recs[0].Text)
	})
}

func TestEvaluateLink(t *testing.T) {
	t.Parallel()
	doc, base := parseListing(t)

	t.Run("multiple resolves and skips missing href", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("book", types.SelectorLink, "a.book", true), base)
		require.Len(t, recs, 3)
		assert.Equal(t, "https://books.example.com/book/1", recs[0].Link)
		assert.Equal(t, "One", recs[0].Text)
		assert.Equal(t, "https://books.example.com/catalog/book/2", recs[1].Link)
		assert.Equal(t, "https://other.example.org/x", recs[2].Link)
		for _, r := range recs {
			assert.Equal(t, types.RecordLink, r.Type)
			assert.Equal(t, "book", r.SelectorID)
		}

		require.Len(t, errs, 1)
		assert.True(t, errors.IsKind(errs[0], errors.KindMissingAttribute))
	})

	t.Run("single takes first match", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("book", types.SelectorLink, "a.book", false), base)
		assert.Empty(t, errs)
		require.Len(t, recs, 1)
		assert.Equal(t, "https://books.example.com/book/1", recs[0].Link)
	})

	t.Run("single without match is guarded", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("author", types.SelectorLink, "a.author", false), base)
		require.Len(t, recs, 1)
		assert.Empty(t, recs[0].Link)
		require.Len(t, errs, 1)
		assert.True(t, errors.IsKind(errs[0], errors.KindEmptyMatch))
	})

	t.Run("single match without href", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("broken", types.SelectorLink, "li:nth-child(3) a", false), base)
		assert.Empty(t, recs)
		require.Len(t, errs, 1)
		assert.True(t, errors.IsKind(errs[0], errors.KindMissingAttribute))
	})
}

func TestEvaluateHTML(t *testing.T) {
	t.Parallel()
	doc, base := parseListing(t)

	recs, errs := Evaluate(doc, rule("promo", types.SelectorHTML, "#promo", true), base)
	assert.Empty(t, errs)
	require.Len(t, recs, 1)
	assert.Equal(t, types.RecordHTML, recs[0].Type)
	assert.Equal(t, `<div id="promo"><em>Sale</em></div>`, recs[0].HTML)

	recs, errs = Evaluate(doc, rule("li", types.SelectorHTML, "li", true), base)
	assert.Empty(t, errs)
	assert.Len(t, recs, 1, "html rules ignore multiple")

	recs, errs = Evaluate(doc, rule("none", types.SelectorHTML, "table", false), base)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].HTML)
	require.Len(t, errs, 1)
	assert.True(t, errors.IsKind(errs[0], errors.KindEmptyMatch))
}

func TestEvaluatePagination(t *testing.T) {
	t.Parallel()
	doc, base := parseListing(t)

	// Multiple is ignored: pagination always takes every match
	recs, errs := Evaluate(doc, rule("next", types.SelectorPagination, "a.page", false), base)
	require.Len(t, recs, 2)
	assert.Equal(t, types.RecordPagination, recs[0].Type)
	assert.Equal(t, "https://books.example.com/catalog/index.html?page=2", recs[0].Link)
	assert.Equal(t, "3", recs[1].Text)
	require.Len(t, errs, 1)
	assert.True(t, errors.IsKind(errs[0], errors.KindMissingAttribute))
}

func TestEvaluateInvalidSelector(t *testing.T) {
	t.Parallel()
	doc, base := parseListing(t)

	t.Run("single rules keep an empty record", func(t *testing.T) {
		for _, typ := range []types.SelectorType{types.SelectorText, types.SelectorLink, types.SelectorHTML} {
			recs, errs := Evaluate(doc, rule("bad", typ, "p[", false), base)
			require.Len(t, recs, 1, typ)
			assert.Equal(t, "bad", recs[0].SelectorID)
			assert.Empty(t, recs[0].Text)
			assert.Empty(t, recs[0].Link)
			require.Len(t, errs, 1)
			assert.True(t, errors.IsKind(errs[0], errors.KindInvalidSelector))
		}
	})

	t.Run("multiple rules yield nothing", func(t *testing.T) {
		recs, errs := Evaluate(doc, rule("bad", types.SelectorText, "p[", true), base)
		assert.Empty(t, recs)
		require.Len(t, errs, 1)

		recs, _ = Evaluate(doc, rule("bad", types.SelectorPagination, "a[", false), base)
		assert.Empty(t, recs)
	})

	t.Run("error names the page and rule", func(t *testing.T) {
		_, errs := Evaluate(doc, rule("bad", types.SelectorText, "p[", false), base)
		require.Len(t, errs, 1)
		assert.True(t, strings.HasPrefix(errs[0].Error(), `https://books.example.com/catalog/index.html: selector "bad": invalid query "p["`), errs[0].Error())
	})
}

func TestEvaluatePositionalQueries(t *testing.T) {
	t.Parallel()
	doc, base := parseListing(t)

	tests := []struct {
		query string
		want  string
	}{
		{query: "p.lead:first", want: "First"},
		{query: "p.lead:last", want: "Second"},
		{query: "p.lead:eq(1)", want: "Second"},
		{query: "a.book:eq(-1)", want: "Elsewhere"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			recs, errs := Evaluate(doc, rule("lead", types.SelectorText, tt.query, true), base)
			assert.Empty(t, errs)
			require.Len(t, recs, 1)
			assert.Equal(t, tt.want, recs[0].Text)
		})
	}
}

func TestEvaluateXPath(t *testing.T) {
	t.Parallel()

	doc, err := markup.NewXPathEngine().Parse(listingHTML)
	require.NoError(t, err)
	base, err := pageurl.Parse("https://books.example.com/")
	require.NoError(t, err)

	recs, errs := Evaluate(doc, rule("book", types.SelectorLink, `//a[@class="book"][@href]`, true), base)
	assert.Empty(t, errs)
	require.Len(t, recs, 3)
	assert.Equal(t, "https://books.example.com/book/2", recs[1].Link)
}
