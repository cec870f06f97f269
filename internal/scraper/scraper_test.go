package scraper

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
	"github.com/kareemsasa3/orbweaver/internal/metrics"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

const siteRoot = "https://example.com/"

func sitemapOf(selectors ...types.Selector) *types.Sitemap {
	return &types.Sitemap{ID: "test", StartURL: []string{siteRoot}, Selectors: selectors}
}

func child(id string, typ types.SelectorType, sel string, multiple bool, parents ...string) types.Selector {
	return types.Selector{ID: id, Type: typ, Selector: sel, Multiple: multiple, ParentSelectors: parents}
}

// newTestScraper builds an initialized scraper over a fake renderer
func newTestScraper(t *testing.T, sm *types.Sitemap, r *fakeRenderer, opts ...Option) *Scraper {
	t.Helper()
	opts = append([]Option{WithRenderer(r), WithLogger(logger.Nop())}, opts...)
	s, err := NewScraper(sm, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func pageURLs(pages []*Page) []string {
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	return urls
}

func linksPage(hrefs ...string) string {
	html := "<html><body>"
	for _, h := range hrefs {
		html += `<a class="l" href="` + h + `">` + h + `</a>`
	}
	return html + "</body></html>"
}

func TestRootOnlyScenario(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: `<html><body><h1>Example Domain</h1><p>This domain is for examples.</p><p>More.</p></body></html>`,
	})
	sm := sitemapOf(
		child("title", types.SelectorText, "h1", false, types.RootSelectorID),
		child("description", types.SelectorText, "p:first", false, types.RootSelectorID),
	)
	s := newTestScraper(t, sm, r)
	require.NoError(t, s.ScrapeData(context.Background()))

	results := s.QueryPage(types.RootSelectorID)
	require.Len(t, results, 1)
	title := results[0].Get("title")
	require.Len(t, title, 1)
	assert.Equal(t, "Example Domain", title[0].Text)
	assert.Equal(t, "This domain is for examples.", results[0].Get("description")[0].Text)
	assert.Equal(t, siteRoot, results[0].Link)

	assert.Len(t, s.Pages(), 1)
	assert.Equal(t, []string{siteRoot}, r.openedURLs())
	assert.Equal(t, 0, r.openHandles())
}

func TestBudgetLimitsSubPages(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: linksPage("/a", "/b", "/c"),
	})
	sm := sitemapOf(child("item", types.SelectorLink, "a.l", true, types.RootSelectorID))
	s := newTestScraper(t, sm, r, WithMaxSubPages(2))
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Equal(t, []string{siteRoot, "https://example.com/a", "https://example.com/b"}, pageURLs(s.Pages()))
	assert.Equal(t, pageURLs(s.Pages()), r.openedURLs())
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, pageURLs(s.Root().Children))

	items := s.QueryPage("item")
	require.Len(t, items, 2)
	assert.Equal(t, "https://example.com/a", items[0].Link)

	stats := s.Stats()
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 3, stats.Visited)
}

func TestZeroBudgetFetchesOnlyRoot(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: linksPage("/a", "/b") + `<a class="next" href="/page/2">next</a>`,
	})
	sm := sitemapOf(
		child("item", types.SelectorLink, "a.l", true, types.RootSelectorID),
		child("next", types.SelectorPagination, "a.next", false, types.RootSelectorID),
	)
	s := newTestScraper(t, sm, r, WithMaxSubPages(0))
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Equal(t, []string{siteRoot}, r.openedURLs())
	assert.Len(t, s.Pages(), 1)
}

func TestUnboundedBudget(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: linksPage("/a"),
	})
	sm := sitemapOf(child("item", types.SelectorLink, "a.l", true, types.RootSelectorID))
	s := newTestScraper(t, sm, r, WithMaxSubPages(math.MaxInt))
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Equal(t, []string{siteRoot, "https://example.com/a"}, r.openedURLs())

	sess := newSession(math.MaxInt)
	assert.Equal(t, math.MaxInt, sess.capacity)
	assert.True(t, sess.hasCapacity())
	assert.Equal(t, 6, newSession(5).capacity)
}

func TestDepthFirstOrder(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot:                linksPage("/a", "/b"),
		"https://example.com/a": linksPage("/c"),
	})
	sm := sitemapOf(
		child("item", types.SelectorLink, "a.l", true, types.RootSelectorID, "item"),
	)
	s := newTestScraper(t, sm, r)
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Equal(t, []string{
		siteRoot,
		"https://example.com/a",
		"https://example.com/c",
		"https://example.com/b",
	}, r.openedURLs())

	root := s.Root()
	require.Len(t, root.Children, 2)
	assert.Equal(t, []string{"https://example.com/c"}, pageURLs(root.Children[0].Children))
}

func TestNoURLFetchedTwice(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot:                linksPage("/a", "/b", "/a#reviews"),
		"https://example.com/a": linksPage("/", "/b", "/a"),
		"https://example.com/b": linksPage("/a", "https://EXAMPLE.com/b"),
	})
	sm := sitemapOf(
		child("item", types.SelectorLink, "a.l", true, types.RootSelectorID, "item"),
	)
	s := newTestScraper(t, sm, r)
	require.NoError(t, s.ScrapeData(context.Background()))

	opened := r.openedURLs()
	assert.Equal(t, []string{siteRoot, "https://example.com/a", "https://example.com/b"}, opened)

	counts := make(map[string]int)
	for _, u := range opened {
		counts[u]++
	}
	for u, n := range counts {
		assert.Equal(t, 1, n, "fetched %s more than once", u)
	}
	assert.Equal(t, 3, s.Stats().Visited)
	assert.Greater(t, s.Stats().LinksDiscovered, s.Stats().Visited)
}

func TestPaginationKeepsOrigin(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: `<html><body>
			<a class="book" href="/book/1">1</a>
			<li class="next"><a href="/page/2">next</a></li>
		</body></html>`,
		"https://example.com/page/2": `<html><body><a class="book" href="/book/2">2</a></body></html>`,
		"https://example.com/book/1": `<html><body><h2>First</h2></body></html>`,
		"https://example.com/book/2": `<html><body><h2>Second</h2></body></html>`,
	})
	sm := sitemapOf(
		child("book", types.SelectorLink, "a.book", true, types.RootSelectorID),
		child("next", types.SelectorPagination, "li.next a", false, types.RootSelectorID),
		child("name", types.SelectorText, "h2", false, "book"),
	)
	s := newTestScraper(t, sm, r)
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Equal(t, []string{
		siteRoot,
		"https://example.com/page/2",
		"https://example.com/book/2",
		"https://example.com/book/1",
	}, r.openedURLs(), "pagination is followed before the page's own links")

	listing := s.QueryPage(types.RootSelectorID)
	require.Len(t, listing, 2)
	assert.Equal(t, "https://example.com/page/2", listing[1].Link)

	root := s.Root()
	assert.Equal(t, []string{"https://example.com/book/1"}, pageURLs(root.Children), "pagination pages are not children")

	books := s.QueryPage("book")
	require.Len(t, books, 2)
	assert.Equal(t, "Second", books[0].Get("name")[0].Text)
	assert.Equal(t, "First", books[1].Get("name")[0].Text)

	names := s.Index().Records(ScopedKey{Origin: "book", Rule: "name"})
	assert.Len(t, names, 2)
}

func TestSharedBudgetForPaginationAndLinks(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: linksPage("/a", "/b") + `<a class="next" href="/page/2">next</a>`,
	})
	sm := sitemapOf(
		child("item", types.SelectorLink, "a.l", true, types.RootSelectorID),
		child("next", types.SelectorPagination, "a.next", false, types.RootSelectorID),
	)
	s := newTestScraper(t, sm, r, WithMaxSubPages(2))
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Equal(t, []string{siteRoot, "https://example.com/page/2", "https://example.com/a"}, r.openedURLs())
}

func TestVisitedNeverExceedsCapacity(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	hrefs := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		hrefs = append(hrefs, "/n/"+string(rune('a'+i)))
	}
	pages[siteRoot] = linksPage(hrefs...)
	for _, h := range hrefs {
		pages["https://example.com"+h] = linksPage(hrefs...)
	}

	for _, limit := range []int{0, 1, 5, 19, 50} {
		r := newFakeRenderer(pages)
		sm := sitemapOf(child("n", types.SelectorLink, "a.l", true, types.RootSelectorID, "n"))
		s := newTestScraper(t, sm, r, WithMaxSubPages(limit))
		require.NoError(t, s.ScrapeData(context.Background()))

		want := limit + 1
		if want > 21 {
			want = 21
		}
		assert.Equal(t, want, s.Stats().Visited, "limit %d", limit)
		assert.Len(t, r.openedURLs(), want, "limit %d", limit)
	}
}

func TestFetchErrorAbortsCrawl(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: linksPage("/a", "/b", "/c"),
	})
	r.failOpen["https://example.com/b"] = true
	sm := sitemapOf(child("item", types.SelectorLink, "a.l", true, types.RootSelectorID))
	s := newTestScraper(t, sm, r, WithMetrics(metrics.NewPrometheusMetrics()))

	err := s.ScrapeData(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindFetch))
	assert.NotContains(t, r.openedURLs(), "https://example.com/c")
	assert.Empty(t, s.Pages())
	assert.Nil(t, s.Root())
	assert.Empty(t, s.QueryPage(types.RootSelectorID))
}

func TestCanceledContextAbortsCrawl(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{siteRoot: linksPage("/a")})
	sm := sitemapOf(child("item", types.SelectorLink, "a.l", true, types.RootSelectorID))
	s := newTestScraper(t, sm, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.ScrapeData(ctx)
	require.Error(t, err)
	assert.Empty(t, r.openedURLs())
}

func TestQueryPageIsIdempotent(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{
		siteRoot: linksPage("/a", "/b") + "<h1>Home</h1>",
	})
	sm := sitemapOf(
		child("title", types.SelectorText, "h1", false, types.RootSelectorID),
		child("item", types.SelectorLink, "a.l", true, types.RootSelectorID),
	)
	s := newTestScraper(t, sm, r)
	require.NoError(t, s.ScrapeData(context.Background()))

	first, err := json.Marshal(s.QueryPage(types.RootSelectorID))
	require.NoError(t, err)
	second, err := json.Marshal(s.QueryPage(types.RootSelectorID))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), `"link":"https://example.com/"`)
}

func TestScrapeDataResetsSession(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{siteRoot: linksPage("/a")})
	sm := sitemapOf(child("item", types.SelectorLink, "a.l", true, types.RootSelectorID))
	s := newTestScraper(t, sm, r)

	require.NoError(t, s.ScrapeData(context.Background()))
	require.NoError(t, s.ScrapeData(context.Background()))

	assert.Len(t, s.Pages(), 2)
	assert.Len(t, r.openedURLs(), 4, "a second run starts with an empty visited set")
}

func TestScraperLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("scrape before initialize", func(t *testing.T) {
		t.Parallel()
		s, err := NewScraper(sitemapOf(), WithRenderer(newFakeRenderer(nil)))
		require.NoError(t, err)
		assert.ErrorIs(t, s.ScrapeData(context.Background()), ErrNotInitialized)
	})

	t.Run("injected renderer is left to its owner", func(t *testing.T) {
		t.Parallel()
		r := newFakeRenderer(nil)
		s := newTestScraper(t, sitemapOf(), r)
		require.NoError(t, s.Close())
		assert.False(t, r.started)
		assert.False(t, r.shutdown)
	})

	t.Run("negative budget rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewScraper(sitemapOf(), WithMaxSubPages(-1))
		assert.Error(t, err)
	})

	t.Run("invalid sitemap rejected", func(t *testing.T) {
		t.Parallel()
		_, err := NewScraper(&types.Sitemap{})
		assert.Error(t, err)
	})

	t.Run("non-http start url", func(t *testing.T) {
		t.Parallel()
		sm := &types.Sitemap{StartURL: []string{"ftp://example.com/"}}
		s, err := NewScraper(sm, WithRenderer(newFakeRenderer(nil)))
		require.NoError(t, err)
		err = s.Initialize(context.Background())
		assert.True(t, errors.IsKind(err, errors.KindInvalidURL))
	})
}

func TestIndexOrigins(t *testing.T) {
	t.Parallel()

	r := newFakeRenderer(map[string]string{siteRoot: linksPage("/a", "/b")})
	sm := sitemapOf(child("item", types.SelectorLink, "a.l", true, types.RootSelectorID))
	s := newTestScraper(t, sm, r)
	require.NoError(t, s.ScrapeData(context.Background()))

	ix := s.Index()
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, []string{types.RootSelectorID, "item"}, ix.Origins())
	assert.Len(t, ix.Records(ScopedKey{Origin: types.RootSelectorID, Rule: "item"}), 2)
	assert.Empty(t, ix.QueryByOriginRule("unknown"))
}
