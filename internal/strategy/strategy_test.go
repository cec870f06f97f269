package strategy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
)

func testConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Renderer = config.RendererStatic
	cfg.RequestTimeout = 5 * time.Second
	return cfg
}

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	r, err := New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &StaticStrategy{}, r)

	cfg.RetryAttempts = 3
	r, err = New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &RetryStrategy{}, r)
	assert.Equal(t, config.RendererStatic, r.Name())

	cfg.Renderer = config.RendererRod
	cfg.RetryAttempts = 1
	r, err = New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &RodStrategy{}, r)

	cfg.Renderer = config.RendererChrome
	r, err = New(cfg, logger.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, &HeadlessStrategy{}, r)

	cfg.Renderer = "lynx"
	_, err = New(cfg, logger.Nop(), nil)
	assert.ErrorIs(t, err, config.ErrUnknownRenderer)
}

func TestFindChrome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/opt/chrome/chrome", findChrome("/opt/chrome/chrome"))
}

func TestStaticStrategy(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, config.DefaultUserAgent, r.UserAgent())
		fmt.Fprint(w, `<html><body><h1>Hello</h1></body></html>`)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewStaticStrategy(testConfig(), logger.Nop())
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Shutdown()

	t.Run("fetches markup", func(t *testing.T) {
		p, err := s.Open(ctx, srv.URL+"/page")
		require.NoError(t, err)
		defer p.Close()

		body, err := p.Content(ctx)
		require.NoError(t, err)
		assert.Contains(t, body, "<h1>Hello</h1>")
		assert.Equal(t, srv.URL+"/page", p.URL())
	})

	t.Run("same url twice", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			p, err := s.Open(ctx, srv.URL+"/page")
			require.NoError(t, err)
			require.NoError(t, p.Close())
		}
	})

	t.Run("follows redirects", func(t *testing.T) {
		p, err := s.Open(ctx, srv.URL+"/old")
		require.NoError(t, err)
		defer p.Close()
		assert.Equal(t, srv.URL+"/page", p.URL())
	})

	t.Run("http error is a fetch error", func(t *testing.T) {
		_, err := s.Open(ctx, srv.URL+"/missing")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindFetch))
	})

	t.Run("canceled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Open(cctx, srv.URL+"/page")
		require.Error(t, err)
		assert.True(t, errors.IsKind(err, errors.KindFetch))
		assert.False(t, errors.IsRetryable(err))
	})
}

type stubPage struct{ url string }

func (p *stubPage) URL() string                                 { return p.url }
func (p *stubPage) Content(ctx context.Context) (string, error) { return "<html></html>", nil }
func (p *stubPage) Close() error                                { return nil }

// flakyRenderer fails the first failures calls with err
type flakyRenderer struct {
	failures int
	err      error
	calls    int
}

func (r *flakyRenderer) Name() string                    { return "flaky" }
func (r *flakyRenderer) Start(ctx context.Context) error { return nil }
func (r *flakyRenderer) Shutdown() error                 { return nil }

func (r *flakyRenderer) Open(ctx context.Context, url string) (RenderedPage, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, r.err
	}
	return &stubPage{url: url}, nil
}

func TestRetryStrategy(t *testing.T) {
	t.Parallel()

	fetchErr := errors.NewScraperError("https://example.com/", "navigation failed", fmt.Errorf("net::ERR_CONNECTION_RESET"))

	t.Run("recovers after retryable failures", func(t *testing.T) {
		t.Parallel()
		inner := &flakyRenderer{failures: 2, err: fetchErr}
		r := NewRetryStrategy(inner, 3, time.Millisecond, logger.Nop(), nil)

		p, err := r.Open(context.Background(), "https://example.com/")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/", p.URL())
		assert.Equal(t, 3, inner.calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		t.Parallel()
		inner := &flakyRenderer{failures: 5, err: fetchErr}
		r := NewRetryStrategy(inner, 2, time.Millisecond, logger.Nop(), nil)

		_, err := r.Open(context.Background(), "https://example.com/")
		require.Error(t, err)
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("does not retry non-retryable errors", func(t *testing.T) {
		t.Parallel()
		inner := &flakyRenderer{failures: 1, err: errors.NewBrowserError("browser gone", nil)}
		r := NewRetryStrategy(inner, 3, time.Millisecond, logger.Nop(), nil)

		_, err := r.Open(context.Background(), "https://example.com/")
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})

	t.Run("stops waiting when canceled", func(t *testing.T) {
		t.Parallel()
		inner := &flakyRenderer{failures: 5, err: fetchErr}
		r := NewRetryStrategy(inner, 3, time.Hour, logger.Nop(), nil)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := r.Open(ctx, "https://example.com/")
		require.Error(t, err)
		assert.Equal(t, 1, inner.calls)
	})
}
