package strategy

import (
	"context"
	"net/url"
	"time"

	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/logger"
	"github.com/kareemsasa3/orbweaver/internal/metrics"
)

// RetryStrategy retries retryable navigation failures of the wrapped
// renderer with linear backoff. The crawl engine itself never retries.
type RetryStrategy struct {
	next     Renderer
	attempts int
	delay    time.Duration
	log      *logger.Logger
	metrics  *metrics.PrometheusMetrics
}

// NewRetryStrategy wraps next. attempts counts the first try.
func NewRetryStrategy(next Renderer, attempts int, delay time.Duration, log *logger.Logger, m *metrics.PrometheusMetrics) *RetryStrategy {
	if attempts < 1 {
		attempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RetryStrategy{next: next, attempts: attempts, delay: delay, log: log, metrics: m}
}

func (s *RetryStrategy) Name() string {
	return s.next.Name()
}

func (s *RetryStrategy) Start(ctx context.Context) error {
	return s.next.Start(ctx)
}

func (s *RetryStrategy) Shutdown() error {
	return s.next.Shutdown()
}

// Open tries the wrapped renderer until it succeeds, fails with a
// non-retryable error, or runs out of attempts.
func (s *RetryStrategy) Open(ctx context.Context, urlStr string) (RenderedPage, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		page, err := s.next.Open(ctx, urlStr)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) || attempt == s.attempts {
			break
		}

		s.metrics.RecordFetchRetry(hostOf(urlStr))
		s.log.LogRetry(urlStr, attempt, err)

		timer := time.NewTimer(s.delay * time.Duration(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.NewScraperError(urlStr, "canceled while waiting to retry", ctx.Err())
		}
	}
	return nil, lastErr
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
