package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the summed value of every sample of a counter or gauge
// family.
func gathered(t *testing.T, pm *PrometheusMetrics, name string) float64 {
	t.Helper()

	families, err := pm.GetRegistry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
		return total
	}
	return 0
}

func TestPrometheusMetrics(t *testing.T) {
	t.Parallel()

	pm := NewPrometheusMetrics()
	// A second instance must not collide with the first.
	require.NotNil(t, NewPrometheusMetrics())

	pm.RecordFetchSuccess("example.com", 512, 200*time.Millisecond)
	pm.RecordFetchSuccess("example.com", 256, 100*time.Millisecond)
	pm.RecordFetchFailure("example.com", "fetch")
	pm.RecordRecords("text", 3)
	pm.RecordRecords("link", 0)
	pm.RecordWarning("empty_match")
	pm.CrawlStarted()
	pm.CrawlFinished("completed")
	pm.SetVisited(4)
	pm.AddLinksDiscovered(7)
	pm.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)

	assert.Equal(t, 2.0, gathered(t, pm, "orbweaver_pages_fetched_total"))
	assert.Equal(t, 768.0, gathered(t, pm, "orbweaver_fetch_bytes_total"))
	assert.Equal(t, 1.0, gathered(t, pm, "orbweaver_fetch_failure_total"))
	assert.Equal(t, 3.0, gathered(t, pm, "orbweaver_records_total"))
	assert.Equal(t, 1.0, gathered(t, pm, "orbweaver_extraction_warnings_total"))
	assert.Equal(t, 0.0, gathered(t, pm, "orbweaver_crawls_active"))
	assert.Equal(t, 1.0, gathered(t, pm, "orbweaver_crawls_total"))
	assert.Equal(t, 4.0, gathered(t, pm, "orbweaver_visited_pages"))
	assert.Equal(t, 7.0, gathered(t, pm, "orbweaver_links_discovered_total"))
	assert.Equal(t, 1.0, gathered(t, pm, "orbweaver_http_requests_total"))
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var pm *PrometheusMetrics
	assert.NotPanics(t, func() {
		pm.RecordFetchSuccess("a", 1, time.Second)
		pm.RecordFetchFailure("a", "fetch")
		pm.RecordFetchRetry("a")
		pm.RecordRecords("link", 1)
		pm.RecordWarning("missing_attribute")
		pm.CrawlStarted()
		pm.CrawlFinished("failed")
		pm.SetVisited(1)
		pm.AddLinksDiscovered(1)
		pm.RecordHTTPRequest("GET", "/", 200, 0)
	})
}
