package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kareemsasa3/orbweaver/internal/config"
	"github.com/kareemsasa3/orbweaver/internal/logger"
	"github.com/kareemsasa3/orbweaver/internal/metrics"
	"github.com/kareemsasa3/orbweaver/internal/report"
	"github.com/kareemsasa3/orbweaver/internal/scraper"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// Version is reported by /health
var Version = "dev"

// APIHandler handles HTTP API requests
type APIHandler struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.PrometheusMetrics
	jobs    *JobStore

	// scraperOpts are appended to every crawl's scraper options.
	scraperOpts []scraper.Option

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures an APIHandler
type Option func(*APIHandler)

func WithLogger(l *logger.Logger) Option {
	return func(h *APIHandler) {
		h.logger = l
	}
}

func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(h *APIHandler) {
		h.metrics = m
	}
}

// WithScraperOptions adds options to every crawl, e.g. a shared renderer
func WithScraperOptions(opts ...scraper.Option) Option {
	return func(h *APIHandler) {
		h.scraperOpts = append(h.scraperOpts, opts...)
	}
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(cfg *config.Config, opts ...Option) *APIHandler {
	ctx, cancel := context.WithCancel(context.Background())
	h := &APIHandler{
		config: cfg,
		jobs:   NewJobStore(),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Nop()
	}
	return h
}

// CrawlRequest represents a crawl request
type CrawlRequest struct {
	Sitemap     *types.Sitemap `json:"sitemap"`
	MaxSubPages *int           `json:"max_sub_pages,omitempty"`
}

// CrawlResponse represents an accepted crawl
type CrawlResponse struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
}

// DiffResponse represents a diff between two crawls' results.
type DiffResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Origin string `json:"origin"`
	report.DiffResult
}

// Routes returns the API mux wrapped in the CORS and auth middleware
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	h.handle(mux, "POST /api/crawls", h.HandleCrawl)
	h.handle(mux, "GET /api/crawls", h.HandleListJobs)
	h.handle(mux, "GET /api/crawls/diff", h.HandleDiff)
	h.handle(mux, "GET /api/crawls/{id}", h.HandleJobStatus)
	h.handle(mux, "GET /api/crawls/{id}/pages", h.HandlePages)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /metrics", h.HandleMetrics)

	return corsMiddleware(mux)
}

// handle registers fn behind auth and request metrics. The endpoint label is
// the route pattern so job ids do not leak into metric labels.
func (h *APIHandler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, h.instrument(pattern, h.authMiddleware(fn)))
}

// HandleCrawl starts a crawl in the background
func (h *APIHandler) HandleCrawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Sitemap == nil {
		http.Error(w, "No sitemap provided", http.StatusBadRequest)
		return
	}
	if err := req.Sitemap.Validate(); err != nil {
		http.Error(w, fmt.Sprintf("Invalid sitemap: %v", err), http.StatusBadRequest)
		return
	}

	maxSubPages := h.config.MaxSubPages
	if req.MaxSubPages != nil {
		maxSubPages = *req.MaxSubPages
	}
	if maxSubPages < 0 {
		http.Error(w, config.ErrInvalidMaxSubPages.Error(), http.StatusBadRequest)
		return
	}

	job := &Job{
		ID:          uuid.New().String(),
		SitemapID:   req.Sitemap.ID,
		StartURL:    req.Sitemap.RootURL(),
		MaxSubPages: maxSubPages,
		Status:      JobPending,
		CreatedAt:   time.Now(),
		sitemap:     req.Sitemap,
	}
	h.jobs.Save(job)

	h.wg.Add(1)
	go h.executeCrawlJob(job.ID, req.Sitemap, maxSubPages)

	writeJSON(w, http.StatusAccepted, CrawlResponse{JobID: job.ID, Status: job.Status})
}

// HandleJobStatus returns one job's status and stats
func (h *APIHandler) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleListJobs returns every job, oldest first
func (h *APIHandler) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.List())
}

// HandlePages returns the results of pages reached through ?origin=
// (default "_root", "*" for all origins)
func (h *APIHandler) HandlePages(w http.ResponseWriter, r *http.Request) {
	job, ok := h.completedJob(w, r.PathValue("id"))
	if !ok {
		return
	}

	rep := report.New(job.sitemap, job.index, *job.Stats, originParam(r))
	w.Header().Set("Content-Type", "application/json")
	if err := report.NewJSONWriter(w).Write(rep); err != nil {
		h.logger.Error("Failed to encode pages of job %s: %v", job.ID, err)
	}
}

// HandleDiff diffs the results of two completed jobs
func (h *APIHandler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	fromID, toID := query.Get("from"), query.Get("to")
	if fromID == "" || toID == "" {
		http.Error(w, "from and to job IDs required", http.StatusBadRequest)
		return
	}

	from, ok := h.completedJob(w, fromID)
	if !ok {
		return
	}
	to, ok := h.completedJob(w, toID)
	if !ok {
		return
	}

	origin := originParam(r)
	oldText, err := report.MarshalJSON(report.New(from.sitemap, from.index, *from.Stats, origin))
	if err != nil {
		http.Error(w, "Failed to encode results", http.StatusInternalServerError)
		return
	}
	newText, err := report.MarshalJSON(report.New(to.sitemap, to.index, *to.Stats, origin))
	if err != nil {
		http.Error(w, "Failed to encode results", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, DiffResponse{
		From:       fromID,
		To:         toID,
		Origin:     origin,
		DiffResult: report.Diff(oldText, newText),
	})
}

// HandleHealth handles health check requests
func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}

// HandleMetrics serves the Prometheus registry
func (h *APIHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if !h.config.EnableMetrics || h.metrics == nil {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(h.metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// Shutdown cancels running crawls and waits for them to finish
func (h *APIHandler) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

// executeCrawlJob runs a crawl job in the background
func (h *APIHandler) executeCrawlJob(id string, sitemap *types.Sitemap, maxSubPages int) {
	defer h.wg.Done()

	log := h.logger.With("job_id", id)
	now := time.Now()
	h.update(id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &now
	})

	opts := []scraper.Option{
		scraper.WithConfig(h.config),
		scraper.WithMaxSubPages(maxSubPages),
		scraper.WithLogger(log),
		scraper.WithMetrics(h.metrics),
	}
	opts = append(opts, h.scraperOpts...)

	index, stats, err := runCrawl(h.ctx, sitemap, opts)

	completedAt := time.Now()
	h.update(id, func(j *Job) {
		j.CompletedAt = &completedAt
		if err != nil {
			j.Status = JobFailed
			j.Error = err.Error()
			return
		}
		j.Status = JobCompleted
		j.Stats = &stats
		j.index = index
	})

	if err != nil {
		log.Error("Job %s failed: %v", id, err)
		return
	}
	log.Info("Job %s completed with %d pages", id, stats.Pages)
}

func runCrawl(ctx context.Context, sitemap *types.Sitemap, opts []scraper.Option) (*scraper.Index, types.CrawlStats, error) {
	s, err := scraper.NewScraper(sitemap, opts...)
	if err != nil {
		return nil, types.CrawlStats{}, err
	}
	defer s.Close()

	if err := s.Initialize(ctx); err != nil {
		return nil, types.CrawlStats{}, err
	}
	if err := s.ScrapeData(ctx); err != nil {
		return nil, types.CrawlStats{}, err
	}
	return s.Index(), s.Stats(), nil
}

func (h *APIHandler) update(id string, fn func(*Job)) {
	if err := h.jobs.Update(id, fn); err != nil {
		h.logger.Warn("Failed to update job %s: %v", id, err)
	}
}

// completedJob looks up a job with results, writing the error response when
// there is none.
func (h *APIHandler) completedJob(w http.ResponseWriter, id string) (*Job, bool) {
	job, err := h.jobs.Get(id)
	if err != nil {
		http.Error(w, fmt.Sprintf("Job %s not found", id), http.StatusNotFound)
		return nil, false
	}
	if job.Status != JobCompleted {
		http.Error(w, fmt.Sprintf("Job %s is %s", id, job.Status), http.StatusConflict)
		return nil, false
	}
	return job, true
}

func originParam(r *http.Request) string {
	if origin := r.URL.Query().Get("origin"); origin != "" {
		return origin
	}
	return types.RootSelectorID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// authMiddleware enforces the bearer token when one is configured
func (h *APIHandler) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.config.APIToken != "" {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix || auth[len(prefix):] != h.config.APIToken {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (h *APIHandler) instrument(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.metrics.RecordHTTPRequest(r.Method, endpoint, rec.status, time.Since(start))
		h.logger.Debug("%s %s %d in %v", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// corsMiddleware wraps an HTTP handler with CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
