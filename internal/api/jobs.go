package api

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kareemsasa3/orbweaver/internal/scraper"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// JobStatus is the lifecycle state of a crawl job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one background crawl
type Job struct {
	ID          string            `json:"job_id"`
	SitemapID   string            `json:"sitemap_id,omitempty"`
	StartURL    string            `json:"start_url"`
	MaxSubPages int               `json:"max_sub_pages"`
	Status      JobStatus         `json:"status"`
	Stats       *types.CrawlStats `json:"stats,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`

	sitemap *types.Sitemap
	index   *scraper.Index
}

// ErrJobNotFound is returned for an unknown job id
var ErrJobNotFound = errors.New("job not found")

// JobStore keeps crawl jobs in memory. Jobs are lost on restart.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Save stores a copy of job
func (s *JobStore) Save(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := *job
	s.jobs[job.ID] = &j
}

// Get returns a snapshot of the job
func (s *JobStore) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	j := *job
	return &j, nil
}

// Update applies fn to the stored job under the store lock
func (s *JobStore) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	fn(job)
	return nil
}

// List returns snapshots of all jobs, oldest first
func (s *JobStore) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		j := *job
		jobs = append(jobs, &j)
	}
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID < jobs[b].ID
		}
		return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
	})
	return jobs
}
