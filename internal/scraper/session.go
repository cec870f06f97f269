package scraper

import (
	"math"

	"github.com/kareemsasa3/orbweaver/internal/pageurl"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// session is the state of one ScrapeData run
type session struct {
	visited map[string]struct{}
	// capacity is maxSubPages+1: the root takes one visited slot.
	capacity int

	// linksDiscovered only feeds statistics; capacity is checked against
	// the visited set alone.
	linksDiscovered int
	warnings        int
	pages           []*Page

	reportedLastPage bool
}

func newSession(maxSubPages int) *session {
	capacity := math.MaxInt
	if maxSubPages < math.MaxInt {
		capacity = maxSubPages + 1
	}
	return &session{
		visited:  make(map[string]struct{}),
		capacity: capacity,
	}
}

func (s *session) seen(url string) bool {
	_, ok := s.visited[pageurl.Normalize(url)]
	return ok
}

func (s *session) markVisited(url string) {
	s.visited[pageurl.Normalize(url)] = struct{}{}
}

func (s *session) hasCapacity() bool {
	return len(s.visited) < s.capacity
}

func (s *session) remaining() int {
	return s.capacity - len(s.visited)
}

// admit marks url visited when it is new and capacity remains
func (s *session) admit(url string) bool {
	if s.seen(url) || !s.hasCapacity() {
		return false
	}
	s.markVisited(url)
	return true
}

func (s *session) stats() types.CrawlStats {
	return types.CrawlStats{
		Pages:           len(s.pages),
		Visited:         len(s.visited),
		LinksDiscovered: s.linksDiscovered,
		Warnings:        s.warnings,
	}
}

// frame is one page on the traversal stack
type frame struct {
	page     *Page
	expanded bool
	links    []types.Record
	next     int
}
