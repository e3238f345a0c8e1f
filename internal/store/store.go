package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sprintpulse/sprintpulse/internal/compute"
)

// Entry is a board report together with the time it was stored.
type Entry struct {
	Report    *compute.BoardReport
	UpdatedAt time.Time
}

// RunStatus describes the most recent scheduled run.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Boards     int       `json:"boards"`
	Error      string    `json:"error,omitempty"`
}

// Store is a thread-safe in-memory report store, keyed by board name.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL.
type Store struct {
	mu      sync.RWMutex
	data    map[string]*Entry
	lastRun *RunStatus
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores or replaces the report for r.Board.Name.
// Callers must not modify r after calling Put.
func (s *Store) Put(r *compute.BoardReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[r.Board.Name] = &Entry{
		Report:    r,
		UpdatedAt: s.now(),
	}
}

// PutAll stores every report of a run.
func (s *Store) PutAll(reports []*compute.BoardReport) {
	for _, r := range reports {
		s.Put(r)
	}
}

// Get returns the Entry for the given board and a boolean indicating
// whether an entry was found. The entry may be stale if TTL has elapsed.
func (s *Store) Get(board string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[board]
	return e, ok
}

// List returns all entries whose UpdatedAt is within the TTL, ordered by
// board name. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if e.UpdatedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Report.Board.Name < out[j].Report.Board.Name
	})
	return out
}

// TTL returns the configured staleness window.
func (s *Store) TTL() time.Duration { return s.ttl }

// Fresh reports whether e was updated within the TTL.
func (s *Store) Fresh(e *Entry) bool {
	return e.UpdatedAt.After(s.now().Add(-s.ttl))
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// RecordRun stores the outcome of the latest run.
func (s *Store) RecordRun(st RunStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &st
}

// LastRun returns the latest run outcome, or nil before the first run.
func (s *Store) LastRun() *RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	cp := *s.lastRun
	return &cp
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for board, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, board)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second, maximum 1 hour). Run blocks until ctx is
// cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale reports", "count", n)
			}
		}
	}
}
