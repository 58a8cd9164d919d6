// Package enrich – Store
//
// Store is the in-memory state the directory UI reads: one metadata record
// per organization id, the set of ids with a fetch in flight, a retry counter
// per website string, and one short-lived status message. Every transition
// that touches more than one of these happens under a single lock, so a
// reader never sees an id both loading and settled.
//
// Generations: each id carries a counter bumped by Forget and Restart.
// Claimed tasks remember the generation they were claimed under, and Settle
// and Abandon are no-ops for an out-of-date generation.
package enrich

import (
	"math"
	"sync"
	"time"

	"github.com/tbourn/go-org-enricher/internal/domain"
)

// DefaultStatusTTL is how long a status message stays visible.
const DefaultStatusTTL = 5 * time.Second

// Progress is the aggregate view rendered by progress bars.
type Progress struct {
	Loaded           int `json:"loaded"`
	TotalWithWebsite int `json:"total_with_website"`
	InFlight         int `json:"in_flight"`
	Percentage       int `json:"percentage"`
}

// Task is a claimed unit of work: one organization and the generation it was
// claimed under. Completions carrying an older generation are discarded.
type Task struct {
	Org domain.Organization
	Gen uint64
}

// Store holds enrichment state keyed by organization id.
//
// Invariants:
//   - an id is in the loading set iff a fetch for it is in flight
//   - a stable id is never both loading and holding metadata
//   - a URL's retry counter is absent once a fetch for it succeeds
type Store struct {
	mu       sync.Mutex
	metadata map[string]domain.Metadata
	loading  map[string]struct{}
	retries  map[string]int
	gens     map[string]uint64

	status    string
	statusAt  time.Time
	statusTTL time.Duration
	now       func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStatusTTL overrides how long status messages stay visible.
func WithStatusTTL(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.statusTTL = d
		}
	}
}

// WithStoreClock injects the time source used for status expiry.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		metadata:  map[string]domain.Metadata{},
		loading:   map[string]struct{}{},
		retries:   map[string]int{},
		gens:      map[string]uint64{},
		statusTTL: DefaultStatusTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put writes a record and clears the loading flag unconditionally.
func (s *Store) Put(orgID string, rec domain.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[orgID] = rec
	delete(s.loading, orgID)
}

// Settle writes rec for a task claimed under gen. It reports false and
// changes nothing when the organization has since been restarted.
func (s *Store) Settle(orgID string, gen uint64, rec domain.Metadata) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[orgID] != gen {
		return false
	}
	s.metadata[orgID] = rec
	delete(s.loading, orgID)
	return true
}

// MarkLoading sets the loading flag and returns the current generation.
func (s *Store) MarkLoading(orgID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading[orgID] = struct{}{}
	return s.gens[orgID]
}

// ClearLoading removes the loading flag.
func (s *Store) ClearLoading(orgID string) {
	s.mu.Lock()
	delete(s.loading, orgID)
	s.mu.Unlock()
}

// Abandon clears the loading flag of a task unless a newer generation owns
// it. It reports whether the flag was cleared.
func (s *Store) Abandon(orgID string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[orgID] != gen {
		return false
	}
	if _, ok := s.loading[orgID]; !ok {
		return false
	}
	delete(s.loading, orgID)
	return true
}

// Get returns the stored record for orgID.
func (s *Store) Get(orgID string) (domain.Metadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.metadata[orgID]
	return rec, ok
}

// IsLoading reports whether a fetch for orgID is in flight.
func (s *Store) IsLoading(orgID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.loading[orgID]
	return ok
}

// Claim selects the candidates among orgs (website present, no metadata,
// not loading) and marks them loading in one step, so overlapping sweeps
// never enqueue the same organization twice. Input order is preserved.
func (s *Store) Claim(orgs []domain.Organization) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Task
	for _, o := range orgs {
		if !o.HasWebsite() {
			continue
		}
		if _, ok := s.metadata[o.ID]; ok {
			continue
		}
		if _, ok := s.loading[o.ID]; ok {
			continue
		}
		s.loading[o.ID] = struct{}{}
		out = append(out, Task{Org: o, Gen: s.gens[o.ID]})
	}
	return out
}

// Forget drops the record and loading flag of orgID and bumps its
// generation, so completions of earlier tasks are discarded.
func (s *Store) Forget(orgID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forgetLocked(orgID)
}

// Restart is Forget followed by MarkLoading, atomically. Manual refresh
// uses it to start a fresh logical request.
func (s *Store) Restart(orgID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	gen := s.forgetLocked(orgID)
	s.loading[orgID] = struct{}{}
	return gen
}

func (s *Store) forgetLocked(orgID string) uint64 {
	delete(s.metadata, orgID)
	delete(s.loading, orgID)
	s.gens[orgID]++
	return s.gens[orgID]
}

// SetRetryCount mirrors the attempt counter for a URL.
func (s *Store) SetRetryCount(rawURL string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 {
		delete(s.retries, rawURL)
		return
	}
	s.retries[rawURL] = n
}

// RetryCount returns the mirrored attempt counter for a URL.
func (s *Store) RetryCount(rawURL string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.retries[rawURL]
	return n, ok
}

// Progress computes the aggregate over orgs. Only organizations with a
// website count toward the total.
func (s *Store) Progress(orgs []domain.Organization) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	var p Progress
	for _, o := range orgs {
		if !o.HasWebsite() {
			continue
		}
		p.TotalWithWebsite++
		if _, ok := s.metadata[o.ID]; ok {
			p.Loaded++
		}
		if _, ok := s.loading[o.ID]; ok {
			p.InFlight++
		}
	}
	p.Percentage = percentage(p.Loaded, p.TotalWithWebsite)
	return p
}

func percentage(loaded, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(loaded) / float64(total) * 100))
}

// SetStatus replaces the status message; it expires after the status TTL.
func (s *Store) SetStatus(msg string) {
	s.mu.Lock()
	s.status, s.statusAt = msg, s.now()
	s.mu.Unlock()
}

// Status returns the current status message, if one is still visible.
func (s *Store) Status() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" {
		return "", false
	}
	if s.now().Sub(s.statusAt) >= s.statusTTL {
		s.status = ""
		return "", false
	}
	return s.status, true
}
