// Package uploads stages candidate CV uploads between the HTTP upload
// endpoint and the WebSocket interview session that consumes them.
package uploads

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultRetention is how long an unconsumed upload survives.
const DefaultRetention = time.Hour

// CandidateProfile is the identity captured at upload time. It is immutable
// once stored.
type CandidateProfile struct {
	FirstName string
	LastName  string
	Email     string
}

// FullName joins the candidate's names for prompt and log use.
func (p CandidateProfile) FullName() string {
	switch {
	case p.FirstName == "":
		return p.LastName
	case p.LastName == "":
		return p.FirstName
	default:
		return p.FirstName + " " + p.LastName
	}
}

// Record is one staged upload.
type Record struct {
	Profile    CandidateProfile
	CVText     string
	UploadedAt time.Time
}

// Store holds staged uploads keyed by a one-time token. Entries are consumed
// at most once and garbage-collected after the retention window.
type Store struct {
	mu        sync.Mutex
	entries   map[string]Record
	retention time.Duration
	now       func() time.Time
}

// NewStore builds a store with the given retention; zero means
// DefaultRetention.
func NewStore(retention time.Duration) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		entries:   make(map[string]Record),
		retention: retention,
		now:       time.Now,
	}
}

// Put stages an upload and returns its one-time token.
func (s *Store) Put(profile CandidateProfile, cvText string) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = Record{
		Profile:    profile,
		CVText:     cvText,
		UploadedAt: s.now(),
	}
	return token
}

// Consume removes and returns the record for token. The second return is
// false when the token is unknown, already consumed, or expired.
func (s *Store) Consume(token string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[token]
	if !ok {
		return Record{}, false
	}
	delete(s.entries, token)
	if s.now().Sub(rec.UploadedAt) > s.retention {
		return Record{}, false
	}
	return rec, true
}

// Len reports the number of staged entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops expired entries and reports how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	cutoff := s.now().Add(-s.retention)
	for token, rec := range s.entries {
		if rec.UploadedAt.Before(cutoff) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// Run sweeps on a ticker until ctx is canceled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
