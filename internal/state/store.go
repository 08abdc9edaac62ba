package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/five82/licdesk/internal/licensing"
)

// Snapshot represents the latest license data available to the UI.
type Snapshot struct {
	Licenses            []licensing.LicenseSummary
	HasLicenses         bool
	Revision            uint64 // Incremented on every successful update
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // Number of consecutive poll failures
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Update replaces the stored license list. When err is non-nil the previous
// data is kept but the error is recorded for visibility.
func (s *Store) Update(licenses []licensing.LicenseSummary, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.LastUpdated = time.Now()
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Licenses = cloneLicenses(licenses)
	s.snapshot.HasLicenses = true
	s.snapshot.Revision++
	s.snapshot.LastError = nil
	s.snapshot.LastUpdated = time.Now()
	s.snapshot.ConsecutiveFailures = 0
}

// Upsert merges a single summary into the stored list, typically after a
// save so the list reflects it before the next poll.
func (s *Store) Upsert(item licensing.LicenseSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snapshot.Licenses {
		if s.snapshot.Licenses[i].ID == item.ID {
			s.snapshot.Licenses[i] = item
			s.snapshot.Revision++
			return
		}
	}
	s.snapshot.Licenses = append(s.snapshot.Licenses, item)
	s.snapshot.Revision++
}

// Remove drops the summary with the given id.
func (s *Store) Remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.snapshot.Licenses[:0]
	removed := false
	for _, item := range s.snapshot.Licenses {
		if item.ID == id {
			removed = true
			continue
		}
		out = append(out, item)
	}
	s.snapshot.Licenses = out
	if removed {
		s.snapshot.Revision++
	}
}

// Reset forgets all data, for example on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = Snapshot{}
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Licenses = cloneLicenses(s.snapshot.Licenses)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneLicenses(items []licensing.LicenseSummary) []licensing.LicenseSummary {
	if len(items) == 0 {
		return nil
	}
	dup := make([]licensing.LicenseSummary, len(items))
	copy(dup, items)
	return dup
}
