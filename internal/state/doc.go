// Package state holds the license list shared between the background poller
// and the console UI.
//
// # Overview
//
// The poller refreshes license summaries on an interval and writes them into a
// Store. The UI reads a Snapshot on every tick and feeds it into its list view
// state, which keeps the operator's search, filter, sort and page while the
// underlying collection changes.
//
// # Core Types
//
// Store:
//   - Thread-safe container for the latest license summaries
//   - Uses sync.RWMutex for concurrent access
//   - Written by the poller and by the UI after saves and deletes
//
// Snapshot:
//   - Copy of the state at a point in time
//   - Revision increases on every successful change so readers can skip
//     unchanged data
//
// # Update Semantics
//
//	// Success: replace the list
//	store.Update(items, nil)
//	→ snapshot.Licenses = items
//	→ snapshot.LastError = nil
//	→ snapshot.ConsecutiveFailures = 0
//
//	// Error: keep the list, record the error
//	store.Update(nil, err)
//	→ snapshot.Licenses = <unchanged>
//	→ snapshot.LastError = err
//	→ snapshot.ConsecutiveFailures++
//
// Upsert and Remove patch a single entry so a save or delete shows up in the
// list before the next poll.
//
// # Defensive Copying
//
// Snapshot clones the license slice and wraps the error so callers never
// share memory with the store.
//
// The zero Store is ready to use.
package state
