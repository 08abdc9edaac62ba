package state

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/five82/licdesk/internal/licensing"
)

func TestStore_UpdateAndSnapshotClone(t *testing.T) {
	var s Store

	items := []licensing.LicenseSummary{{ID: 1, Domain: "a.com"}, {ID: 2, Domain: "b.com"}}

	before := time.Now()
	s.Update(items, nil)

	snap := s.Snapshot()
	if !snap.HasLicenses || len(snap.Licenses) != 2 || snap.Licenses[0].ID != 1 {
		t.Fatalf("snapshot licenses = %#v, want 2 items", snap.Licenses)
	}
	if snap.Revision != 1 {
		t.Fatalf("Revision = %d, want 1", snap.Revision)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError != nil {
		t.Fatalf("LastError = %v, want nil", snap.LastError)
	}

	// Returned snapshot should be independent of the stored one.
	snap.Licenses[0].ID = 999
	snap2 := s.Snapshot()
	if snap2.Licenses[0].ID != 1 {
		t.Fatalf("Snapshot should clone licenses; got id %d want 1", snap2.Licenses[0].ID)
	}

	// Input slice should not be shared either.
	items[1].Domain = "mutated"
	if s.Snapshot().Licenses[1].Domain != "b.com" {
		t.Fatalf("Update should clone its input")
	}
}

func TestStore_UpdateErrorKeepsPreviousData(t *testing.T) {
	var s Store

	s.Update([]licensing.LicenseSummary{{ID: 1}}, nil)
	prev := s.Snapshot()

	before := time.Now()
	origErr := errors.New("boom")
	s.Update(nil, origErr)

	snap := s.Snapshot()
	if len(snap.Licenses) != 1 || snap.Licenses[0].ID != 1 {
		t.Fatalf("licenses changed on error: got %#v want %#v", snap.Licenses, prev.Licenses)
	}
	if snap.Revision != prev.Revision {
		t.Fatalf("Revision = %d, want %d", snap.Revision, prev.Revision)
	}
	if snap.LastUpdated.Before(before) {
		t.Fatalf("LastUpdated = %v, want >= %v", snap.LastUpdated, before)
	}
	if snap.LastError == nil || snap.LastError.Error() != "boom" {
		t.Fatalf("LastError = %v, want boom", snap.LastError)
	}
	if reflect.ValueOf(snap.LastError).Pointer() == reflect.ValueOf(origErr).Pointer() {
		t.Fatalf("Snapshot should clone error instance")
	}
	if !errors.Is(snap.LastError, origErr) {
		t.Fatalf("Snapshot error should wrap the original")
	}
}

func TestStore_ConsecutiveFailures(t *testing.T) {
	var s Store

	snap := s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("fresh store: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}

	s.Update(nil, errors.New("fail 1"))
	snap = s.Snapshot()
	if snap.ConsecutiveFailures != 1 {
		t.Fatalf("ConsecutiveFailures = %d, want 1", snap.ConsecutiveFailures)
	}
	if snap.IsOffline() {
		t.Fatal("IsOffline() = true, want false with 1 failure")
	}

	s.Update(nil, errors.New("fail 2"))
	snap = s.Snapshot()
	if !snap.IsOffline() {
		t.Fatal("IsOffline() = false, want true with 2 failures")
	}

	s.Update([]licensing.LicenseSummary{}, nil)
	snap = s.Snapshot()
	if snap.ConsecutiveFailures != 0 || snap.IsOffline() {
		t.Fatalf("after success: failures=%d offline=%v", snap.ConsecutiveFailures, snap.IsOffline())
	}
	if !snap.HasLicenses {
		t.Fatal("HasLicenses = false after an empty successful update")
	}
}

func TestStore_UpsertAndRemove(t *testing.T) {
	var s Store
	s.Update([]licensing.LicenseSummary{{ID: 1, Domain: "a.com"}, {ID: 2, Domain: "b.com"}}, nil)

	s.Upsert(licensing.LicenseSummary{ID: 2, Domain: "b2.com"})
	s.Upsert(licensing.LicenseSummary{ID: 3, Domain: "c.com"})
	snap := s.Snapshot()
	if len(snap.Licenses) != 3 || snap.Licenses[1].Domain != "b2.com" || snap.Licenses[2].ID != 3 {
		t.Fatalf("after upsert = %#v", snap.Licenses)
	}
	if snap.Revision != 3 {
		t.Fatalf("Revision = %d, want 3", snap.Revision)
	}

	s.Remove(1)
	s.Remove(42)
	snap = s.Snapshot()
	if len(snap.Licenses) != 2 || snap.Licenses[0].ID != 2 {
		t.Fatalf("after remove = %#v", snap.Licenses)
	}
	if snap.Revision != 4 {
		t.Fatalf("Revision = %d, want 4 (missing id must not bump)", snap.Revision)
	}

	s.Reset()
	if snap := s.Snapshot(); snap.HasLicenses || len(snap.Licenses) != 0 {
		t.Fatalf("Reset left data: %#v", snap)
	}
}
