// Package audit turns license audit records into something an operator can
// read: decoded before/after documents, a unified diff between them and a
// one-line summary of what changed.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/five82/licdesk/internal/licensing"
)

// LoadErrorMessage is shown when the audit trail cannot be fetched.
const LoadErrorMessage = "Failed to load audit data"

// Entry is a decoded audit record.
type Entry struct {
	Record licensing.AuditRecord
	Before map[string]any
	After  map[string]any
	When   time.Time
}

// Parse decodes the old and new documents of a record. Missing or malformed
// documents decode as empty objects.
func Parse(record licensing.AuditRecord) Entry {
	return Entry{
		Record: record,
		Before: decode(record.OldData),
		After:  decode(record.NewData),
		When:   record.ParsedTimestamp(),
	}
}

// ParseAll decodes records and orders them newest first. Records with
// equal or unparsable timestamps keep their relative order, newer ids first.
func ParseAll(records []licensing.AuditRecord) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Parse(r))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.When.Equal(b.When) {
			return a.When.After(b.When)
		}
		return a.Record.ID > b.Record.ID
	})
	return entries
}

func decode(raw *string) map[string]any {
	out := map[string]any{}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return out
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(*raw), &doc); err != nil || doc == nil {
		return out
	}
	return doc
}

// Diff renders a unified diff of the pretty printed documents.
// It returns "" when they are identical.
func Diff(e Entry) (string, error) {
	before, err := pretty(e.Before)
	if err != nil {
		return "", err
	}
	after, err := pretty(e.After)
	if err != nil {
		return "", err
	}
	if before == after {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
}

func pretty(doc map[string]any) (string, error) {
	if len(doc) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("encode audit document: %w", err)
	}
	return buf.String(), nil
}

// ChangedKeys lists the top-level keys whose values differ, sorted.
func ChangedKeys(e Entry) []string {
	seen := map[string]struct{}{}
	for k := range e.Before {
		seen[k] = struct{}{}
	}
	for k := range e.After {
		seen[k] = struct{}{}
	}
	var keys []string
	for k := range seen {
		if !reflect.DeepEqual(e.Before[k], e.After[k]) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Summarize describes the entry in one line.
func Summarize(e Entry) string {
	switch strings.ToUpper(e.Record.Action) {
	case licensing.ActionCreate:
		return "created"
	case licensing.ActionDelete:
		return "deleted"
	}
	keys := ChangedKeys(e)
	if len(keys) == 0 {
		return "no changes"
	}
	return "changed " + strings.Join(keys, ", ")
}
