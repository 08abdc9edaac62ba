package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/licdesk/internal/licensing"
)

func strp(s string) *string { return &s }

func TestParse_MalformedDocumentsDecodeEmpty(t *testing.T) {
	e := Parse(licensing.AuditRecord{ID: 1, Action: "UPDATE", OldData: strp("{not json"), NewData: nil})
	assert.Empty(t, e.Before)
	assert.Empty(t, e.After)
	assert.NotNil(t, e.Before)

	e = Parse(licensing.AuditRecord{OldData: strp("[1,2]"), NewData: strp(`{"domain":"a.com"}`)})
	assert.Empty(t, e.Before)
	assert.Equal(t, "a.com", e.After["domain"])
}

func TestParseAll_NewestFirst(t *testing.T) {
	entries := ParseAll([]licensing.AuditRecord{
		{ID: 1, Timestamp: "2024-01-01 10:00:00"},
		{ID: 2, Timestamp: "2024-03-01T09:00:00Z"},
		{ID: 3, Timestamp: "2024-02-01 10:00:00"},
		{ID: 4, Timestamp: "garbage"},
		{ID: 5, Timestamp: "garbage"},
	})
	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.Record.ID)
	}
	assert.Equal(t, []int64{2, 3, 1, 5, 4}, ids)
}

func TestDiffAndSummary(t *testing.T) {
	e := Parse(licensing.AuditRecord{
		Action:  "UPDATE",
		OldData: strp(`{"domain":"a.com","customerName":"A","active":true}`),
		NewData: strp(`{"domain":"a.com","customerName":"A Inc","active":false}`),
	})

	diff, err := Diff(e)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(diff, "--- before\n+++ after\n"), diff)
	assert.Contains(t, diff, `-  "customerName": "A",`)
	assert.Contains(t, diff, `+  "customerName": "A Inc",`)

	assert.Equal(t, []string{"active", "customerName"}, ChangedKeys(e))
	assert.Equal(t, "changed active, customerName", Summarize(e))
}

func TestDiff_IdenticalAndCreate(t *testing.T) {
	same := Parse(licensing.AuditRecord{Action: "UPDATE", OldData: strp(`{"a":1}`), NewData: strp(`{"a":1}`)})
	diff, err := Diff(same)
	require.NoError(t, err)
	assert.Empty(t, diff)
	assert.Equal(t, "no changes", Summarize(same))

	created := Parse(licensing.AuditRecord{Action: "create", NewData: strp(`{"domain":"n.com"}`)})
	diff, err = Diff(created)
	require.NoError(t, err)
	assert.Contains(t, diff, `+  "domain": "n.com"`)
	assert.Equal(t, "created", Summarize(created))

	assert.Equal(t, "deleted", Summarize(Parse(licensing.AuditRecord{Action: "DELETE"})))
}
