package listview

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/licdesk/internal/licensing"
)

func makeLicenses(n int) []licensing.LicenseSummary {
	items := make([]licensing.LicenseSummary, n)
	for i := range items {
		items[i] = licensing.LicenseSummary{
			ID:           int64(i + 1),
			SerialNumber: int64(1000 + i),
			Domain:       fmt.Sprintf("site%02d.example.com", i+1),
			CustomerName: fmt.Sprintf("Customer %02d", i+1),
			Active:       i%2 == 0,
		}
	}
	return items
}

func ids(items []licensing.LicenseSummary) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestPagination_TwentyFiveItems(t *testing.T) {
	s := New(10)
	s.SetAll(makeLicenses(25))

	require.Equal(t, 3, s.TotalPages())
	require.Equal(t, 1, s.PageIndex())
	assert.Len(t, s.Page(), 10)

	s.GoToPage(5)
	assert.Equal(t, 1, s.PageIndex(), "out of range page must be rejected")

	s.GoToPage(2)
	require.Equal(t, 2, s.PageIndex())
	assert.Equal(t, []int64{11, 12, 13, 14, 15, 16, 17, 18, 19, 20}, ids(s.Page()))

	s.GoToPage(3)
	assert.Equal(t, []int64{21, 22, 23, 24, 25}, ids(s.Page()))
}

func TestGoToPage_NoOps(t *testing.T) {
	s := New(10)
	s.SetAll(makeLicenses(25))
	s.GoToPage(2)
	before := s.Page()

	for _, n := range []int{0, -1, 4, 2} {
		s.GoToPage(n)
		assert.Equal(t, 2, s.PageIndex(), "GoToPage(%d)", n)
		assert.Equal(t, before, s.Page())
	}

	for _, raw := range []string{"abc", "", "2.5", "99"} {
		s.GoToPageString(raw)
		assert.Equal(t, 2, s.PageIndex(), "GoToPageString(%q)", raw)
	}

	s.GoToPageString(" 3 ")
	assert.Equal(t, 3, s.PageIndex())

	s.NextPage()
	assert.Equal(t, 3, s.PageIndex())
	s.PrevPage()
	assert.Equal(t, 2, s.PageIndex())
}

func TestFilterAndSearch_AreConjunctive(t *testing.T) {
	s := New(10)
	all := []licensing.LicenseSummary{
		{ID: 1, Domain: "acme.com", CustomerName: "Acme", Active: true},
		{ID: 2, Domain: "acme.org", CustomerName: "Acme Org", Active: false},
		{ID: 3, Domain: "globex.com", CustomerName: "Globex ACME partner", Active: true},
		{ID: 4, Domain: "initech.com", CustomerName: "Initech", Active: true},
	}
	s.SetAll(all)

	s.SetSearch("ACME")
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Filtered()))

	s.SetFilter(StatusActive)
	assert.Equal(t, []int64{1, 3}, ids(s.Filtered()))

	s.SetFilter(StatusInactive)
	assert.Equal(t, []int64{2}, ids(s.Filtered()))

	s.SetSearch("")
	s.SetFilter(StatusAll)
	assert.Len(t, s.Filtered(), 4)

	for _, item := range s.Filtered() {
		assert.Contains(t, ids(all), item.ID)
	}
}

func TestSearch_MatchesTermAsTyped(t *testing.T) {
	s := New(10)
	s.SetAll([]licensing.LicenseSummary{
		{ID: 1, Domain: "acme.com", CustomerName: "Acme"},
		{ID: 2, Domain: "globex.com", CustomerName: "Globex Acme"},
		{ID: 3, Domain: "initech.com", CustomerName: "Initech"},
	})

	s.SetSearch(" acme")
	assert.Equal(t, []int64{2}, ids(s.Filtered()))

	s.SetSearch(" ")
	assert.Equal(t, []int64{2}, ids(s.Filtered()))

	s.SetSearch("")
	assert.Len(t, s.Filtered(), 3)
}

func TestFilterAndSearch_ResetPage(t *testing.T) {
	s := New(10)
	s.SetAll(makeLicenses(25))
	s.GoToPage(3)

	s.SetSearch("site")
	assert.Equal(t, 1, s.PageIndex())

	s.GoToPage(2)
	s.SetFilter(StatusActive)
	assert.Equal(t, 1, s.PageIndex())
	assert.Equal(t, 13, s.FilteredCount())
}

func TestSetSort_IsStableAndKeepsPage(t *testing.T) {
	s := New(2)
	s.SetAll([]licensing.LicenseSummary{
		{ID: 1, Domain: "b.com", CustomerName: "Zed"},
		{ID: 2, Domain: "A.com", CustomerName: "same"},
		{ID: 3, Domain: "c.com", CustomerName: "Same"},
		{ID: 4, Domain: "a.com", CustomerName: "same"},
		{ID: 5, Domain: "d.com", CustomerName: "Alpha"},
	})
	s.GoToPage(2)

	s.SetSort(SortDomain)
	assert.Equal(t, 2, s.PageIndex(), "sorting must not reset the page")
	assert.Equal(t, []int64{2, 4, 1, 3, 5}, ids(s.Filtered()))
	assert.Equal(t, SortAscending, s.Direction())

	s.SetSort(SortCustomerName)
	assert.Equal(t, []int64{5, 2, 3, 4, 1}, ids(s.Filtered()), "equal keys keep their relative order")

	s.SetSort(SortCustomerName)
	assert.Equal(t, SortCustomerName, s.Sort())
	assert.Equal(t, SortAscending, s.Direction())
}

func TestSetSort_NumericFieldsCompareAsText(t *testing.T) {
	s := New(10)
	s.SetAll([]licensing.LicenseSummary{{ID: 2}, {ID: 10}, {ID: 1}})
	s.SetSort(SortID)
	assert.Equal(t, []int64{1, 10, 2}, ids(s.Filtered()))

	s.SetSort(SortNone)
	assert.Equal(t, []int64{2, 10, 1}, ids(s.Filtered()))
}

func TestSetAll_ClampsButKeepsPage(t *testing.T) {
	s := New(10)
	s.SetAll(makeLicenses(25))
	s.GoToPage(2)

	s.SetAll(makeLicenses(30))
	assert.Equal(t, 2, s.PageIndex())

	s.GoToPage(3)
	s.SetAll(makeLicenses(12))
	assert.Equal(t, 2, s.TotalPages())
	assert.Equal(t, 2, s.PageIndex())

	s.SetAll(nil)
	assert.Equal(t, 0, s.TotalPages())
	assert.Equal(t, 2, s.PageIndex(), "page index is left alone when there are no pages")
	assert.Empty(t, s.Page())
}

func TestTotalPagesInvariant(t *testing.T) {
	for _, size := range []int{1, 3, 10} {
		for n := 0; n <= 23; n++ {
			s := New(size)
			s.SetAll(makeLicenses(n))
			want := (n + size - 1) / size
			require.Equal(t, want, s.TotalPages(), "n=%d size=%d", n, size)
			if want > 0 {
				require.GreaterOrEqual(t, s.PageIndex(), 1)
				require.LessOrEqual(t, s.PageIndex(), want)
			}
		}
	}
}

func TestSetPageSize(t *testing.T) {
	s := New(0)
	assert.Equal(t, DefaultPageSize, s.PageSize())

	s.SetAll(makeLicenses(25))
	s.GoToPage(3)
	s.SetPageSize(5)
	assert.Equal(t, 5, s.TotalPages())
	assert.Equal(t, 1, s.PageIndex())

	s.SetPageSize(-2)
	assert.Equal(t, 5, s.PageSize())
}

func TestPageNumbers(t *testing.T) {
	tests := []struct {
		current, total int
		want           []int
	}{
		{1, 0, []int{1}},
		{1, 1, []int{1}},
		{1, 2, []int{1, 2}},
		{3, 5, []int{1, 2, 3, 4, 5}},
		{1, 10, []int{1, 2, 3, 4, 10}},
		{3, 10, []int{1, 2, 3, 4, 10}},
		{5, 10, []int{1, 4, 5, 6, 10}},
		{8, 10, []int{1, 7, 8, 9, 10}},
		{10, 10, []int{1, 7, 8, 9, 10}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_of_%d", tt.current, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, pageNumbers(tt.current, tt.total))
		})
	}
}

func TestPageGaps(t *testing.T) {
	s := New(1)
	s.SetAll(makeLicenses(10))
	assert.False(t, s.HasGapAfterFirst())
	assert.True(t, s.HasGapBeforeLast())

	s.GoToPage(5)
	assert.True(t, s.HasGapAfterFirst())
	assert.True(t, s.HasGapBeforeLast())

	s.GoToPage(10)
	assert.True(t, s.HasGapAfterFirst())
	assert.False(t, s.HasGapBeforeLast())
}

func TestReset(t *testing.T) {
	s := New(10)
	s.SetAll(makeLicenses(25))
	s.SetSearch("site1")
	s.SetFilter(StatusActive)
	s.SetSort(SortDomain)

	s.Reset()
	assert.Equal(t, "", s.SearchTerm())
	assert.Equal(t, StatusAll, s.Status())
	assert.Equal(t, SortNone, s.Sort())
	assert.Equal(t, 1, s.PageIndex())
	assert.Equal(t, 25, s.FilteredCount())
}

func TestParsers(t *testing.T) {
	assert.Equal(t, StatusActive, ParseStatusFilter(" ACTIVE "))
	assert.Equal(t, StatusInactive, ParseStatusFilter("inactive"))
	assert.Equal(t, StatusAll, ParseStatusFilter("whatever"))
	assert.Equal(t, StatusActive, StatusAll.Next())
	assert.Equal(t, StatusAll, StatusInactive.Next())

	assert.Equal(t, SortCustomerName, ParseSortKey("customername"))
	assert.Equal(t, SortNone, ParseSortKey(strings.Repeat("x", 3)))
}
