// Package listview derives the visible page of the license list from the
// operator's search term, status filter, sort key and page position.
package listview

import (
	"sort"
	"strconv"
	"strings"

	"github.com/five82/licdesk/internal/licensing"
)

// DefaultPageSize is the number of rows per page when none is configured.
const DefaultPageSize = 10

// StatusFilter restricts the list by the active flag.
type StatusFilter string

const (
	StatusAll      StatusFilter = "All"
	StatusActive   StatusFilter = "Active"
	StatusInactive StatusFilter = "Inactive"
)

// ParseStatusFilter maps user input onto a StatusFilter; anything
// unrecognized means StatusAll.
func ParseStatusFilter(value string) StatusFilter {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "active":
		return StatusActive
	case "inactive":
		return StatusInactive
	default:
		return StatusAll
	}
}

// Next cycles All → Active → Inactive → All.
func (f StatusFilter) Next() StatusFilter {
	switch f {
	case StatusAll:
		return StatusActive
	case StatusActive:
		return StatusInactive
	default:
		return StatusAll
	}
}

func (f StatusFilter) matches(item licensing.LicenseSummary) bool {
	switch f {
	case StatusActive:
		return item.Active
	case StatusInactive:
		return !item.Active
	default:
		return true
	}
}

// SortKey names a summary field to sort by.
type SortKey string

const (
	SortNone         SortKey = ""
	SortID           SortKey = "id"
	SortSerialNumber SortKey = "serialNumber"
	SortDomain       SortKey = "domain"
	SortCustomerName SortKey = "customerName"
	SortActive       SortKey = "active"
)

// SortKeys lists the sortable fields in column order.
var SortKeys = []SortKey{SortID, SortSerialNumber, SortDomain, SortCustomerName, SortActive}

// ParseSortKey maps a field name onto a SortKey, case-insensitively.
// Unknown names yield SortNone.
func ParseSortKey(value string) SortKey {
	v := strings.TrimSpace(value)
	for _, key := range SortKeys {
		if strings.EqualFold(v, string(key)) {
			return key
		}
	}
	return SortNone
}

// sortValue is the string form compared when sorting. Comparison is on the
// lowercased text, so numeric fields order lexically.
func sortValue(item licensing.LicenseSummary, key SortKey) string {
	switch key {
	case SortID:
		return strconv.FormatInt(item.ID, 10)
	case SortSerialNumber:
		return strconv.FormatInt(item.SerialNumber, 10)
	case SortDomain:
		return item.Domain
	case SortCustomerName:
		return item.CustomerName
	case SortActive:
		return strconv.FormatBool(item.Active)
	default:
		return ""
	}
}

// SortDirection is the order applied for a sort key.
type SortDirection int

// Only ascending order is supported.
const SortAscending SortDirection = iota

// State is the list view model. The zero value is not usable; call New.
type State struct {
	all        []licensing.LicenseSummary
	searchTerm string
	status     StatusFilter
	sortKey    SortKey
	direction  SortDirection
	pageIndex  int
	pageSize   int

	filtered   []licensing.LicenseSummary
	page       []licensing.LicenseSummary
	totalPages int
}

// New returns an empty State with the given page size. Non-positive sizes
// fall back to DefaultPageSize.
func New(pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	s := &State{
		status:    StatusAll,
		sortKey:   SortNone,
		direction: SortAscending,
		pageIndex: 1,
		pageSize:  pageSize,
	}
	s.recompute()
	return s
}

// SetAll replaces the collection. The page index is kept and clamped.
func (s *State) SetAll(items []licensing.LicenseSummary) {
	s.all = append([]licensing.LicenseSummary(nil), items...)
	s.recompute()
}

// SetFilter changes the status filter and returns to page 1.
func (s *State) SetFilter(status StatusFilter) {
	switch status {
	case StatusActive, StatusInactive:
	default:
		status = StatusAll
	}
	s.status = status
	s.pageIndex = 1
	s.recompute()
}

// SetSearch changes the search term and returns to page 1.
func (s *State) SetSearch(term string) {
	s.searchTerm = term
	s.pageIndex = 1
	s.recompute()
}

// SetSort selects the sort key. Selecting the current key keeps ascending
// order. The page index is kept.
func (s *State) SetSort(key SortKey) {
	if key != s.sortKey {
		s.sortKey = key
	}
	s.direction = SortAscending
	s.recompute()
}

// SetPageSize changes the page size and returns to page 1. Non-positive
// sizes are ignored.
func (s *State) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	s.pageSize = n
	s.pageIndex = 1
	s.recompute()
}

// GoToPage moves to page n. It is a no-op when n is out of range or already
// current.
func (s *State) GoToPage(n int) {
	if n < 1 || n > s.totalPages || n == s.pageIndex {
		return
	}
	s.pageIndex = n
	s.slice()
}

// GoToPageString is GoToPage for raw input; non-numeric text is ignored.
func (s *State) GoToPageString(value string) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return
	}
	s.GoToPage(n)
}

// NextPage advances one page when possible.
func (s *State) NextPage() { s.GoToPage(s.pageIndex + 1) }

// PrevPage goes back one page when possible.
func (s *State) PrevPage() { s.GoToPage(s.pageIndex - 1) }

// Reset restores the initial search, filter, sort and page.
func (s *State) Reset() {
	s.searchTerm = ""
	s.status = StatusAll
	s.sortKey = SortNone
	s.direction = SortAscending
	s.pageIndex = 1
	s.recompute()
}

// Page returns the rows of the current page.
func (s *State) Page() []licensing.LicenseSummary {
	return append([]licensing.LicenseSummary(nil), s.page...)
}

// Filtered returns every row matching the filter and search, sorted.
func (s *State) Filtered() []licensing.LicenseSummary {
	return append([]licensing.LicenseSummary(nil), s.filtered...)
}

func (s *State) All() []licensing.LicenseSummary {
	return append([]licensing.LicenseSummary(nil), s.all...)
}

func (s *State) TotalPages() int          { return s.totalPages }
func (s *State) PageIndex() int           { return s.pageIndex }
func (s *State) PageSize() int            { return s.pageSize }
func (s *State) FilteredCount() int       { return len(s.filtered) }
func (s *State) SearchTerm() string       { return s.searchTerm }
func (s *State) Status() StatusFilter     { return s.status }
func (s *State) Sort() SortKey            { return s.sortKey }
func (s *State) Direction() SortDirection { return s.direction }

// PageNumbers returns the page buttons to show: always the first and last
// page, plus a window around the current page that widens near either end.
func (s *State) PageNumbers() []int {
	return pageNumbers(s.pageIndex, s.totalPages)
}

// HasGapAfterFirst reports whether pages are skipped between page 1 and the
// next shown page.
func (s *State) HasGapAfterFirst() bool {
	nums := s.PageNumbers()
	return len(nums) > 1 && nums[1] > 2
}

// HasGapBeforeLast reports whether pages are skipped before the last page.
func (s *State) HasGapBeforeLast() bool {
	nums := s.PageNumbers()
	n := len(nums)
	return n > 2 && nums[n-1]-nums[n-2] > 1
}

func pageNumbers(current, total int) []int {
	pages := []int{1}
	if total <= 1 {
		return pages
	}
	start := max(2, current-1)
	end := min(total-1, current+1)
	if current <= 3 {
		end = min(4, total-1)
	} else if current >= total-2 {
		start = max(total-3, 2)
	}
	for i := start; i <= end; i++ {
		if i > 1 && i < total {
			pages = append(pages, i)
		}
	}
	return append(pages, total)
}

func (s *State) recompute() {
	term := strings.ToLower(s.searchTerm)
	filtered := make([]licensing.LicenseSummary, 0, len(s.all))
	for _, item := range s.all {
		if !s.status.matches(item) {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(item.Domain), term) &&
			!strings.Contains(strings.ToLower(item.CustomerName), term) {
			continue
		}
		filtered = append(filtered, item)
	}

	if s.sortKey != SortNone {
		key := s.sortKey
		sort.SliceStable(filtered, func(i, j int) bool {
			return strings.ToLower(sortValue(filtered[i], key)) < strings.ToLower(sortValue(filtered[j], key))
		})
	}

	s.filtered = filtered
	s.totalPages = (len(filtered) + s.pageSize - 1) / s.pageSize
	if s.totalPages > 0 {
		s.pageIndex = min(max(s.pageIndex, 1), s.totalPages)
	}
	s.slice()
}

func (s *State) slice() {
	start := (s.pageIndex - 1) * s.pageSize
	if start < 0 || start >= len(s.filtered) {
		s.page = nil
		return
	}
	end := min(start+s.pageSize, len(s.filtered))
	s.page = s.filtered[start:end]
}
