package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/licdesk/internal/editor"
	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/listview"
	"github.com/five82/licdesk/internal/notify"
)

// listState is the list view: the derived page plus row selection and the
// search and page-jump inputs.
type listState struct {
	view     *listview.State
	selected int

	searching bool
	search    textinput.Model

	jumping bool
	jump    textinput.Model
}

func newListState(pageSize int, status listview.StatusFilter) listState {
	search := textinput.New()
	search.Placeholder = "domain or customer"
	search.Prompt = "/"
	search.CharLimit = 80
	search.Width = 30

	jump := textinput.New()
	jump.Placeholder = "page"
	jump.Prompt = "page: "
	jump.CharLimit = 6
	jump.Width = 8

	view := listview.New(pageSize)
	view.SetFilter(status)
	return listState{view: view, search: search, jump: jump}
}

// setItems replaces the collection, keeping the selection on the same
// license when it is still on the page.
func (l *listState) setItems(items []licensing.LicenseSummary) {
	var selectedID int64
	if item, ok := l.current(); ok {
		selectedID = item.ID
	}
	l.view.SetAll(items)
	page := l.view.Page()
	for i, item := range page {
		if item.ID == selectedID {
			l.selected = i
			return
		}
	}
	l.clampSelection()
}

func (l *listState) clampSelection() {
	n := len(l.view.Page())
	if l.selected >= n {
		l.selected = n - 1
	}
	if l.selected < 0 {
		l.selected = 0
	}
}

// current returns the selected license on the visible page.
func (l listState) current() (licensing.LicenseSummary, bool) {
	if l.view == nil {
		return licensing.LicenseSummary{}, false
	}
	page := l.view.Page()
	if l.selected < 0 || l.selected >= len(page) {
		return licensing.LicenseSummary{}, false
	}
	return page[l.selected], true
}

// nextSortKey cycles none → id → serial → domain → customer → active → none.
func nextSortKey(current listview.SortKey) listview.SortKey {
	if current == listview.SortNone {
		return listview.SortKeys[0]
	}
	for i, k := range listview.SortKeys {
		if k == current && i+1 < len(listview.SortKeys) {
			return listview.SortKeys[i+1]
		}
	}
	return listview.SortNone
}

// handleListKey processes keyboard input for the list view.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.searching {
		return m.handleSearchInput(msg)
	}
	if m.list.jumping {
		return m.handleJumpInput(msg)
	}

	lv := m.list.view
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		if m.list.selected < len(lv.Page())-1 {
			m.list.selected++
		}
	case key.Matches(msg, m.keys.Up):
		if m.list.selected > 0 {
			m.list.selected--
		}
	case key.Matches(msg, m.keys.Top):
		m.list.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.list.selected = len(lv.Page()) - 1
		m.list.clampSelection()

	case key.Matches(msg, m.keys.NextPage):
		lv.NextPage()
		m.list.clampSelection()
	case key.Matches(msg, m.keys.PrevPage):
		lv.PrevPage()
		m.list.clampSelection()
	case key.Matches(msg, m.keys.JumpPage):
		m.list.jumping = true
		m.list.jump.SetValue("")
		cmd := m.list.jump.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Search):
		m.list.searching = true
		m.list.search.SetValue(lv.SearchTerm())
		m.list.search.CursorEnd()
		cmd := m.list.search.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Escape):
		if lv.SearchTerm() != "" {
			lv.SetSearch("")
			m.list.search.SetValue("")
			m.list.selected = 0
		}

	case key.Matches(msg, m.keys.CycleFilter):
		lv.SetFilter(lv.Status().Next())
		m.list.selected = 0
		m.prefs.StatusFilter = string(lv.Status())
		m.savePrefs()

	case key.Matches(msg, m.keys.CycleSort):
		lv.SetSort(nextSortKey(lv.Sort()))
		m.list.clampSelection()

	case key.Matches(msg, m.keys.Refresh):
		m.poller.Trigger()
		m.notices.Info("Refreshing licenses")

	case key.Matches(msg, m.keys.Create):
		cmd := m.openDetail(0, editor.ModeNew)
		return m, cmd

	case key.Matches(msg, m.keys.Open):
		if item, ok := m.list.current(); ok {
			cmd := m.openDetail(item.ID, editor.ModeView)
			return m, cmd
		}
	case key.Matches(msg, m.keys.Edit):
		if item, ok := m.list.current(); ok {
			cmd := m.openDetail(item.ID, editor.ModeEdit)
			return m, cmd
		}
	case key.Matches(msg, m.keys.Delete):
		if item, ok := m.list.current(); ok {
			cmd := m.deleteCmd(item)
			return m, cmd
		}
	case key.Matches(msg, m.keys.Audit):
		if item, ok := m.list.current(); ok {
			cmd := m.openAudit(item.Domain, ViewList)
			return m, cmd
		}

	case key.Matches(msg, m.keys.Logout):
		return m, logoutCmd(m.ctx, m.confirmer)
	}
	return m, nil
}

// handleSearchInput filters as the operator types; enter keeps the term and
// esc clears it.
func (m Model) handleSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.list.searching = false
		m.list.search.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.list.searching = false
		m.list.search.Blur()
		m.list.search.SetValue("")
		m.list.view.SetSearch("")
		m.list.selected = 0
		return m, nil
	}

	var cmd tea.Cmd
	m.list.search, cmd = m.list.search.Update(msg)
	if m.list.search.Value() != m.list.view.SearchTerm() {
		m.list.view.SetSearch(m.list.search.Value())
		m.list.selected = 0
	}
	return m, cmd
}

func (m Model) handleJumpInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		before := m.list.view.PageIndex()
		m.list.view.GoToPageString(m.list.jump.Value())
		if m.list.view.PageIndex() == before && strings.TrimSpace(m.list.jump.Value()) != strconv.Itoa(before) {
			m.notices.Warning(fmt.Sprintf("No page %q", strings.TrimSpace(m.list.jump.Value())))
		}
		m.list.jumping = false
		m.list.jump.Blur()
		m.list.clampSelection()
		return m, nil
	case key.Matches(msg, m.keys.Escape):
		m.list.jumping = false
		m.list.jump.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.list.jump, cmd = m.list.jump.Update(msg)
	return m, cmd
}

// deleteCmd asks for confirmation and deletes the license.
func (m Model) deleteCmd(item licensing.LicenseSummary) tea.Cmd {
	ctx, api, confirmer := m.ctx, m.api, m.confirmer
	prompt := fmt.Sprintf("Delete license %s (%s)?", item.Domain, item.CustomerName)
	return func() tea.Msg {
		ok, err := confirmer.Ask(ctx, prompt)
		if err != nil || !ok {
			return deleteResultMsg{summary: item, err: err}
		}
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		return deleteResultMsg{summary: item, confirmed: true, err: api.DeleteLicense(reqCtx, item.ID)}
	}
}

type deleteResultMsg struct {
	summary   licensing.LicenseSummary
	confirmed bool
	err       error
}

func (m Model) handleDeleteResult(msg deleteResultMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, notify.ErrConfirmPending):
		m.notices.Warning("Another confirmation is already open")
		return m, nil
	case !msg.confirmed:
		return m, nil
	case msg.err != nil:
		m.handleAPIError(msg.err, "")
		return m, nil
	}
	m.store.Remove(msg.summary.ID)
	m.notices.Success("License deleted successfully")
	m.logger.Info().Int64("license_id", msg.summary.ID).Str("domain", msg.summary.Domain).Msg("license deleted")
	m.poller.Trigger()
	return m, fetchSnapshotCmd(m.store)
}

// renderList renders the license table and the page bar.
func (m Model) renderList() string {
	height := m.contentHeight()
	lv := m.list.view

	title := m.listTitle()
	var content string
	switch {
	case !m.snapshot.HasLicenses && m.snapshot.LastError == nil:
		content = m.theme.Styles().MutedText.Render("Loading licenses...")
	case len(lv.All()) == 0:
		content = m.theme.Styles().MutedText.Render("No licenses")
	case lv.FilteredCount() == 0:
		content = m.theme.Styles().MutedText.Render("No licenses match the current filter")
	default:
		content = m.renderTable(m.width - 2)
	}

	box := m.renderTitledBox(title, content, m.width, height-1, true)
	return box + "\n" + m.renderPageBar()
}

func (m Model) listTitle() string {
	lv := m.list.view
	total := len(lv.All())
	if lv.Status() == listview.StatusAll && lv.SearchTerm() == "" {
		return fmt.Sprintf("Licenses (%d)", total)
	}
	return fmt.Sprintf("Licenses (%d/%d) %s", lv.FilteredCount(), total, lv.Status())
}

type tableColumn struct {
	title string
	key   listview.SortKey
	width int
}

// tableColumns lays out the columns for width. Domain and customer share
// what is left after the fixed columns.
func tableColumns(width int) []tableColumn {
	cols := []tableColumn{{title: "ID", key: listview.SortID, width: 6}}
	if width >= LayoutWideWidth {
		cols = append(cols, tableColumn{title: "Serial", key: listview.SortSerialNumber, width: 10})
	}
	fixed := 0
	for _, c := range cols {
		fixed += c.width + 1
	}
	statusWidth := 10
	flex := max(width-fixed-statusWidth-2, 12)
	if width < LayoutCompactWidth {
		cols = append(cols, tableColumn{title: "Domain", key: listview.SortDomain, width: flex})
	} else {
		domain := flex * 2 / 5
		cols = append(cols,
			tableColumn{title: "Domain", key: listview.SortDomain, width: domain},
			tableColumn{title: "Customer", key: listview.SortCustomerName, width: flex - domain - 1},
		)
	}
	return append(cols, tableColumn{title: "Status", key: listview.SortActive, width: statusWidth})
}

func (m Model) renderTable(width int) string {
	styles := m.theme.Styles()
	lv := m.list.view
	cols := tableColumns(width)

	headers := make([]string, 0, len(cols))
	for _, c := range cols {
		title := c.title
		if lv.Sort() == c.key {
			title += " ▲"
		}
		headers = append(headers, fitColumn(title, c.width))
	}
	lines := []string{styles.AccentText.Bold(true).Render(strings.Join(headers, " "))}

	for i, item := range lv.Page() {
		selected := i == m.list.selected
		lines = append(lines, m.renderRow(item, cols, width, selected))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRow(item licensing.LicenseSummary, cols []tableColumn, width int, selected bool) string {
	styles := m.theme.Styles()
	bgColor := m.theme.FocusBg
	textStyle, mutedStyle := styles.Text, styles.MutedText
	if selected {
		bgColor = m.theme.SelectionBg
		sel := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		textStyle, mutedStyle = sel, sel
	}
	bg := NewBgStyle(bgColor)

	cells := make([]string, 0, len(cols))
	for _, c := range cols {
		switch c.key {
		case listview.SortID:
			cells = append(cells, bg.Render(fitColumn(strconv.FormatInt(item.ID, 10), c.width), mutedStyle))
		case listview.SortSerialNumber:
			serial := ""
			if item.SerialNumber > 0 {
				serial = strconv.FormatInt(item.SerialNumber, 10)
			}
			cells = append(cells, bg.Render(fitColumn(serial, c.width), mutedStyle))
		case listview.SortDomain:
			cells = append(cells, bg.Render(fitColumn(item.Domain, c.width), textStyle.Bold(true)))
		case listview.SortCustomerName:
			cells = append(cells, bg.Render(fitColumn(item.CustomerName, c.width), textStyle))
		case listview.SortActive:
			label := ternary(item.Active, "active", "inactive")
			cells = append(cells, styles.Badge(label).Render(titleCase(label)))
		}
	}
	return bg.FillLine(strings.Join(cells, bg.Space()), width)
}

// renderPageBar renders "‹ 1 … 4 5 6 … 12 ›" with the current page marked.
func (m Model) renderPageBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	lv := m.list.view

	var parts []string
	if m.list.searching {
		parts = append(parts, m.list.search.View())
	} else if term := lv.SearchTerm(); term != "" {
		parts = append(parts, bg.Render("/"+truncate(term, 24), styles.AccentText))
	}
	if m.list.jumping {
		parts = append(parts, m.list.jump.View())
	}

	if lv.TotalPages() > 0 {
		pages := lv.PageNumbers()
		nums := make([]string, 0, len(pages)+4)
		nums = append(nums, bg.Render("‹", styles.FaintText))
		for i, n := range pages {
			if i == 1 && lv.HasGapAfterFirst() {
				nums = append(nums, bg.Render("…", styles.FaintText))
			}
			if i == len(pages)-1 && i > 0 && lv.HasGapBeforeLast() {
				nums = append(nums, bg.Render("…", styles.FaintText))
			}
			label := strconv.Itoa(n)
			if n == lv.PageIndex() {
				nums = append(nums, bg.Render("["+label+"]", styles.AccentText.Bold(true)))
			} else {
				nums = append(nums, bg.Render(label, styles.MutedText))
			}
		}
		nums = append(nums, bg.Render("›", styles.FaintText))
		parts = append(parts,
			bg.Render(fmt.Sprintf("Page %d of %d", lv.PageIndex(), lv.TotalPages()), styles.Text),
			strings.Join(nums, bg.Space()),
		)
	}
	parts = append(parts, bg.Render(fmt.Sprintf("%d shown", lv.FilteredCount()), styles.FaintText))
	if lv.Sort() != listview.SortNone {
		parts = append(parts, bg.Render("sort "+string(lv.Sort()), styles.FaintText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}
