package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/notify"
)

const logoText = "licdesk"

// commandHint is one "key:desc" entry of the command bar.
type commandHint struct {
	key  string
	desc string
}

// renderHeader renders the status bar: logo, operator, license count,
// connection state and the current notice.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render(logoText, styles.Logo)}

	if m.identity.Username != "" {
		parts = append(parts, bg.Render("●", styles.SuccessText)+bg.Space()+
			bg.Render(m.identity.Username, styles.Text))
	} else {
		parts = append(parts, bg.Render("● signed out", styles.MutedText))
	}

	if m.view != ViewLogin {
		count := "…"
		if m.snapshot.HasLicenses {
			count = fmt.Sprintf("%d", len(m.snapshot.Licenses))
		}
		parts = append(parts, bg.Render("Licenses:", styles.MutedText)+bg.Space()+bg.Render(count, styles.Text))
	}

	if m.snapshot.LastError != nil && !errors.Is(m.snapshot.LastError, licensing.ErrUnauthorized) {
		label := classifyConnectionError(m.snapshot.LastError)
		if m.snapshot.IsOffline() {
			label += " · retrying"
		}
		parts = append(parts, bg.Render(label, styles.DangerText.Bold(true)))
	}

	if m.busy {
		parts = append(parts, bg.Render(m.spinner.View(), styles.AccentText))
	}

	if !compact {
		if ts := m.formatTimestamp(); ts != "" {
			parts = append(parts, bg.Render(ts, styles.FaintText))
		}
	}

	if !m.notice.Empty() {
		maxLen := 60
		if compact {
			maxLen = 30
		}
		parts = append(parts, m.renderNotice(m.notice, maxLen, styles, bg))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) renderNotice(n notify.Notice, maxLen int, styles Styles, bg BgStyle) string {
	textStyle := styles.Text
	switch n.Severity {
	case notify.SeverityError:
		textStyle = styles.DangerText
	case notify.SeverityWarning:
		textStyle = styles.WarningText
	case notify.SeveritySuccess:
		textStyle = styles.SuccessText
	case notify.SeverityInfo:
		textStyle = styles.InfoText
	}
	badge := styles.Badge(string(n.Severity)).Render(strings.ToUpper(string(n.Severity)))
	return badge + bg.Space() + bg.Render(truncate(n.Message, maxLen), textStyle)
}

// formatTimestamp formats the last refresh time of the license list.
func (m Model) formatTimestamp() string {
	last := m.snapshot.LastUpdated
	if last.IsZero() {
		return ""
	}
	since := time.Since(last)
	out := last.Format("15:04:05")
	switch {
	case since < time.Minute:
		out += " (now)"
	case since < time.Hour:
		out += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	case since < 24*time.Hour:
		out += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return out
}

// classifyConnectionError returns a short description of a refresh error.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *licensing.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("HTTP %d", apiErr.Status)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

// commandHints returns the hints for the active view and input mode.
func (m Model) commandHints() []commandHint {
	k := m.keys
	switch m.view {
	case ViewLogin:
		return []commandHint{{"enter", "Sign in"}, {"tab", "Next field"}, {"esc", "Quit"}}

	case ViewList:
		switch {
		case m.list.searching:
			return []commandHint{{"enter", "Keep search"}, {"esc", "Clear search"}}
		case m.list.jumping:
			return []commandHint{{"enter", "Go"}, {"esc", "Cancel"}}
		}
		hints := []commandHint{{"f", "Filter: " + string(m.list.view.Status())}}
		return append(hints, helpHints(k.Search, k.CycleSort, k.Open, k.Edit, k.Create, k.Delete, k.Audit, k.NextPage, k.PrevPage, k.Help)...)

	case ViewDetail:
		if m.detail.editing {
			return []commandHint{{"enter", "Apply"}, {"esc", "Cancel"}}
		}
		if m.detail.session == nil || m.detail.session.State() == nil {
			return helpHints(k.Escape)
		}
		st := m.detail.session.State()
		if !st.CanEdit() {
			return helpHints(k.Edit, k.Audit, k.Escape, k.Help)
		}
		return helpHints(k.Confirm, k.Save, k.AddModule, k.RemoveModule, k.ToggleActive, k.Reset, k.Escape, k.Help)

	case ViewAudit:
		return helpHints(k.Down, k.Up, k.HalfDown, k.Refresh, k.Escape)
	}
	return nil
}

// renderCommandBar renders the command hints that fit on one line, with the
// theme indicator last.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	themeSeg := bg.Render(m.keys.CycleTheme.Help().Key, styles.AccentText) +
		colon + bg.Render(m.theme.Name, styles.FaintText)
	budget := m.width - lipgloss.Width(themeSeg) - 2

	segments := make([]string, 0, 12)
	used := 0
	for _, h := range m.commandHints() {
		seg := bg.Render(h.key, styles.AccentText) + colon + bg.Render(h.desc, styles.MutedText)
		w := lipgloss.Width(seg) + 2
		if used+w > budget {
			break
		}
		segments = append(segments, seg)
		used += w
	}
	segments = append(segments, themeSeg)

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}
