package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/licdesk/internal/audit"
	"github.com/five82/licdesk/internal/licensing"
)

// auditState is the audit trail view for one domain.
type auditState struct {
	domain   string
	entries  []audit.Entry
	viewport viewport.Model
	loading  bool
	failed   bool
	returnTo View
}

// openAudit switches to the audit view and fetches the trail for domain.
func (m *Model) openAudit(domain string, returnTo View) tea.Cmd {
	m.audit = auditState{
		domain:   domain,
		loading:  true,
		returnTo: returnTo,
		viewport: viewport.New(0, 0),
	}
	m.view = ViewAudit
	m.resizeAuditViewport()
	return fetchAuditCmd(m.ctx, m.api, domain)
}

type auditLoadedMsg struct {
	domain  string
	records []licensing.AuditRecord
	err     error
}

func fetchAuditCmd(ctx context.Context, api licensing.API, domain string) tea.Cmd {
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		records, err := api.FetchAuditTrail(reqCtx, domain)
		return auditLoadedMsg{domain: domain, records: records, err: err}
	}
}

func (m Model) handleAuditLoaded(msg auditLoadedMsg) (tea.Model, tea.Cmd) {
	if m.view != ViewAudit || msg.domain != m.audit.domain {
		return m, nil
	}
	m.audit.loading = false
	if msg.err != nil {
		m.audit.failed = true
		m.audit.entries = nil
		if errors.Is(msg.err, licensing.ErrUnauthorized) {
			m.expireSession()
			return m, nil
		}
		m.logger.Warn().Err(msg.err).Str("domain", msg.domain).Msg("audit load failed")
		m.notices.Error(audit.LoadErrorMessage)
		return m, nil
	}
	m.audit.failed = false
	m.audit.entries = audit.ParseAll(msg.records)
	m.audit.viewport.SetContent(m.renderAuditEntries())
	m.audit.viewport.GotoTop()
	return m, nil
}

// resizeAuditViewport fits the viewport inside the audit box.
func (m *Model) resizeAuditViewport() {
	if m.view != ViewAudit {
		return
	}
	m.audit.viewport.Width = max(m.width-2, 10)
	m.audit.viewport.Height = max(m.contentHeight()-2, 1)
	m.audit.viewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	if len(m.audit.entries) > 0 {
		m.audit.viewport.SetContent(m.renderAuditEntries())
	}
}

func (m Model) handleAuditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vp := &m.audit.viewport
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
		m.view = m.audit.returnTo
		if m.view == ViewDetail && m.detail.session == nil {
			m.view = ViewList
		}
		m.audit = auditState{}
	case key.Matches(msg, m.keys.Refresh):
		m.audit.loading = true
		return m, fetchAuditCmd(m.ctx, m.api, m.audit.domain)
	case key.Matches(msg, m.keys.Down):
		vp.LineDown(1)
	case key.Matches(msg, m.keys.Up):
		vp.LineUp(1)
	case key.Matches(msg, m.keys.HalfDown), key.Matches(msg, m.keys.NextPage):
		vp.HalfViewDown()
	case key.Matches(msg, m.keys.HalfUp), key.Matches(msg, m.keys.PrevPage):
		vp.HalfViewUp()
	case key.Matches(msg, m.keys.Top):
		vp.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		vp.GotoBottom()
	}
	return m, nil
}

// renderAuditEntries lays out each entry as a heading line followed by the
// colored diff of its before and after documents.
func (m Model) renderAuditEntries() string {
	styles := m.theme.Styles()
	width := max(m.width-2, 10)

	var b strings.Builder
	for i, e := range m.audit.entries {
		if i > 0 {
			b.WriteString(styles.FaintText.Render(strings.Repeat("─", width)))
			b.WriteString("\n")
		}
		action := strings.ToLower(e.Record.Action)
		when := e.Record.Timestamp
		if !e.When.IsZero() {
			when = e.When.Local().Format("2006-01-02 15:04:05")
		}
		b.WriteString(styles.Badge(action).Render(strings.ToUpper(action)))
		b.WriteString(" ")
		b.WriteString(styles.MutedText.Render(when))
		b.WriteString("  ")
		b.WriteString(styles.Text.Render(audit.Summarize(e)))
		b.WriteString("\n")

		diff, err := audit.Diff(e)
		if err != nil {
			b.WriteString(styles.DangerText.Render(err.Error()))
			b.WriteString("\n")
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
			if line == "" {
				continue
			}
			if lipgloss.Width(line) > width {
				line = truncate(line, width)
			}
			b.WriteString(m.renderDiffLine(line))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderDiffLine(line string) string {
	styles := m.theme.Styles()
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return styles.FaintText.Render(line)
	case strings.HasPrefix(line, "@@"):
		return styles.InfoText.Render(line)
	case strings.HasPrefix(line, "+"):
		return styles.SuccessText.Render(line)
	case strings.HasPrefix(line, "-"):
		return styles.DangerText.Render(line)
	default:
		return styles.MutedText.Render(line)
	}
}

func (m Model) renderAudit() string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	title := fmt.Sprintf("Audit · %s", m.audit.domain)

	var content string
	switch {
	case m.audit.loading:
		content = m.spinner.View() + " " + styles.MutedText.Render("Loading audit trail...")
	case m.audit.failed:
		content = styles.DangerText.Render(audit.LoadErrorMessage) + "\n\n" +
			styles.FaintText.Render("r: retry  •  esc: back")
	case len(m.audit.entries) == 0:
		content = styles.MutedText.Render("No audit records for this domain")
	default:
		title = fmt.Sprintf("Audit · %s (%d)", m.audit.domain, len(m.audit.entries))
		content = m.audit.viewport.View()
	}
	return m.renderTitledBox(title, content, m.width, height, true)
}
