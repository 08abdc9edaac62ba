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

	"github.com/five82/licdesk/internal/editor"
	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/notify"
)

// detailState is the detail view. The editor session owns the license
// state; this only tracks which field has focus and the inline input.
type detailState struct {
	session *editor.Session
	focus   int
	editing bool
	input   textinput.Model
}

// formField addresses one editable value: a header field, or a field of the
// module line with id module.
type formField struct {
	label    string
	key      string
	isModule bool
	module   int
}

func formFields(s *editor.State) []formField {
	fields := []formField{
		{label: "Serial", key: editor.FieldSerialNumber},
		{label: "Domain", key: editor.FieldDomain},
		{label: "Customer", key: editor.FieldCustomerName},
		{label: "Active", key: editor.FieldActive},
	}
	if s == nil {
		return fields
	}
	for _, mod := range s.Modules() {
		fields = append(fields,
			formField{label: "Module", key: editor.FieldModule, isModule: true, module: mod.ID},
			formField{label: "Users", key: editor.FieldNumberOfUsers, isModule: true, module: mod.ID},
			formField{label: "Start", key: editor.FieldStartDate, isModule: true, module: mod.ID},
			formField{label: "End", key: editor.FieldEndDate, isModule: true, module: mod.ID},
		)
	}
	return fields
}

func fieldValue(s *editor.State, f formField) string {
	if !f.isModule {
		h := s.Header()
		switch f.key {
		case editor.FieldSerialNumber:
			if h.SerialNumber == nil {
				return ""
			}
			return strconv.FormatInt(*h.SerialNumber, 10)
		case editor.FieldDomain:
			return h.Domain
		case editor.FieldCustomerName:
			return h.CustomerName
		case editor.FieldActive:
			return strconv.FormatBool(h.Active)
		}
		return ""
	}
	for _, mod := range s.Modules() {
		if mod.ID != f.module {
			continue
		}
		switch f.key {
		case editor.FieldModule:
			return mod.Module
		case editor.FieldNumberOfUsers:
			return strconv.Itoa(mod.NumberOfUsers)
		case editor.FieldStartDate:
			return mod.StartDate
		case editor.FieldEndDate:
			return mod.EndDate
		}
	}
	return ""
}

// currentField returns the focused field, if the license is loaded.
func (d detailState) currentField() (formField, bool) {
	if d.session == nil {
		return formField{}, false
	}
	fields := formFields(d.session.State())
	if d.focus < 0 || d.focus >= len(fields) {
		return formField{}, false
	}
	return fields[d.focus], true
}

func (d *detailState) clampFocus() {
	var s *editor.State
	if d.session != nil {
		s = d.session.State()
	}
	n := len(formFields(s))
	d.focus = max(min(d.focus, n-1), 0)
}

// openDetail starts an editor session for id (zero creates a license) and
// switches to the detail view while it loads.
func (m *Model) openDetail(id int64, mode editor.Mode) tea.Cmd {
	m.closeDetail()
	sess := editor.NewSession(editor.SessionConfig{
		Backend:   m.api,
		LicenseID: id,
		Mode:      mode,
		Policy:    m.policy,
		AdminID:   m.identity.AdminID,
		Notifier:  m.notices,
		Logger:    m.logger,
	})
	input := textinput.New()
	input.CharLimit = 120
	input.Width = 40
	m.detail = detailState{session: sess, input: input}
	m.view = ViewDetail
	return openSessionCmd(m.ctx, sess)
}

func openSessionCmd(ctx context.Context, sess *editor.Session) tea.Cmd {
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		return detailLoadedMsg{session: sess, err: sess.Open(reqCtx)}
	}
}

type detailLoadedMsg struct {
	session *editor.Session
	err     error
}

func (m Model) handleDetailLoaded(msg detailLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.session != m.detail.session || errors.Is(msg.err, editor.ErrClosed) {
		return m, nil
	}
	if msg.err != nil {
		if errors.Is(msg.err, licensing.ErrUnauthorized) {
			m.expireSession()
		}
		return m, nil
	}
	m.detail.focus = 0
	if m.detail.session.State().IsEditMode() {
		m.detail.focus = 1
	}
	m.setModuleSuggestions()
	return m, nil
}

func (m *Model) setModuleSuggestions() {
	if m.detail.session == nil {
		return
	}
	catalog := m.detail.session.Catalog()
	names := make([]string, 0, len(catalog))
	for _, entry := range catalog {
		names = append(names, entry.Name)
	}
	m.detail.input.SetSuggestions(names)
}

// closeDetail ends the editor session so late results are dropped.
func (m *Model) closeDetail() {
	if m.detail.session != nil {
		m.detail.session.Close()
	}
	m.detail = detailState{}
}

func (m *Model) leaveDetail() {
	m.closeDetail()
	m.view = ViewList
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detail.editing {
		return m.handleFieldInput(msg)
	}

	sess := m.detail.session
	if sess == nil {
		m.view = ViewList
		return m, nil
	}
	st := sess.State()
	if st == nil {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
			m.leaveDetail()
		case key.Matches(msg, m.keys.Refresh):
			if sess.Err() != nil {
				cmd := m.openDetail(sess.LicenseID(), editor.ModeView)
				return m, cmd
			}
		}
		return m, nil
	}

	fields := formFields(st)
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Quit):
		if st.IsEditMode() && st.IsDirty() {
			return m, discardCmd(m.ctx, m.confirmer, sess)
		}
		m.leaveDetail()

	case key.Matches(msg, m.keys.Down), key.Matches(msg, m.keys.Tab):
		if m.detail.focus < len(fields)-1 {
			m.detail.focus++
		}
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.ShiftTab):
		if m.detail.focus > 0 {
			m.detail.focus--
		}
	case key.Matches(msg, m.keys.Top):
		m.detail.focus = 0
	case key.Matches(msg, m.keys.Bottom):
		m.detail.focus = len(fields) - 1

	case key.Matches(msg, m.keys.Edit):
		if err := sess.Update(func(s *editor.State) error { s.Edit(); return nil }); err == nil {
			m.notices.Info("Editing license")
		}

	case key.Matches(msg, m.keys.ToggleActive):
		if !st.CanEdit() {
			return m, nil
		}
		_ = sess.Update(func(s *editor.State) error { s.ToggleActive(); return nil })

	case key.Matches(msg, m.keys.Confirm):
		return m.beginFieldEdit()

	case key.Matches(msg, m.keys.AddModule):
		var id int
		err := sess.Update(func(s *editor.State) error {
			var err error
			id, err = s.AddModule()
			return err
		})
		if err != nil {
			m.notices.Warning("Switch to edit mode to add modules")
			return m, nil
		}
		for i, f := range formFields(sess.State()) {
			if f.isModule && f.module == id && f.key == editor.FieldModule {
				m.detail.focus = i
				break
			}
		}
		return m.beginFieldEdit()

	case key.Matches(msg, m.keys.RemoveModule):
		f, ok := m.detail.currentField()
		if !ok || !f.isModule || !st.CanEdit() {
			return m, nil
		}
		var removed bool
		_ = sess.Update(func(s *editor.State) error {
			removed = s.RemoveModule(f.module)
			return nil
		})
		if !removed {
			m.notices.Warning("A license needs at least one module")
		}
		m.detail.clampFocus()

	case key.Matches(msg, m.keys.Reset):
		if !st.CanEdit() {
			return m, nil
		}
		_ = sess.Update(func(s *editor.State) error { s.Reset(); return nil })
		m.detail.clampFocus()
		m.notices.Info("Changes discarded")

	case key.Matches(msg, m.keys.Save):
		return m.beginSave()

	case key.Matches(msg, m.keys.Audit):
		if domain := strings.TrimSpace(st.Header().Domain); domain != "" && !st.IsNew() {
			cmd := m.openAudit(domain, ViewDetail)
			return m, cmd
		}
	}
	return m, nil
}

// beginFieldEdit opens the inline input on the focused field.
func (m Model) beginFieldEdit() (tea.Model, tea.Cmd) {
	st := m.detail.session.State()
	f, ok := m.detail.currentField()
	if !ok || !st.CanEdit() {
		return m, nil
	}
	if !f.isModule && f.key == editor.FieldActive {
		_ = m.detail.session.Update(func(s *editor.State) error { s.ToggleActive(); return nil })
		return m, nil
	}
	value := fieldValue(st, f)
	if f.key == editor.FieldModule && value == "" {
		m.detail.input.Placeholder = editor.PlaceholderModule
	} else {
		m.detail.input.Placeholder = ""
	}
	m.detail.input.ShowSuggestions = f.key == editor.FieldModule
	m.detail.input.Prompt = f.label + ": "
	m.detail.input.SetValue(value)
	m.detail.input.CursorEnd()
	m.detail.editing = true
	cmd := m.detail.input.Focus()
	return m, cmd
}

func (m Model) handleFieldInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.detail.editing = false
		m.detail.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		f, ok := m.detail.currentField()
		if !ok {
			m.detail.editing = false
			return m, nil
		}
		value := m.detail.input.Value()
		err := m.detail.session.Update(func(s *editor.State) error {
			if !f.isModule {
				return s.UpdateHeaderField(f.key, value)
			}
			return s.UpdateModuleField(f.module, f.key, value)
		})
		if err != nil {
			m.notices.Error(fmt.Sprintf("Invalid %s: %q", strings.ToLower(f.label), value))
			return m, nil
		}
		m.detail.editing = false
		m.detail.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.detail.input, cmd = m.detail.input.Update(msg)
	return m, cmd
}

// beginSave validates and submits the working copy in the background.
func (m Model) beginSave() (tea.Model, tea.Cmd) {
	sess := m.detail.session
	ticket, err := sess.BeginSave()
	if err != nil {
		var verr *editor.ValidationError
		switch {
		case errors.As(err, &verr):
			m.notices.Error(strings.Join(verr.Messages, "; "))
		case errors.Is(err, editor.ErrNoChanges):
			m.notices.Info("No changes to save")
		case errors.Is(err, editor.ErrSaveInProgress):
			m.notices.Warning("Save already in progress")
		case errors.Is(err, editor.ErrReadOnly):
			m.notices.Warning("Press e to edit before saving")
		}
		return m, nil
	}
	ctx := m.ctx
	return m, func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		resp, err := sess.Submit(reqCtx, ticket)
		return saveResultMsg{session: sess, ticket: ticket, resp: resp, err: err}
	}
}

type saveResultMsg struct {
	session *editor.Session
	ticket  editor.SaveTicket
	resp    licensing.SaveResponse
	err     error
}

func (m Model) handleSaveResult(msg saveResultMsg) (tea.Model, tea.Cmd) {
	err := msg.session.FinishSave(msg.ticket, msg.resp, msg.err)
	switch {
	case errors.Is(err, editor.ErrClosed), errors.Is(err, editor.ErrStaleSave):
		return m, nil
	case errors.Is(err, licensing.ErrUnauthorized):
		m.expireSession()
		return m, nil
	case err != nil:
		return m, nil
	}
	if st := msg.session.State(); st != nil {
		m.store.Upsert(st.Header().Summary())
	}
	if msg.session == m.detail.session {
		m.leaveDetail()
	}
	m.poller.Trigger()
	return m, fetchSnapshotCmd(m.store)
}

type discardResultMsg struct {
	session   *editor.Session
	confirmed bool
}

func discardCmd(ctx context.Context, confirmer *notify.Confirmer, sess *editor.Session) tea.Cmd {
	return func() tea.Msg {
		ok, err := confirmer.Ask(ctx, "Discard unsaved changes?")
		return discardResultMsg{session: sess, confirmed: ok && err == nil}
	}
}

func (m Model) renderDetail() string {
	styles := m.theme.Styles()
	height := m.contentHeight()
	sess := m.detail.session
	if sess == nil {
		return m.renderTitledBox("License", "", m.width, height, true)
	}

	st := sess.State()
	if st == nil {
		var body string
		if err := sess.Err(); err != nil {
			body = styles.DangerText.Render(licensing.Message(err)) + "\n\n" +
				styles.FaintText.Render("r: retry  •  esc: back")
		} else {
			body = m.spinner.View() + " " + styles.MutedText.Render("Loading license...")
		}
		return m.renderTitledBox(fmt.Sprintf("License %d", sess.LicenseID()), body, m.width, height, true)
	}

	var b strings.Builder
	b.WriteString(m.renderDetailBadges(st, sess))
	b.WriteString("\n\n")

	fields := formFields(st)
	labelWidth := 10
	row := 0
	for i, f := range fields {
		if f.isModule && f.key == editor.FieldModule {
			row++
			b.WriteString("\n")
			b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf("Module %d", row)))
			b.WriteString("\n")
		}
		focused := i == m.detail.focus
		marker := "  "
		if focused {
			marker = styles.AccentText.Render("› ")
		}
		label := styles.MutedText.Render(padRight(f.label, labelWidth))

		var value string
		switch {
		case focused && m.detail.editing:
			value = m.detail.input.View()
		case !f.isModule && f.key == editor.FieldActive:
			name := ternary(st.Header().Active, "active", "inactive")
			value = styles.Badge(name).Render(titleCase(name))
		default:
			text := fieldValue(st, f)
			switch {
			case text == "" && f.key == editor.FieldModule:
				value = styles.FaintText.Render(editor.PlaceholderModule)
			case text == "":
				value = styles.FaintText.Render("-")
			case focused:
				value = styles.Selected.Render(text)
			default:
				value = styles.Text.Render(text)
			}
		}
		b.WriteString(marker + label + value + "\n")
	}

	if problems := st.Validate(); len(problems) > 0 && st.IsEditMode() {
		b.WriteString("\n")
		for _, p := range problems {
			b.WriteString(styles.WarningText.Render("! " + p))
			b.WriteString("\n")
		}
	}

	return m.renderTitledBox(m.detailTitle(st), b.String(), m.width, height, true)
}

func (m Model) detailTitle(st *editor.State) string {
	h := st.Header()
	if st.IsNew() {
		return "New license"
	}
	id := m.detail.session.LicenseID()
	if h.ID != nil {
		id = *h.ID
	}
	if h.Domain == "" {
		return fmt.Sprintf("License %d", id)
	}
	return fmt.Sprintf("License %d · %s", id, h.Domain)
}

func (m Model) renderDetailBadges(st *editor.State, sess *editor.Session) string {
	styles := m.theme.Styles()
	mode := st.Mode().String()
	parts := []string{styles.Badge(mode).Render(strings.ToUpper(mode))}
	if st.IsEditMode() {
		if st.IsDirty() {
			parts = append(parts, styles.Badge("warning").Render("MODIFIED"))
		}
		if st.IsSubmittable() {
			parts = append(parts, styles.Badge("success").Render("READY"))
		} else if len(st.Validate()) > 0 {
			parts = append(parts, styles.Badge("error").Render("INVALID"))
		}
	}
	if sess.Busy() {
		parts = append(parts, m.spinner.View()+" "+styles.MutedText.Render("saving"))
	}
	parts = append(parts, styles.FaintText.Render(fmt.Sprintf("%d module(s)", st.ModuleCount())))
	return strings.Join(parts, " ")
}
