package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/licdesk/internal/licensing"
	"github.com/five82/licdesk/internal/session"
)

const (
	loginUsername = iota
	loginPassword
)

type loginState struct {
	inputs [2]textinput.Model
	focus  int
	busy   bool
	err    string
}

func newLoginState() loginState {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = "Username  "
	user.CharLimit = 64
	user.Width = 28

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "Password  "
	pass.CharLimit = 128
	pass.Width = 28
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'

	return loginState{inputs: [2]textinput.Model{user, pass}}
}

func (l *loginState) focusField(i int) tea.Cmd {
	l.focus = i
	var cmd tea.Cmd
	for j := range l.inputs {
		if j == i {
			cmd = l.inputs[j].Focus()
		} else {
			l.inputs[j].Blur()
		}
	}
	return cmd
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Escape):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tab), msg.Type == tea.KeyDown:
		cmd := m.login.focusField((m.login.focus + 1) % len(m.login.inputs))
		return m, cmd
	case key.Matches(msg, m.keys.ShiftTab), msg.Type == tea.KeyUp:
		cmd := m.login.focusField((m.login.focus + len(m.login.inputs) - 1) % len(m.login.inputs))
		return m, cmd
	case key.Matches(msg, m.keys.Confirm):
		if m.login.focus == loginUsername {
			cmd := m.login.focusField(loginPassword)
			return m, cmd
		}
		username := strings.TrimSpace(m.login.inputs[loginUsername].Value())
		password := m.login.inputs[loginPassword].Value()
		if username == "" || password == "" {
			m.login.err = "Username and password are required"
			return m, nil
		}
		m.login.busy = true
		m.login.err = ""
		return m, loginCmd(m.ctx, m.api, username, password)
	}

	var cmd tea.Cmd
	m.login.inputs[m.login.focus], cmd = m.login.inputs[m.login.focus].Update(msg)
	return m, cmd
}

type loginResultMsg struct {
	username string
	resp     licensing.LoginResponse
	err      error
}

func loginCmd(ctx context.Context, api licensing.API, username, password string) tea.Cmd {
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
		resp, err := api.Login(reqCtx, username, password)
		return loginResultMsg{username: username, resp: resp, err: err}
	}
}

func (m Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.login.busy = false
	if msg.err != nil {
		m.login.err = licensing.Message(msg.err)
		m.logger.Warn().Err(msg.err).Str("user", msg.username).Msg("login failed")
		return m, nil
	}
	if !msg.resp.Success || msg.resp.AdminID == "" {
		m.login.err = strings.TrimSpace(msg.resp.Message)
		if m.login.err == "" {
			m.login.err = "Invalid credentials"
		}
		m.login.inputs[loginPassword].SetValue("")
		cmd := m.login.focusField(loginPassword)
		return m, cmd
	}

	username := msg.resp.Username
	if username == "" {
		username = msg.username
	}
	id := session.Identity{AdminID: msg.resp.AdminID, Username: username, Token: msg.resp.Token}
	if m.sessions != nil {
		if err := m.sessions.Set(id); err != nil {
			m.login.err = "Could not save session: " + err.Error()
			m.logger.Error().Err(err).Msg("save session")
			return m, nil
		}
	}
	m.identity = id
	m.login = newLoginState()
	m.view = ViewList
	m.logger.Info().Str("user", username).Str("admin_id", id.AdminID).Msg("logged in")
	m.notices.Success("Welcome, " + username)
	m.poller.Trigger()
	return m, nil
}

func (m Model) renderLogin() string {
	styles := m.theme.Styles()

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render("Sign in"))
	b.WriteString("\n\n")
	for i := range m.login.inputs {
		b.WriteString(m.login.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	switch {
	case m.login.busy:
		b.WriteString(m.spinner.View() + " " + styles.MutedText.Render("Signing in..."))
	case m.login.err != "":
		b.WriteString(styles.DangerText.Render(m.login.err))
	default:
		b.WriteString(styles.FaintText.Render("enter: sign in  •  tab: next field  •  esc: quit"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 3).
		Width(min(52, max(m.width-4, 30))).
		Render(b.String())

	return lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, box)
}
