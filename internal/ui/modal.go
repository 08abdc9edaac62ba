package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/licdesk/internal/notify"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// confirmModal shows an open notify.Confirmer prompt and answers it.
type confirmModal struct {
	text      string
	confirmer *notify.Confirmer
}

func newConfirmModal(prompt notify.Prompt, confirmer *notify.Confirmer) confirmModal {
	return confirmModal{text: prompt.Text, confirmer: confirmer}
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case keyMsg.String() == "y", keyMsg.String() == "Y", key.Matches(keyMsg, keys.Confirm):
		c.confirmer.Resolve(true)
		return c, nil, true
	case keyMsg.String() == "n", keyMsg.String() == "N", key.Matches(keyMsg, keys.Escape):
		c.confirmer.Resolve(false)
		return c, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render("Confirm"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(c.text))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("y/enter: Yes  •  n/esc: No"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(theme.Warning)).
		Padding(1, 2).
		Width(min(56, max(width-4, 20))).
		Render(b.String())

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}
