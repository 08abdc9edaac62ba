package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderTitledBox draws content inside a single-line border with the title
// set into the top edge. Content is clipped or padded to fill height rows.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColor, bgColor := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColor, bgColor = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := NewBgStyle(bgColor)
	border := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	inner := max(width-2, 4)
	title = truncate(title, inner-4)
	titleWidth := lipgloss.Width(title) + 2
	rightPad := max(inner-titleWidth-1, 0)

	top := bg.Render("┌─", border) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), border) +
		bg.Render("┐", border)
	bottom := bg.Render("└"+strings.Repeat("─", inner)+"┘", border)

	body := lipgloss.NewStyle().
		Width(inner).
		MaxWidth(inner).
		Background(lipgloss.Color(bgColor))

	lines := strings.Split(content, "\n")
	rows := max(height-2, 1)
	out := make([]string, 0, rows+2)
	out = append(out, top)
	for i := 0; i < rows; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		out = append(out, bg.Render("│", border)+body.Render(line)+bg.Render("│", border))
	}
	out = append(out, bottom)
	return strings.Join(out, "\n")
}
