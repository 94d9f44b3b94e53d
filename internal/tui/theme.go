package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/joescharf/fbchat/internal/models"
)

type theme struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	panel    lipgloss.Style
	prompt   lipgloss.Style
	help     lipgloss.Style
	warn     lipgloss.Style
	status   map[models.ConnectionState]lipgloss.Style
	origin   map[models.Origin]lipgloss.Style
	text     lipgloss.Style
	time     lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	amber := lipgloss.Color("#ffd166")
	rose := lipgloss.Color("#ff6b81")
	text := lipgloss.Color("#f3f3ff")
	muted := lipgloss.Color("#9ca3d8")

	return theme{
		title:    lipgloss.NewStyle().Bold(true).Foreground(text),
		subtitle: lipgloss.NewStyle().Foreground(muted),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a184a")).
			Padding(0, 1),
		prompt: lipgloss.NewStyle().Foreground(amber).Bold(true),
		help:   lipgloss.NewStyle().Foreground(muted),
		warn:   lipgloss.NewStyle().Foreground(rose),
		status: map[models.ConnectionState]lipgloss.Style{
			models.ConnectionConnected:    lipgloss.NewStyle().Foreground(mint).Bold(true),
			models.ConnectionConnecting:   lipgloss.NewStyle().Foreground(amber),
			models.ConnectionReconnecting: lipgloss.NewStyle().Foreground(amber),
			models.ConnectionDisconnected: lipgloss.NewStyle().Foreground(rose).Bold(true),
		},
		origin: map[models.Origin]lipgloss.Style{
			models.OriginBot:    lipgloss.NewStyle().Foreground(blue).Bold(true),
			models.OriginUser:   lipgloss.NewStyle().Foreground(mint).Bold(true),
			models.OriginSystem: lipgloss.NewStyle().Foreground(muted).Bold(true),
		},
		text: lipgloss.NewStyle().Foreground(text),
		time: lipgloss.NewStyle().Foreground(muted).Faint(true),
	}
}

func (t theme) statusLabel(s models.ConnectionState) string {
	st, ok := t.status[s]
	if !ok {
		return s.Label()
	}
	return st.Render(s.Label())
}

func (t theme) speaker(o models.Origin) string {
	names := map[models.Origin]string{
		models.OriginBot:    "Bot",
		models.OriginUser:   "You",
		models.OriginSystem: "System",
	}
	name, ok := names[o]
	if !ok {
		name = string(o)
	}
	return t.origin[o].Render(name)
}
