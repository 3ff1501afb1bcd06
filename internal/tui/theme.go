package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#1D4ED8")).
			Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusColors = map[model.Status]lipgloss.Color{
		model.StatusPending:    lipgloss.Color("#D97706"),
		model.StatusInProgress: lipgloss.Color("#2563EB"),
		model.StatusDone:       lipgloss.Color("#059669"),
		model.StatusCancelled:  lipgloss.Color("#6B7280"),
	}

	noticeStyles = map[session.Level]lipgloss.Style{
		session.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#30D158")).Padding(0, 1),
		session.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#000000")).Background(lipgloss.Color("#FFD60A")).Padding(0, 1),
		session.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF453A")).Padding(0, 1),
	}

	formStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1D4ED8")).
			Padding(0, 1)
)

func statusBadge(s model.Status) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(statusColors[s]).
		Padding(0, 1).
		Render(s.Label())
}
