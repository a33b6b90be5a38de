package tui

import "github.com/charmbracelet/lipgloss"

// Adaptive colors work on both light and dark terminals. NO_COLOR is
// honoured by lipgloss' profile detection.
var (
	colorError   = lipgloss.AdaptiveColor{Light: "#c62828", Dark: "#ef5350"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#e65100", Dark: "#ffa726"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#0277bd", Dark: "#4fc3f7"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#6a1b9a", Dark: "#ce93d8"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9e9e9e"}
	colorHeadBg  = lipgloss.AdaptiveColor{Light: "#1565c0", Dark: "#42a5f5"}
	colorHeadFg  = lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1e1e1e"}
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(colorHeadBg).
			Foreground(colorHeadFg).
			Bold(true).
			Padding(0, 1)

	userLabel     = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
	routerLabel   = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	errorLabel    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	degradedBadge = lipgloss.NewStyle().Foreground(colorWarning)
	systemText    = lipgloss.NewStyle().Foreground(colorMuted).Faint(true)
	hintText      = lipgloss.NewStyle().Foreground(colorMuted)
)
