package ui

import "github.com/charmbracelet/lipgloss"

var (
	fuchsia   = lipgloss.Color("#EE6FF8")
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	gray      = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	midGray   = lipgloss.AdaptiveColor{Light: "#B2B2B2", Dark: "#4A4A4A"}
	red       = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true).
			Padding(0, 1)

	lessonNameStyle = lipgloss.NewStyle().Foreground(gray).Render
	headerStyle     = lipgloss.NewStyle().Foreground(fuchsia).Bold(true).Render
	lineStyle       = lipgloss.NewStyle().Bold(true).Render
	promptStyle     = lipgloss.NewStyle().Foreground(darkGreen).Italic(true).Render
	subtleStyle     = lipgloss.NewStyle().Foreground(midGray).Render
	errorTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F1F1F1")).
			Background(red).
			Padding(0, 1).
			Render

	selectedStyle = lipgloss.NewStyle().Foreground(fuchsia).Render
	normalStyle   = lipgloss.NewStyle().Render
	helpStyle     = lipgloss.NewStyle().Foreground(gray).Render

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(fuchsia).
			Padding(1, 3)
	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(midGray).
			Padding(0, 2).
			Render
	activeButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFDF5")).
				Background(mintGreen).
				Bold(true).
				Padding(0, 2).
				Render
)
