package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary   = lipgloss.Color("#bd93f9") // Dracula Purple
	ColorSecondary = lipgloss.Color("#ff79c6") // Dracula Pink
	ColorSuccess   = lipgloss.Color("#50fa7b") // Dracula Green
	ColorError     = lipgloss.Color("#ff5555") // Dracula Red
	ColorWarning   = lipgloss.Color("#ffb86c") // Dracula Orange
	ColorText      = lipgloss.Color("#f8f8f2") // Dracula Foreground
	ColorSubtext   = lipgloss.Color("#6272a4") // Dracula Comment
	ColorBorder    = lipgloss.Color("#44475a") // Dracula Selection

	AppStyle = lipgloss.NewStyle().
			Padding(DefaultPaddingX, 2).
			Foreground(ColorText)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Padding(DefaultPaddingY, DefaultPaddingX).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Background(lipgloss.Color("#282a36")).
			Padding(DefaultPaddingY, DefaultPaddingX)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(DefaultPaddingY, DefaultPaddingX).
			Margin(DefaultPaddingY, DefaultPaddingX)

	SelectedCardStyle = CardStyle.
				BorderForeground(ColorSecondary)

	CardTitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	CardStatsStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Italic(true)

	PhaseStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	DoneStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SkippedStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorSubtext).
			Padding(DefaultPaddingY, DefaultPaddingX)
)
