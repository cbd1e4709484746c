package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// Color palette
var (
	ColorAccent   = lipgloss.Color("#4ecca3")
	ColorDanger   = lipgloss.Color("#e94560")
	ColorModified = lipgloss.Color("#f0a500")
	ColorDim      = lipgloss.Color("#555555")
	ColorSelected = lipgloss.Color("#2a3f5f")
	ColorBar      = lipgloss.Color("#333333")
	ColorBarText  = lipgloss.Color("#cccccc")
)

// Border styles
var (
	FocusedBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent)

	UnfocusedBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim)
)

// Text styles
var (
	AccentText   = lipgloss.NewStyle().Foreground(ColorAccent)
	DimText      = lipgloss.NewStyle().Foreground(ColorDim)
	ErrorText    = lipgloss.NewStyle().Foreground(ColorDanger)
	SuccessText  = lipgloss.NewStyle().Foreground(ColorAccent)
	ModifiedText = lipgloss.NewStyle().Foreground(ColorModified)
	EmptyText    = lipgloss.NewStyle().Foreground(ColorDim).Italic(true)
	BannerText   = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
)

// Header styles
var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SubHeaderStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectedHeader = lipgloss.NewStyle().
			Foreground(ColorModified).
			Bold(true).
			Underline(true)
)

// Table cell styles
var (
	CellNormal   = lipgloss.NewStyle()
	CellCursor   = lipgloss.NewStyle().Reverse(true)
	CellSelected = lipgloss.NewStyle().Background(ColorSelected)
	CellEditing  = lipgloss.NewStyle().
			Background(lipgloss.Color("#1a3a2a")).
			Foreground(ColorAccent).
			Bold(true)
)

// Status bar
var (
	StatusBarStyle = lipgloss.NewStyle().
			Background(ColorBar).
			Foreground(ColorBarText).
			Padding(0, 1)

	StatusErrorStyle = StatusBarStyle.Foreground(ColorDanger)

	StatusSuccessStyle = StatusBarStyle.Foreground(ColorAccent)
)

// Sidebar styles
var (
	SidebarItem = lipgloss.NewStyle().PaddingLeft(1)
	SidebarActiveItem = lipgloss.NewStyle().
				PaddingLeft(1).
				Foreground(ColorAccent).
				Bold(true)
	SidebarCursorItem = lipgloss.NewStyle().
				PaddingLeft(1).
				Reverse(true)
)

// Search styles
var (
	SearchInput = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)
	SearchLabel = lipgloss.NewStyle().
			Foreground(ColorAccent)
)

// Top bar style
var TopBarStyle = lipgloss.NewStyle().
	Background(ColorBar).
	Foreground(ColorBarText).
	Padding(0, 1)

// truncate shortens s to at most width terminal cells.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}
