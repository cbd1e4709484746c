package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sheetdb/internal/config"
	"sheetdb/internal/ui"
)

// pickerModel chooses one of the saved storage profiles.
type pickerModel struct {
	cfg    *config.Config
	cursor int
	err    string
	done   bool
	chosen config.Profile
	width  int
	height int
}

func newPickerModel(cfg *config.Config) pickerModel {
	m := pickerModel{cfg: cfg}
	if i := cfg.Index(cfg.ActiveProfile); i >= 0 {
		m.cursor = i
	}
	return m
}

func (m pickerModel) Init() tea.Cmd { return nil }

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.cfg.Profiles)-1 {
				m.cursor++
			}
		case "d", "x":
			if len(m.cfg.Profiles) <= 1 {
				m.err = "Cannot delete the last profile"
				return m, nil
			}
			m.cfg.Delete(m.cursor)
			if err := m.cfg.Save(); err != nil {
				m.err = err.Error()
			}
			if m.cursor >= len(m.cfg.Profiles) && m.cursor > 0 {
				m.cursor--
			}
		case "enter":
			if len(m.cfg.Profiles) == 0 {
				return m, nil
			}
			m.chosen = m.cfg.Profiles[m.cursor]
			m.cfg.ActiveProfile = m.chosen.Name
			if err := m.cfg.Save(); err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	titleStyle := lipgloss.NewStyle().
		Foreground(ui.ColorAccent).
		Bold(true).
		MarginBottom(1)

	var b strings.Builder

	b.WriteString(titleStyle.Render("sheetdb - Storage Profiles"))
	b.WriteString("\n\n")

	for i, p := range m.cfg.Profiles {
		display := p.Name + ui.DimText.Render(fmt.Sprintf("  %s  user %s", describe(p), p.UserID))
		if i == m.cursor {
			b.WriteString(ui.AccentText.Bold(true).Render("  ▸ " + display))
		} else {
			b.WriteString("    " + display)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(ui.ErrorText.Render("  " + m.err))
		b.WriteString("\n\n")
	}
	b.WriteString(ui.DimText.Render("  Enter to open | d delete | q quit"))
	b.WriteString("\n")

	return b.String()
}

// describe renders the backend of p for listings. Passwords in postgres
// URIs are not shown.
func describe(p config.Profile) string {
	switch p.Driver {
	case config.DriverPostgres:
		return "postgres " + redact(p.DSN)
	case config.DriverMemory:
		return "memory"
	default:
		return p.Driver + " " + p.DSN
	}
}
