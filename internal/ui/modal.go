package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Action names what a confirmation or prompt is for.
type Action int

const (
	ActionNone Action = iota
	ActionDeleteRows
	ActionDeleteColumn
	ActionRenameColumn
	ActionDiscard
	ActionRowsPerPage
	ActionDeleteFile
	ActionRenameFile
	ActionUpload
	ActionExport
	ActionQuit
)

// ConfirmRequestMsg asks the app to show a y/n confirmation.
type ConfirmRequestMsg struct {
	Action Action
	Prompt string
}

// PromptRequestMsg asks the app to show a one-line text prompt.
type PromptRequestMsg struct {
	Action  Action
	Title   string
	Initial string
}

// ModalDoneMsg is sent when the modal closes. OK is false when it was
// cancelled.
type ModalDoneMsg struct {
	Action Action
	Value  string
	OK     bool
}

type modalMode int

const (
	modalConfirm modalMode = iota
	modalPrompt
)

// ModalModel is a centered dialog that either confirms with y/n or reads a
// line of text.
type ModalModel struct {
	visible bool
	mode    modalMode
	action  Action
	title   string
	input   textinput.Model
	err     string
	width   int
	height  int
}

func NewModalModel() ModalModel {
	ti := textinput.New()
	ti.Prompt = "  "
	ti.CharLimit = 255
	return ModalModel{input: ti}
}

// OpenConfirm shows a y/n question.
func (m *ModalModel) OpenConfirm(action Action, prompt string) {
	m.visible = true
	m.mode = modalConfirm
	m.action = action
	m.title = prompt
	m.err = ""
}

// OpenPrompt shows a text prompt prefilled with initial.
func (m *ModalModel) OpenPrompt(action Action, title, initial string) tea.Cmd {
	m.visible = true
	m.mode = modalPrompt
	m.action = action
	m.title = title
	m.err = ""
	m.input.SetValue(initial)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *ModalModel) Close() {
	m.visible = false
	m.err = ""
	m.input.Blur()
}

func (m ModalModel) Visible() bool {
	return m.visible
}

func (m *ModalModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m ModalModel) done(ok bool, value string) (ModalModel, tea.Cmd) {
	action := m.action
	m.Close()
	return m, func() tea.Msg {
		return ModalDoneMsg{Action: action, Value: value, OK: ok}
	}
}

func (m ModalModel) Update(msg tea.Msg) (ModalModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.mode == modalConfirm {
		switch keyMsg.String() {
		case "y", "Y":
			return m.done(true, "")
		default:
			return m.done(false, "")
		}
	}

	switch keyMsg.String() {
	case "esc":
		return m.done(false, "")
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.err = "Value cannot be empty"
			return m, nil
		}
		return m.done(true, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m ModalModel) View() string {
	if !m.visible {
		return ""
	}

	modalW := 60
	if m.width > 0 && modalW > m.width-4 {
		modalW = m.width - 4
	}

	var b strings.Builder
	if m.mode == modalConfirm {
		b.WriteString(ErrorText.Render(m.title))
		b.WriteString("\n\n")
		b.WriteString(DimText.Render("y confirm | any key cancel"))
	} else {
		b.WriteString(HeaderStyle.Render(m.title))
		b.WriteString("\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
		if m.err != "" {
			b.WriteString(ErrorText.Render("  " + m.err))
			b.WriteString("\n")
		}
		b.WriteString(DimText.Render("  Enter confirm | Esc cancel"))
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(1, 2).
		Width(modalW)

	rendered := modalStyle.Render(b.String())
	if m.width > 0 && m.height > 0 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, rendered)
	}
	return rendered
}
