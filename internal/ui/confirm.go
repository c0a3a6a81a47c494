// Package ui provides terminal user interface components for branchflow.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmResult represents the outcome of a confirmation interaction.
type ConfirmResult int

const (
	// ConfirmPending means no decision has been made yet.
	ConfirmPending ConfirmResult = iota
	// ConfirmAccepted means the operator confirmed the retirement.
	ConfirmAccepted
	// ConfirmRejected means the operator declined.
	ConfirmRejected
)

// RetireSummary contains the data shown before a support line is retired.
type RetireSummary struct {
	LineID       string
	Tier         string
	BaseVersion  string
	SupportUntil time.Time
	Branch       string
}

type confirmKeyMap struct {
	Accept key.Binding
	Reject key.Binding
	Quit   key.Binding
}

type confirmStyles struct {
	title   lipgloss.Style
	warning lipgloss.Style
	subtle  lipgloss.Style
	stat    lipgloss.Style
	value   lipgloss.Style
	border  lipgloss.Style
	help    lipgloss.Style
}

func defaultConfirmKeyMap() confirmKeyMap {
	return confirmKeyMap{
		Accept: key.NewBinding(
			key.WithKeys("y", "enter"),
			key.WithHelp("y/enter", "retire"),
		),
		Reject: key.NewBinding(
			key.WithKeys("n", "esc"),
			key.WithHelp("n/esc", "keep"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func defaultConfirmStyles() confirmStyles {
	return confirmStyles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		subtle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		stat:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(16),
		value:   lipgloss.NewStyle().Bold(true),
		border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1),
	}
}

// ConfirmModel is the Bubble Tea model for the retire confirmation.
type ConfirmModel struct {
	summary RetireSummary
	result  ConfirmResult
	keymap  confirmKeyMap
	styles  confirmStyles
}

// NewConfirmModel creates a confirmation model for the given line.
func NewConfirmModel(summary RetireSummary) ConfirmModel {
	return ConfirmModel{
		summary: summary,
		result:  ConfirmPending,
		keymap:  defaultConfirmKeyMap(),
		styles:  defaultConfirmStyles(),
	}
}

// Result returns the decision made in the interaction.
func (m ConfirmModel) Result() ConfirmResult {
	return m.result
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keymap.Accept):
			m.result = ConfirmAccepted
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Reject), key.Matches(msg, m.keymap.Quit):
			m.result = ConfirmRejected
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m ConfirmModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render("Retire Support Line"))
	b.WriteString("\n\n")

	stat := func(label, value string) {
		b.WriteString(m.styles.stat.Render(label))
		b.WriteString(m.styles.value.Render(value))
		b.WriteString("\n")
	}
	stat("Line", m.summary.LineID)
	stat("Tier", m.summary.Tier)
	stat("Base version", m.summary.BaseVersion)
	if !m.summary.SupportUntil.IsZero() {
		stat("Support until", m.summary.SupportUntil.Format("2006-01-02"))
	}
	stat("Branch", m.summary.Branch)

	b.WriteString("\n")
	b.WriteString(m.styles.warning.Render(
		fmt.Sprintf("Branch %s will be deleted. The line stays in the registry, flagged retired.",
			m.summary.Branch)))
	b.WriteString("\n\n")
	b.WriteString(m.styles.help.Render("y/enter retire • n/esc keep"))

	return m.styles.border.Render(b.String())
}

// Confirm runs the interaction and returns the decision. It blocks
// until the operator answers or quits.
func Confirm(summary RetireSummary) (ConfirmResult, error) {
	program := tea.NewProgram(NewConfirmModel(summary))
	final, err := program.Run()
	if err != nil {
		return ConfirmRejected, err
	}
	model, ok := final.(ConfirmModel)
	if !ok {
		return ConfirmRejected, fmt.Errorf("unexpected model type %T", final)
	}
	return model.Result(), nil
}
