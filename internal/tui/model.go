package tui

import (
	"fmt"
	"strings"

	"github.com/andy/tally/internal/app"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screen represents the current active screen
type Screen int

const (
	ScreenInvoices Screen = iota
	ScreenBudget
)

// String returns the screen name
func (s Screen) String() string {
	switch s {
	case ScreenInvoices:
		return "Invoices"
	case ScreenBudget:
		return "Project Budget"
	default:
		return "Unknown"
	}
}

// Model is the root Bubble Tea model
type Model struct {
	app           *app.App
	currentScreen Screen
	width         int
	height        int

	// Screen models (lazy initialized)
	invoices tea.Model
	budget   tea.Model

	err error
}

// New creates a new root model opened on the invoices screen
func New(a *app.App) Model {
	return Model{
		app:           a,
		currentScreen: ScreenInvoices,
		invoices:      NewInvoicesModel(a),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.invoices != nil {
		return m.invoices.Init()
	}
	return nil
}

// initScreen lazy-initializes a screen on first visit,
// and sends a RefreshDataMsg on subsequent visits so screens reload data.
func (m *Model) initScreen(screen Screen) tea.Cmd {
	switch screen {
	case ScreenInvoices:
		if m.invoices == nil {
			m.invoices = NewInvoicesModel(m.app)
			return m.invoices.Init()
		}
	case ScreenBudget:
		if m.budget == nil {
			m.budget = NewBudgetModel(m.app)
			return m.budget.Init()
		}
	default:
		return nil
	}
	return func() tea.Msg { return RefreshDataMsg{} }
}

func (m *Model) switchTo(screen Screen) tea.Cmd {
	m.currentScreen = screen
	m.err = nil
	return m.initScreen(screen)
}

// Update implements tea.Model - routes keys to screens
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.Quit):
			return m, tea.Quit
		case key.Matches(msg, DefaultKeyMap.Invoices):
			return m, m.switchTo(ScreenInvoices)
		case key.Matches(msg, DefaultKeyMap.Budget):
			return m, m.switchTo(ScreenBudget)
		}

	case SwitchScreenMsg:
		return m, m.switchTo(msg.Screen)

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	// Route message to current screen
	var cmd tea.Cmd
	switch m.currentScreen {
	case ScreenInvoices:
		if m.invoices != nil {
			m.invoices, cmd = m.invoices.Update(msg)
		}
	case ScreenBudget:
		if m.budget != nil {
			m.budget, cmd = m.budget.Update(msg)
		}
	}

	return m, cmd
}

// View implements tea.Model - renders header + current screen + footer
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := headerStyle.Render(fmt.Sprintf("tally - %s", m.currentScreen.String()))
	footer := footerStyle.Render("[I]nvoices  [B]udget  [Q]uit")

	content := "Loading..."
	switch m.currentScreen {
	case ScreenInvoices:
		if m.invoices != nil {
			content = m.invoices.View()
		}
	case ScreenBudget:
		if m.budget != nil {
			content = m.budget.View()
		}
	}

	errorDisplay := ""
	if m.err != nil {
		errorDisplay = lipgloss.NewStyle().
			Foreground(errorColor).
			Render(fmt.Sprintf("\nError: %s", m.err.Error()))
	}

	innerWidth := m.width - 6 // border (2) + padding (4)
	if innerWidth < 20 {
		innerWidth = 20
	}
	dividerWidth := innerWidth - 12
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := lipgloss.NewStyle().Foreground(borderColor).Render(
		strings.Repeat("─", dividerWidth),
	)

	body := fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s\n%s", header, divider, content, errorDisplay, divider, footer)

	frame := appBorderStyle.
		Width(innerWidth).
		Height(m.height - 4)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, frame.Render(body))
}

// Run starts the TUI
func Run(a *app.App) error {
	p := tea.NewProgram(New(a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
