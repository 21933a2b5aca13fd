package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/paginator"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tez-capital/trialbot/bot"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5733"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// browser pages through a list of codes in the terminal.
type browser struct {
	title string
	items []string
	pager paginator.Model
}

func newBrowser(title string, items []string) browser {
	p := paginator.New()
	p.Type = paginator.Arabic
	p.PerPage = bot.PageSize
	p.SetTotalPages(len(items))
	return browser{title: title, items: items, pager: p}
}

func (m browser) Init() tea.Cmd { return nil }

func (m browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.pager, cmd = m.pager.Update(msg)
	return m, cmd
}

func (m browser) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", m.title, len(m.items))))
	b.WriteString("\n\n")
	if len(m.items) == 0 {
		b.WriteString("  No keys available.\n")
	}
	start, end := m.pager.GetSliceBounds(len(m.items))
	for _, item := range m.items[start:end] {
		b.WriteString("  " + item + "\n")
	}
	b.WriteString("\n  " + m.pager.View() + "\n\n")
	b.WriteString(dimStyle.Render("  ←/→ page • q quit"))
	b.WriteString("\n")
	return b.String()
}
