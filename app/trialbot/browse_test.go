package main

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserPages(t *testing.T) {
	items := make([]string, 25)
	for i := range items {
		items[i] = fmt.Sprintf("K%02d", i)
	}
	m := newBrowser("Available Keys", items)
	assert.Equal(t, 3, m.pager.TotalPages)
	assert.Contains(t, m.View(), "K09")
	assert.NotContains(t, m.View(), "K10")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m = next.(browser)
	assert.Equal(t, 1, m.pager.Page)
	assert.Contains(t, m.View(), "K10")
	assert.NotContains(t, m.View(), "K09")
}

func TestBrowserQuit(t *testing.T) {
	m := newBrowser("Available Keys", nil)
	assert.Contains(t, m.View(), "No keys available.")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
