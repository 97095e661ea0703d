package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	accent    = lipgloss.Color("#4682B4")
	highlight = lipgloss.Color("#87CEEB")
	muted     = lipgloss.Color("8")

	activeTab = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Underline(true)
	idleTab   = lipgloss.NewStyle().Foreground(muted)
	hintStyle = lipgloss.NewStyle().Foreground(muted)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	pageStyle = lipgloss.NewStyle().Padding(0, 1)
)

// tabs in the order of their number keys.
var tabs = []struct {
	label string
	mode  viewMode
}{
	{"Threads [1]", tableView},
	{"Search [2]", searchView},
}

// menu renders the tab strip over a rule as wide as the page.
func menu(active viewMode, width int) string {
	labels := make([]string, len(tabs))
	for i, t := range tabs {
		style := idleTab
		if t.mode == active {
			style = activeTab
		}
		labels[i] = style.Render(t.label)
	}
	strip := strings.Join(labels, idleTab.Render(" | "))
	return strip + "\n" + strings.Repeat("─", max(0, width))
}

// hints lists the help text of the given bindings on one line.
func hints(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if h := b.Help(); h.Key != "" {
			parts = append(parts, h.Key+": "+h.Desc)
		}
	}
	return hintStyle.Render(strings.Join(parts, " • "))
}

func errorLine(err error) string {
	return failStyle.Render("Error: " + err.Error())
}
