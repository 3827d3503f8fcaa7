// Package tui is an interactive terminal browser over ranked candidates.
package tui

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spigell/resume-ranker/internal/ranking"
)

// Model is the Bubble Tea model of the results browser.
type Model struct {
	candidates []ranking.Candidate
	keywords   []string
	highlight  *regexp.Regexp
	viewport   viewport.Model
	cursor     int
	ready      bool
}

// New creates a browser over candidates, highlighting the target keywords in
// the candidate text.
func New(candidates []ranking.Candidate, keywords []string) Model {
	return Model{
		candidates: candidates,
		keywords:   keywords,
		highlight:  keywordPattern(keywords),
		viewport:   viewport.New(0, 0),
	}
}

// Run shows the browser until the user quits.
func Run(candidates []ranking.Candidate, keywords []string) error {
	_, err := tea.NewProgram(New(candidates, keywords), tea.WithAltScreen()).Run()
	return err
}

// Selected returns the index of the candidate being viewed.
func (m Model) Selected() int { return m.cursor }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, frame := textBoxStyle.GetFrameSize()
		reserved := 3 + m.listHeight() + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-frame)
		m.viewport.SetContent(m.renderSelected())
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "down", "j", "tab":
			if len(m.candidates) > 0 {
				m.cursor = (m.cursor + 1) % len(m.candidates)
				m.viewport.SetContent(m.renderSelected())
				m.viewport.GotoTop()
			}
			return m, nil
		case "up", "k", "shift+tab":
			if len(m.candidates) > 0 {
				m.cursor = (m.cursor - 1 + len(m.candidates)) % len(m.candidates)
				m.viewport.SetContent(m.renderSelected())
				m.viewport.GotoTop()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("Resume ranking")
	kws := "Keywords: none"
	if len(m.keywords) > 0 {
		kws = "Keywords: " + strings.Join(m.keywords, ", ")
	}
	help := mutedStyle.Render("up/down: select  pgup/pgdn: scroll  q: quit")

	return strings.Join([]string{
		header,
		mutedStyle.Render(kws),
		m.renderList(),
		textBoxStyle.Render(m.viewport.View()),
		help,
	}, "\n")
}

func (m Model) listHeight() int {
	return max(1, len(m.candidates))
}

func (m Model) renderList() string {
	if len(m.candidates) == 0 {
		return "No candidates were ranked."
	}
	lines := make([]string, len(m.candidates))
	for i, c := range m.candidates {
		line := fmt.Sprintf("%2d. %-40s %6.2f%%", i+1, c.Filename, c.Score*100)
		if i == m.cursor {
			lines[i] = selectedStyle.Render("> " + line)
		} else {
			lines[i] = "  " + line
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderSelected() string {
	if len(m.candidates) == 0 {
		return "Nothing to show."
	}
	c := m.candidates[m.cursor]

	source := c.Document.Path
	if source == "" {
		source = c.Filename
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  score %.2f%%\n", c.Filename, c.Score*100)
	fmt.Fprintf(&b, "Source: %s\n", source)
	if len(c.Missing) > 0 {
		b.WriteString(missingStyle.Render("Missing keywords: "+strings.Join(c.Missing, ", ")) + "\n")
	} else {
		b.WriteString(foundStyle.Render("All key job keywords found") + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.highlightText(c.Text))
	return b.String()
}

func (m Model) highlightText(text string) string {
	if m.highlight == nil {
		return text
	}
	return m.highlight.ReplaceAllStringFunc(text, func(s string) string {
		return highlightStyle.Render(s)
	})
}

// keywordPattern matches any keyword case-insensitively, longest first.
func keywordPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			quoted = append(quoted, regexp.QuoteMeta(kw))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	textBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	missingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	foundStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
