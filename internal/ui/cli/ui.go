package cli

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

// pickerModel lets the user choose one defining file when a symbol name
// matches several declarations.
type pickerModel struct {
	candidateList list.Model
	symbolName    string
	choice        string
	chosen        bool
	quitting      bool
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.candidateList.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if selected, ok := m.candidateList.SelectedItem().(item); ok {
				m.choice = selected.title
				m.chosen = true
			}
			m.quitting = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		width := msg.Width - h
		height := msg.Height - v - 4
		if height < 5 {
			height = 5
		}
		m.candidateList.SetSize(width, height)
	}

	var cmd tea.Cmd
	m.candidateList, cmd = m.candidateList.Update(msg)
	return m, cmd
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}
	header := fmt.Sprintf("%s\n%s\n",
		titleStyle(fmt.Sprintf("Ambiguous symbol %q", m.symbolName)),
		statusStyle.Render("enter selects a file, q cancels"))
	return docStyle.Render(header + "\n" + m.candidateList.View())
}

func initialPickerModel(name string, candidates []string) pickerModel {
	items := make([]list.Item, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, item{
			title: candidate,
			desc:  fmt.Sprintf("declares %s", name),
		})
	}

	candidateList := list.New(items, list.NewDefaultDelegate(), 0, 0)
	candidateList.Title = "Candidate Files"
	candidateList.SetShowStatusBar(false)
	candidateList.SetFilteringEnabled(true)

	return pickerModel{
		candidateList: candidateList,
		symbolName:    name,
	}
}
