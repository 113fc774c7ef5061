package cli

import (
	tea "github.com/charmbracelet/bubbletea"
)

// pickCandidate runs the ambiguity picker and reports the chosen file. The
// second return is false when the user cancels without selecting.
func pickCandidate(name string, candidates []string) (string, bool, error) {
	m := initialPickerModel(name, candidates)
	p := tea.NewProgram(m, tea.WithAltScreen())

	final, err := p.Run()
	if err != nil {
		return "", false, err
	}

	result, ok := final.(pickerModel)
	if !ok || !result.chosen {
		return "", false, nil
	}
	return result.choice, true, nil
}
