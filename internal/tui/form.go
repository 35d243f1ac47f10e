package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// formField describes one labelled text input
type formField struct {
	label       string
	placeholder string
	limit       int
	width       int
}

// form is a column of text inputs with tab navigation. esc is left to the
// owning screen.
type form struct {
	labels []string
	inputs []textinput.Model
	focus  int
}

func newForm(fields ...formField) *form {
	f := &form{}
	for _, spec := range fields {
		in := textinput.New()
		in.Placeholder = spec.placeholder
		in.CharLimit = spec.limit
		in.Width = spec.width
		f.labels = append(f.labels, spec.label)
		f.inputs = append(f.inputs, in)
	}
	return f
}

func (f *form) set(i int, v string) {
	f.inputs[i].SetValue(v)
}

func (f *form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// start focuses the first input
func (f *form) start() tea.Cmd {
	f.focus = 0
	return f.inputs[0].Focus()
}

func (f *form) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	n := len(f.inputs)
	f.focus = (f.focus + delta + n) % n
	return f.inputs[f.focus].Focus()
}

// update routes msg to the focused input. submit is true for ctrl+s, or for
// enter on the last input.
func (f *form) update(msg tea.Msg) (cmd tea.Cmd, submit bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.String() {
		case "tab", "down":
			return f.move(1), false
		case "shift+tab", "up":
			return f.move(-1), false
		case "ctrl+s":
			return nil, true
		case "enter":
			if f.focus == len(f.inputs)-1 {
				return nil, true
			}
			return f.move(1), false
		}
	}
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd, false
}

func (f *form) view() string {
	var s string
	for i, label := range f.labels {
		indicator, style := "  ", subtitleStyle
		if i == f.focus {
			indicator, style = "> ", focusStyle
		}
		s += fmt.Sprintf("%s%s\n  %s\n\n", indicator, style.Render(label), f.inputs[i].View())
	}
	return s + helpStyle.Render("  tab/shift+tab: fields  enter: next/save  ctrl+s: save  esc: back")
}
