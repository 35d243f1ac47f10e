package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoFieldForm() *form {
	f := newForm(
		formField{label: "Date:", limit: 10, width: 12},
		formField{label: "Hours:", limit: 6, width: 8},
	)
	f.start()
	return f
}

func TestForm_TabCyclesFocus(t *testing.T) {
	f := twoFieldForm()
	require.Equal(t, 0, f.focus)

	_, submit := f.update(tea.KeyMsg{Type: tea.KeyTab})
	assert.False(t, submit)
	assert.Equal(t, 1, f.focus)
	assert.True(t, f.inputs[1].Focused())
	assert.False(t, f.inputs[0].Focused())

	f.update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, 0, f.focus, "wraps around")

	f.update(tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, 1, f.focus)
}

func TestForm_EnterSubmitsOnLastField(t *testing.T) {
	f := twoFieldForm()

	_, submit := f.update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, submit)
	assert.Equal(t, 1, f.focus)

	_, submit = f.update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, submit)
}

func TestForm_CtrlSSubmitsAnywhere(t *testing.T) {
	f := twoFieldForm()
	_, submit := f.update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.True(t, submit)
}

func TestForm_TypingFillsFocusedInput(t *testing.T) {
	f := twoFieldForm()
	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2024")})
	f.update(tea.KeyMsg{Type: tea.KeyTab})
	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1.5")})

	assert.Equal(t, "2024", f.value(0))
	assert.Equal(t, "1.5", f.value(1))
}

func TestForm_ValueTrims(t *testing.T) {
	f := twoFieldForm()
	f.set(1, "  2.25 ")
	assert.Equal(t, "2.25", f.value(1))
	assert.Contains(t, f.view(), "Hours:")
}

func TestNavFooter(t *testing.T) {
	footer := navFooter(DefaultKeyMap)
	assert.Contains(t, footer, "[r] analytics")
	assert.Contains(t, footer, "[q] quit")
	assert.NotContains(t, footer, "Reports")
}
