package tui

// SwitchScreenMsg asks the root model to show another screen
type SwitchScreenMsg struct {
	Screen Screen
}

// RefreshDataMsg is sent to a screen each time it is shown again
type RefreshDataMsg struct{}

// ErrorMsg reports a failed background command to the current screen
type ErrorMsg struct {
	Err error
}

// OpenNewClientFormMsg opens the client form on first run
type OpenNewClientFormMsg struct{}

type firstRunCheckMsg struct {
	hasClients bool
}
