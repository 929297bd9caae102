package config

import (
	"os"

	"golang.org/x/term"
)

// StdoutIsTerminal reports whether stdout is attached to a terminal.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ApplyTerminal turns the dashboard off when there is no terminal to draw
// on. It reports whether the setting changed.
func ApplyTerminal(cfg *Config, isTerminal bool) bool {
	if isTerminal || !cfg.TUIEnabled {
		return false
	}
	cfg.TUIEnabled = false
	return true
}
