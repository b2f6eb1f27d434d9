// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	// inputRows is the visible height of the message input.
	inputRows = 3

	// chromeRows is everything except the chat log: header, status line,
	// bordered input, max tokens row and footer.
	chromeRows = 1 + 1 + (inputRows + 2) + 1 + 1

	// minLogRows is the smallest usable chat log.
	minLogRows = 3

	// MinWidth and MinHeight are the smallest terminal the view lays out.
	MinWidth  = 40
	MinHeight = chromeRows + minLogRows

	tokensFieldWidth = 6
	progressWidth    = 20
)

// Element names used in diagnostics.
const (
	ElementController = "session controller"
	ElementChatLog    = "chat log"
	ElementStatus     = "status line"
	ElementInput      = "message input"
	ElementTokens     = "max tokens field"
)

// checkElements returns the required elements that cannot be used.
// Size is only checked once the terminal size is known.
func checkElements(ctrl Controller, width, height int, sized bool) []string {
	var missing []string
	if ctrl == nil {
		missing = append(missing, ElementController)
	}
	if !sized {
		return missing
	}
	if height < MinHeight {
		missing = append(missing, ElementChatLog)
	}
	if width < MinWidth {
		missing = append(missing, ElementStatus, ElementInput, ElementTokens)
	}
	return missing
}

// diagnostic describes missing elements for display.
func diagnostic(missing []string, width, height int) string {
	var b strings.Builder
	b.WriteString("tinychat cannot start the chat view.\n\n")
	b.WriteString("Missing: " + strings.Join(missing, ", ") + "\n")
	for _, name := range missing {
		if name == ElementController {
			b.WriteString("\nNo session controller is attached. This is a start-up error; check the log.\n")
			return b.String()
		}
	}
	fmt.Fprintf(&b, "\nTerminal is %dx%d, need at least %dx%d. Resize to continue.\n",
		width, height, MinWidth, MinHeight)
	return b.String()
}

// layout sizes the components for the current terminal.
func (m *Model) layout() {
	m.missing = checkElements(m.ctrl, m.width, m.height, m.sized)
	if len(m.missing) > 0 {
		return
	}

	// Bordered input box: 2 columns of border plus 1 of padding each side.
	m.input.SetWidth(m.width - 4)

	logRows := m.height - chromeRows
	m.viewport.Width = m.width
	m.viewport.Height = logRows

	pw := m.width / 4
	if pw > progressWidth {
		pw = progressWidth
	}
	m.progress.Width = pw

	m.markdown.SetWidth(m.width - 6)
	m.refreshLog()
}
