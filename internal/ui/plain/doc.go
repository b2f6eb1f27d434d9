// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package plain provides the line-oriented chat used when stdout is not a
// terminal or when the TUI is turned off.
//
// Printer implements session.View by writing assistant tokens as they
// arrive. REPL reads input with line editing and history, and handles
// the commands:
//
//	/clear       clear the conversation
//	/tokens N    set the max new tokens for later messages
//	/help        list commands
//	/quit        exit (also /exit, Ctrl+D)
//
// Ctrl+C during a generation cancels it. Ctrl+C at the prompt exits.
package plain
