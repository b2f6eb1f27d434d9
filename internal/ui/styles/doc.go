// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the tinychat TUI.
//
// All colors are lipgloss AdaptiveColor values so they follow the terminal
// background. NewTheme detects the color profile with termenv; "auto" mode
// also detects whether the background is dark.
package styles
