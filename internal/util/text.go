// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// UNICODE: widths come from go-runewidth so CJK and emoji take two cells.

// TruncateWidth truncates s to maxWidth terminal cells, ending with "..."
// when something was cut and there is room for it.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// TailWidth keeps the last maxWidth cells of s, prefixed with "..." when
// something was cut. Streaming status lines show the newest text this way.
func TailWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	prefix := "..."
	if maxWidth <= 3 {
		prefix = ""
	}
	budget := maxWidth - len(prefix)

	runes := []rune(s)
	width := 0
	start := len(runes)
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if width+w > budget {
			break
		}
		width += w
		start--
	}
	return prefix + string(runes[start:])
}

// SingleLine collapses newlines and runs of whitespace to single spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
