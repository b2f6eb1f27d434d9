// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/jeranaias/tinychat/internal/pipeline"
)

// accumulator is the streamed response buffer. It normalizes delta and
// cumulative updates into incremental growth.
type accumulator struct {
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	sb strings.Builder
}

// apply folds u into the buffer and reports whether the text changed.
// A cumulative snapshot extending the buffer contributes only its new
// suffix; one that does not extend it replaces the buffer.
func (a *accumulator) apply(u pipeline.Update) bool {
	if !u.Cumulative {
		if u.Text == "" {
			return false
		}
		a.sb.WriteString(u.Text)
		return true
	}

	cur := a.sb.String()
	if suffix, ok := strings.CutPrefix(u.Text, cur); ok {
		if suffix == "" {
			return false
		}
		a.sb.WriteString(suffix)
		return true
	}

	a.sb.Reset()
	a.sb.WriteString(u.Text)
	return true
}

func (a *accumulator) String() string {
	return a.sb.String()
}

func (a *accumulator) Len() int {
	return a.sb.Len()
}
