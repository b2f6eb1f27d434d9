// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_ExplicitModes(t *testing.T) {
	dark := NewTheme("dark")
	assert.True(t, dark.IsDark)

	light := NewTheme("light")
	assert.False(t, light.IsDark)
}

func TestGlamourStyle(t *testing.T) {
	th := &Theme{IsDark: true, ColorProfile: termenv.TrueColor}
	assert.Equal(t, "dark", th.GlamourStyle())

	th.IsDark = false
	assert.Equal(t, "light", th.GlamourStyle())

	th.ColorProfile = termenv.Ascii
	assert.Equal(t, "notty", th.GlamourStyle())
}

func TestStylesInitialized(t *testing.T) {
	th := NewTheme("dark")
	assert.NotEmpty(t, th.UserBubble.Render("hi"))
	assert.Contains(t, th.StatusError.Render("boom"), "boom")
}
