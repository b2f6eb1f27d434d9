// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the detected terminal capabilities and every style the chat
// view uses.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Header
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderModel lipgloss.Style

	// Message bubbles
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	SystemBubble    lipgloss.Style
	RoleLabel       lipgloss.Style

	// Input area
	InputFocused lipgloss.Style
	InputBlurred lipgloss.Style
	TokensLabel  lipgloss.Style

	// Status line, one style per status kind
	StatusInfo      lipgloss.Style
	StatusAdvisory  lipgloss.Style
	StatusLoading   lipgloss.Style
	StatusStreaming lipgloss.Style
	StatusSuccess   lipgloss.Style
	StatusError     lipgloss.Style

	// Footer shortcuts
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	Spinner    lipgloss.Style
	Diagnostic lipgloss.Style
}

// NewTheme creates a theme for the given mode: "dark", "light" or "auto"
// (detect the terminal background).
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()

	isDark := true
	switch strings.ToLower(mode) {
	case "light":
		isDark = false
	case "dark":
	default:
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.HeaderModel = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1).
		MarginRight(4)
	t.SystemBubble = lipgloss.NewStyle().
		Foreground(SystemBubbleFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(SystemBubbleBorder).
		Padding(0, 1)
	t.RoleLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.InputFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple)
	t.InputBlurred = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)
	t.TokensLabel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusInfo = lipgloss.NewStyle().Foreground(TextSecondary)
	t.StatusAdvisory = lipgloss.NewStyle().Foreground(Amber)
	t.StatusLoading = lipgloss.NewStyle().Foreground(Amber)
	t.StatusStreaming = lipgloss.NewStyle().Foreground(TextPrimary)
	t.StatusSuccess = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusError = lipgloss.NewStyle().Bold(true).Foreground(Rose)

	t.ShortcutKey = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)
	t.Diagnostic = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Rose).
		Padding(1, 2)
}
