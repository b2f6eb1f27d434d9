// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"fmt"
	"os"
	"strings"

	"github.com/adrg/frontmatter"
)

// Strategy names accepted by New.
const (
	StrategyIdentity = "identity"
	StrategyTemplate = "template"
)

// DefaultEndOfTurn is the end-of-turn delimiter of the TinyLlama chat format.
const DefaultEndOfTurn = "</s>"

// DefaultSystem is the system preamble used when none is configured.
const DefaultSystem = "You are a friendly chatbot who always responds helpfully and concisely."

// Formatter turns user text into a model prompt.
type Formatter interface {
	Format(userText string) string
}

// =============================================================================
// IDENTITY
// =============================================================================

// Identity passes user text through unchanged.
type Identity struct{}

// Format returns userText as is.
func (Identity) Format(userText string) string {
	return userText
}

// =============================================================================
// ROLE-TAGGED TEMPLATE
// =============================================================================

// Template wraps user text in a role-tagged chat template.
type Template struct {
	System    string
	EndOfTurn string
}

// Format renders
//
//	<|system|>
//	{System}{EndOfTurn}
//	<|user|>
//	{userText}{EndOfTurn}
//	<|assistant|>
func (t Template) Format(userText string) string {
	eot := t.EndOfTurn
	if eot == "" {
		eot = DefaultEndOfTurn
	}

	var b strings.Builder
	b.Grow(len(t.System) + len(userText) + 48)
	b.WriteString("<|system|>\n")
	b.WriteString(t.System)
	b.WriteString(eot)
	b.WriteString("\n<|user|>\n")
	b.WriteString(userText)
	b.WriteString(eot)
	b.WriteString("\n<|assistant|>\n")
	return b.String()
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// New returns the formatter for a strategy name.
// An empty strategy selects the template.
func New(strategy, system, endOfTurn string) (Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case StrategyIdentity:
		return Identity{}, nil
	case StrategyTemplate, "":
		if system == "" {
			system = DefaultSystem
		}
		return Template{System: system, EndOfTurn: endOfTurn}, nil
	default:
		return nil, fmt.Errorf("unknown prompt strategy %q (want %q or %q)", strategy, StrategyIdentity, StrategyTemplate)
	}
}

// fileMatter is the front matter of a template file.
type fileMatter struct {
	Strategy  string `yaml:"strategy"`
	EndOfTurn string `yaml:"end_of_turn"`
}

// LoadTemplateFile builds a formatter from a markdown file with front matter.
// The file body, trimmed, is the system preamble.
func LoadTemplateFile(path string) (Formatter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open prompt template: %w", err)
	}
	defer f.Close()

	var matter fileMatter
	body, err := frontmatter.Parse(f, &matter)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", path, err)
	}

	return New(matter.Strategy, strings.TrimSpace(string(body)), matter.EndOfTurn)
}
