// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity(t *testing.T) {
	f := Identity{}
	for _, in := range []string{"", "Hello", "multi\nline", "<|user|>"} {
		assert.Equal(t, in, f.Format(in))
	}
}

func TestTemplate_Format(t *testing.T) {
	f := Template{System: "Be brief.", EndOfTurn: "</s>"}

	want := "<|system|>\nBe brief.</s>\n<|user|>\nHello</s>\n<|assistant|>\n"
	assert.Equal(t, want, f.Format("Hello"))
}

func TestTemplate_EmptyInputIsTotal(t *testing.T) {
	f := Template{System: "sys"}
	assert.Equal(t, "<|system|>\nsys</s>\n<|user|>\n</s>\n<|assistant|>\n", f.Format(""))
}

func TestTemplate_CustomEndOfTurn(t *testing.T) {
	f := Template{System: "s", EndOfTurn: "<|end|>"}
	assert.Equal(t, "<|system|>\ns<|end|>\n<|user|>\nq<|end|>\n<|assistant|>\n", f.Format("q"))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		wantType Formatter
		wantErr  bool
	}{
		{"identity", "identity", Identity{}, false},
		{"identity mixed case", " Identity ", Identity{}, false},
		{"template", "template", Template{}, false},
		{"empty defaults to template", "", Template{}, false},
		{"unknown", "chatml", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f, err := New(tc.strategy, "", "")
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.wantType, f)
		})
	}
}

func TestNew_TemplateDefaultsSystem(t *testing.T) {
	f, err := New(StrategyTemplate, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystem, f.(Template).System)
}

func TestLoadTemplateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pirate.md")
	content := "---\nstrategy: template\nend_of_turn: \"<|end|>\"\n---\n\nYou talk like a pirate.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	f, err := LoadTemplateFile(path)
	require.NoError(t, err)

	tmpl, ok := f.(Template)
	require.True(t, ok)
	assert.Equal(t, "You talk like a pirate.", tmpl.System)
	assert.Equal(t, "<|end|>", tmpl.EndOfTurn)
}

func TestLoadTemplateFile_Identity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nstrategy: identity\n---\n"), 0644))

	f, err := LoadTemplateFile(path)
	require.NoError(t, err)
	assert.IsType(t, Identity{}, f)
}

func TestLoadTemplateFile_Missing(t *testing.T) {
	_, err := LoadTemplateFile(filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
}
