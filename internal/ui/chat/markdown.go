// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownCache renders finalized assistant messages with glamour.
// Rendered output is cached per message ID and dropped on resize.
type markdownCache struct {
	enabled  bool
	style    string
	width    int
	renderer *glamour.TermRenderer
	rendered map[string]string
}

func newMarkdownCache(style string, enabled bool) *markdownCache {
	return &markdownCache{
		enabled:  enabled,
		style:    style,
		width:    80,
		rendered: make(map[string]string),
	}
}

// SetWidth changes the wrap width, invalidating the cache.
func (c *markdownCache) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == c.width {
		return
	}
	c.width = width
	c.renderer = nil
	c.rendered = make(map[string]string)
}

// Forget drops the cached output for id.
func (c *markdownCache) Forget(id string) {
	delete(c.rendered, id)
}

// Reset drops every cached output.
func (c *markdownCache) Reset() {
	c.rendered = make(map[string]string)
}

// Render returns content rendered as markdown. ok is false when markdown
// is disabled or rendering failed, in which case the caller shows the raw
// text.
func (c *markdownCache) Render(id, content string) (out string, ok bool) {
	if !c.enabled {
		return "", false
	}
	if out, ok := c.rendered[id]; ok {
		return out, true
	}
	if c.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(c.style),
			glamour.WithWordWrap(c.width),
		)
		if err != nil {
			c.enabled = false
			return "", false
		}
		c.renderer = r
	}
	out, err := c.renderer.Render(content)
	if err != nil {
		return "", false
	}
	out = strings.Trim(out, "\n")
	c.rendered[id] = out
	return out, true
}
