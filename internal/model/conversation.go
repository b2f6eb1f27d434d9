// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat log.
package model

import (
	"sync"
)

// MaxMessages bounds the chat log. When exceeded, the oldest messages are
// pruned to prevent unbounded memory growth.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered, append-only chat log.
//
// Only the last message may change after it is appended (streaming updates,
// finalization, removal of an abandoned reply). Clear empties the log
// wholesale. Conversation is safe for concurrent use.
type Conversation struct {
	mu       sync.RWMutex
	messages []Message
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{messages: make([]Message, 0, 16)}
}

// Append adds a message to the end of the log.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	if len(c.messages) > MaxMessages {
		c.messages = append([]Message(nil), c.messages[len(c.messages)-MaxMessages:]...)
	}
}

// UpdateLast replaces the content of the last message.
// Returns false if the log is empty.
func (c *Conversation) UpdateLast(content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return false
	}
	c.messages[len(c.messages)-1].Content = content
	return true
}

// FinalizeLast marks the last message as no longer streaming and sets its
// final content.
func (c *Conversation) FinalizeLast(content string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return false
	}
	last := &c.messages[len(c.messages)-1]
	last.Content = content
	last.Streaming = false
	return true
}

// RemoveLast drops the last message. Returns false if the log is empty.
func (c *Conversation) RemoveLast() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return false
	}
	c.messages = c.messages[:len(c.messages)-1]
	return true
}

// Last returns the last message, if any.
func (c *Conversation) Last() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Clear empties the log.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = c.messages[:0]
}

// Messages returns a copy of the log in order.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// CountRole returns the number of messages with the given role.
func (c *Conversation) CountRole(role Role) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, m := range c.messages {
		if m.Role == role {
			n++
		}
	}
	return n
}
