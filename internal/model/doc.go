// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat log.
//
// # Key Types
//
//   - Role: message role enumeration (user, assistant, system)
//   - Message: a single chat bubble with role, content and timestamp
//   - Conversation: the ordered, append-only chat log owned by the UI
//
// # Usage
//
//	conv := model.NewConversation()
//	conv.Append(model.NewUserMessage("Hello"))
//	conv.Append(model.NewAssistantMessage(""))
//	conv.UpdateLast("Hi there")
//
// The conversation mirrors what was sent and received. It is not the source of
// truth for generation: the session controller keeps its own response buffer
// and pushes snapshots into the log through its View port.
package model
