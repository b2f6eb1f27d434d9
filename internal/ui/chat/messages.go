// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/session"
)

// =============================================================================
// VIEW PORT MESSAGES
// =============================================================================

// AppendMessageMsg appends a message to the chat log.
type AppendMessageMsg struct {
	Message model.Message
}

// UpdateLastMessageMsg replaces the content of the last message.
type UpdateLastMessageMsg struct {
	Content string
}

// FinalizeLastMessageMsg sets the final content of the last message and
// ends its streaming state.
type FinalizeLastMessageMsg struct {
	Content string
}

// RemoveLastMessageMsg drops the last message.
type RemoveLastMessageMsg struct{}

// ClearMessagesMsg empties the chat log.
type ClearMessagesMsg struct{}

// StatusMsg replaces the status line.
type StatusMsg struct {
	Status session.Status
}

// BusyMsg toggles the generating state of the controls.
type BusyMsg struct {
	Busy bool
}

// =============================================================================
// INTERNAL MESSAGES
// =============================================================================

// submitDoneMsg reports that a Submit call returned.
type submitDoneMsg struct {
	Outcome session.Outcome
	Text    string
}
