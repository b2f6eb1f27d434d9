// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "github.com/jeranaias/tinychat/internal/model"

// StatusKind classifies a status line for styling.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusAdvisory
	StatusLoading
	StatusStreaming
	StatusSuccess
	StatusError
)

// Status is the content of the status/output area.
type Status struct {
	Kind StatusKind
	Text string
	// Progress is the load fraction in [0,1], or negative when not loading.
	Progress float64
}

// View receives every user-visible change. Calls arrive in order from the
// goroutine running Submit, or from timer and reclaimer goroutines for
// status-only changes. Implementations must not call back into the
// Controller synchronously.
type View interface {
	// AppendMessage adds a bubble to the chat log.
	AppendMessage(msg model.Message)
	// UpdateLastMessage replaces the text of the last (streaming) bubble.
	UpdateLastMessage(content string)
	// FinalizeLastMessage sets the final text and ends streaming.
	FinalizeLastMessage(content string)
	// RemoveLastMessage drops the last bubble.
	RemoveLastMessage()
	// ClearMessages empties the chat log.
	ClearMessages()
	// SetStatus replaces the status area.
	SetStatus(status Status)
	// SetBusy disables submit and shows cancel while a generation runs.
	SetBusy(busy bool)
}
