// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/session"
)

// Sender delivers a message to the event loop. (*tea.Program).Send
// satisfies it.
type Sender func(tea.Msg)

// Binder implements session.View for the bubbletea program.
//
// Every call is queued and forwarded by Run in call order. Calls made
// before Run starts are kept and delivered once it does.
type Binder struct {
	mu    sync.Mutex
	queue []tea.Msg
	wake  chan struct{}
}

var _ session.View = (*Binder)(nil)

// NewBinder creates an empty Binder.
func NewBinder() *Binder {
	return &Binder{wake: make(chan struct{}, 1)}
}

// Run forwards queued messages to send until ctx is cancelled.
func (b *Binder) Run(ctx context.Context, send Sender) {
	for {
		for _, msg := range b.drain() {
			// RELIABILITY: stop mid-batch once the program is gone so Send
			// is not called on a finished program.
			if ctx.Err() != nil {
				return
			}
			send(msg)
		}
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
	}
}

// Pending returns the number of queued messages.
func (b *Binder) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Binder) drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queue
	b.queue = nil
	return q
}

func (b *Binder) post(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// AppendMessage implements session.View.
func (b *Binder) AppendMessage(msg model.Message) { b.post(AppendMessageMsg{Message: msg}) }

// UpdateLastMessage implements session.View.
func (b *Binder) UpdateLastMessage(content string) { b.post(UpdateLastMessageMsg{Content: content}) }

// FinalizeLastMessage implements session.View.
func (b *Binder) FinalizeLastMessage(content string) {
	b.post(FinalizeLastMessageMsg{Content: content})
}

// RemoveLastMessage implements session.View.
func (b *Binder) RemoveLastMessage() { b.post(RemoveLastMessageMsg{}) }

// ClearMessages implements session.View.
func (b *Binder) ClearMessages() { b.post(ClearMessagesMsg{}) }

// SetStatus implements session.View.
func (b *Binder) SetStatus(status session.Status) { b.post(StatusMsg{Status: status}) }

// SetBusy implements session.View.
func (b *Binder) SetBusy(busy bool) { b.post(BusyMsg{Busy: busy}) }
