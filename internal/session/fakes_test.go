// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/pipeline"
)

// =============================================================================
// RECORDING VIEW
// =============================================================================

type recordingView struct {
	mu         sync.Mutex
	messages   []model.Message
	statuses   []Status
	busy       bool
	busyEvents []bool
	// divergences counts streaming statuses that did not match the last bubble
	divergences int
}

func (v *recordingView) AppendMessage(msg model.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = append(v.messages, msg)
}

func (v *recordingView) UpdateLastMessage(content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n := len(v.messages); n > 0 {
		v.messages[n-1].Content = content
	}
}

func (v *recordingView) FinalizeLastMessage(content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n := len(v.messages); n > 0 {
		v.messages[n-1].Content = content
		v.messages[n-1].Streaming = false
	}
}

func (v *recordingView) RemoveLastMessage() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if n := len(v.messages); n > 0 {
		v.messages = v.messages[:n-1]
	}
}

func (v *recordingView) ClearMessages() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messages = nil
}

func (v *recordingView) SetStatus(s Status) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s.Kind == StatusStreaming && s.Text != TextGenerating {
		n := len(v.messages)
		if n == 0 || v.messages[n-1].Role != model.RoleAssistant || v.messages[n-1].Content != s.Text {
			v.divergences++
		}
	}
	v.statuses = append(v.statuses, s)
}

func (v *recordingView) SetBusy(busy bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.busy = busy
	v.busyEvents = append(v.busyEvents, busy)
}

func (v *recordingView) Messages() []model.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Message(nil), v.messages...)
}

func (v *recordingView) LastStatus() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.statuses) == 0 {
		return Status{}
	}
	return v.statuses[len(v.statuses)-1]
}

func (v *recordingView) Statuses() []Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]Status(nil), v.statuses...)
}

func (v *recordingView) Busy() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.busy
}

func (v *recordingView) Divergences() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.divergences
}

// =============================================================================
// FAKE PIPELINE
// =============================================================================

type fakeFactory struct {
	mu       sync.Mutex
	acquires int
	err      error
	// progress fractions reported under PhaseLoading
	progress []float64
	// block makes Acquire wait for ctx cancellation
	block bool
	next  func() *fakePipeline
}

func (f *fakeFactory) Acquire(ctx context.Context, task pipeline.Task, name string, progress pipeline.ProgressFunc) (pipeline.Pipeline, error) {
	f.mu.Lock()
	f.acquires++
	err, block, next, fractions := f.err, f.block, f.next, f.progress
	f.mu.Unlock()

	for _, frac := range fractions {
		if progress != nil {
			progress(pipeline.Progress{Phase: pipeline.PhaseLoading, Fraction: frac})
		}
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if progress != nil {
		progress(pipeline.Progress{Phase: pipeline.PhaseCompiling, Fraction: 1})
	}
	return next(), nil
}

func (f *fakeFactory) Acquires() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.acquires
}

func (f *fakeFactory) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakePipeline struct {
	updates   []pipeline.Update
	gate      chan struct{}
	genErr    error
	streamErr error
	panicMsg  string

	closed     atomic.Int32
	mu         sync.Mutex
	lastPrompt string
	lastOpts   pipeline.GenerateOptions
}

func (p *fakePipeline) Model() string { return "tiny" }

func (p *fakePipeline) Generate(ctx context.Context, prompt string, opts pipeline.GenerateOptions) (pipeline.Stream, error) {
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	p.mu.Lock()
	p.lastPrompt = prompt
	p.lastOpts = opts
	p.mu.Unlock()
	if p.genErr != nil {
		return nil, p.genErr
	}
	return &fakeStream{ctx: ctx, updates: p.updates, gate: p.gate, endErr: p.streamErr}, nil
}

func (p *fakePipeline) Close(ctx context.Context) error {
	p.closed.Add(1)
	return nil
}

func (p *fakePipeline) Opts() (string, pipeline.GenerateOptions) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPrompt, p.lastOpts
}

// fakeStream yields updates in order. With a gate, each update waits for a
// token on the gate or for cancellation.
type fakeStream struct {
	ctx     context.Context
	updates []pipeline.Update
	gate    chan struct{}
	endErr  error
	pos     int
	cur     pipeline.Update
	err     error
}

func (s *fakeStream) Next() bool {
	if s.err != nil {
		return false
	}
	if s.pos >= len(s.updates) {
		s.err = s.endErr
		return false
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-s.ctx.Done():
			s.err = s.ctx.Err()
			return false
		}
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.cur = s.updates[s.pos]
	s.pos++
	return true
}

func (s *fakeStream) Update() pipeline.Update { return s.cur }
func (s *fakeStream) Err() error              { return s.err }
func (s *fakeStream) Close() error            { return nil }

func cumulative(texts ...string) []pipeline.Update {
	out := make([]pipeline.Update, len(texts))
	for i, t := range texts {
		out[i] = pipeline.Update{Text: t, Cumulative: true}
	}
	return out
}

func deltas(texts ...string) []pipeline.Update {
	out := make([]pipeline.Update, len(texts))
	for i, t := range texts {
		out[i] = pipeline.Update{Text: t}
	}
	return out
}
