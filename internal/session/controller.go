// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/pipeline"
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs the generation lifecycle. It is safe for concurrent use;
// Submit blocks for the duration of one generation and is meant to run on
// its own goroutine.
type Controller struct {
	factory pipeline.Factory
	view    View
	opts    Options
	log     *slog.Logger

	mu              sync.Mutex
	phase           Phase
	handle          pipeline.Pipeline
	retired         []retiredHandle // released while in flight
	cancel          context.CancelFunc
	lastInteraction time.Time
	gen             GenerationOptions
	logEpoch        uint64 // bumped by Clear
	lastErr         error

	// statusMu serializes status writes so a delayed reset never overwrites
	// a newer status.
	statusMu    sync.Mutex
	statusEpoch uint64
}

// New creates a Controller. Both factory and view are required.
func New(factory pipeline.Factory, view View, opts Options) (*Controller, error) {
	if factory == nil {
		return nil, errors.New("session: nil pipeline factory")
	}
	if view == nil {
		return nil, errors.New("session: nil view")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("session: model is required")
	}
	opts.fillDefaults()

	return &Controller{
		factory:         factory,
		view:            view,
		opts:            opts,
		log:             opts.Logger.With("component", "session"),
		lastInteraction: opts.Now(),
		gen:             opts.Generation,
	}, nil
}

type retiredHandle struct {
	handle pipeline.Pipeline
	reason Reason
}

// run is the per-Submit state.
type run struct {
	ctx       context.Context
	text      string
	maxTokens int
	gen       GenerationOptions
	handle    pipeline.Pipeline
	logEpoch  uint64
	started   time.Time

	acc     accumulator
	bubble  bool
	outcome Outcome
	err     error
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit runs one request to completion: appends the user message, loads
// the pipeline if none is held, streams the reply into the view and cleans
// up. It is a no-op while another generation runs.
func (c *Controller) Submit(ctx context.Context, text, maxTokensRaw string) (outcome Outcome) {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		c.log.Debug("SUBMIT_IGNORED", "phase", c.Phase().String())
		return OutcomeIgnored
	}
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		c.setStatus(Status{Kind: StatusAdvisory, Text: TextEmptyInput, Progress: -1})
		c.restoreReadyAfter(c.opts.AdvisoryDelay)
		return OutcomeRejected
	}

	text = strings.TrimSpace(text)
	genCtx, cancel := context.WithCancel(ctx)
	r := &run{
		ctx:      genCtx,
		text:     text,
		gen:      c.gen,
		handle:   c.handle,
		logEpoch: c.logEpoch,
		started:  c.opts.Now(),
	}
	r.maxTokens = ParseMaxTokens(maxTokensRaw, r.gen.DefaultMaxNewTokens, r.gen.MaxNewTokensLimit)
	c.cancel = cancel
	c.lastErr = nil
	c.lastInteraction = r.started
	if r.handle == nil {
		c.phase = PhaseLoading
	} else {
		c.phase = PhaseGenerating
	}
	c.mu.Unlock()

	defer c.finish(r, cancel, &outcome)

	c.view.AppendMessage(model.NewUserMessage(text))
	c.view.SetBusy(true)
	c.log.Info("GENERATION_STARTED",
		"model", c.opts.Model,
		"max_new_tokens", r.maxTokens,
		"cold", r.handle == nil)

	if r.handle == nil && !c.acquire(r) {
		return r.outcome
	}
	c.generate(r)
	return r.outcome
}

// acquire loads the pipeline. It reports false when the run already ended.
func (c *Controller) acquire(r *run) bool {
	c.setRunStatus(r, progressStatus(pipeline.Progress{Phase: pipeline.PhaseLoading, Fraction: 0}))

	h, err := c.factory.Acquire(r.ctx, c.opts.Task, c.opts.Model, func(p pipeline.Progress) {
		c.setRunStatus(r, progressStatus(p))
	})
	if err != nil {
		if r.ctx.Err() != nil {
			c.cancelled(r)
			return false
		}
		c.failed(r, fmt.Errorf("%w: %w", ErrAcquire, err))
		return false
	}

	c.mu.Lock()
	c.handle = h
	if c.phase == PhaseLoading {
		c.phase = PhaseGenerating
	}
	c.mu.Unlock()
	r.handle = h

	c.log.Info("PIPELINE_ACQUIRED", "model", c.opts.Model, "elapsed", c.opts.Now().Sub(r.started).Round(time.Millisecond))

	if r.ctx.Err() != nil {
		c.cancelled(r)
		return false
	}
	return true
}

// generate streams the reply from r.handle.
func (c *Controller) generate(r *run) {
	c.setRunStatus(r, Status{Kind: StatusStreaming, Text: TextGenerating, Progress: -1})

	stream, err := r.handle.Generate(r.ctx, c.opts.Formatter.Format(r.text), pipeline.GenerateOptions{
		MaxNewTokens:      r.maxTokens,
		Temperature:       r.gen.Temperature,
		RepetitionPenalty: r.gen.RepetitionPenalty,
		DoSample:          r.gen.DoSample,
		Stream:            r.gen.Stream,
	})
	if err != nil {
		if r.ctx.Err() != nil {
			c.cancelled(r)
			return
		}
		c.dropHandle(r.handle)
		c.failed(r, fmt.Errorf("%w: %w", ErrGenerate, err))
		return
	}
	defer stream.Close()

	for stream.Next() {
		if r.ctx.Err() != nil {
			break
		}
		if !r.acc.apply(stream.Update()) {
			continue
		}
		c.render(r)
	}

	switch {
	case r.ctx.Err() != nil:
		c.cancelled(r)
	case stream.Err() != nil:
		c.failed(r, fmt.Errorf("%w: %w", ErrGenerate, stream.Err()))
	default:
		c.completed(r)
	}
}

// render pushes the buffer to the bubble and the status area.
func (c *Controller) render(r *run) {
	text := r.acc.String()
	if c.logCurrent(r) {
		if !r.bubble {
			c.view.AppendMessage(model.NewAssistantMessage(text))
			r.bubble = true
		} else {
			c.view.UpdateLastMessage(text)
		}
	}
	c.setRunStatus(r, Status{Kind: StatusStreaming, Text: text, Progress: -1})
}

// =============================================================================
// OUTCOMES
// =============================================================================

func (c *Controller) completed(r *run) {
	final := r.acc.String()
	if c.logCurrent(r) {
		if r.bubble {
			c.view.FinalizeLastMessage(final)
		} else {
			c.view.AppendMessage(model.NewMessage(model.RoleAssistant, final))
			r.bubble = true
		}
	}
	c.setRunStatus(r, Status{Kind: StatusSuccess, Text: TextNextQuestion, Progress: -1})
	r.outcome = OutcomeCompleted

	c.log.Info("GENERATION_COMPLETED",
		"chars", r.acc.Len(),
		"elapsed", c.opts.Now().Sub(r.started).Round(time.Millisecond))
}

func (c *Controller) cancelled(r *run) {
	output := r.acc.String() + CancellationMarker
	if c.logCurrent(r) && r.bubble {
		if c.opts.PartialOnCancel == PartialDiscard {
			c.view.RemoveLastMessage()
			r.bubble = false
		} else {
			c.view.FinalizeLastMessage(output)
		}
	}
	c.setRunStatus(r, Status{Kind: StatusInfo, Text: strings.TrimLeft(output, "\n"), Progress: -1})
	r.outcome = OutcomeCancelled

	c.log.Info("GENERATION_CANCELLED", "chars", r.acc.Len(), "partial", string(c.opts.PartialOnCancel))
}

func (c *Controller) failed(r *run, err error) {
	if c.logCurrent(r) && r.bubble {
		c.view.RemoveLastMessage()
		r.bubble = false
	}
	r.err = err
	r.outcome = OutcomeFailed

	text := "Error: " + err.Error()
	if hint := Hint(err, c.opts.Model); hint != "" {
		text += "\n" + hint
	}
	c.setRunStatus(r, Status{Kind: StatusError, Text: text, Progress: -1})

	c.log.Error("GENERATION_FAILED", "error", err)
}

// finish is the shared cleanup for every path out of Submit.
func (c *Controller) finish(r *run, cancel context.CancelFunc, out *Outcome) {
	if rec := recover(); rec != nil {
		c.log.Error("GENERATION_PANIC", "panic", fmt.Sprint(rec))
		c.failed(r, fmt.Errorf("%w: %v", ErrPanic, rec))
	}
	cancel()

	now := c.opts.Now()
	c.mu.Lock()
	c.phase = PhaseIdle
	c.cancel = nil
	c.lastInteraction = now
	c.lastErr = r.err
	retired := c.retired
	c.retired = nil
	c.mu.Unlock()

	c.view.SetBusy(false)
	for _, rh := range retired {
		c.closeHandle(rh.handle, rh.reason)
	}

	if r.outcome == OutcomeCompleted || r.outcome == OutcomeCancelled {
		c.restoreReadyAfter(c.opts.StatusResetDelay)
	}
	*out = r.outcome
}

// =============================================================================
// CONTROLS
// =============================================================================

// Cancel requests cancellation of the running generation. It reports
// whether there was one to cancel.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil || c.phase == PhaseIdle || c.phase == PhaseCancelling {
		return false
	}
	c.phase = PhaseCancelling
	c.cancel()
	c.log.Info("GENERATION_CANCEL_REQUESTED")
	return true
}

// Clear empties the chat log and resets the status. A running generation
// is cancelled and stops touching the log.
func (c *Controller) Clear() {
	c.statusMu.Lock()
	c.mu.Lock()
	c.logEpoch++
	if c.cancel != nil && c.phase != PhaseIdle && c.phase != PhaseCancelling {
		c.phase = PhaseCancelling
		c.cancel()
	}
	c.mu.Unlock()
	c.statusMu.Unlock()

	c.view.ClearMessages()
	c.setStatus(c.readyStatus())
	c.log.Info("CHAT_CLEARED")
}

// Ready shows the idle status. Binders call it once at start-up.
func (c *Controller) Ready() {
	c.setStatus(c.readyStatus())
}

// Touch records user activity.
func (c *Controller) Touch() {
	now := c.opts.Now()
	c.mu.Lock()
	c.lastInteraction = now
	c.mu.Unlock()
}

// SetGeneration replaces the sampling parameters for later Submits.
func (c *Controller) SetGeneration(g GenerationOptions) {
	c.mu.Lock()
	c.gen = g
	c.mu.Unlock()
	c.log.Info("GENERATION_OPTIONS_UPDATED",
		"temperature", g.Temperature,
		"repetition_penalty", g.RepetitionPenalty,
		"default_max_new_tokens", g.DefaultMaxNewTokens)
}

// Generation returns the current sampling parameters.
func (c *Controller) Generation() GenerationOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// =============================================================================
// PIPELINE HANDLE
// =============================================================================

// Release drops the pipeline handle. An in-flight generation keeps the old
// handle until it finishes; the handle is closed then. Reports whether a
// handle was held.
func (c *Controller) Release(reason Reason) bool {
	c.mu.Lock()
	h := c.handle
	if h == nil {
		c.mu.Unlock()
		return false
	}
	c.handle = nil
	inFlight := c.phase != PhaseIdle
	if inFlight {
		c.retired = append(c.retired, retiredHandle{handle: h, reason: reason})
	}
	c.mu.Unlock()

	c.log.Info("PIPELINE_RELEASED", "reason", string(reason), "in_flight", inFlight)
	if inFlight {
		return true
	}

	c.closeHandle(h, reason)
	c.setStatus(Status{Kind: StatusInfo, Text: TextUnloaded, Progress: -1})
	return true
}

// Shutdown cancels any running generation and releases the handle.
func (c *Controller) Shutdown() {
	c.Cancel()
	c.Release(ReasonShutdown)
}

// dropHandle releases h after a generation failure so the next Submit
// acquires a fresh one.
func (c *Controller) dropHandle(h pipeline.Pipeline) {
	c.mu.Lock()
	if c.handle != h {
		c.mu.Unlock()
		return
	}
	c.handle = nil
	c.mu.Unlock()
	c.closeHandle(h, ReasonError)
}

func (c *Controller) closeHandle(h pipeline.Pipeline, reason Reason) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ReleaseTimeout)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		c.log.Warn("PIPELINE_CLOSE_FAILED", "reason", string(reason), "error", err)
	}
}

// =============================================================================
// STATE
// =============================================================================

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Phase:           c.phase,
		HasPipeline:     c.handle != nil,
		Generating:      c.phase != PhaseIdle,
		LastInteraction: c.lastInteraction,
		Model:           c.opts.Model,
	}
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Loaded reports whether a pipeline handle is held.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// IdleFor returns how long since the last interaction, as of now. A
// running generation counts as activity.
func (c *Controller) IdleFor(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseIdle {
		return 0
	}
	return now.Sub(c.lastInteraction)
}

// LastError returns the error of the most recent failed Submit.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// =============================================================================
// STATUS
// =============================================================================

func (c *Controller) setStatus(s Status) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.statusEpoch++
	c.view.SetStatus(s)
}

// setRunStatus is setStatus for a run. It is dropped once Clear has taken
// the log away from r. Lock order is statusMu then mu.
func (c *Controller) setRunStatus(r *run, s Status) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if !c.logCurrent(r) {
		return
	}
	c.statusEpoch++
	c.view.SetStatus(s)
}

// restoreReadyAfter shows the idle status after d unless another status
// was set in the meantime.
func (c *Controller) restoreReadyAfter(d time.Duration) {
	c.statusMu.Lock()
	epoch := c.statusEpoch
	c.statusMu.Unlock()

	time.AfterFunc(d, func() {
		ready := c.readyStatus()
		c.statusMu.Lock()
		defer c.statusMu.Unlock()
		if c.statusEpoch != epoch || c.Phase() != PhaseIdle {
			return
		}
		c.statusEpoch++
		c.view.SetStatus(ready)
	})
}

func (c *Controller) readyStatus() Status {
	if c.Loaded() {
		return Status{Kind: StatusSuccess, Text: TextReadyLoaded, Progress: -1}
	}
	return Status{Kind: StatusInfo, Text: TextReadyCold, Progress: -1}
}

// logCurrent reports whether the chat log still belongs to r.
func (c *Controller) logCurrent(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logEpoch == r.logEpoch
}

// progressStatus renders load progress, e.g. "Loading model... 42%".
func progressStatus(p pipeline.Progress) Status {
	pct := p.Percent()
	if pct < 0 {
		return Status{Kind: StatusLoading, Text: p.Phase + "...", Progress: -1}
	}
	return Status{
		Kind:     StatusLoading,
		Text:     fmt.Sprintf("%s... %d%%", p.Phase, pct),
		Progress: float64(pct) / 100,
	}
}
