// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
)

// =============================================================================
// TYPES
// =============================================================================

// Task names the kind of pipeline to acquire.
type Task string

// TaskTextGeneration is the only task this package serves.
const TaskTextGeneration Task = "text-generation"

// ErrUnsupportedTask is returned by Acquire for tasks other than text generation.
var ErrUnsupportedTask = errors.New("unsupported pipeline task")

// Load phases reported through ProgressFunc.
const (
	PhaseLoading   = "Loading model"
	PhaseCompiling = "Compiling model"
)

// Progress is one load progress report.
type Progress struct {
	// Phase is PhaseLoading (fetching weights) or PhaseCompiling (loading
	// them into memory).
	Phase string
	// Fraction is in [0,1], or negative when the phase has no measurable
	// progress yet.
	Fraction float64
}

// Percent returns Fraction as a whole percentage, or -1 when unknown.
func (p Progress) Percent() int {
	if p.Fraction < 0 {
		return -1
	}
	if p.Fraction > 1 {
		return 100
	}
	return int(p.Fraction*100 + 0.5)
}

// ProgressFunc receives load progress. It may be nil.
type ProgressFunc func(Progress)

func report(fn ProgressFunc, phase string, fraction float64) {
	if fn != nil {
		fn(Progress{Phase: phase, Fraction: fraction})
	}
}

// GenerateOptions configures one generation call.
type GenerateOptions struct {
	MaxNewTokens      int
	Temperature       float64
	RepetitionPenalty float64
	// DoSample enables sampling; false means greedy decoding.
	DoSample bool
	// Stream delivers text as it is produced; false yields a single update.
	Stream bool
}

// Update is one event of a generation stream.
type Update struct {
	// Text is either the newly produced delta or, when Cumulative is set,
	// the full text generated so far.
	Text       string
	Cumulative bool
	// Done marks the final update.
	Done bool
}

// =============================================================================
// INTERFACES
// =============================================================================

// Stream is a pull-based sequence of Updates.
//
//	for s.Next() {
//	    u := s.Update()
//	}
//	err := s.Err()
type Stream interface {
	Next() bool
	Update() Update
	Err() error
	Close() error
}

// Pipeline is a loaded model.
type Pipeline interface {
	// Generate starts generation. Cancelling ctx terminates the stream.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (Stream, error)
	// Model returns the model identifier.
	Model() string
	// Close releases the model. Safe to call more than once.
	Close(ctx context.Context) error
}

// Factory acquires pipelines.
type Factory interface {
	Acquire(ctx context.Context, task Task, model string, progress ProgressFunc) (Pipeline, error)
}

// =============================================================================
// HELPERS
// =============================================================================

// sliceStream serves a fixed list of updates. It backs non-streaming
// generation.
type sliceStream struct {
	updates []Update
	pos     int
}

func (s *sliceStream) Next() bool {
	if s.pos >= len(s.updates) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Update() Update {
	if s.pos == 0 {
		return Update{}
	}
	return s.updates[s.pos-1]
}

func (s *sliceStream) Err() error   { return nil }
func (s *sliceStream) Close() error { return nil }
