// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "time"

// =============================================================================
// PHASE
// =============================================================================

// Phase is the controller's lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseGenerating
	PhaseCancelling
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseGenerating:
		return "generating"
	case PhaseCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is how a Submit call ended.
type Outcome int

const (
	// OutcomeIgnored means a generation was already running.
	OutcomeIgnored Outcome = iota
	// OutcomeRejected means the input was blank.
	OutcomeRejected
	OutcomeCompleted
	OutcomeCancelled
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeRejected:
		return "rejected"
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// STATE SNAPSHOT
// =============================================================================

// State is a point-in-time copy of the controller state.
type State struct {
	Phase           Phase
	HasPipeline     bool
	Generating      bool
	LastInteraction time.Time
	Model           string
}

// =============================================================================
// RELEASE REASONS
// =============================================================================

// Reason explains why the pipeline handle was released.
type Reason string

const (
	ReasonIdle           Reason = "idle"
	ReasonMemoryPressure Reason = "memory_pressure"
	ReasonManual         Reason = "manual"
	ReasonShutdown       Reason = "shutdown"
	ReasonError          Reason = "error"
)
