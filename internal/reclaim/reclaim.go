// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reclaim

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/tinychat/internal/detect"
	"github.com/jeranaias/tinychat/internal/session"
)

// Default check cadence and thresholds.
const (
	DefaultIdleCheckInterval   = 60 * time.Second
	DefaultIdleThreshold       = 10 * time.Minute
	DefaultMemoryCheckInterval = 15 * time.Second
	DefaultMemoryHighWater     = 0.90
)

// Target is the part of the session controller the reclaimer drives.
type Target interface {
	IdleFor(now time.Time) time.Duration
	Loaded() bool
	Release(reason session.Reason) bool
	Touch()
}

// PressureFunc samples the memory pressure ratio. ok is false when the
// platform exposes no reading.
type PressureFunc func(ctx context.Context) (ratio float64, ok bool)

// Options configures a Reclaimer.
type Options struct {
	IdleCheckInterval   time.Duration
	IdleThreshold       time.Duration
	MemoryCheckInterval time.Duration
	// MemoryHighWater is the pressure ratio that triggers a release.
	// Values outside (0, 1] disable the memory check.
	MemoryHighWater float64
	// Pressure defaults to detect.MemoryPressure.
	Pressure PressureFunc
	Logger   *slog.Logger
	Now      func() time.Time
}

// DefaultOptions returns the default cadence and thresholds.
func DefaultOptions() Options {
	return Options{
		IdleCheckInterval:   DefaultIdleCheckInterval,
		IdleThreshold:       DefaultIdleThreshold,
		MemoryCheckInterval: DefaultMemoryCheckInterval,
		MemoryHighWater:     DefaultMemoryHighWater,
	}
}

// Reclaimer releases the target's pipeline when idle or under pressure.
type Reclaimer struct {
	target Target
	opts   Options
	log    *slog.Logger

	// sampleLog throttles debug logging of pressure samples
	sampleLog rate.Sometimes
}

// New creates a Reclaimer. Zero option fields take their defaults.
func New(target Target, opts Options) *Reclaimer {
	def := DefaultOptions()
	if opts.IdleCheckInterval <= 0 {
		opts.IdleCheckInterval = def.IdleCheckInterval
	}
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = def.IdleThreshold
	}
	if opts.MemoryCheckInterval <= 0 {
		opts.MemoryCheckInterval = def.MemoryCheckInterval
	}
	if opts.MemoryHighWater == 0 {
		opts.MemoryHighWater = def.MemoryHighWater
	}
	if opts.Pressure == nil {
		opts.Pressure = detect.MemoryPressure
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Reclaimer{
		target:    target,
		opts:      opts,
		log:       opts.Logger.With("component", "reclaim"),
		sampleLog: rate.Sometimes{First: 1, Interval: 5 * time.Minute},
	}
}

// Run drives both checks until ctx is done.
func (r *Reclaimer) Run(ctx context.Context) {
	idle := time.NewTicker(r.opts.IdleCheckInterval)
	defer idle.Stop()
	mem := time.NewTicker(r.opts.MemoryCheckInterval)
	defer mem.Stop()

	r.log.Info("RECLAIMER_STARTED",
		"idle_threshold", r.opts.IdleThreshold,
		"memory_high_water", r.opts.MemoryHighWater)

	for {
		select {
		case <-ctx.Done():
			r.log.Info("RECLAIMER_STOPPED")
			return
		case <-idle.C:
			r.CheckIdle(r.opts.Now())
		case <-mem.C:
			r.CheckMemory(ctx)
		}
	}
}

// CheckIdle releases the handle when it has been idle past the threshold.
// It reports whether a release happened.
func (r *Reclaimer) CheckIdle(now time.Time) bool {
	if !r.target.Loaded() {
		return false
	}
	idle := r.target.IdleFor(now)
	if idle <= r.opts.IdleThreshold {
		return false
	}
	if !r.target.Release(session.ReasonIdle) {
		return false
	}
	r.log.Info("MODEL_RECLAIMED", "reason", string(session.ReasonIdle), "idle", idle.Round(time.Second))
	return true
}

// CheckMemory releases the handle when memory pressure is at or above the
// high-water mark. It reports whether a release happened.
func (r *Reclaimer) CheckMemory(ctx context.Context) bool {
	if r.opts.MemoryHighWater <= 0 || r.opts.MemoryHighWater > 1 {
		return false
	}
	if !r.target.Loaded() {
		return false
	}

	ratio, ok := r.opts.Pressure(ctx)
	if !ok {
		return false
	}
	r.sampleLog.Do(func() {
		r.log.Debug("MEMORY_PRESSURE_SAMPLE", "ratio", ratio)
	})
	if ratio < r.opts.MemoryHighWater {
		return false
	}
	if !r.target.Release(session.ReasonMemoryPressure) {
		return false
	}
	r.log.Warn("MODEL_RECLAIMED", "reason", string(session.ReasonMemoryPressure), "ratio", ratio)
	return true
}

// Touch records user activity on the target.
func (r *Reclaimer) Touch() {
	r.target.Touch()
}
