// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	// MinMemoryGB is the device memory below which a warning is raised.
	MinMemoryGB = 4

	// probeTimeout bounds one full probe.
	// CANCELLATION: Context enables timeout and cancellation
	probeTimeout = 10 * time.Second

	// reportTTL is how long a probe result is reused.
	reportTTL = 5 * time.Minute

	reportKey = "report"
)

// =============================================================================
// REPORT
// =============================================================================

// Report is the outcome of a compatibility probe.
type Report struct {
	// Supported is false only when the hard requirement failed.
	Supported bool `json:"supported"`
	// Warnings lists advisory findings and, when unsupported, the reason.
	Warnings []string `json:"warnings"`
	// GPU is the detected accelerator (CPU info when none).
	GPU *GpuInfo `json:"gpu,omitempty"`
	// MemoryGB is the device memory hint, 0 when unknown.
	MemoryGB uint32 `json:"memory_gb"`
	// CheckedAt is when the probe ran.
	CheckedAt time.Time `json:"checked_at"`
}

// =============================================================================
// PROBER
// =============================================================================

// RuntimeCheck verifies the inference runtime is usable.
type RuntimeCheck func(ctx context.Context) error

// ProberOptions configures a Prober.
type ProberOptions struct {
	// Runtime is the hard requirement. Nil means always available.
	Runtime RuntimeCheck
	// RuntimeName is used in diagnostics (e.g. "Ollama").
	RuntimeName string
	// Model, when set, enables the model fit advisory.
	Model string
	// GPU overrides accelerator detection. Defaults to DetectGPU.
	GPU func(ctx context.Context) *GpuInfo
	// ModelStore, when set with Model, enables the disk space advisory
	// for downloading the model there.
	ModelStore string
	// FreeDisk overrides the disk space reading. Defaults to FreeDiskGB.
	FreeDisk func(path string) (uint64, error)
	// Logger receives probe events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Prober runs compatibility checks and caches the result.
type Prober struct {
	opts  ProberOptions
	cache *cache.Cache
	log   *slog.Logger
}

// NewProber creates a Prober.
func NewProber(opts ProberOptions) *Prober {
	if opts.GPU == nil {
		opts.GPU = DetectGPU
	}
	if opts.FreeDisk == nil {
		opts.FreeDisk = FreeDiskGB
	}
	if opts.RuntimeName == "" {
		opts.RuntimeName = "inference runtime"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		opts:  opts,
		cache: cache.New(reportTTL, 2*reportTTL),
		log:   logger.With("component", "detect"),
	}
}

// Probe returns the cached report when fresh, otherwise runs every check.
func (p *Prober) Probe(ctx context.Context) Report {
	if v, ok := p.cache.Get(reportKey); ok {
		return v.(Report)
	}
	r := p.run(ctx)
	p.cache.Set(reportKey, r, cache.DefaultExpiration)
	return r
}

// Invalidate forces the next Probe to run fresh checks.
func (p *Prober) Invalidate() {
	p.cache.Delete(reportKey)
}

func (p *Prober) run(ctx context.Context) Report {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, probeTimeout)
		defer cancel()
	}

	r := Report{Supported: true, CheckedAt: time.Now()}

	// Hard requirement
	if p.opts.Runtime != nil {
		if err := guard("runtime", func() error { return p.opts.Runtime(ctx) }); err != nil {
			r.Supported = false
			r.Warnings = append(r.Warnings, fmt.Sprintf("%s unavailable: %v", p.opts.RuntimeName, err))
		}
	}

	// Advisory: acceleration
	if err := guard("gpu", func() error {
		r.GPU = p.opts.GPU(ctx)
		return nil
	}); err != nil {
		r.Warnings = append(r.Warnings, "GPU detection failed: "+err.Error())
	}
	if r.GPU != nil {
		r.MemoryGB = r.GPU.VramGB
	}
	if !r.GPU.Accelerated() {
		r.Warnings = append(r.Warnings, "No GPU acceleration detected; generation will run on the CPU and may be slow")
	}

	// Advisory: memory
	if r.MemoryGB > 0 && r.MemoryGB < MinMemoryGB {
		r.Warnings = append(r.Warnings, fmt.Sprintf("Low device memory (%dGB); at least %dGB is recommended", r.MemoryGB, MinMemoryGB))
	}
	if p.opts.Model != "" && r.MemoryGB > 0 && !WillModelFit(p.opts.Model, r.MemoryGB) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("Model %s needs about %.1fGB and may not fit in %dGB",
			p.opts.Model, EstimateModelGB(p.opts.Model), r.MemoryGB))
	}

	// Advisory: disk space for a model download
	if p.opts.Model != "" && p.opts.ModelStore != "" {
		if err := guard("disk", func() error {
			free, err := p.opts.FreeDisk(p.opts.ModelStore)
			if err != nil {
				p.log.Debug("DISK_CHECK_SKIPPED", "path", p.opts.ModelStore, "error", err)
				return nil
			}
			if need := EstimateModelGB(p.opts.Model); float64(free) < need {
				r.Warnings = append(r.Warnings, fmt.Sprintf("Only %dGB free in %s; downloading %s needs about %.1fGB",
					free, p.opts.ModelStore, p.opts.Model, need))
			}
			return nil
		}); err != nil {
			r.Warnings = append(r.Warnings, "Disk check failed: "+err.Error())
		}
	}

	p.log.Info("PROBE_COMPLETE",
		"supported", r.Supported,
		"gpu", gpuName(r.GPU),
		"memory_gb", r.MemoryGB,
		"warnings", len(r.Warnings))

	return r
}

// guard runs one check, converting a panic into an error.
func guard(name string, check func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s check panicked: %v", name, rec)
		}
	}()
	return check()
}

func gpuName(g *GpuInfo) string {
	if g == nil {
		return "none"
	}
	return g.Name
}
