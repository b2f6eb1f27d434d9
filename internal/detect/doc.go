// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect decides whether this machine can run a local chat model.
//
// A Prober runs one hard check (is the inference runtime available) and a
// set of advisory checks (GPU acceleration, device memory, model fit). Only
// the hard check can mark the environment unsupported; advisory checks
// append warnings. Every check is isolated so a failing or panicking probe
// downgrades to a warning instead of aborting the report.
//
// # Key Types
//
//   - Prober: runs and caches compatibility probes
//   - Report: the verdict plus warnings and detected hardware
//   - GpuInfo: information about the detected accelerator
//
// # Usage
//
//	p := detect.NewProber(detect.ProberOptions{Runtime: client.CheckRunning, Model: "tinyllama"})
//	report := p.Probe(ctx)
//	if !report.Supported {
//		// disable submission, show report.Warnings
//	}
//
// MemoryPressure reports the used fraction of accelerator or system memory
// for the idle reclaimer.
package detect
