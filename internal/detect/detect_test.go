// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func fakeTools(t *testing.T, outputs map[string]string) {
	t.Helper()
	orig := runTool
	runTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		key := name + " " + strings.Join(args, " ")
		for prefix, out := range outputs {
			if strings.HasPrefix(key, prefix) {
				return []byte(out), nil
			}
		}
		return nil, errors.New("not found")
	}
	t.Cleanup(func() { runTool = orig })
}

func fakeMeminfo(t *testing.T, content string) {
	t.Helper()
	orig := meminfoPath
	path := filepath.Join(t.TempDir(), "meminfo")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	meminfoPath = path
	t.Cleanup(func() { meminfoPath = orig })
}

func gpu(info *GpuInfo) func(context.Context) *GpuInfo {
	return func(context.Context) *GpuInfo { return info }
}

// =============================================================================
// GPU TESTS
// =============================================================================

func TestGpuType_String(t *testing.T) {
	tests := []struct {
		gpuType GpuType
		want    string
	}{
		{GpuTypeCPU, "CPU"},
		{GpuTypeNvidia, "NVIDIA"},
		{GpuTypeAmd, "AMD"},
		{GpuTypeAppleSilicon, "Apple Silicon"},
		{GpuType(99), "Unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.gpuType.String())
	}
}

func TestGpuInfo_String(t *testing.T) {
	info := &GpuInfo{Name: "NVIDIA RTX 4090", VramGB: 24, Driver: "535.154.05", Type: GpuTypeNvidia}
	assert.Equal(t, "NVIDIA RTX 4090 (24GB VRAM) [Driver: 535.154.05]", info.String())

	info.Driver = ""
	assert.Equal(t, "NVIDIA RTX 4090 (24GB VRAM)", info.String())
}

func TestGpuInfo_Accelerated(t *testing.T) {
	var none *GpuInfo
	assert.False(t, none.Accelerated())
	assert.False(t, (&GpuInfo{Type: GpuTypeCPU}).Accelerated())
	assert.True(t, (&GpuInfo{Type: GpuTypeAmd}).Accelerated())
}

func TestDetectNvidia(t *testing.T) {
	fakeTools(t, map[string]string{
		"nvidia-smi --query-gpu=name,memory.total": "GeForce RTX 3060, 12288, 550.54\n",
	})

	info := detectNvidia(context.Background())
	require.NotNil(t, info)
	assert.Equal(t, "NVIDIA GeForce RTX 3060", info.Name)
	assert.Equal(t, uint32(12), info.VramGB)
	assert.Equal(t, "550.54", info.Driver)
	assert.Equal(t, GpuTypeNvidia, info.Type)
}

func TestDetectNvidia_Missing(t *testing.T) {
	fakeTools(t, nil)
	assert.Nil(t, detectNvidia(context.Background()))
}

func TestParseRocmSmi(t *testing.T) {
	out := `
GPU[0]		: Card series:		Radeon RX 7900 XTX
GPU[0]		: VRAM Total Memory (B): 25753026560
`
	info := parseRocmSmi(out)
	assert.Equal(t, "AMD Radeon RX 7900 XTX", info.Name)
	assert.Equal(t, uint32(23), info.VramGB)
}

// =============================================================================
// MEMORY TESTS
// =============================================================================

func TestParseMeminfo(t *testing.T) {
	total, avail, ok := parseMeminfo("MemTotal:       16000000 kB\nMemFree:         1000000 kB\nMemAvailable:    4000000 kB\n")
	assert.True(t, ok)
	assert.Equal(t, uint64(16000000), total)
	assert.Equal(t, uint64(4000000), avail)

	// Old kernels without MemAvailable
	_, avail, ok = parseMeminfo("MemTotal: 1000 kB\nMemFree: 250 kB\n")
	assert.True(t, ok)
	assert.Equal(t, uint64(250), avail)

	_, _, ok = parseMeminfo("garbage")
	assert.False(t, ok)
}

func TestMemoryPressure_PrefersVRAM(t *testing.T) {
	fakeTools(t, map[string]string{
		"nvidia-smi --query-gpu=memory.used,memory.total": "7000, 8000\n",
	})
	fakeMeminfo(t, "MemTotal: 100 kB\nMemAvailable: 90 kB\n")

	ratio, ok := MemoryPressure(context.Background())
	assert.True(t, ok)
	assert.InDelta(t, 0.875, ratio, 1e-9)
}

func TestMemoryPressure_SystemRAM(t *testing.T) {
	fakeTools(t, nil)
	fakeMeminfo(t, "MemTotal: 1000 kB\nMemAvailable: 50 kB\n")

	ratio, ok := MemoryPressure(context.Background())
	assert.True(t, ok)
	assert.InDelta(t, 0.95, ratio, 1e-9)
}

// =============================================================================
// MODEL FIT TESTS
// =============================================================================

func TestEstimateModelGB(t *testing.T) {
	tests := []struct {
		name string
		want float64
	}{
		{"tinyllama", 0},
		{"tinyllama:1.1b", 1.1*0.56 + 1.5},
		{"qwen2.5:0.5b", 0.5*0.56 + 1.5},
		{"llama3:70B", 70*0.56 + 1.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, EstimateModelGB(tc.name), 1e-9)
		})
	}
}

func TestWillModelFit(t *testing.T) {
	assert.True(t, WillModelFit("tinyllama", 1))
	assert.True(t, WillModelFit("tinyllama:1.1b", 4))
	assert.False(t, WillModelFit("llama3:70b", 24))
}

// =============================================================================
// PROBER TESTS
// =============================================================================

func TestProbe_Supported(t *testing.T) {
	p := NewProber(ProberOptions{
		Runtime: func(context.Context) error { return nil },
		GPU:     gpu(&GpuInfo{Name: "NVIDIA X", VramGB: 8, Type: GpuTypeNvidia}),
	})

	r := p.Probe(context.Background())
	assert.True(t, r.Supported)
	assert.Empty(t, r.Warnings)
	assert.Equal(t, uint32(8), r.MemoryGB)
	assert.False(t, r.CheckedAt.IsZero())
}

func TestProbe_RuntimeMissing(t *testing.T) {
	p := NewProber(ProberOptions{
		Runtime:     func(context.Context) error { return errors.New("connection refused") },
		RuntimeName: "Ollama",
		GPU:         gpu(&GpuInfo{Name: "NVIDIA X", VramGB: 8, Type: GpuTypeNvidia}),
	})

	r := p.Probe(context.Background())
	assert.False(t, r.Supported)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "Ollama unavailable")
}

func TestProbe_AdvisoryWarningsDoNotBlock(t *testing.T) {
	p := NewProber(ProberOptions{
		Model: "llama3:8b",
		GPU:   gpu(&GpuInfo{Name: "CPU Only", VramGB: 2, Type: GpuTypeCPU}),
	})

	r := p.Probe(context.Background())
	assert.True(t, r.Supported)
	assert.Len(t, r.Warnings, 3)
}

func TestProbe_PanickingCheckBecomesWarning(t *testing.T) {
	p := NewProber(ProberOptions{
		GPU: func(context.Context) *GpuInfo { panic("driver exploded") },
	})

	var r Report
	assert.NotPanics(t, func() { r = p.Probe(context.Background()) })
	assert.True(t, r.Supported)
	assert.Contains(t, strings.Join(r.Warnings, "\n"), "driver exploded")
}

func TestProbe_Cached(t *testing.T) {
	var calls atomic.Int32
	p := NewProber(ProberOptions{
		Runtime: func(context.Context) error { calls.Add(1); return nil },
		GPU:     gpu(&GpuInfo{Type: GpuTypeCPU}),
	})

	p.Probe(context.Background())
	p.Probe(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	p.Invalidate()
	p.Probe(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestProbe_DiskAdvisory(t *testing.T) {
	fast := gpu(&GpuInfo{Name: "NVIDIA X", VramGB: 24, Type: GpuTypeNvidia})

	low := NewProber(ProberOptions{
		Model:      "llama3:8b",
		ModelStore: "/models",
		GPU:        fast,
		FreeDisk:   func(string) (uint64, error) { return 1, nil },
	})
	r := low.Probe(context.Background())
	assert.True(t, r.Supported)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "Only 1GB free in /models")

	plenty := NewProber(ProberOptions{
		Model:      "llama3:8b",
		ModelStore: "/models",
		GPU:        fast,
		FreeDisk:   func(string) (uint64, error) { return 500, nil },
	})
	assert.Empty(t, plenty.Probe(context.Background()).Warnings)

	unreadable := NewProber(ProberOptions{
		Model:      "llama3:8b",
		ModelStore: "/models",
		GPU:        fast,
		FreeDisk:   func(string) (uint64, error) { return 0, errors.New("no statfs") },
	})
	assert.Empty(t, unreadable.Probe(context.Background()).Warnings)
}

func TestFreeDiskGB_MissingPathUsesParent(t *testing.T) {
	dir := t.TempDir()
	_, err := FreeDiskGB(filepath.Join(dir, "not", "created"))
	assert.NoError(t, err)
	assert.Equal(t, dir, existingParent(filepath.Join(dir, "not", "created")))
}
