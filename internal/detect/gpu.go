// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// =============================================================================
// GPU TYPE DEFINITIONS
// =============================================================================

// GpuType represents the type of GPU detected on the system.
type GpuType int

const (
	// GpuTypeCPU indicates no dedicated GPU found, CPU-only mode.
	GpuTypeCPU GpuType = iota
	// GpuTypeNvidia indicates an NVIDIA GPU (CUDA-capable).
	GpuTypeNvidia
	// GpuTypeAmd indicates an AMD GPU (ROCm-capable).
	GpuTypeAmd
	// GpuTypeAppleSilicon indicates Apple Silicon with integrated GPU (Metal-capable).
	GpuTypeAppleSilicon
)

// String returns the string representation of the GPU type.
func (t GpuType) String() string {
	switch t {
	case GpuTypeNvidia:
		return "NVIDIA"
	case GpuTypeAmd:
		return "AMD"
	case GpuTypeAppleSilicon:
		return "Apple Silicon"
	case GpuTypeCPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// GpuInfo contains information about a detected GPU.
type GpuInfo struct {
	// Name of the GPU (e.g., "NVIDIA RTX 4090")
	Name string `json:"name"`
	// VramGB is the device memory in gigabytes (system RAM for CPU mode)
	VramGB uint32 `json:"vram_gb"`
	// Driver version if available
	Driver string `json:"driver,omitempty"`
	// Type is the type of GPU
	Type GpuType `json:"type"`
}

// String returns a formatted string representation of the GPU info.
func (g *GpuInfo) String() string {
	s := fmt.Sprintf("%s (%dGB VRAM)", g.Name, g.VramGB)
	if g.Driver != "" {
		s += fmt.Sprintf(" [Driver: %s]", g.Driver)
	}
	return s
}

// Accelerated reports whether inference can use a GPU.
func (g *GpuInfo) Accelerated() bool {
	return g != nil && g.Type != GpuTypeCPU
}

// =============================================================================
// DETECTION
// =============================================================================

// DetectGPU detects the first available accelerator, trying NVIDIA, AMD and
// Apple Silicon in that order. Returns CPU info when none is found.
func DetectGPU(ctx context.Context) *GpuInfo {
	if info := detectNvidia(ctx); info != nil {
		return info
	}
	if info := detectAmd(ctx); info != nil {
		return info
	}
	if info := detectAppleSilicon(ctx); info != nil {
		return info
	}
	return cpuInfo(ctx)
}

// runTool is swapped out by tests.
var runTool = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// getNvidiaSmiPaths returns possible paths for nvidia-smi based on OS.
func getNvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// nvidiaQuery runs nvidia-smi with the given query fields and returns the
// first GPU's CSV columns.
func nvidiaQuery(ctx context.Context, fields string) []string {
	var output []byte
	var err error
	for _, path := range getNvidiaSmiPaths() {
		output, err = runTool(ctx, path, "--query-gpu="+fields, "--format=csv,noheader,nounits")
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	if err != nil || len(output) == 0 {
		return nil
	}

	line := strings.TrimSpace(strings.Split(strings.TrimSpace(string(output)), "\n")[0])
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func detectNvidia(ctx context.Context) *GpuInfo {
	parts := nvidiaQuery(ctx, "name,memory.total,driver_version")
	if len(parts) < 3 {
		return nil
	}

	// Memory is in MiB
	vramMB, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil
	}

	return &GpuInfo{
		Name:   "NVIDIA " + parts[0],
		VramGB: uint32(vramMB/1024.0 + 0.5),
		Driver: parts[2],
		Type:   GpuTypeNvidia,
	}
}

var amdNumericRegex = regexp.MustCompile(`(\d+)\s*$`)

func detectAmd(ctx context.Context) *GpuInfo {
	if runtime.GOOS != "linux" {
		return nil
	}
	output, err := runTool(ctx, "rocm-smi", "--showproductname", "--showmeminfo", "vram")
	if err != nil {
		return nil
	}
	return parseRocmSmi(string(output))
}

func parseRocmSmi(stdout string) *GpuInfo {
	info := &GpuInfo{Name: "AMD GPU", VramGB: 8, Type: GpuTypeAmd}

	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "Card series:") {
			if _, name, ok := strings.Cut(line, "Card series:"); ok {
				info.Name = "AMD " + strings.TrimSpace(name)
			}
			continue
		}
		if strings.Contains(line, "Total Memory") || strings.Contains(line, "VRAM Total") {
			m := amdNumericRegex.FindStringSubmatch(strings.TrimSpace(line))
			if len(m) < 2 {
				continue
			}
			val, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				continue
			}
			switch {
			case val > 1_000_000_000: // bytes
				info.VramGB = uint32(val / 1_073_741_824)
			case val > 1_000_000: // MB
				info.VramGB = uint32(val / 1024)
			default:
				info.VramGB = uint32(val)
			}
		}
	}
	return info
}

func detectAppleSilicon(ctx context.Context) *GpuInfo {
	if runtime.GOOS != "darwin" {
		return nil
	}

	output, err := runTool(ctx, "system_profiler", "SPDisplaysDataType", "-json")
	if err != nil || !strings.Contains(string(output), "Apple") {
		return nil
	}

	name := "Apple Silicon"
	for _, chip := range []string{"Ultra", "Max", "Pro"} {
		if strings.Contains(string(output), chip) {
			name = "Apple Silicon " + chip
			break
		}
	}

	// Unified memory is shared with the GPU
	vramGB := uint32(8)
	if out, err := runTool(ctx, "sysctl", "-n", "hw.memsize"); err == nil {
		if b, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64); err == nil {
			vramGB = uint32(b / 1_073_741_824)
		}
	}

	return &GpuInfo{Name: name, VramGB: vramGB, Type: GpuTypeAppleSilicon}
}

// cpuInfo reports system RAM for CPU-only inference. VramGB is 0 when the
// platform does not expose it.
func cpuInfo(ctx context.Context) *GpuInfo {
	var gb uint32

	switch runtime.GOOS {
	case "darwin":
		if out, err := runTool(ctx, "sysctl", "-n", "hw.memsize"); err == nil {
			if b, err := strconv.ParseUint(strings.TrimSpace(string(out)), 10, 64); err == nil {
				gb = uint32(b / 1_073_741_824)
			}
		}
	case "linux":
		if data, err := os.ReadFile(meminfoPath); err == nil {
			if total, _, ok := parseMeminfo(string(data)); ok {
				gb = uint32(total / 1024 / 1024)
			}
		}
	}

	return &GpuInfo{Name: "CPU Only", VramGB: gb, Type: GpuTypeCPU}
}
