// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// meminfoPath is swapped out by tests.
var meminfoPath = "/proc/meminfo"

// MemoryPressure returns the used fraction (0..1) of the memory the model
// lives in: GPU VRAM when nvidia-smi answers, system RAM otherwise.
// ok is false when the platform exposes neither.
func MemoryPressure(ctx context.Context) (ratio float64, ok bool) {
	if parts := nvidiaQuery(ctx, "memory.used,memory.total"); len(parts) >= 2 {
		used, err1 := strconv.ParseFloat(parts[0], 64)
		total, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && total > 0 {
			return clampRatio(used / total), true
		}
	}

	if data, err := os.ReadFile(meminfoPath); err == nil {
		if total, avail, found := parseMeminfo(string(data)); found && total > 0 {
			return clampRatio(1 - float64(avail)/float64(total)), true
		}
	}

	return sysinfoPressure()
}

// parseMeminfo extracts MemTotal and MemAvailable (in kB) from
// /proc/meminfo content. Falls back to MemFree when MemAvailable is absent.
func parseMeminfo(data string) (totalKB, availKB uint64, ok bool) {
	var free uint64
	var haveAvail bool

	for _, line := range strings.Split(data, "\n") {
		key, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		switch key {
		case "MemTotal":
			totalKB = v
		case "MemAvailable":
			availKB = v
			haveAvail = true
		case "MemFree":
			free = v
		}
	}

	if !haveAvail {
		availKB = free
	}
	return totalKB, availKB, totalKB > 0
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
