// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux

package detect

import "golang.org/x/sys/unix"

// sysinfoPressure reads RAM usage from sysinfo(2) for kernels without a
// readable /proc.
func sysinfoPressure() (float64, bool) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, false
	}
	total := float64(info.Totalram) * float64(info.Unit)
	if total <= 0 {
		return 0, false
	}
	free := float64(info.Freeram+info.Bufferram) * float64(info.Unit)
	return clampRatio(1 - free/total), true
}
