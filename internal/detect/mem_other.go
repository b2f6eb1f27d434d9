// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux

package detect

func sysinfoPressure() (float64, bool) {
	return 0, false
}
