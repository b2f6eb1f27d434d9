// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reclaim unloads the model when nobody is using it or when the
// device runs low on memory.
//
// Two checks run on independent tickers:
//
//   - Idle: the handle is held and the last interaction is older than the
//     threshold. The default threshold is 10 minutes, checked every minute.
//   - Memory: the device memory pressure ratio reaches the high-water mark
//     (default 0.90), checked every 15 seconds. Interaction is ignored.
//
// Releasing never cancels a running generation; the session controller
// closes the old handle once the generation finishes.
package reclaim
