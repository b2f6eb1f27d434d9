// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by tinychat packages.
//
//   - AtomicWriteFile: crash-safe file writing with fsync
//   - TruncateWidth, TailWidth: display-width aware truncation
//   - SingleLine: whitespace collapsing for one-line status text
package util
