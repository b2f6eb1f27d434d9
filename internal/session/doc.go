// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the generation lifecycle of a chat.
//
// A Controller holds the single pipeline handle of the process, runs one
// generation at a time and reports everything the user sees through a View.
//
// # Lifecycle
//
//	Idle --Submit--> Loading --acquired--> Generating --done--> Idle
//	Idle --Submit (handle held)--> Generating
//	Loading/Generating --Cancel--> Cancelling --stream ends--> Idle
//
// Submit is a no-op while a generation is running, and blank input is
// rejected with an advisory status. Every path out of a generation runs the
// same cleanup, including a recovered panic.
//
// Release drops the handle (idle or memory reclaim). A generation in flight
// keeps using the old handle; it is closed once that generation ends.
package session
