// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea chat view for tinychat.
//
// # Architecture
//
// The session controller drives the view through the session.View port.
// Binder implements that port by queueing one tea.Msg per call and
// forwarding the queue, in order, to the running program. The queue never
// blocks the caller, so the controller may be invoked from inside Update.
//
//	controller ──View──▶ Binder ──queue──▶ Program.Send ──▶ Model.Update
//	     ▲                                                        │
//	     └──────────── Submit / Cancel / Clear / Touch ───────────┘
//
// Submit blocks for a whole generation and therefore runs as a tea.Cmd.
//
// # Key Bindings
//
//   - Enter: submit
//   - Alt+Enter: newline in the message
//   - Esc: cancel the running generation
//   - Ctrl+L: clear the chat
//   - Tab: switch between message and max-tokens fields
//   - PgUp/PgDn: scroll the chat log
//   - Ctrl+C: quit
//
// # Degraded Modes
//
// A missing controller or a terminal too small to lay out the chat log,
// status line and inputs disables every control and shows a diagnostic.
// An unsupported environment (failed compatibility probe) disables
// submission and lists the probe warnings.
package chat
