// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the tinychat command line.
//
// Commands:
//
//	tinychat                  chat (TUI on a terminal, line mode otherwise)
//	tinychat probe            run the compatibility probe
//	tinychat config show      print the merged configuration
//	tinychat config path      print the config file location
//	tinychat config schema    print the JSON schema of the config file
//	tinychat config init      write a default config file
//	tinychat config get KEY   print one value
//	tinychat config set KEY V change one value in the config file
//
// Global flags:
//
//	--config PATH   config file (default: first of config.toml, config.jsonc,
//	                config.json, config.yaml in ~/.tinychat)
//	-v, --verbose   debug logging
package cli
