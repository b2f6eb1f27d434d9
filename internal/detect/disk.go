// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"os"
	"path/filepath"
)

// FreeDiskGB returns the space available to this user on the filesystem
// holding path, in whole GB. A path that does not exist yet is measured at
// its nearest existing parent.
func FreeDiskGB(path string) (uint64, error) {
	path = existingParent(path)
	free, err := freeDiskBytes(path)
	if err != nil {
		return 0, err
	}
	return free / (1024 * 1024 * 1024), nil
}

func existingParent(path string) string {
	path = filepath.Clean(path)
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
