// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// paramCountRegex matches a parameter count such as "1.1b" or ":7b".
var paramCountRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)b\b`)

// EstimateModelGB estimates the memory a model needs from the parameter
// count in its name, assuming Q4_K_M quantization (~0.56 bytes per
// parameter) plus 1.5GB for KV cache and runtime context. Returns 0 when
// the name carries no parameter count.
func EstimateModelGB(modelName string) float64 {
	m := paramCountRegex.FindStringSubmatch(strings.ToLower(modelName))
	if len(m) < 2 {
		return 0
	}
	billions, err := strconv.ParseFloat(m[1], 64)
	if err != nil || billions <= 0 {
		return 0
	}
	return billions*0.56 + 1.5
}

// WillModelFit reports whether a model likely fits in availableGB with a 20%
// safety margin. Unknown sizes are assumed to fit.
func WillModelFit(modelName string, availableGB uint32) bool {
	need := EstimateModelGB(modelName)
	if need == 0 {
		return true
	}
	return need*1.2 <= float64(availableGB)
}
