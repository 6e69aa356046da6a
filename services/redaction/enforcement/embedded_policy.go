// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package enforcement embeds the default PHI pattern pack so the gateway
// redacts with a known-good policy even when no external pack is supplied.
package enforcement

import (
	_ "embed"
)

//go:embed phi_patterns.yaml
var EmbeddedPolicyYAML []byte
