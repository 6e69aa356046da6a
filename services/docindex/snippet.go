// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package docindex

import (
	"strings"
	"unicode/utf8"
)

// snippetContext is how many bytes of context precede the first matched
// term. The trailing window is snippetContext plus 20 measured from the
// match start, so long terms read with their right-hand context intact.
const snippetContext = 50

// extractSnippet windows the content around the earliest occurrence of any
// query term and marks truncation on either side with "...". When no term
// occurs in the content, the window collapses to the document tail.
func extractSnippet(content string, queryWords []string) string {
	lower := strings.ToLower(content)

	firstPos := len(content)
	for _, word := range queryWords {
		if pos := strings.Index(lower, word); pos != -1 && pos < firstPos {
			firstPos = pos
		}
	}

	start := firstPos - snippetContext
	if start < 0 {
		start = 0
	}
	end := firstPos + snippetContext + 20
	if end > len(content) {
		end = len(content)
	}
	// Never split a multi-byte rune at a window edge.
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet = snippet + "..."
	}
	return snippet
}
