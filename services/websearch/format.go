// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package websearch

import (
	"fmt"
	"strings"
)

// FormatResultsForModel renders a search response as plain text suitable for
// inclusion in a model conversation.
func FormatResultsForModel(resp Response) string {
	if len(resp.Results) == 0 {
		return "No web search results found."
	}

	var b strings.Builder
	b.WriteString("Web Search Results:\n\n")
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Title)
		fmt.Fprintf(&b, "   URL: %s\n", r.URL)
		fmt.Fprintf(&b, "   Summary: %s\n", r.Summary)
		fmt.Fprintf(&b, "   Relevance: %.2f\n\n", r.RelevanceScore)
	}
	if resp.Metadata.PHIRedacted {
		fmt.Fprintf(&b, "Note: %d sensitive item(s) were redacted from the search query for privacy.\n",
			resp.Metadata.RedactionCount)
	}
	return b.String()
}
