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
	"fmt"
	"strings"
)

// FormatResultsForModel renders a search response as plain text for
// inclusion in a model prompt.
func FormatResultsForModel(resp Response) string {
	if len(resp.Results) == 0 {
		return "No internal documents found matching the query."
	}

	var b strings.Builder
	b.WriteString("Internal Document Search Results:\n\n")
	for i, r := range resp.Results {
		fmt.Fprintf(&b, "%d. Document: %s\n", i+1, r.DocID)
		fmt.Fprintf(&b, "   Relevance Score: %d\n", r.Score)
		fmt.Fprintf(&b, "   Excerpt: %s\n", r.Snippet)
		if title, ok := r.Metadata["title"]; ok {
			fmt.Fprintf(&b, "   Title: %s\n", title)
		}
		if date, ok := r.Metadata["date"]; ok {
			fmt.Fprintf(&b, "   Date: %s\n", date)
		}
		if category, ok := r.Metadata["category"]; ok {
			fmt.Fprintf(&b, "   Category: %s\n", category)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\n📁 Total results: %d (Internal search - PHI safe)\n", resp.TotalResults)
	return b.String()
}
