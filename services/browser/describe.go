// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package browser

import (
	"fmt"
	"strings"
)

// describeActions renders a numbered, human-readable plan summary. Text
// values typed into fields are never echoed: descriptions exist so a human
// can approve a plan, not so credentials can leak into the conversation.
func describeActions(actions []Action) string {
	lines := make([]string, 0, len(actions))
	for i, action := range actions {
		actionType := action.Type
		if actionType == "" {
			actionType = "unknown"
		}
		target := action.Target
		if target == "" {
			target = "element"
		}

		var desc string
		switch action.Type {
		case "navigate":
			url := action.URL
			if url == "" {
				url = "URL"
			}
			desc = "Navigate to " + url
		case "click":
			desc = "Click on " + target
		case "type":
			desc = "Enter text in " + target
		case "screenshot":
			desc = "Take screenshot"
		case "wait":
			seconds := action.Seconds
			if seconds == 0 {
				seconds = 1
			}
			desc = fmt.Sprintf("Wait for %v seconds", seconds)
		case "login":
			site := action.Site
			if site == "" {
				site = "website"
			}
			desc = "Log into " + site
		case "download":
			file := action.File
			if file == "" {
				file = "file"
			}
			desc = "Download " + file
		default:
			desc = fmt.Sprintf("Perform %s on %s", actionType, target)
		}

		lines = append(lines, fmt.Sprintf("%d. %s", i+1, desc))
	}
	return strings.Join(lines, "\n")
}
