// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/CascadiaHealth/CascadiaGate/pkg/ux"
	"github.com/CascadiaHealth/CascadiaGate/services/redaction"
)

// runRedact redacts PHI from the given files, or from stdin when no files
// are named. Originals are never printed or logged; the diff view shows
// removed lines only in the terminal, by explicit operator request.
func runRedact(cmd *cobra.Command, args []string) error {
	engine, err := redaction.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to load the redaction policy: %w", err)
	}

	if len(args) == 0 {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		result := engine.Redact(string(raw))
		if redactDiff {
			fmt.Print(renderDiff("stdin", string(raw), result.Text))
		} else {
			fmt.Print(result.Text)
		}
		return nil
	}

	processed := 0
	for _, path := range args {
		raw, err := os.ReadFile(path)
		if err != nil {
			ux.FileStatus(path, ux.IconError, "unreadable")
			continue
		}

		result := engine.Redact(string(raw))
		if !result.Redacted() {
			ux.FileStatus(path, ux.IconSuccess, "clean")
			processed++
			continue
		}

		kinds := make([]string, 0, len(result.Kinds()))
		for _, kind := range result.Kinds() {
			kinds = append(kinds, string(kind))
		}
		ux.FileStatus(path, ux.IconWarning,
			fmt.Sprintf("%d redactions: %s", len(result.Matches), strings.Join(kinds, ", ")))

		switch {
		case redactDiff:
			fmt.Print(renderDiff(path, string(raw), result.Text))
		case redactWrite:
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}
			if err := os.WriteFile(path, []byte(result.Text), info.Mode().Perm()); err != nil {
				return fmt.Errorf("failed to rewrite %s: %w", path, err)
			}
		default:
			fmt.Print(result.Text)
		}
		processed++
	}

	ux.Summary(processed, len(args)-processed, len(args))
	return nil
}

// renderDiff produces a line diff between the original and redacted text.
func renderDiff(name, before, after string) string {
	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- %s\n+++ %s (redacted)\n", name, name))
	for _, d := range diffs {
		prefix, style := " ", ux.Styles.Muted
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix, style = "-", ux.Styles.Error
		case diffmatchpatch.DiffInsert:
			prefix, style = "+", ux.Styles.Success
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			text := prefix + line
			if ux.Plain() {
				b.WriteString(text + "\n")
			} else {
				b.WriteString(style.Render(text) + "\n")
			}
		}
	}
	return b.String()
}
