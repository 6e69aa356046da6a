// Copyright (C) 2025 Cascadia Health (dev@cascadiahealth.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package redaction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/CascadiaHealth/CascadiaGate/services/redaction/enforcement"
	"gopkg.in/yaml.v3"
)

// honorificNamePattern catches names introduced by a title. It runs
// case-sensitively after the structured passes: the capitalization shape is
// the whole signal, and the pass must only ever see already masked text.
const honorificNamePattern = `\b(?:Mr|Mrs|Ms|Dr|Prof)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`

// Engine masks protected health information in free text before it leaves
// the trust boundary. One Engine is safe for concurrent use: all state is
// written during construction and only read afterwards.
type Engine struct {
	policy *PolicyFile
	nameRe *regexp.Regexp
}

// NewEngine builds an Engine from the embedded default pattern pack.
func NewEngine() (*Engine, error) {
	return NewEngineFromYAML(enforcement.EmbeddedPolicyYAML)
}

// NewEngineFromYAML builds an Engine from a caller-supplied pattern pack.
// The pack must parse, carry a supported major version, and compile cleanly.
func NewEngineFromYAML(raw []byte) (*Engine, error) {
	var policy PolicyFile
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return nil, fmt.Errorf("failed to parse the PHI policy pack: %w", err)
	}
	if err := policy.CheckVersion(); err != nil {
		return nil, fmt.Errorf("failed to load the PHI policy pack: %w", err)
	}
	if len(policy.Classifications) == 0 {
		return nil, fmt.Errorf("the PHI policy pack declares no classifications")
	}
	if err := policy.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile the PHI policy pack: %w", err)
	}
	policy.SortByPriority()
	return &Engine{
		policy: &policy,
		nameRe: regexp.MustCompile(honorificNamePattern),
	}, nil
}

// PolicyVersion reports the loaded pattern pack version.
func (e *Engine) PolicyVersion() string {
	return e.policy.Version
}

// Redact masks every PHI occurrence in text and returns the masked text with
// one Match per detected occurrence. It never fails: unmatched text passes
// through unchanged, and an empty input yields an empty result.
//
// Each classifier scans a snapshot of the working text, then replaces every
// occurrence of each matched literal. A literal consumed by an earlier
// classifier is not re-scanned by later ones, which is what keeps the zip
// pass from chewing on the digits of a masked SSN. The honorific name pass
// runs last so it only ever sees structured PHI in masked form.
func (e *Engine) Redact(text string) Result {
	if text == "" {
		return Result{}
	}
	working := text
	var matches []Match
	for ci := range e.policy.Classifications {
		classification := &e.policy.Classifications[ci]
		token := classification.Kind.Token()
		for _, re := range classification.CompiledPatterns {
			snapshot := working
			for _, loc := range re.FindAllStringIndex(snapshot, -1) {
				original := snapshot[loc[0]:loc[1]]
				matches = append(matches, Match{
					Kind:     classification.Kind,
					Original: original,
					Start:    loc[0],
					End:      loc[1],
				})
				working = strings.ReplaceAll(working, original, token)
			}
		}
	}
	snapshot := working
	for _, idx := range e.nameRe.FindAllStringSubmatchIndex(snapshot, -1) {
		if len(idx) < 4 || idx[2] < 0 {
			continue
		}
		// Replace only the captured name so the honorific survives:
		// "Dr. Smith" becomes "Dr. [REDACTED_NAME]".
		name := snapshot[idx[2]:idx[3]]
		matches = append(matches, Match{
			Kind:     KindName,
			Original: name,
			Start:    idx[2],
			End:      idx[3],
		})
		working = strings.ReplaceAll(working, name, KindName.Token())
	}
	return Result{Text: working, Matches: matches}
}

// ScanContent walks content line by line and reports which patterns fire
// where. Findings carry replacement tokens as previews, never the matched
// text, so they are safe to persist in audit output.
func (e *Engine) ScanContent(content string) []Finding {
	var findings []Finding
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for ci := range e.policy.Classifications {
			classification := &e.policy.Classifications[ci]
			for pi, re := range classification.CompiledPatterns {
				if !re.MatchString(line) {
					continue
				}
				pattern := classification.Patterns[pi]
				findings = append(findings, Finding{
					LineNumber:  i + 1,
					Kind:        classification.Kind,
					PatternId:   pattern.Id,
					Description: pattern.Description,
					Confidence:  pattern.Confidence,
					Preview:     classification.Kind.Token(),
				})
			}
		}
	}
	return findings
}
