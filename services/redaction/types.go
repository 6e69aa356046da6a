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
	"sort"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Kind identifies a category of protected health information.
type Kind string

const (
	KindSSN     Kind = "ssn"
	KindPhone   Kind = "phone"
	KindEmail   Kind = "email"
	KindMRN     Kind = "mrn"
	KindDOB     Kind = "dob"
	KindAddress Kind = "address"
	KindZip     Kind = "zip"
	KindName    Kind = "name"
)

// Token returns the replacement placeholder for this kind, e.g. [REDACTED_SSN].
func (k Kind) Token() string {
	return "[REDACTED_" + strings.ToUpper(string(k)) + "]"
}

type ConfidenceLevel string

const (
	Low    ConfidenceLevel = "low"
	Medium ConfidenceLevel = "medium"
	High   ConfidenceLevel = "high"
)

func (c *ConfidenceLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := ConfidenceLevel(s)
	switch incoming {
	case High, Medium, Low:
		*c = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Confidence: %q", incoming)
	}
}

// PolicyFile is the on-disk (embedded) shape of the PHI pattern pack.
type PolicyFile struct {
	Version         string           `yaml:"version"`
	Classifications []Classification `yaml:"classifications"`
}

// Classification groups the patterns for one PHI kind. Higher priority
// classifications run earlier in a redaction pass.
type Classification struct {
	Kind             Kind             `yaml:"kind"`
	Description      string           `yaml:"description"`
	Priority         int              `yaml:"priority"`
	Patterns         []Pattern        `yaml:"patterns"`
	CompiledPatterns []*regexp.Regexp `yaml:"-"`
}

type Pattern struct {
	Id              string          `yaml:"id"`
	Description     string          `yaml:"description"`
	Regex           string          `yaml:"regex"`
	Confidence      ConfidenceLevel `yaml:"confidence"`
	compiledPattern *regexp.Regexp  `yaml:"-"`
}

// supportedPolicyMajor is the policy pack major version this engine understands.
const supportedPolicyMajor = "v1"

// CheckVersion rejects packs from a newer major than this build supports.
func (p *PolicyFile) CheckVersion() error {
	if !semver.IsValid(p.Version) {
		return fmt.Errorf("policy pack version %q is not a valid semver string", p.Version)
	}
	if semver.Major(p.Version) != supportedPolicyMajor {
		return fmt.Errorf("policy pack major version %s is not supported (want %s)",
			semver.Major(p.Version), supportedPolicyMajor)
	}
	return nil
}

// CompileRegexes compiles every pattern once. All structured PHI patterns are
// matched case-insensitively.
func (p *PolicyFile) CompileRegexes() error {
	for i := range p.Classifications {
		for j := range p.Classifications[i].Patterns {
			pattern := &p.Classifications[i].Patterns[j]
			re, err := regexp.Compile("(?i)" + pattern.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
			}
			p.Classifications[i].CompiledPatterns = append(p.Classifications[i].
				CompiledPatterns, re)
			pattern.compiledPattern = re
		}
	}
	return nil
}

// SortByPriority orders classifications from highest to lowest priority.
// Replacement order is load-bearing: a ZIP pattern must never see the five
// digit prefix of an SSN that an earlier pass already masked.
func (p *PolicyFile) SortByPriority() {
	sort.Slice(p.Classifications, func(i, j int) bool {
		return p.Classifications[i].Priority > p.Classifications[j].Priority
	})
}

// Match records one detected PHI occurrence during a redaction pass. Matches
// are transient: they are returned to the caller for counting and typing but
// are never persisted, and Original is excluded from any JSON encoding.
//
// Start/End index the working text as it stood when the owning classifier
// ran. Earlier replacement passes shift offsets, so positions are advisory
// rather than exact coordinates into either the input or the output.
type Match struct {
	Kind     Kind   `json:"kind"`
	Original string `json:"-"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// Result is the outcome of one redaction pass.
type Result struct {
	Text    string
	Matches []Match
}

// Redacted reports whether the pass masked anything.
func (r Result) Redacted() bool {
	return len(r.Matches) > 0
}

// Kinds returns the matched kinds in detection order, suitable for count-only
// logging. Duplicates are preserved so callers can tally per-kind totals.
func (r Result) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.Matches))
	for _, m := range r.Matches {
		kinds = append(kinds, m.Kind)
	}
	return kinds
}

// Finding is a line-oriented scan hit used by the ingestion audit path.
// Preview carries the replacement token, never the matched content.
type Finding struct {
	LineNumber  int             `json:"line_number"`
	Kind        Kind            `json:"kind"`
	PatternId   string          `json:"pattern_id"`
	Description string          `json:"pattern_description"`
	Confidence  ConfidenceLevel `json:"confidence"`
	Preview     string          `json:"preview"`
}
