package core

import (
	"fmt"
	"time"
)

// DetectionRule fires when more than Threshold events of one group fall
// inside Window, measured back from the group's most recent event.
type DetectionRule struct {
	Name      string
	Threshold int
	Window    time.Duration
	Severity  Severity
}

// ValidationError reports an invalid configuration or rule field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks a single rule.
func (r DetectionRule) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "rule name is required"}
	}
	if r.Threshold < 0 {
		return &ValidationError{Field: r.Name + ".threshold", Message: "threshold must be >= 0"}
	}
	if r.Window <= 0 {
		return &ValidationError{Field: r.Name + ".window", Message: "window must be positive"}
	}
	return nil
}

// ValidateRules checks every rule and rejects duplicate names.
func ValidateRules(rules []DetectionRule) []error {
	var errs []error
	names := make(map[string]bool, len(rules))
	for i, r := range rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		if names[r.Name] {
			errs = append(errs, &ValidationError{Field: r.Name, Message: "duplicate rule name"})
		}
		names[r.Name] = true
	}
	return errs
}

// Evaluate runs every rule against every group and returns the findings in
// rule order, then group key order. Each group's window is anchored on its
// own latest timestamp, never on the wall clock, so historical bursts are
// still found. Empty groups are skipped.
func Evaluate(source string, groups Groups, rules []DetectionRule) []Finding {
	var findings []Finding
	keys := groups.Keys()

	for _, rule := range rules {
		for _, key := range keys {
			timestamps := groups[key]
			if len(timestamps) == 0 {
				continue
			}

			latest := timestamps[0]
			for _, ts := range timestamps[1:] {
				if ts.After(latest) {
					latest = ts
				}
			}
			start := latest.Add(-rule.Window)

			count := 0
			for _, ts := range timestamps {
				if !ts.Before(start) {
					count++
				}
			}

			if count > rule.Threshold {
				findings = append(findings, Finding{
					Source:   source,
					Rule:     rule.Name,
					Severity: rule.Severity,
					Identity: key.Identity,
					Kind:     key.Kind,
					Count:    count,
					Window:   rule.Window,
					LastSeen: latest,
				})
			}
		}
	}

	return findings
}
