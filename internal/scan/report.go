package scan

import (
	"time"

	"github.com/1sec-project/authburst/internal/core"
)

// Report summarizes one run.
type Report struct {
	RunID     string               `json:"run_id"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration_ns"`
	DryRun    bool                 `json:"dry_run"`
	TTL       time.Duration        `json:"-"`
	Rules     []core.DetectionRule `json:"-"`

	Sources []SourceReport `json:"sources"`

	// Findings holds every finding the rule engine produced, in source
	// then evaluation order. New is the subset that passed the cooldown.
	Findings   []core.Finding `json:"findings"`
	New        []core.Finding `json:"new_findings"`
	Suppressed int            `json:"suppressed"`

	// Normal lists the groups that fired no rule.
	Normal []GroupSummary `json:"normal_groups,omitempty"`

	StateEntries int    `json:"state_entries"`
	StateSaved   bool   `json:"state_saved"`
	StateError   string `json:"state_error,omitempty"`
	Archive      string `json:"archive,omitempty"`
	Published    int    `json:"published"`
}

// SourceReport aggregates the files of one configured source.
type SourceReport struct {
	Tag         string       `json:"tag"`
	Type        string       `json:"type"`
	Files       []FileReport `json:"files"`
	Total       int          `json:"total_events"`
	Errors      int          `json:"error_events"`
	Malformed   int          `json:"malformed"`
	Failed      int          `json:"failed_files"`
	Groups      int          `json:"groups"`
	NewFindings int          `json:"new_findings"`
}

// FileReport is the parse outcome of one file.
type FileReport struct {
	Path      string `json:"path"`
	Total     int    `json:"total_events"`
	Errors    int    `json:"error_events"`
	Malformed int    `json:"malformed"`
	Err       string `json:"error,omitempty"`
}

// GroupSummary describes an (identity, kind) group.
type GroupSummary struct {
	Source   string `json:"source"`
	Identity string `json:"identity"`
	Kind     string `json:"kind"`
	Events   int    `json:"events"`
}

// TotalEvents sums records read across sources.
func (r *Report) TotalEvents() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Total
	}
	return n
}

// TotalErrors sums error events across sources.
func (r *Report) TotalErrors() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Errors
	}
	return n
}

// FailedFiles sums files that could not be processed.
func (r *Report) FailedFiles() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Failed
	}
	return n
}
