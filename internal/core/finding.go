package core

import (
	"encoding/json"
	"sort"
	"time"
)

// Finding is one fired rule for one (identity, event kind) group.
type Finding struct {
	ID       string        `json:"id,omitempty"`
	Source   string        `json:"source"`
	Rule     string        `json:"rule"`
	Severity Severity      `json:"severity"`
	Identity string        `json:"identity"`
	Kind     string        `json:"kind"`
	Count    int           `json:"count"`
	Window   time.Duration `json:"-"`
	LastSeen time.Time     `json:"last_seen"`
}

// DedupKey identifies "the same alert" across runs. Severity, count,
// source and timestamps are not part of it. The "rule|identity|kind"
// layout must match existing state files.
func (f Finding) DedupKey() string {
	return f.Rule + "|" + f.Identity + "|" + f.Kind
}

// WindowMinutes returns the rule window in whole minutes.
func (f Finding) WindowMinutes() int64 {
	return int64(f.Window / time.Minute)
}

// MarshalJSON adds window_minutes next to the regular fields.
func (f Finding) MarshalJSON() ([]byte, error) {
	type plain Finding
	return json.Marshal(struct {
		plain
		WindowMinutes int64 `json:"window_minutes"`
	}{plain(f), f.WindowMinutes()})
}

// UnmarshalJSON restores Window from window_minutes.
func (f *Finding) UnmarshalJSON(data []byte) error {
	type plain Finding
	var aux struct {
		plain
		WindowMinutes int64 `json:"window_minutes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*f = Finding(aux.plain)
	f.Window = time.Duration(aux.WindowMinutes) * time.Minute
	return nil
}

// SortFindings orders findings by severity (highest first), then most
// recent, then dedup key. Used for presentation only.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity != b.Severity {
			return a.Severity > b.Severity
		}
		if !a.LastSeen.Equal(b.LastSeen) {
			return a.LastSeen.After(b.LastSeen)
		}
		return a.DedupKey() < b.DedupKey()
	})
}
