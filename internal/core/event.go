package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Severity represents the severity level attached to a detection rule and
// carried by its findings. It never influences suppression.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a case-insensitive severity name.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return SeverityLow, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "HIGH":
		return SeverityHigh, nil
	default:
		return SeverityLow, fmt.Errorf("unknown severity %q", s)
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Severity) MarshalYAML() (interface{}, error) {
	return strings.ToLower(s.String()), nil
}

func (s *Severity) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}
	parsed, err := ParseSeverity(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// NormalizedEvent is the shape every parser reduces its records to.
// Identity and Kind are exact-match keys; nothing here rewrites them.
type NormalizedEvent struct {
	Identity  string    `json:"identity"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// GroupKey identifies one (identity, event kind) timestamp group.
type GroupKey struct {
	Identity string
	Kind     string
}

// Groups maps each (identity, event kind) pair to the timestamps observed
// for it. Timestamps need not be ordered.
type Groups map[GroupKey][]time.Time

// Add appends the event's timestamp to its group.
func (g Groups) Add(ev NormalizedEvent) {
	key := GroupKey{Identity: ev.Identity, Kind: ev.Kind}
	g[key] = append(g[key], ev.Timestamp)
}

// Merge appends every timestamp of other into g.
func (g Groups) Merge(other Groups) {
	for key, ts := range other {
		g[key] = append(g[key], ts...)
	}
}

// Keys returns the group keys sorted by identity, then kind.
func (g Groups) Keys() []GroupKey {
	keys := make([]GroupKey, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Identity != keys[j].Identity {
			return keys[i].Identity < keys[j].Identity
		}
		return keys[i].Kind < keys[j].Kind
	})
	return keys
}

// Count returns the total number of timestamps across all groups.
func (g Groups) Count() int {
	n := 0
	for _, ts := range g {
		n += len(ts)
	}
	return n
}
