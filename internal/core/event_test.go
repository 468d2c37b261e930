package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// ─── Severity ───────────────────────────────────────────────────────────────

func TestSeverity_String(t *testing.T) {
	cases := []struct {
		s    Severity
		want string
	}{
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{Severity(99), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.s.String(); got != tc.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tc.s, got, tc.want)
		}
	}
}

func TestSeverity_Ordering(t *testing.T) {
	if !(SeverityLow < SeverityMedium) {
		t.Error("Low should be less than Medium")
	}
	if !(SeverityMedium < SeverityHigh) {
		t.Error("Medium should be less than High")
	}
}

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"low", SeverityLow, false},
		{"Medium", SeverityMedium, false},
		{" HIGH ", SeverityHigh, false},
		{"critical", SeverityLow, true},
		{"", SeverityLow, true},
	}
	for _, tc := range cases {
		got, err := ParseSeverity(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseSeverity(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseSeverity(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(SeverityHigh)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"HIGH"` {
		t.Errorf("Marshal = %s, want \"HIGH\"", data)
	}

	var s Severity
	if err := json.Unmarshal([]byte(`"medium"`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s != SeverityMedium {
		t.Errorf("Unmarshal = %v, want MEDIUM", s)
	}

	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestSeverity_YAML(t *testing.T) {
	var rc RuleConfig
	if err := yaml.Unmarshal([]byte("name: X\nseverity: High\n"), &rc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rc.Severity != SeverityHigh {
		t.Errorf("Severity = %v, want HIGH", rc.Severity)
	}

	out, err := yaml.Marshal(RuleConfig{Name: "X", Severity: SeverityLow})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want := "severity: low"; !strings.Contains(string(out), want) {
		t.Errorf("yaml output %q missing %q", out, want)
	}

	if err := yaml.Unmarshal([]byte("severity: urgent\n"), &rc); err == nil {
		t.Error("expected error for unknown severity")
	}
}

// ─── Groups ─────────────────────────────────────────────────────────────────

func TestGroups_AddMerge(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := make(Groups)
	g.Add(NormalizedEvent{Identity: "user:a", Kind: "Login", Timestamp: base})
	g.Add(NormalizedEvent{Identity: "user:a", Kind: "Login", Timestamp: base.Add(time.Minute)})
	g.Add(NormalizedEvent{Identity: "user:b", Kind: "Login", Timestamp: base})

	other := make(Groups)
	other.Add(NormalizedEvent{Identity: "user:a", Kind: "Login", Timestamp: base.Add(2 * time.Minute)})
	other.Add(NormalizedEvent{Identity: "user:a", Kind: "Delete", Timestamp: base})
	g.Merge(other)

	if got := len(g[GroupKey{"user:a", "Login"}]); got != 3 {
		t.Errorf("user:a/Login = %d timestamps, want 3", got)
	}
	if len(g) != 3 {
		t.Errorf("groups = %d, want 3", len(g))
	}
	if g.Count() != 5 {
		t.Errorf("Count = %d, want 5", g.Count())
	}
}

func TestGroups_KeysSorted(t *testing.T) {
	now := time.Now()
	g := Groups{
		{"user:b", "A"}: {now},
		{"user:a", "Z"}: {now},
		{"user:a", "B"}: {now},
	}
	keys := g.Keys()
	want := []GroupKey{{"user:a", "B"}, {"user:a", "Z"}, {"user:b", "A"}}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("Keys[%d] = %v, want %v", i, keys[i], want[i])
		}
	}
}

func TestGroups_KeysAreExactMatch(t *testing.T) {
	now := time.Now()
	g := make(Groups)
	g.Add(NormalizedEvent{Identity: "user:Alice", Kind: "Login", Timestamp: now})
	g.Add(NormalizedEvent{Identity: "user:alice", Kind: "Login", Timestamp: now})
	g.Add(NormalizedEvent{Identity: "user:alice ", Kind: "Login", Timestamp: now})
	if len(g) != 3 {
		t.Errorf("groups = %d, want 3 (no case folding or trimming)", len(g))
	}
}
