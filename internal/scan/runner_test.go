package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/1sec-project/authburst/internal/core"
)

var runAt = time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC)

// ─── fixtures ───────────────────────────────────────────────────────────────

func trailRecord(minute int, user, event string) string {
	return fmt.Sprintf(`{"eventTime": "2026-01-07T10:%02d:00Z", "eventName": %q, "errorCode": "AccessDenied",
	 "userIdentity": {"type": "IAMUser", "userName": %q}}`, minute, event, user)
}

func trailDoc(records ...string) string {
	return `{"Records": [` + strings.Join(records, ",\n") + `]}`
}

func sshdLines(user, addr string, seconds ...int) string {
	var b strings.Builder
	for _, s := range seconds {
		fmt.Fprintf(&b, "Jan 07 11:48:%02d bastion sshd[9]: Failed password for %s from %s port 22 ssh2\n", s, user, addr)
	}
	return b.String()
}

func writeInput(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	root := t.TempDir()
	cfg := core.DefaultConfig()
	cfg.Input.Dir = filepath.Join(root, "in")
	cfg.Input.AuthLogYear = 2026
	cfg.State.Path = filepath.Join(root, "state", "seen.json")
	if err := os.MkdirAll(cfg.Input.Dir, 0755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestRunner(cfg *core.Config, now time.Time, opts ...Option) *Runner {
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	base := []Option{
		WithClock(func() time.Time { return now }),
		WithIDGenerator(ids),
	}
	return New(cfg, zerolog.Nop(), append(base, opts...)...)
}

func seedBursts(t *testing.T, cfg *core.Config) {
	t.Helper()
	writeInput(t, cfg.Input.Dir, "trail.json", trailDoc(
		trailRecord(0, "alice", "ConsoleLogin"),
		trailRecord(1, "alice", "ConsoleLogin"),
		trailRecord(2, "alice", "ConsoleLogin"),
		trailRecord(3, "alice", "ConsoleLogin"),
		trailRecord(3, "bob", "ConsoleLogin"),
	))
	writeInput(t, cfg.Input.Dir, "sshd.log", sshdLines("root", "5.6.7.8", 1, 2, 3, 4, 5))
}

// ─── Run ────────────────────────────────────────────────────────────────────

func TestRun_DetectsAndPersists(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.New) != 2 {
		t.Fatalf("new findings = %d, want 2: %+v", len(report.New), report.New)
	}
	if report.New[0].Source != "cloud-audit" || report.New[0].Identity != "user:alice" || report.New[0].Count != 4 {
		t.Errorf("cloud finding = %+v", report.New[0])
	}
	if report.New[1].Source != "ssh-daemon" || report.New[1].Identity != "user:root@5.6.7.8" || report.New[1].Count != 5 {
		t.Errorf("ssh finding = %+v", report.New[1])
	}
	if report.RunID != "id-001" || report.New[0].ID != "id-002" || report.New[1].ID != "id-003" {
		t.Errorf("ids: run %q, findings %q %q", report.RunID, report.New[0].ID, report.New[1].ID)
	}
	if report.TotalEvents() != 10 || report.TotalErrors() != 10 {
		t.Errorf("totals = %d events, %d errors", report.TotalEvents(), report.TotalErrors())
	}
	if !report.StateSaved || report.StateEntries != 2 {
		t.Errorf("state saved=%v entries=%d", report.StateSaved, report.StateEntries)
	}

	// bob fired nothing
	if len(report.Normal) != 1 || report.Normal[0].Identity != "user:bob" {
		t.Errorf("normal groups = %+v", report.Normal)
	}

	state := core.LoadSeenState(cfg.State.Path, zerolog.Nop())
	last, ok := state.LastSeen("Burst|user:alice|ConsoleLogin")
	if !ok || !last.Equal(runAt) {
		t.Errorf("state entry = %v, %v", last, ok)
	}
}

func TestRun_SecondRunSuppressed(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)

	if _, err := newTestRunner(cfg, runAt).Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	report, err := newTestRunner(cfg, runAt.Add(30*time.Minute)).Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(report.New) != 0 {
		t.Errorf("second run new = %d, want 0", len(report.New))
	}
	if report.Suppressed != 2 || len(report.Findings) != 2 {
		t.Errorf("suppressed = %d, findings = %d", report.Suppressed, len(report.Findings))
	}
}

func TestRun_ReportsAgainAfterTTL(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)

	if _, err := newTestRunner(cfg, runAt).Run(); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	report, err := newTestRunner(cfg, runAt.Add(61*time.Minute)).Run()
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if len(report.New) != 2 {
		t.Errorf("new after ttl = %d, want 2", len(report.New))
	}
}

func TestRun_CrossSourceDuplicateKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.Sources = []core.SourceConfig{
		{Type: "authlog", Pattern: "edge-*.log", Tag: "edge"},
		{Type: "authlog", Pattern: "core-*.log", Tag: "core"},
	}
	lines := sshdLines("root", "5.6.7.8", 1, 2, 3, 4)
	writeInput(t, cfg.Input.Dir, "edge-1.log", lines)
	writeInput(t, cfg.Input.Dir, "core-1.log", lines)

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("findings = %d, want 2", len(report.Findings))
	}
	if len(report.New) != 1 || report.New[0].Source != "edge" {
		t.Errorf("new = %+v, want the edge finding only", report.New)
	}
	if report.Suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", report.Suppressed)
	}
}

func TestRun_MultipleFilesMergeIntoOneGroup(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg.Input.Dir, "a.log", sshdLines("root", "5.6.7.8", 1, 2))
	writeInput(t, cfg.Input.Dir, "b.log", sshdLines("root", "5.6.7.8", 3, 4))

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.New) != 1 || report.New[0].Count != 4 {
		t.Errorf("new = %+v, want one finding with count 4", report.New)
	}
}

func TestRun_BrokenFileSkipped(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)
	writeInput(t, cfg.Input.Dir, "broken.json", "{{{")

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.FailedFiles() != 1 {
		t.Errorf("failed files = %d, want 1", report.FailedFiles())
	}
	cloud := report.Sources[0]
	if cloud.Files[0].Err == "" || !strings.HasSuffix(cloud.Files[0].Path, "broken.json") {
		t.Errorf("file reports = %+v", cloud.Files)
	}
	if len(report.New) != 2 {
		t.Errorf("new = %d, want 2 despite broken file", len(report.New))
	}
}

func TestRun_MissingInputDirIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.Dir = filepath.Join(t.TempDir(), "missing")

	if _, err := newTestRunner(cfg, runAt).Run(); err == nil {
		t.Error("expected error for missing input dir")
	}
}

func TestRun_UnknownSourceTypeIsFatal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.Sources = []core.SourceConfig{{Type: "syslog", Pattern: "*"}}

	if _, err := newTestRunner(cfg, runAt).Run(); err == nil {
		t.Error("expected error for unknown source type")
	}
}

func TestRun_CorruptStateStartsEmpty(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)
	if err := os.MkdirAll(filepath.Dir(cfg.State.Path), 0755); err != nil {
		t.Fatal(err)
	}
	writeInput(t, filepath.Dir(cfg.State.Path), filepath.Base(cfg.State.Path), "not json")

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.New) != 2 || !report.StateSaved {
		t.Errorf("new = %d, saved = %v", len(report.New), report.StateSaved)
	}
}

func TestRun_UnwritableStateIsWarning(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)
	blocker := filepath.Join(t.TempDir(), "blocker")
	writeInput(t, filepath.Dir(blocker), "blocker", "")
	cfg.State.Path = filepath.Join(blocker, "seen.json")

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StateSaved || report.StateError == "" {
		t.Errorf("saved = %v, error = %q", report.StateSaved, report.StateError)
	}
	if len(report.New) != 2 {
		t.Errorf("findings must still be reported, got %d", len(report.New))
	}
}

func TestRun_DryRun(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)
	cfg.Archive = core.ArchiveConfig{Enabled: true, Dir: filepath.Join(t.TempDir(), "archive"), Compress: true}

	report, err := newTestRunner(cfg, runAt, WithDryRun(true)).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.DryRun || report.StateSaved || report.Archive != "" {
		t.Errorf("dry run report = %+v", report)
	}
	if len(report.New) != 2 {
		t.Errorf("new = %d, want 2", len(report.New))
	}
	if _, err := os.Stat(cfg.State.Path); !os.IsNotExist(err) {
		t.Errorf("state file written on dry run: %v", err)
	}
	if _, err := os.Stat(cfg.Archive.Dir); !os.IsNotExist(err) {
		t.Errorf("archive dir created on dry run: %v", err)
	}
}

func TestRun_ArchiveAndMetrics(t *testing.T) {
	cfg := testConfig(t)
	seedBursts(t, cfg)
	out := t.TempDir()
	cfg.Archive = core.ArchiveConfig{Enabled: true, Dir: filepath.Join(out, "archive")}
	cfg.Metrics.Textfile = filepath.Join(out, "metrics", "authburst.prom")

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Archive == "" {
		t.Fatal("archive path missing from report")
	}
	data, err := os.ReadFile(report.Archive)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("archive lines = %d, want 2", n)
	}

	prom, err := os.ReadFile(cfg.Metrics.Textfile)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	for _, want := range []string{
		`authburst_findings_new_total{severity="MEDIUM",source="cloud-audit"} 1`,
		`authburst_events_total{source="ssh-daemon"} 5`,
		"authburst_seen_state_entries 2",
	} {
		if !strings.Contains(string(prom), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestRun_PrunesExpiredEntries(t *testing.T) {
	cfg := testConfig(t)
	state := core.NewSeenState()
	state.MarkSeen("Burst|user:gone|Login", runAt.Add(-48*time.Hour))
	if err := state.Save(cfg.State.Path); err != nil {
		t.Fatal(err)
	}

	report, err := newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StateEntries != 0 {
		t.Errorf("entries = %d, want 0 after prune", report.StateEntries)
	}

	cfg.State.PruneExpired = false
	if err := state.Save(cfg.State.Path); err != nil {
		t.Fatal(err)
	}
	report, err = newTestRunner(cfg, runAt).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.StateEntries != 1 {
		t.Errorf("entries = %d, want 1 with pruning off", report.StateEntries)
	}
}
