package main

// ---------------------------------------------------------------------------
// cmd_scan.go — run one detection pass over the input directory
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/1sec-project/authburst/internal/core"
	"github.com/1sec-project/authburst/internal/scan"
)

// scanView controls which optional sections the table output includes.
type scanView struct {
	showSuppressed bool
	showNormal     bool
	quiet          bool
}

// cmdScan returns the process exit code.
func cmdScan(args []string) int {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	dir := fs.String("dir", "", "Input directory (overrides input.dir)")
	statePath := fs.String("state", "", "Seen-state file (overrides state.path)")
	ttlMinutes := fs.Int("ttl-minutes", -1, "Alert cooldown in minutes (overrides detection.ttl_minutes)")
	format := fs.String("format", "table", "Output format: table, json, csv, sarif")
	output := fs.String("output", "", "Write results to file")
	dryRun := fs.Bool("dry-run", false, "Do not save state, archive, or publish")
	showSuppressed := fs.Bool("show-suppressed", false, "Also list findings suppressed by the cooldown")
	showNormal := fs.Bool("show-normal", false, "List groups that fired no rule")
	failOnFindings := fs.Bool("fail-on-findings", false, "Exit 2 when new findings are reported")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	quiet := fs.Bool("quiet", false, "Only print findings")
	fs.BoolVar(quiet, "q", false, "Only print findings (shorthand)")
	noColor := fs.Bool("no-color", false, "Disable colored output")
	fs.Parse(args)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}

	cfg := loadConfig(envConfig(*configPath), *quiet)
	if *dir != "" {
		cfg.Input.Dir = *dir
	}
	if *statePath != "" {
		cfg.State.Path = *statePath
	}
	if *ttlMinutes >= 0 {
		cfg.Detection.TTLMinutes = *ttlMinutes
	}

	logger := newLogger(cfg, *logLevel, *quiet, os.Stderr)
	runner := scan.New(cfg, logger, scan.WithDryRun(*dryRun))

	report, err := runner.Run()
	if err != nil {
		errorf("scan failed: %v", err)
	}

	w, cleanup := outputWriter(*output)
	defer cleanup()

	view := scanView{showSuppressed: *showSuppressed, showNormal: *showNormal, quiet: *quiet}
	if err := renderScan(w, report, parseFormat(*format), view); err != nil {
		errorf("writing results: %v", err)
	}

	if report.StateError != "" {
		warnf("seen-state not saved: %s", report.StateError)
	}
	if *output != "" && !*quiet {
		fmt.Fprintf(os.Stderr, "%s Results written to %s (%s)\n", green("✓"), *output, formatName(parseFormat(*format)))
	}

	if *failOnFindings && len(report.New) > 0 {
		return 2
	}
	return 0
}

// renderScan writes the report in the requested format. JSON carries the
// whole report; CSV and SARIF carry only the new findings.
func renderScan(w io.Writer, report *scan.Report, format OutputFormat, view scanView) error {
	newFindings := append([]core.Finding(nil), report.New...)
	core.SortFindings(newFindings)

	switch format {
	case FormatJSON:
		return writeJSON(w, report)
	case FormatCSV:
		rows := make([][]string, 0, len(newFindings))
		for _, f := range newFindings {
			rows = append(rows, findingRow(f))
		}
		return writeCSV(w, findingHeaders, rows)
	case FormatSARIF:
		return writeSARIF(w, newFindings, version)
	}

	if !view.quiet {
		printScanSummary(w, report)
	}

	if len(newFindings) == 0 {
		if !view.quiet {
			fmt.Fprintf(w, "%s No new findings.\n", green("✓"))
		}
	} else {
		fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("NEW FINDINGS (%d)", len(newFindings))))
		printFindingTable(w, newFindings)
	}

	if view.showSuppressed {
		suppressed := suppressedFindings(report)
		if len(suppressed) > 0 {
			fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("SUPPRESSED (%d)", len(suppressed))))
			printFindingTable(w, suppressed)
		}
	}

	if view.showNormal && len(report.Normal) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold(fmt.Sprintf("NORMAL GROUPS (%d)", len(report.Normal))))
		tbl := NewTable(w, "SOURCE", "IDENTITY", "EVENT", "COUNT")
		for _, g := range report.Normal {
			tbl.AddRow(g.Source, g.Identity, g.Kind, fmt.Sprintf("%d", g.Events))
		}
		tbl.Render()
	}
	return nil
}

func printScanSummary(w io.Writer, report *scan.Report) {
	header := fmt.Sprintf("Run %s", report.RunID)
	if report.DryRun {
		header += " " + yellow("(dry run)")
	}
	fmt.Fprintf(w, "%s\n\n", bold(header))

	tbl := NewTable(w, "SOURCE", "FILE", "EVENTS", "ERRORS", "MALFORMED", "STATUS")
	for _, src := range report.Sources {
		if len(src.Files) == 0 {
			tbl.AddRow(src.Tag, dim("(no files)"), "0", "0", "0", "-")
			continue
		}
		for _, f := range src.Files {
			status := "ok"
			if f.Err != "" {
				status = "skipped"
			}
			tbl.AddRow(src.Tag, filepath.Base(f.Path),
				fmt.Sprintf("%d", f.Total), fmt.Sprintf("%d", f.Errors),
				fmt.Sprintf("%d", f.Malformed), status)
		}
	}
	tbl.Render()

	fmt.Fprintf(w, "\n  %s events, %s error events, %d finding(s), %d new, %d suppressed",
		bold(fmt.Sprintf("%d", report.TotalEvents())),
		bold(fmt.Sprintf("%d", report.TotalErrors())),
		len(report.Findings), len(report.New), report.Suppressed)
	if n := report.FailedFiles(); n > 0 {
		fmt.Fprintf(w, ", %s", red(fmt.Sprintf("%d file(s) skipped", n)))
	}
	fmt.Fprintln(w)
	if len(report.New) > 0 {
		bySev := make(map[core.Severity]int)
		for _, f := range report.New {
			bySev[f.Severity]++
		}
		fmt.Fprint(w, "  new:")
		for _, sev := range []core.Severity{core.SeverityHigh, core.SeverityMedium, core.SeverityLow} {
			if n := bySev[sev]; n > 0 {
				fmt.Fprintf(w, " %s %d", severityColor(sev)(sev.String()), n)
			}
		}
		fmt.Fprintln(w)
	}
	if report.Archive != "" {
		fmt.Fprintf(w, "  %s archived to %s\n", dim("▸"), report.Archive)
	}
	if report.Published > 0 {
		fmt.Fprintf(w, "  %s %d finding(s) published\n", dim("▸"), report.Published)
	}
	fmt.Fprintln(w)
}

func printFindingTable(w io.Writer, findings []core.Finding) {
	tbl := NewTable(w, findingHeaders...)
	for _, f := range findings {
		tbl.AddRow(findingRow(f)...)
	}
	tbl.Render()
}

// suppressedFindings returns the findings that did not pass the cooldown.
func suppressedFindings(report *scan.Report) []core.Finding {
	delivered := make(map[string]int, len(report.New))
	for _, f := range report.New {
		delivered[f.Source+"\x00"+f.DedupKey()]++
	}
	var out []core.Finding
	for _, f := range report.Findings {
		k := f.Source + "\x00" + f.DedupKey()
		if delivered[k] > 0 {
			delivered[k]--
			continue
		}
		out = append(out, f)
	}
	core.SortFindings(out)
	return out
}
