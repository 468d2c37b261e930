package main

// ---------------------------------------------------------------------------
// cmd_rules.go — list the configured detection rules
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/1sec-project/authburst/internal/core"
)

type ruleView struct {
	Name          string        `json:"name"`
	Threshold     int           `json:"threshold"`
	WindowMinutes int64         `json:"window_minutes"`
	Severity      core.Severity `json:"severity"`
}

func cmdRules(args []string) {
	fs := flag.NewFlagSet("rules", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	format := fs.String("format", "table", "Output format: table, json, csv")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args)

	cfg := loadConfig(envConfig(*configPath), true)

	w, cleanup := outputWriter(*output)
	defer cleanup()

	if err := renderRules(w, cfg.Detection.DetectionRules(), cfg.Detection.TTL(), parseFormat(*format)); err != nil {
		errorf("writing rules: %v", err)
	}
}

func renderRules(w io.Writer, rules []core.DetectionRule, ttl time.Duration, format OutputFormat) error {
	views := make([]ruleView, 0, len(rules))
	for _, r := range rules {
		views = append(views, ruleView{
			Name:          r.Name,
			Threshold:     r.Threshold,
			WindowMinutes: int64(r.Window.Minutes()),
			Severity:      r.Severity,
		})
	}

	headers := []string{"NAME", "THRESHOLD", "WINDOW", "SEVERITY"}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.Name,
			"> " + strconv.Itoa(v.Threshold),
			fmt.Sprintf("%dm", v.WindowMinutes),
			v.Severity.String(),
		})
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, map[string]interface{}{
			"ttl_minutes": int64(ttl.Minutes()),
			"rules":       views,
		})
	case FormatCSV, FormatSARIF:
		return writeCSV(w, headers, rows)
	}

	tbl := NewTable(w, headers...)
	for _, row := range rows {
		tbl.AddRow(row...)
	}
	tbl.Render()
	fmt.Fprintf(w, "\n  %s alert cooldown: %dm\n", dim("▸"), int64(ttl.Minutes()))
	return nil
}
