package main

// ---------------------------------------------------------------------------
// cmd_state.go — inspect or prune the seen-state cache
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/1sec-project/authburst/internal/core"
)

type stateEntry struct {
	Key      string    `json:"key"`
	Rule     string    `json:"rule"`
	Identity string    `json:"identity"`
	Kind     string    `json:"kind"`
	LastSeen time.Time `json:"last_seen"`
	Expired  bool      `json:"expired"`
}

func cmdState(args []string) {
	if len(args) == 0 {
		cmdHelp("state")
		os.Exit(1)
	}
	sub := args[0]

	fs := flag.NewFlagSet("state "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	statePath := fs.String("state", "", "Seen-state file (overrides state.path)")
	ttlMinutes := fs.Int("ttl-minutes", -1, "Cooldown in minutes (overrides detection.ttl_minutes)")
	format := fs.String("format", "table", "Output format: table, json, csv")
	output := fs.String("output", "", "Write output to file")
	fs.Parse(args[1:])

	cfg := loadConfig(envConfig(*configPath), true)
	if *statePath != "" {
		cfg.State.Path = *statePath
	}
	if *ttlMinutes >= 0 {
		cfg.Detection.TTLMinutes = *ttlMinutes
	}

	logger := newLogger(cfg, "", true, os.Stderr)
	state := core.LoadSeenState(cfg.State.Path, logger)
	now := time.Now().UTC()
	ttl := cfg.Detection.TTL()

	switch sub {
	case "show":
		w, cleanup := outputWriter(*output)
		defer cleanup()
		if err := renderState(w, stateEntries(state, now, ttl), parseFormat(*format)); err != nil {
			errorf("writing state: %v", err)
		}
	case "prune":
		n := state.Prune(now, ttl)
		if err := state.Save(cfg.State.Path); err != nil {
			errorf("saving seen-state: %v", err)
		}
		fmt.Fprintf(os.Stdout, "%s Pruned %d expired entr%s from %s (%d remaining)\n",
			green("✓"), n, plural(n, "y", "ies"), cfg.State.Path, state.Len())
	default:
		fmt.Fprintf(os.Stderr, red("error: ")+"unknown state subcommand %q\n\n", sub)
		cmdHelp("state")
		os.Exit(1)
	}
}

// stateEntries flattens the cache into display rows, in key order.
func stateEntries(state *core.SeenState, now time.Time, ttl time.Duration) []stateEntry {
	keys := state.Keys()
	entries := make([]stateEntry, 0, len(keys))
	for _, key := range keys {
		last, _ := state.LastSeen(key)
		e := stateEntry{
			Key:      key,
			LastSeen: last,
			Expired:  state.IsNew(key, now, ttl),
		}
		// Rule names and event kinds carry no '|'; the identity is
		// whatever sits between the first and last separator.
		if i, j := strings.Index(key, "|"), strings.LastIndex(key, "|"); i >= 0 && j > i {
			e.Rule, e.Identity, e.Kind = key[:i], key[i+1:j], key[j+1:]
		} else {
			e.Rule = key
		}
		entries = append(entries, e)
	}
	return entries
}

func renderState(w io.Writer, entries []stateEntry, format OutputFormat) error {
	headers := []string{"RULE", "IDENTITY", "EVENT", "LAST SEEN", "STATUS"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		status := "active"
		if e.Expired {
			status = "expired"
		}
		rows = append(rows, []string{e.Rule, e.Identity, e.Kind, e.LastSeen.UTC().Format(time.RFC3339), status})
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, entries)
	case FormatCSV, FormatSARIF:
		return writeCSV(w, headers, rows)
	}

	if len(entries) == 0 {
		fmt.Fprintf(w, "%s Seen-state is empty.\n", dim("▸"))
		return nil
	}
	tbl := NewTable(w, headers...)
	for _, row := range rows {
		tbl.AddRow(row...)
	}
	tbl.Render()
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
