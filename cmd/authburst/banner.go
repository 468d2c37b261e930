package main

// ---------------------------------------------------------------------------
// banner.go — version, usage, and per-command help
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"runtime/debug"
)

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "authburst v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", bold("authburst"), dim("v"+version))
	fmt.Fprintf(w, "  Burst detection over cloud audit trails and sshd journals\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  authburst <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-14s  %s\n", bold("scan"), "Scan the input directory and report new findings")
	fmt.Fprintf(w, "  %-14s  %s\n", bold("rules"), "List the configured detection rules")
	fmt.Fprintf(w, "  %-14s  %s\n", bold("state"), "Show or prune the seen-state cache")
	fmt.Fprintf(w, "  %-14s  %s\n", bold("config"), "Initialize or validate configuration")
	fmt.Fprintf(w, "  %-14s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "  %-14s  %s\n", bold("help"), "Show help for a command")
	fmt.Fprintf(w, "\n%s\n\n", bold("GLOBAL FLAGS"))
	fmt.Fprintf(w, "  %-22s  %s\n", "--config <path>", "Config file path (default: "+defaultConfigPath+", env: AUTHBURST_CONFIG)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--format <fmt>", "Output format: table, json, csv, sarif (default: table)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "  %-22s  %s\n", "--help, -h", "Show help")
	fmt.Fprintf(w, "\n%s\n\n", bold("ENVIRONMENT VARIABLES"))
	fmt.Fprintf(w, "  %-22s  %s\n", "AUTHBURST_CONFIG", "Default config file path")
	fmt.Fprintf(w, "  %-22s  %s\n", "AUTHBURST_STATE", "Seen-state file path")
	fmt.Fprintf(w, "  %-22s  %s\n", "NO_COLOR", "Disable colored output")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Scan ./data with defaults"))
	fmt.Fprintf(w, "  authburst scan\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Scan another directory without touching the state file"))
	fmt.Fprintf(w, "  authburst scan --dir /var/log/exports --dry-run\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Emit SARIF for code scanning"))
	fmt.Fprintf(w, "  authburst scan --format sarif --output findings.sarif\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Drop expired cooldown entries"))
	fmt.Fprintf(w, "  authburst state prune\n\n")
	fmt.Fprintf(w, "Run %s for detailed help on any command.\n\n", bold("authburst help <command>"))
}

func cmdHelp(cmd string) {
	w := os.Stdout
	switch cmd {
	case "scan":
		fmt.Fprintf(w, "%s\n\n", bold("authburst scan"))
		fmt.Fprintf(w, "  Parse every log file in the input directory, evaluate the detection\n")
		fmt.Fprintf(w, "  rules, and report findings not already reported within the TTL.\n\n")
		fmt.Fprintf(w, "%s\n\n", bold("FLAGS"))
		fmt.Fprintf(w, "  %-24s  %s\n", "--config <path>", "Config file path")
		fmt.Fprintf(w, "  %-24s  %s\n", "--dir <path>", "Input directory (overrides input.dir)")
		fmt.Fprintf(w, "  %-24s  %s\n", "--state <path>", "Seen-state file (overrides state.path)")
		fmt.Fprintf(w, "  %-24s  %s\n", "--ttl-minutes <n>", "Alert cooldown in minutes (overrides detection.ttl_minutes)")
		fmt.Fprintf(w, "  %-24s  %s\n", "--format <fmt>", "table, json, csv, sarif")
		fmt.Fprintf(w, "  %-24s  %s\n", "--output <file>", "Write results to a file instead of stdout")
		fmt.Fprintf(w, "  %-24s  %s\n", "--dry-run", "Do not save state, archive, or publish")
		fmt.Fprintf(w, "  %-24s  %s\n", "--show-suppressed", "Also list findings suppressed by the cooldown")
		fmt.Fprintf(w, "  %-24s  %s\n", "--show-normal", "List groups that fired no rule")
		fmt.Fprintf(w, "  %-24s  %s\n", "--fail-on-findings", "Exit 2 when new findings are reported")
		fmt.Fprintf(w, "  %-24s  %s\n", "--log-level <lvl>", "debug, info, warn, error")
		fmt.Fprintf(w, "  %-24s  %s\n", "--quiet, -q", "Only print findings")
		fmt.Fprintf(w, "  %-24s  %s\n", "--no-color", "Disable colored output")
	case "rules":
		fmt.Fprintf(w, "%s\n\n", bold("authburst rules"))
		fmt.Fprintf(w, "  List the detection rules the config resolves to.\n\n")
		fmt.Fprintf(w, "%s\n\n", bold("FLAGS"))
		fmt.Fprintf(w, "  %-24s  %s\n", "--config <path>", "Config file path")
		fmt.Fprintf(w, "  %-24s  %s\n", "--format <fmt>", "table, json, csv")
	case "state":
		fmt.Fprintf(w, "%s\n\n", bold("authburst state <show|prune>"))
		fmt.Fprintf(w, "  Inspect the seen-state cache or drop entries older than the TTL.\n\n")
		fmt.Fprintf(w, "%s\n\n", bold("FLAGS"))
		fmt.Fprintf(w, "  %-24s  %s\n", "--config <path>", "Config file path")
		fmt.Fprintf(w, "  %-24s  %s\n", "--state <path>", "Seen-state file (overrides state.path)")
		fmt.Fprintf(w, "  %-24s  %s\n", "--ttl-minutes <n>", "Cooldown used to mark entries expired")
		fmt.Fprintf(w, "  %-24s  %s\n", "--format <fmt>", "table, json, csv (show only)")
	case "config":
		fmt.Fprintf(w, "%s\n\n", bold("authburst config <init|validate>"))
		fmt.Fprintf(w, "  %-24s  %s\n", "init [path]", "Write the default config (default: "+defaultConfigPath+")")
		fmt.Fprintf(w, "  %-24s  %s\n", "validate", "Check the config and exit non-zero on errors")
		fmt.Fprintf(w, "\n%s\n\n", bold("FLAGS"))
		fmt.Fprintf(w, "  %-24s  %s\n", "--config <path>", "Config file path (validate)")
		fmt.Fprintf(w, "  %-24s  %s\n", "--force", "Overwrite an existing file (init)")
	case "version":
		fmt.Fprintf(w, "%s\n\n  Print version and build info.\n", bold("authburst version"))
	default:
		printUsage(w)
	}
}
