package main

// ---------------------------------------------------------------------------
// helpers.go — TTY detection, color, error helpers, env-based config
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/1sec-project/authburst/internal/collect"
	"github.com/1sec-project/authburst/internal/core"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "configs/authburst.yaml"

// ---------------------------------------------------------------------------
// TTY / color helpers
// ---------------------------------------------------------------------------

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTTY(os.Stderr)
}

func ansi(code, s string) string {
	if !colorEnabled() {
		return s
	}
	return code + s + "\033[0m"
}

func red(s string) string    { return ansi("\033[91m", s) }
func yellow(s string) string { return ansi("\033[93m", s) }
func green(s string) string  { return ansi("\033[32m", s) }
func cyan(s string) string   { return ansi("\033[36m", s) }
func dim(s string) string    { return ansi("\033[90m", s) }
func bold(s string) string   { return ansi("\033[1m", s) }

// severityColor picks the color used for a severity label.
func severityColor(sev core.Severity) func(string) string {
	switch sev {
	case core.SeverityHigh:
		return red
	case core.SeverityMedium:
		return yellow
	default:
		return cyan
	}
}

// ---------------------------------------------------------------------------
// Error / warn helpers (always to stderr)
// ---------------------------------------------------------------------------

func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, red("error: ")+format+"\n", args...)
	os.Exit(1)
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, yellow("warn: ")+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Env-based configuration
//
// Environment variables:
//   AUTHBURST_CONFIG — default config file path
//   AUTHBURST_STATE  — seen-state file path (applied by core.LoadConfig)
// ---------------------------------------------------------------------------

// envConfig returns the config path, preferring flag > env > default.
func envConfig(flagVal string) string {
	if flagVal != "" && flagVal != defaultConfigPath {
		return flagVal
	}
	if e := os.Getenv("AUTHBURST_CONFIG"); e != "" {
		return e
	}
	return flagVal
}

// loadConfig loads and validates the config, exiting on fatal problems.
// Warnings are printed unless quiet is set.
func loadConfig(path string, quiet bool) *core.Config {
	cfg, err := core.LoadConfig(path)
	if err != nil {
		errorf("loading config: %v", err)
	}
	warnings, errs := validateConfig(cfg)
	if !quiet {
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), w)
		}
	}
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), e)
		}
		errorf("config validation failed with %d error(s)", len(errs))
	}
	return cfg
}

// validateConfig runs the core checks plus the parser type check.
func validateConfig(cfg *core.Config) ([]string, []error) {
	warnings, errs := cfg.Validate()
	errs = append(errs, collect.ValidateSources(cfg.Input.Sources)...)
	return warnings, errs
}

// newLogger builds the stderr logger, honouring --log-level and --quiet.
func newLogger(cfg *core.Config, levelOverride string, quiet bool, w io.Writer) zerolog.Logger {
	logCfg := cfg.Logging
	if levelOverride != "" {
		logCfg.Level = levelOverride
	}
	if quiet && logCfg.Level != "error" {
		logCfg.Level = "warn"
	}
	return core.NewLogger(logCfg, w)
}

// ---------------------------------------------------------------------------
// hasFlag checks if any of the given flags appear in args.
// ---------------------------------------------------------------------------

func hasFlag(args []string, flags ...string) bool {
	for _, a := range args {
		for _, f := range flags {
			if a == f {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Suggest — typo correction for unknown commands
// ---------------------------------------------------------------------------

var commands = []string{"scan", "rules", "state", "config", "version", "help"}

func suggest(input string) string {
	input = strings.ToLower(input)
	if input == "" {
		return ""
	}
	for _, c := range commands {
		if strings.HasPrefix(c, input) || strings.HasPrefix(input, c) {
			return c
		}
	}
	for _, c := range commands {
		if len(c) == len(input) {
			diff := 0
			for i := range c {
				if c[i] != input[i] {
					diff++
				}
			}
			if diff <= 1 {
				return c
			}
		}
	}
	return ""
}
