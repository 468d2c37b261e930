package main

// ---------------------------------------------------------------------------
// cmd_config.go — initialize or validate configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/1sec-project/authburst/internal/core"
)

func cmdConfig(args []string) {
	if len(args) == 0 {
		cmdHelp("config")
		os.Exit(1)
	}

	switch args[0] {
	case "init":
		cmdConfigInit(args[1:])
	case "validate":
		os.Exit(cmdConfigValidate(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, red("error: ")+"unknown config subcommand %q\n\n", args[0])
		cmdHelp("config")
		os.Exit(1)
	}
}

func cmdConfigInit(args []string) {
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing file")
	fs.Parse(args)

	path := defaultConfigPath
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	if _, err := os.Stat(path); err == nil && !*force {
		errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := core.SaveConfig(core.DefaultConfig(), path); err != nil {
		errorf("writing config: %v", err)
	}
	fmt.Fprintf(os.Stdout, "%s Wrote default config to %s\n", green("✓"), path)
}

func cmdConfigValidate(args []string) int {
	fs := flag.NewFlagSet("config validate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	fs.Parse(args)

	path := envConfig(*configPath)
	cfg, err := core.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s Config invalid: %v\n", red("✗"), err)
		return 1
	}

	warnings, errs := validateConfig(cfg)
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", yellow("⚠"), w)
	}
	if len(errs) > 0 {
		fmt.Fprintf(os.Stderr, "%s Config has %d issue(s):\n", red("✗"), len(errs))
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", e)
		}
		return 1
	}

	fmt.Fprintf(os.Stdout, "%s Config valid (%s). %d source(s), %d rule(s), ttl %dm.\n",
		green("✓"), path, len(cfg.Input.Sources), len(cfg.Detection.DetectionRules()), cfg.Detection.TTLMinutes)
	return 0
}
