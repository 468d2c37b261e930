package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire authburst configuration.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Detection DetectionConfig `yaml:"detection"`
	State     StateConfig     `yaml:"state"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Bus       BusConfig       `yaml:"bus"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InputConfig describes where log files are discovered and how they are parsed.
type InputConfig struct {
	Dir             string         `yaml:"dir"`
	Sources         []SourceConfig `yaml:"sources"`
	AuthLogYear     int            `yaml:"authlog_year"`      // 0 = current year
	IncludeSourceIP bool           `yaml:"include_source_ip"` // append @ip to CloudTrail identities
}

// SourceConfig binds a file pattern inside Input.Dir to a parser.
type SourceConfig struct {
	Type    string `yaml:"type"`    // "cloudtrail" or "authlog"
	Pattern string `yaml:"pattern"` // glob matched against file names
	Tag     string `yaml:"tag"`     // source tag carried by findings
}

// DetectionConfig holds the rule set and the alert cooldown.
type DetectionConfig struct {
	TTLMinutes int          `yaml:"ttl_minutes"`
	Rules      []RuleConfig `yaml:"rules"`

	// Single-rule form, used only when Rules is empty.
	ErrorThreshold int `yaml:"error_threshold"`
	WindowMinutes  int `yaml:"window_minutes"`
}

// RuleConfig is the YAML form of a DetectionRule.
type RuleConfig struct {
	Name          string   `yaml:"name"`
	Threshold     int      `yaml:"threshold"`
	WindowMinutes int      `yaml:"window_minutes"`
	Severity      Severity `yaml:"severity"`
}

// StateConfig holds seen-state persistence settings.
type StateConfig struct {
	Path         string `yaml:"path"`
	PruneExpired bool   `yaml:"prune_expired"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const defaultRuleName = "Burst"

// DefaultConfig returns a Config with sane defaults; zero-config works out of the box.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Dir: "data",
			Sources: []SourceConfig{
				{Type: "cloudtrail", Pattern: "*.json", Tag: "cloud-audit"},
				{Type: "authlog", Pattern: "*.log", Tag: "ssh-daemon"},
			},
		},
		Detection: DetectionConfig{
			TTLMinutes:     60,
			ErrorThreshold: 3,
			WindowMinutes:  5,
		},
		State: StateConfig{
			Path:         ".authburst/seen.json",
			PruneExpired: true,
		},
		Archive: DefaultArchiveConfig(),
		Bus:     DefaultBusConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	if envState := os.Getenv("AUTHBURST_STATE"); envState != "" {
		cfg.State.Path = envState
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

// TTL returns the alert cooldown.
func (d DetectionConfig) TTL() time.Duration {
	return time.Duration(d.TTLMinutes) * time.Minute
}

// DetectionRules converts the configured rules. Without a rule list the
// single-rule form yields one MEDIUM rule named "Burst".
func (d DetectionConfig) DetectionRules() []DetectionRule {
	if len(d.Rules) == 0 {
		return []DetectionRule{{
			Name:      defaultRuleName,
			Threshold: d.ErrorThreshold,
			Window:    time.Duration(d.WindowMinutes) * time.Minute,
			Severity:  SeverityMedium,
		}}
	}
	rules := make([]DetectionRule, 0, len(d.Rules))
	for _, rc := range d.Rules {
		rules = append(rules, DetectionRule{
			Name:      rc.Name,
			Threshold: rc.Threshold,
			Window:    time.Duration(rc.WindowMinutes) * time.Minute,
			Severity:  rc.Severity,
		})
	}
	return rules
}

// Validate returns non-fatal warnings and fatal errors for the config.
func (c *Config) Validate() (warnings []string, errs []error) {
	if strings.TrimSpace(c.Input.Dir) == "" {
		errs = append(errs, &ValidationError{Field: "input.dir", Message: "input directory is required"})
	}
	if len(c.Input.Sources) == 0 {
		errs = append(errs, &ValidationError{Field: "input.sources", Message: "at least one source is required"})
	}
	tags := make(map[string]bool)
	for i, src := range c.Input.Sources {
		field := fmt.Sprintf("input.sources[%d]", i)
		if src.Type == "" {
			errs = append(errs, &ValidationError{Field: field + ".type", Message: "source type is required"})
		}
		if src.Pattern == "" {
			errs = append(errs, &ValidationError{Field: field + ".pattern", Message: "file pattern is required"})
		} else if _, err := filepath.Match(src.Pattern, ""); err != nil {
			errs = append(errs, &ValidationError{Field: field + ".pattern", Message: err.Error()})
		}
		if src.Tag != "" && tags[src.Tag] {
			warnings = append(warnings, fmt.Sprintf("%s: tag %q is used by more than one source", field, src.Tag))
		}
		tags[src.Tag] = true
	}

	if c.Detection.TTLMinutes < 0 {
		errs = append(errs, &ValidationError{Field: "detection.ttl_minutes", Message: "ttl must be >= 0"})
	} else if c.Detection.TTLMinutes == 0 {
		warnings = append(warnings, "detection.ttl_minutes is 0: every recurring finding will be re-reported")
	}
	errs = append(errs, ValidateRules(c.Detection.DetectionRules())...)

	if c.State.Path == "" {
		errs = append(errs, &ValidationError{Field: "state.path", Message: "state path is required"})
	}
	if c.Bus.Enabled && !c.Bus.Embedded && c.Bus.URL == "" {
		errs = append(errs, &ValidationError{Field: "bus.url", Message: "url is required unless bus.embedded is set"})
	}
	switch c.LogLevel() {
	case "debug", "info", "warn", "error":
	default:
		warnings = append(warnings, fmt.Sprintf("logging.level %q is unknown, using info", c.Logging.Level))
	}

	return warnings, errs
}

// LogLevel returns the parsed log level string.
func (c *Config) LogLevel() string {
	return c.Logging.level()
}

func (l LoggingConfig) level() string {
	return strings.ToLower(strings.TrimSpace(l.Level))
}
