// Package scan drives one detection run: discover inputs, parse them per
// source, evaluate rules, filter findings through the seen-state cooldown,
// hand new findings to the sinks and persist the cache.
package scan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/1sec-project/authburst/internal/collect"
	"github.com/1sec-project/authburst/internal/core"
)

// Runner executes detection runs for one configuration.
type Runner struct {
	cfg     *core.Config
	logger  zerolog.Logger
	now     func() time.Time
	newID   func() string
	dryRun  bool
	metrics *core.RunMetrics
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock replaces the wall clock used for TTL decisions.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator replaces the UUID generator for run and finding IDs.
func WithIDGenerator(gen func() string) Option {
	return func(r *Runner) { r.newID = gen }
}

// WithDryRun evaluates and filters without archiving, publishing or
// saving the seen-state.
func WithDryRun(dry bool) Option {
	return func(r *Runner) { r.dryRun = dry }
}

// New creates a Runner.
func New(cfg *core.Config, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logger.With().Str("component", "scan").Logger(),
		now:     time.Now,
		newID:   uuid.NewString,
		metrics: core.NewRunMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the counters accumulated by this runner.
func (r *Runner) Metrics() *core.RunMetrics {
	return r.metrics
}

// sinks are the optional destinations for new findings.
type sinks struct {
	archive *core.Archiver
	bus     *core.FindingsBus
}

// Run performs one full pass over the input directory. Only an invalid
// source type or an unreadable input directory is returned as an error;
// everything else degrades into warnings recorded on the Report.
func (r *Runner) Run() (*Report, error) {
	started := time.Now()
	now := r.now().UTC()
	runID := r.newID()
	log := r.logger.With().Str("run_id", runID).Logger()

	rules := r.cfg.Detection.DetectionRules()
	ttl := r.cfg.Detection.TTL()
	opts := collect.OptionsFromConfig(r.cfg.Input)
	opts.Now = r.now

	parsers := make([]collect.Parser, len(r.cfg.Input.Sources))
	for i, src := range r.cfg.Input.Sources {
		p, err := collect.NewParser(src, opts)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}
		parsers[i] = p
	}

	inputs, err := collect.Discover(r.cfg.Input.Dir, r.cfg.Input.Sources)
	if err != nil {
		return nil, err
	}

	state := core.LoadSeenState(r.cfg.State.Path, log)
	log.Debug().Str("path", r.cfg.State.Path).Int("entries", state.Len()).Msg("seen-state loaded")

	report := &Report{
		RunID:     runID,
		StartedAt: now,
		DryRun:    r.dryRun,
		TTL:       ttl,
		Rules:     rules,
	}

	out := r.openSinks(runID, log)

	for i, in := range inputs {
		parser := parsers[i]
		tag := parser.Tag()
		srcReport := SourceReport{Tag: tag, Type: parser.Name()}
		groups := make(core.Groups)

		for _, path := range in.Files {
			log.Info().Str("source", tag).Str("file", path).Msg("processing")

			res, err := parser.Parse(path)
			if err != nil {
				log.Warn().Err(err).Str("source", tag).Str("file", path).Msg("failed to process file, skipping")
				srcReport.Files = append(srcReport.Files, FileReport{Path: path, Err: err.Error()})
				srcReport.Failed++
				r.metrics.SourceFailures.WithLabelValues(tag).Inc()
				continue
			}

			log.Info().
				Str("source", tag).
				Str("file", path).
				Int("events", res.Total).
				Int("errors", res.Errors).
				Int("malformed", res.Malformed).
				Msg("processed")

			srcReport.Files = append(srcReport.Files, FileReport{
				Path:      path,
				Total:     res.Total,
				Errors:    res.Errors,
				Malformed: res.Malformed,
			})
			srcReport.Total += res.Total
			srcReport.Errors += res.Errors
			srcReport.Malformed += res.Malformed
			r.metrics.Events.WithLabelValues(tag).Add(float64(res.Total))
			r.metrics.ErrorEvents.WithLabelValues(tag).Add(float64(res.Errors))
			groups.Merge(res.Groups)
		}
		srcReport.Groups = len(groups)

		findings := core.Evaluate(tag, groups, rules)
		report.Normal = append(report.Normal, normalGroups(tag, groups, findings)...)

		for _, f := range findings {
			sev := f.Severity.String()
			r.metrics.Findings.WithLabelValues(tag, sev).Inc()
			report.Findings = append(report.Findings, f)

			key := f.DedupKey()
			if !state.IsNew(key, now, ttl) {
				report.Suppressed++
				r.metrics.FindingsSuppressed.Inc()
				log.Debug().Str("key", key).Msg("finding suppressed by cooldown")
				continue
			}
			state.MarkSeen(key, now)

			f.ID = r.newID()
			report.New = append(report.New, f)
			srcReport.NewFindings++
			r.metrics.FindingsNew.WithLabelValues(tag, sev).Inc()
			out.deliver(f, log)
		}

		report.Sources = append(report.Sources, srcReport)
	}

	report.Archive, report.Published = out.close(log)

	if r.cfg.State.PruneExpired {
		if n := state.Prune(now, ttl); n > 0 {
			log.Debug().Int("pruned", n).Msg("expired seen-state entries pruned")
		}
	}
	report.StateEntries = state.Len()

	if !r.dryRun {
		if err := state.Save(r.cfg.State.Path); err != nil {
			report.StateError = err.Error()
			log.Warn().Err(err).Str("path", r.cfg.State.Path).Msg("failed to save seen-state")
		} else {
			report.StateSaved = true
		}
	}

	report.Duration = time.Since(started)
	r.metrics.SeenStateEntries.Set(float64(state.Len()))
	r.metrics.LastRun.Set(float64(now.Unix()))
	r.metrics.RunDuration.Set(report.Duration.Seconds())
	if path := r.cfg.Metrics.Textfile; path != "" {
		if err := r.metrics.WriteTextfile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to write metrics")
		}
	}

	log.Info().
		Int("findings", len(report.Findings)).
		Int("new", len(report.New)).
		Int("suppressed", report.Suppressed).
		Dur("took", report.Duration).
		Msg("run complete")

	return report, nil
}

func (r *Runner) openSinks(runID string, log zerolog.Logger) *sinks {
	s := &sinks{}
	if r.dryRun {
		return s
	}

	if r.cfg.Archive.Enabled {
		a, err := core.NewArchiver(r.cfg.Archive, runID, log)
		if err != nil {
			log.Warn().Err(err).Msg("findings archive disabled for this run")
		} else {
			s.archive = a
		}
	}

	if r.cfg.Bus.Enabled {
		b, err := core.NewFindingsBus(r.cfg.Bus, log)
		if err != nil {
			log.Warn().Err(err).Msg("findings bus disabled for this run")
		} else {
			s.bus = b
		}
	}
	return s
}

func (s *sinks) deliver(f core.Finding, log zerolog.Logger) {
	if s.archive != nil {
		if err := s.archive.Write(f); err != nil {
			log.Warn().Err(err).Str("finding_id", f.ID).Msg("failed to archive finding")
		}
	}
	if s.bus != nil {
		if err := s.bus.PublishFinding(f); err != nil {
			log.Warn().Err(err).Str("finding_id", f.ID).Msg("failed to publish finding")
		}
	}
}

func (s *sinks) close(log zerolog.Logger) (archivePath string, published int) {
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close findings archive")
		}
		archivePath = s.archive.Path()
	}
	if s.bus != nil {
		published = s.bus.Published()
		_ = s.bus.Close()
	}
	return archivePath, published
}

// normalGroups lists the groups of one source that fired no rule.
func normalGroups(source string, groups core.Groups, findings []core.Finding) []GroupSummary {
	fired := make(map[core.GroupKey]bool, len(findings))
	for _, f := range findings {
		fired[core.GroupKey{Identity: f.Identity, Kind: f.Kind}] = true
	}

	var normal []GroupSummary
	for _, key := range groups.Keys() {
		if fired[key] || len(groups[key]) == 0 {
			continue
		}
		normal = append(normal, GroupSummary{
			Source:   source,
			Identity: key.Identity,
			Kind:     key.Kind,
			Events:   len(groups[key]),
		})
	}
	return normal
}
