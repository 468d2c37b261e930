package collect

import (
	"fmt"
	"sort"
	"time"

	"github.com/1sec-project/authburst/internal/core"
)

// Parser turns one input file into grouped, normalized events.
type Parser interface {
	Name() string
	Tag() string
	Parse(path string) (*Result, error)
}

// Result is what a parser extracts from one file. Total and Errors feed
// the run summary only; detection consumes Groups.
type Result struct {
	Total     int         // records read
	Errors    int         // records classified as error/auth-failure events
	Malformed int         // records skipped because they could not be decoded
	Groups    core.Groups // (identity, kind) -> timestamps
}

func newResult() *Result {
	return &Result{Groups: make(core.Groups)}
}

// Options carries parser settings that come from the input config.
type Options struct {
	// Year is injected into syslog-style timestamps that carry none.
	// Zero means the year of Now.
	Year            int
	IncludeSourceIP bool
	Now             func() time.Time
}

// OptionsFromConfig builds parser options from the input config.
func OptionsFromConfig(cfg core.InputConfig) Options {
	return Options{
		Year:            cfg.AuthLogYear,
		IncludeSourceIP: cfg.IncludeSourceIP,
		Now:             time.Now,
	}
}

func (o Options) year() int {
	if o.Year != 0 {
		return o.Year
	}
	if o.Now != nil {
		return o.Now().UTC().Year()
	}
	return time.Now().UTC().Year()
}

var constructors = map[string]func(tag string, opts Options) Parser{
	"cloudtrail": func(tag string, opts Options) Parser { return NewCloudTrailParser(tag, opts) },
	"authlog":    func(tag string, opts Options) Parser { return NewAuthLogParser(tag, opts) },
}

// KnownTypes lists the parser types accepted in input.sources.
func KnownTypes() []string {
	types := make([]string, 0, len(constructors))
	for t := range constructors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// NewParser creates the parser for a configured source.
func NewParser(src core.SourceConfig, opts Options) (Parser, error) {
	ctor, ok := constructors[src.Type]
	if !ok {
		return nil, fmt.Errorf("unknown source type %q (known: %v)", src.Type, KnownTypes())
	}
	return ctor(src.Tag, opts), nil
}

// ValidateSources checks that every configured source names a known parser.
func ValidateSources(sources []core.SourceConfig) []error {
	var errs []error
	for i, src := range sources {
		if _, ok := constructors[src.Type]; !ok && src.Type != "" {
			errs = append(errs, &core.ValidationError{
				Field:   fmt.Sprintf("input.sources[%d].type", i),
				Message: fmt.Sprintf("unknown source type %q", src.Type),
			})
		}
	}
	return errs
}
