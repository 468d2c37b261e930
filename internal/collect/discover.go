package collect

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/1sec-project/authburst/internal/core"
)

// Input is the set of files claimed by one configured source.
type Input struct {
	Source core.SourceConfig
	Files  []string
}

// Discover lists dir (non-recursively) and assigns each regular file to the
// first source whose pattern matches its name. The result has one entry per
// source, in config order, with files in name order. Failing to read dir is
// the only error.
func Discover(dir string, sources []core.SourceConfig) ([]Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading input dir %s: %w", dir, err)
	}

	inputs := make([]Input, len(sources))
	for i, src := range sources {
		inputs[i].Source = src
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		for i, src := range sources {
			ok, err := filepath.Match(src.Pattern, name)
			if err != nil || !ok {
				continue
			}
			inputs[i].Files = append(inputs[i].Files, filepath.Join(dir, name))
			break
		}
	}

	return inputs, nil
}
