package collect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1sec-project/authburst/internal/core"
)

func TestDiscover_AssignsBySource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", "[]")
	writeFile(t, dir, "a.json", "[]")
	writeFile(t, dir, "sshd.log", "")
	writeFile(t, dir, "notes.txt", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.json"), 0755))

	inputs, err := Discover(dir, core.DefaultConfig().Input.Sources)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "cloudtrail", inputs[0].Source.Type)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, inputs[0].Files)
	assert.Equal(t, []string{filepath.Join(dir, "sshd.log")}, inputs[1].Files)
}

func TestDiscover_FirstPatternClaims(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "edge.log", "")
	writeFile(t, dir, "other.log", "")

	sources := []core.SourceConfig{
		{Type: "authlog", Pattern: "edge*", Tag: "edge"},
		{Type: "authlog", Pattern: "*.log", Tag: "all"},
	}
	inputs, err := Discover(dir, sources)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(dir, "edge.log")}, inputs[0].Files)
	assert.Equal(t, []string{filepath.Join(dir, "other.log")}, inputs[1].Files)
}

func TestDiscover_EmptyDir(t *testing.T) {
	inputs, err := Discover(t.TempDir(), core.DefaultConfig().Input.Sources)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Empty(t, inputs[0].Files)
	assert.Empty(t, inputs[1].Files)
}

func TestDiscover_MissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "absent"), core.DefaultConfig().Input.Sources)
	assert.Error(t, err)
}

// ─── Parser registry ────────────────────────────────────────────────────────

func TestNewParser(t *testing.T) {
	p, err := NewParser(core.SourceConfig{Type: "authlog", Tag: "bastion"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "bastion", p.Tag())

	_, err = NewParser(core.SourceConfig{Type: "nginx"}, Options{})
	assert.ErrorContains(t, err, "nginx")
}

func TestKnownTypes(t *testing.T) {
	assert.Equal(t, []string{"authlog", "cloudtrail"}, KnownTypes())
}

func TestValidateSources(t *testing.T) {
	errs := ValidateSources([]core.SourceConfig{
		{Type: "cloudtrail", Pattern: "*.json"},
		{Type: "pfsense", Pattern: "*.log"},
		{Type: "", Pattern: "*.txt"},
	})
	require.Len(t, errs, 1)
	var ve *core.ValidationError
	require.ErrorAs(t, errs[0], &ve)
	assert.Equal(t, "input.sources[1].type", ve.Field)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(core.InputConfig{AuthLogYear: 2021, IncludeSourceIP: true})
	assert.Equal(t, 2021, opts.year())
	assert.True(t, opts.IncludeSourceIP)

	opts = Options{Now: func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }}
	assert.Equal(t, 2030, opts.year())
}
