package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aleksaelezovic/sparqlexec/pkg/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testData = `<http://example.org/a> <http://example.org/next> <http://example.org/b> .
<http://example.org/b> <http://example.org/next> <http://example.org/c> .
<http://example.org/c> <http://example.org/next> <http://example.org/a> .
<http://example.org/a> <http://example.org/label> "A" .
<http://example.org/b> <http://example.org/label> "B" <http://example.org/g> .
`

func writeData(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.nq")
	require.NoError(t, os.WriteFile(path, []byte(testData), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"demo", "path", "stats"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	cfg := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, cfg)
	assert.Equal(t, "c", cfg.Shorthand)
}

func TestDemo(t *testing.T) {
	out, err := execute(t, "demo")
	require.NoError(t, err)

	assert.Contains(t, out, "=== People by age (hash join, order by) ===")
	people := out[strings.Index(out, "People by age"):strings.Index(out, "Mailboxes")]
	assert.Less(t, strings.Index(people, "bob"), strings.Index(people, "carol"))
	assert.Less(t, strings.Index(people, "carol"), strings.Index(people, "alice"))
	assert.Contains(t, out, "alice@example.org")
	assert.Contains(t, out, "27.")
}

func TestPath(t *testing.T) {
	data := writeData(t)

	out, err := execute(t, "path", data, "http://example.org/a", "http://example.org/next")
	require.NoError(t, err)
	assert.Contains(t, out, "3 results")

	out, err = execute(t, "path", "--inverse", "--min", "0", data, "http://example.org/b", "http://example.org/next")
	require.NoError(t, err)
	assert.Contains(t, out, "3 results")

	_, err = execute(t, "path", "--min", "2", data, "http://example.org/a", "http://example.org/next")
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	data := writeData(t)

	out, err := execute(t, "stats", data)
	require.NoError(t, err)
	lines := strings.Split(out, "\n")
	require.Greater(t, len(lines), 3)
	assert.Contains(t, lines[2], "next")
	assert.Contains(t, lines[2], "3")
	assert.Contains(t, lines[3], "label")

	out, err = execute(t, "stats", "--limit", "1", data)
	require.NoError(t, err)
	assert.Contains(t, out, "1 results")
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("spill:\n  threshold: 1\nprefetch:\n  policy: direct\n"), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("prefetch:\n  policy: sometimes\n"), 0o600))

	out, err := execute(t, "--config", good, "stats", writeData(t))
	require.NoError(t, err)
	assert.Contains(t, out, "2 results")

	_, err = execute(t, "--config", bad, "demo")
	assert.ErrorContains(t, err, "prefetch.policy")

	_, err = execute(t, "stats", filepath.Join(dir, "missing.nq"))
	assert.Error(t, err)
}

func TestFormatFlag(t *testing.T) {
	data := writeData(t)

	out, err := execute(t, "--format", "tsv", "path", data, "http://example.org/a", "http://example.org/next")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "?end", lines[0])
	assert.ElementsMatch(t, []string{
		"<http://example.org/a>", "<http://example.org/b>", "<http://example.org/c>",
	}, lines[1:])

	out, err = execute(t, "-f", "json", "stats", "--limit", "1", data)
	require.NoError(t, err)
	assert.Contains(t, out, `"vars": [`)
	assert.Contains(t, out, `"value": "http://example.org/next"`)

	_, err = execute(t, "-f", "yaml", "stats", data)
	assert.ErrorContains(t, err, "unsupported results format")
}

func TestFormatTerm(t *testing.T) {
	assert.Equal(t, "alice", formatTerm(alice))
	assert.Equal(t, "knows", formatTerm(knows))
	assert.Equal(t, "30", formatTerm(rdf.NewIntegerLiteral(30)))
	assert.Equal(t, "_:b1", formatTerm(rdf.NewBlankNode("b1")))
}
