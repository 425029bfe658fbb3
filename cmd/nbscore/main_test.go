package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/nbscore/internal/store"
	"github.com/elonfeng/nbscore/pkg/calc"
	"github.com/elonfeng/nbscore/pkg/source"
)

type namedSource source.SourceType

func (n namedSource) Name() source.SourceType { return source.SourceType(n) }

func (n namedSource) Collect(context.Context) ([]source.Headline, error) { return nil, nil }

// testConfig writes a config whose database lives in a temp dir.
func testConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
log_level: error
database:
  path: %s
sources:
  hackernews:
    enabled: false
`, filepath.Join(dir, "nbscore.db"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, cfg, stdin string, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", cfg}, args...))
	err := root.Execute()
	return out.String(), err
}

func calcJSON(t *testing.T, cfg string, args ...string) store.Calculation {
	t.Helper()
	out, err := execute(t, cfg, "", append([]string{"calc", "--json"}, args...)...)
	require.NoError(t, err)
	var c store.Calculation
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	return c
}

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t,
		[]string{"calc", "search", "recent", "show", "stats", "keywords", "archive", "collect", "serve", "run"},
		names)
	assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestCalc_Plain(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "", "calc", "1", "2", "3")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^type\s+number$`, out)
	assert.Regexp(t, `(?m)^bit\s+999$`, out)
	assert.Contains(t, out, "max 330.7800000000")
	assert.Contains(t, out, "min 674.8800000000")
	assert.Contains(t, out, "diff -344.1000000000")
}

func TestCalc_TextPrintsEveryRepeat(t *testing.T) {
	out, err := execute(t, testConfig(t), "", "calc", "hello")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^type\s+text$`, out)
	for i := 1; i <= 3; i++ {
		assert.Regexp(t, fmt.Sprintf(`(?m)^result %d\s+max 4\.9949961706\s+min 999\.0000000000`, i), out)
	}
}

func TestCalc_NegativeInput(t *testing.T) {
	cfg := testConfig(t)

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"after double dash", "", []string{"calc", "--", "-3", "-1", "2", "4"}},
		{"input flag", "", []string{"calc", "--input", "-3 -1 2 4"}},
		{"stdin", "-3 -1 2 4\n", []string{"calc", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, cfg, tt.stdin, tt.args...)
			require.NoError(t, err)
			assert.Regexp(t, `(?m)^input\s+-3 -1 2 4$`, out)
			assert.Contains(t, out, "max 21.2287500000")
			assert.Contains(t, out, "min 62.4375000000")
		})
	}

	_, err := execute(t, cfg, "", "calc", "-3", "-1", "2")
	assert.ErrorContains(t, err, "unknown shorthand flag")
}

func TestCalc_JSON(t *testing.T) {
	c := calcJSON(t, testConfig(t), "--category", "lotto", "1.5", "2.5", "3.5")

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, store.KindNumber, c.Kind)
	assert.Equal(t, "lotto", c.Category)
	assert.Equal(t, 999.0, c.Bit)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, c.Values)
	require.Len(t, c.Results, 1)
	assert.InDelta(t, c.NBMax-c.NBMin, c.Difference, 1e-9)
}

func TestCalc_Legacy(t *testing.T) {
	cfg := testConfig(t)

	c := calcJSON(t, cfg, "--legacy", "1.5", "2.5", "3.5")
	assert.Equal(t, 5.5, c.Bit)
	assert.InDelta(t, 1.6761904762, c.NBMax, 1e-9)
	assert.InDelta(t, 4.255952381, c.NBMin, 1e-9)

	out, err := execute(t, cfg, "", "calc", "--legacy", "1.5", "2.5", "3.5")
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^bit\s+5\.5$`, out)
	assert.Contains(t, out, "max 1.6761904762")
	assert.Contains(t, out, "min 4.2559523810")
}

func TestCalc_Errors(t *testing.T) {
	cfg := testConfig(t)

	_, err := execute(t, cfg, "", "calc")
	assert.ErrorContains(t, err, "no input")

	_, err = execute(t, cfg, "", "calc", "--input", "1 2", "3")
	assert.Error(t, err)

	_, err = execute(t, cfg, "", "calc", "--bit", "20000", "1", "2", "3")
	assert.ErrorIs(t, err, calc.ErrInvalidRequest)

	_, err = execute(t, cfg, "", "calc", "--input", "   ")
	assert.ErrorIs(t, err, calc.ErrEmptyInput)
}

func TestShow(t *testing.T) {
	cfg := testConfig(t)
	c := calcJSON(t, cfg, "1", "2", "3")

	out, err := execute(t, cfg, "", "show", c.ID)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^id\s+`+c.ID+`$`, out)
	assert.Contains(t, out, "max 330.7800000000")

	_, err = execute(t, cfg, "", "show", "nope")
	assert.ErrorContains(t, err, "no calculation with id nope")
}

func TestStats_SortedOutput(t *testing.T) {
	cfg := testConfig(t)
	calcJSON(t, cfg, "--category", "zeta", "1", "2")
	calcJSON(t, cfg, "--category", "alpha", "3", "4")
	calcJSON(t, cfg, "hello")

	for range 3 {
		out, err := execute(t, cfg, "", "stats")
		require.NoError(t, err)
		assert.Regexp(t, `(?m)^calculations\s+3$`, out)

		order := []string{"kind number", "kind text", "category alpha", "category general", "category zeta"}
		last := -1
		for _, line := range order {
			i := strings.Index(out, line)
			require.GreaterOrEqual(t, i, 0, line)
			assert.Greater(t, i, last, line)
			last = i
		}
	}
}

func TestKeywords(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, cfg, "", "keywords")
	require.NoError(t, err)
	assert.Equal(t, "no keywords yet\n", out)

	calcJSON(t, cfg, "Hello")
	calcJSON(t, cfg, "hello")
	calcJSON(t, cfg, "1", "2")

	out, err = execute(t, cfg, "", "keywords", "--json", "--limit", "1")
	require.NoError(t, err)
	var top []store.Keyword
	require.NoError(t, json.Unmarshal([]byte(out), &top))
	assert.Equal(t, []store.Keyword{{Keyword: "hello", Views: 0, Calculations: 2}}, top)
}

func TestSelectSources(t *testing.T) {
	all := []source.Source{namedSource(source.SourceHackerNews), namedSource(source.SourceRSS)}

	got, err := selectSources(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = selectSources(all, []string{" HN "})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, source.SourceHackerNews, got[0].Name())

	_, err = selectSources(all, []string{"reddit"})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "안녕…", truncate("안녕하세요", 3))
}
