package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/language"
	"github.com/fulmenhq/codescore/pkg/exitcode"
)

const jsScenario = `var user = null; if (user == null) { var PASSWORD = "mySecret123"; eval("doSomething()"); } console.log(user.name);`

// execCLI runs a fresh command tree so flag values never leak between tests.
func execCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCommand()
	registerSubcommands(root)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

// offlineConfig keeps analyze away from the network and external scanners.
func offlineConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codescore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`security:
  static_analysis:
    enabled: false
  vulndb:
    offline_only: true
`), 0o644))
	return path
}

func decodeReport(t *testing.T, out string) *assess.Report {
	t.Helper()
	rep, err := assess.ReadReport(strings.NewReader(out))
	require.NoError(t, err, out)
	return rep
}

func TestAnalyze_StdinJSON(t *testing.T) {
	out, _, err := execCLI(t, jsScenario, "analyze", "-", "--filename", "test.js", "--format", "json", "--config", offlineConfig(t))
	require.NoError(t, err)

	rep := decodeReport(t, out)
	assert.Equal(t, "test.js", rep.Filename)
	assert.Equal(t, language.JavaScript, rep.Detection.Language)
	assert.Len(t, rep.Stages, 7)
	assert.NotEmpty(t, rep.SecurityIssues)
	assert.Greater(t, rep.Snapshot.Score(), 0.0)
	assert.Less(t, rep.Snapshot.Score(), 1.0)
	assert.Nil(t, rep.Diff)
}

func TestAnalyze_FileToOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "app.py")
	require.NoError(t, os.WriteFile(src, []byte("def f(x):\n    return x + 1\n"), 0o644))
	dest := filepath.Join(dir, "report.md")

	out, _, err := execCLI(t, "", "analyze", src, "--output", dest, "--config", offlineConfig(t))
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "app.py")
}

func TestAnalyze_Gate(t *testing.T) {
	cfg := offlineConfig(t)

	_, errOut, err := execCLI(t, jsScenario, "analyze", "-", "--filename", "test.js", "--format", "json", "--gate", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, exitcode.GateFailed, exitcode.FromError(err))
	assert.Contains(t, errOut, "Quality gate failed")
	assert.Contains(t, errOut, "security errors exceed the allowed 0")

	policy := filepath.Join(t.TempDir(), "lenient.rego")
	require.NoError(t, os.WriteFile(policy, []byte("package codescore.gate\n\ndeny contains \"impossible\" if input.score > 1\n"), 0o644))
	_, _, err = execCLI(t, jsScenario, "analyze", "-", "--filename", "test.js", "--format", "json", "--gate", "--policy", policy, "--config", cfg)
	assert.NoError(t, err)
}

func TestAnalyze_Errors(t *testing.T) {
	cfg := offlineConfig(t)
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing file", []string{"analyze", filepath.Join(t.TempDir(), "nope.go"), "--config", cfg}, exitcode.FileSystemError},
		{"bad format", []string{"analyze", "-", "--format", "pdf", "--config", cfg}, exitcode.InvalidInput},
		{"rev needs a path", []string{"analyze", "-", "--against-rev", "HEAD", "--config", cfg}, exitcode.InvalidInput},
		{"missing config", []string{"analyze", "-", "--config", filepath.Join(t.TempDir(), "none.yaml")}, exitcode.ConfigError},
		{"missing previous report", []string{"analyze", "-", "--against", filepath.Join(t.TempDir(), "old.json"), "--config", cfg}, exitcode.FileSystemError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execCLI(t, "x = 1\n", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, exitcode.FromError(err))
		})
	}
}

func TestAnalyze_AgainstReport(t *testing.T) {
	cfg := offlineConfig(t)
	first, _, err := execCLI(t, jsScenario, "analyze", "-", "--filename", "test.js", "--format", "json", "--config", cfg)
	require.NoError(t, err)
	prev := filepath.Join(t.TempDir(), "prev.json")
	require.NoError(t, os.WriteFile(prev, []byte(first), 0o644))

	fixed := "const user = {name: 'a'};\nconsole.log(user.name);\n"
	out, _, err := execCLI(t, fixed, "analyze", "-", "--filename", "test.js", "--format", "json", "--against", prev, "--config", cfg)
	require.NoError(t, err)

	rep := decodeReport(t, out)
	require.NotNil(t, rep.Diff)
	assert.Greater(t, rep.Diff.ScoreDelta, 0.0)
	assert.NotEmpty(t, rep.Diff.ResolvedIssues)
}

func TestAnalyze_AgainstRevision(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	src := filepath.Join(dir, "test.js")
	require.NoError(t, os.WriteFile(src, []byte(jsScenario+"\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("test.js")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(src, []byte("const ok = 1;\n"), 0o644))

	out, _, err := execCLI(t, "", "analyze", src, "--against-rev", "HEAD", "--format", "json", "--config", offlineConfig(t))
	require.NoError(t, err)
	rep := decodeReport(t, out)
	require.NotNil(t, rep.Diff)
	assert.NotEmpty(t, rep.Diff.ResolvedIssues)
}

func TestDiffCommand(t *testing.T) {
	cfg := offlineConfig(t)
	dir := t.TempDir()
	write := func(name, code string) string {
		out, _, err := execCLI(t, code, "analyze", "-", "--filename", "test.js", "--format", "json", "--config", cfg)
		require.NoError(t, err)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(out), 0o644))
		return path
	}
	older := write("old.json", jsScenario)
	newer := write("new.json", "const ok = 1;\n")

	out, _, err := execCLI(t, "", "diff", older, newer, "--format", "json")
	require.NoError(t, err)
	var d assess.DiffResult
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Greater(t, d.ScoreDelta, 0.0)
	assert.NotEmpty(t, d.ResolvedIssues)

	out, _, err = execCLI(t, "", "diff", older, newer)
	require.NoError(t, err)
	assert.Contains(t, out, "Resolved issues")

	_, _, err = execCLI(t, "", "diff", older, filepath.Join(dir, "missing.json"))
	assert.Equal(t, exitcode.FileSystemError, exitcode.FromError(err))
}

func TestVersion_JSON(t *testing.T) {
	out, _, err := execCLI(t, "", "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.NotEmpty(t, v["version"])
	assert.NotEmpty(t, v["goVersion"])
}

func TestFlagNormalization(t *testing.T) {
	policy := filepath.Join(t.TempDir(), "lenient.rego")
	require.NoError(t, os.WriteFile(policy, []byte("package codescore.gate\n"), 0o644))
	_, _, err := execCLI(t, "x = 1\n", "analyze", "-", "--filename", "x.py", "--format", "json",
		"--stage_timeout", "20s", "--gate", "--policy", policy, "--config", offlineConfig(t))
	assert.NoError(t, err)
}

func TestInitializeLogger(t *testing.T) {
	for _, level := range []string{"trace", "debug", "info", "warn", "error", "bogus"} {
		cmd := &cobra.Command{}
		cmd.Flags().String("log-level", level, "")
		cmd.Flags().Bool("json", level == "debug", "")
		cmd.Flags().Bool("no-color", true, "")
		initializeLogger(cmd)
	}
}
