package engines

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/security"
	"github.com/fulmenhq/codescore/internal/language"
	"github.com/fulmenhq/codescore/pkg/config"
	"github.com/fulmenhq/codescore/pkg/tools"
	"github.com/fulmenhq/codescore/pkg/vulndb"
)

type noTools struct{}

func (noTools) IsAvailable(string) bool { return false }

func (noTools) Execute(context.Context, tools.ExecuteOptions) (*tools.ExecuteResult, error) {
	return nil, tools.ErrToolNotFound
}

const scenario = `var user = null; if (user == null) { var PASSWORD = "mySecret123"; eval("doSomething()"); } console.log(user.name);`

func build(t *testing.T, fetcher vulndb.HTTPFetcher) (*assess.Analyzer, *Built) {
	t.Helper()
	cfg := config.Default()
	cfg.Security.VulnDB.URL = "https://osv.test/v1/querybatch"
	built, err := DefaultRegistry(cfg, Deps{Executor: noTools{}, Fetcher: fetcher})
	require.NoError(t, err)
	return assess.NewAnalyzer(built.Registry, assess.WithCache(built.Cache)), built
}

func rules(issues []assess.Issue) map[string]assess.Issue {
	out := map[string]assess.Issue{}
	for _, i := range issues {
		out[i.Rule] = i
	}
	return out
}

func TestDefaultRegistry_Order(t *testing.T) {
	built, err := DefaultRegistry(config.Default(), Deps{Executor: noTools{}})
	require.NoError(t, err)
	assert.Equal(t, []string{
		assess.LabelLint,
		assess.LabelStyle,
		assess.LabelSecurityHeuristic,
		assess.LabelSecurityStructural,
		assess.LabelSecurityDependencies,
		assess.LabelComplexity,
		assess.LabelRedundancy,
		assess.LabelFormatting,
	}, built.Registry.Labels())
	assert.NotNil(t, built.Cache)
}

func TestAnalyze_JavaScriptScenario(t *testing.T) {
	a, _ := build(t, vulndb.NewMockHTTPFetcher())
	rep, err := a.Analyze(context.Background(), scenario, assess.Options{Filename: "test.js"})
	require.NoError(t, err)

	assert.Equal(t, language.JavaScript, rep.Detection.Language)
	assert.Equal(t, 1.0, rep.Detection.Confidence)
	assert.Equal(t, language.MethodExtension, rep.Detection.Method)

	general := rules(rep.Issues)
	assert.Contains(t, general, "loose-equality")
	require.Contains(t, general, "null-dereference")
	assert.Equal(t, "Possible null dereference of 'user'", general["null-dereference"].Message)

	sec := rules(rep.SecurityIssues)
	assert.Contains(t, sec, "hardcoded-secret")
	assert.Contains(t, sec, "eval")

	require.Len(t, rep.Stages, 7, "dependency scan needs a project path")
	for _, s := range rep.Stages {
		assert.Equal(t, assess.StatusFulfilled, s.Status, s.Label)
	}
	assert.Greater(t, rep.Snapshot.Score(), 0.0)
	assert.Less(t, rep.Snapshot.Score(), 1.0)
}

func TestAnalyze_DependenciesOfflineAdvisoryOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"),
		[]byte(`{"dependencies":{"lodash":"4.17.15","minimist":"1.2.5"}}`), 0o644))

	f := vulndb.NewMockHTTPFetcher()
	f.AddError("https://osv.test/v1/querybatch", errors.New("no route to host"))
	a, _ := build(t, f)

	rep, err := a.Analyze(context.Background(), "print('hi')\n", assess.Options{Filename: "x.py", ExternalProjectPath: dir})
	require.NoError(t, err)
	require.Len(t, rep.Stages, 8)

	advisories := 0
	vulnerable := 0
	for _, i := range rep.SecurityIssues {
		switch {
		case i.Message == security.OfflineAdvisory:
			advisories++
			assert.Equal(t, assess.SeverityInfo, i.Severity)
		case i.Rule == "GHSA-p6mc-m468-83gw" || i.Rule == "GHSA-xvch-5gv4-984h":
			vulnerable++
		}
	}
	assert.Equal(t, 1, advisories)
	assert.Equal(t, 2, vulnerable)
}

func TestAnalyze_ClearCaches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"dependencies":{"left-pad":"1.3.0"}}`), 0o644))

	f := vulndb.NewMockHTTPFetcher()
	f.AddResponse("https://osv.test/v1/querybatch", http.StatusOK, `{"results":[{}]}`)
	a, built := build(t, f)

	_, err := a.Analyze(context.Background(), "x = 1\n", assess.Options{Filename: "x.py", ExternalProjectPath: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, built.Cache.Len())

	a.ClearCaches()
	assert.Equal(t, 0, built.Cache.Len())
}
