package security

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/pkg/logger"
	"github.com/fulmenhq/codescore/pkg/manifest"
	"github.com/fulmenhq/codescore/pkg/vulndb"
)

// OfflineAdvisory is the message of the single finding added when the
// vulnerability service could not be reached. Offline-only runs skip it.
const OfflineAdvisory = "Vulnerability database unavailable; dependency results come from the offline dataset"

// Dependencies checks the manifests of a project directory against a
// vulnerability database.
type Dependencies struct {
	client *vulndb.Client
	log    *logger.Logger
}

// NewDependencies returns a scanner backed by client.
func NewDependencies(client *vulndb.Client, log *logger.Logger) *Dependencies {
	if log == nil {
		log = logger.Nop()
	}
	return &Dependencies{client: client, log: log}
}

func (d *Dependencies) Scan(ctx context.Context, projectPath string) ([]assess.Issue, error) {
	info, err := os.Stat(projectPath)
	if err != nil || !info.IsDir() {
		return nil, &assess.InputError{Field: "project", Reason: fmt.Sprintf("%q is not a readable directory", projectPath)}
	}

	deps, err := manifest.Collect(projectPath)
	if err != nil {
		return nil, err
	}
	d.log.Debug("Collected dependencies", logger.Int("count", len(deps)), logger.String("project", projectPath))
	if len(deps) == 0 {
		return nil, nil
	}

	pkgs := make([]vulndb.Package, len(deps))
	for i, dep := range deps {
		pkgs[i] = vulndb.Package{Name: dep.Name, Ecosystem: dep.Ecosystem, Version: dep.Version}
	}
	res := d.client.Query(ctx, pkgs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var issues []assess.Issue
	for i, vulns := range res.Vulns {
		dep := deps[i]
		for _, v := range vulns {
			msg := fmt.Sprintf("Vulnerable dependency %s@%s (%s): %s", dep.Name, dep.Version, v.ID, v.Summary)
			if v.Summary == "" {
				msg = fmt.Sprintf("Vulnerable dependency %s@%s (%s)", dep.Name, dep.Version, v.ID)
			}
			issues = append(issues, assess.Issue{
				Category:   assess.CategorySecurity,
				Severity:   advisorySeverity(v.Severity),
				Message:    msg,
				Suggestion: fmt.Sprintf("Upgrade %s to a patched release (declared in %s)", dep.Name, dep.Manifest),
				Rule:       v.ID,
			})
		}
	}
	if res.FallbackErr != nil {
		issues = append(issues, assess.Issue{
			Category: assess.CategorySecurity,
			Severity: assess.SeverityInfo,
			Message:  OfflineAdvisory,
			Rule:     "vulndb-offline",
		})
	}
	return issues, nil
}

func advisorySeverity(s string) assess.Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL", "HIGH":
		return assess.SeverityError
	case "LOW":
		return assess.SeverityInfo
	default:
		return assess.SeverityWarning
	}
}
