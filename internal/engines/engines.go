// Package engines assembles the built-in analysis engines into the
// registry used by the analyzer.
package engines

import (
	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/complexity"
	"github.com/fulmenhq/codescore/internal/engines/formatting"
	"github.com/fulmenhq/codescore/internal/engines/lint"
	"github.com/fulmenhq/codescore/internal/engines/redundancy"
	"github.com/fulmenhq/codescore/internal/engines/security"
	"github.com/fulmenhq/codescore/internal/engines/style"
	"github.com/fulmenhq/codescore/pkg/config"
	"github.com/fulmenhq/codescore/pkg/logger"
	"github.com/fulmenhq/codescore/pkg/tools"
	"github.com/fulmenhq/codescore/pkg/vulndb"
)

// Deps are the collaborators the engines reach the outside world through.
// Nil fields select the real implementations.
type Deps struct {
	Executor tools.Executor
	Fetcher  vulndb.HTTPFetcher
	Logger   *logger.Logger
}

// Built is the outcome of DefaultRegistry. Cache is the vulnerability
// lookup cache the dependency scanner uses; hand it to the analyzer with
// assess.WithCache so it can be cleared.
type Built struct {
	Registry *assess.Registry
	Cache    *vulndb.Cache
}

// DefaultRegistry registers every built-in engine in a fixed order.
func DefaultRegistry(cfg config.Config, deps Deps) (*Built, error) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	client := vulndb.New(vulndb.Options{
		URL:           cfg.Security.VulnDB.URL,
		Timeout:       cfg.Security.VulnDB.Timeout,
		RatePerSecond: cfg.Security.VulnDB.RatePerSecond,
		OfflineOnly:   cfg.Security.VulnDB.OfflineOnly,
		Cache:         vulndb.NewCache(cfg.Security.VulnDB.CacheTTL),
		Fetcher:       deps.Fetcher,
		Logger:        log.Named("vulndb"),
	})

	var external *security.ExternalScanner
	if sa := cfg.Security.StaticAnalysis; sa.Enabled {
		external = security.NewExternalScanner(deps.Executor, sa.Binary, sa.Rules, log.Named("scanner"))
	}

	reg := assess.NewRegistry()
	steps := []func() error{
		func() error { return reg.RegisterIssues(assess.LabelLint, lint.New()) },
		func() error { return reg.RegisterIssues(assess.LabelStyle, style.New(cfg.Analysis.MaxLineLength)) },
		func() error { return reg.RegisterIssues(assess.LabelSecurityHeuristic, security.NewHeuristic()) },
		func() error {
			return reg.RegisterIssues(assess.LabelSecurityStructural, security.NewStructural(external, log.Named("security")))
		},
		func() error {
			return reg.RegisterDependencies(assess.LabelSecurityDependencies, security.NewDependencies(client, log.Named("dependencies")))
		},
		func() error {
			return reg.RegisterComplexity(assess.LabelComplexity, complexity.New(complexity.Limits{
				MaxCyclomatic: cfg.Complexity.MaxCyclomatic,
				MaxLength:     cfg.Complexity.MaxLength,
				MaxNesting:    cfg.Complexity.MaxNesting,
			}))
		},
		func() error { return reg.RegisterRedundancy(assess.LabelRedundancy, redundancy.New()) },
		func() error {
			return reg.RegisterFormatting(assess.LabelFormatting, formatting.New(cfg.Analysis.ContextLines, log.Named("formatting")))
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return &Built{Registry: reg, Cache: client.Cache()}, nil
}
