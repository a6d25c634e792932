/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package security

import (
	"context"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/language"
	"github.com/fulmenhq/codescore/pkg/logger"
)

// Structural is the authoritative security engine: syntax-tree checks for
// Go plus an optional external scanner for every language.
type Structural struct {
	external *ExternalScanner
	log      *logger.Logger
}

// NewStructural returns a Structural engine. external may be nil.
func NewStructural(external *ExternalScanner, log *logger.Logger) *Structural {
	if log == nil {
		log = logger.Nop()
	}
	return &Structural{external: external, log: log}
}

func (s *Structural) Analyze(ctx context.Context, code string, lang language.Language) ([]assess.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var issues []assess.Issue
	if lang == language.Go {
		issues = goFindings(code)
	}
	if s.external == nil {
		return issues, nil
	}

	found, err := s.external.Scan(ctx, code, lang)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("External static analysis failed", logger.Err(err))
		return issues, nil
	}
	return append(issues, found...), nil
}
