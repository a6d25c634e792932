// Package redundancy finds functions whose bodies are identical after
// whitespace normalization.
package redundancy

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/fulmenhq/codescore/internal/assess"
	"github.com/fulmenhq/codescore/internal/engines/source"
	"github.com/fulmenhq/codescore/internal/language"
)

// Engine is the redundancy engine.
type Engine struct{}

func New() *Engine { return &Engine{} }

// FindDuplicates reports every ordered pair of distinct functions sharing
// a body fingerprint, so each pair appears once per direction. Empty
// bodies are ignored.
func (e *Engine) FindDuplicates(ctx context.Context, code string, lang language.Language) (assess.RedundancyResult, error) {
	res := assess.RedundancyResult{Duplicates: []assess.Duplicate{}}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	type group struct {
		body string
		fns  []source.Function
	}
	var order []uint64
	groups := map[uint64][]*group{}

	for _, fn := range source.Functions(code, lang) {
		body := normalize(fn.Body)
		if body == "" {
			continue
		}
		sum := xxhash.Sum64String(body)
		var g *group
		for _, cand := range groups[sum] {
			if cand.body == body {
				g = cand
				break
			}
		}
		if g == nil {
			if len(groups[sum]) == 0 {
				order = append(order, sum)
			}
			g = &group{body: body}
			groups[sum] = append(groups[sum], g)
		}
		g.fns = append(g.fns, fn)
	}

	for _, sum := range order {
		for _, g := range groups[sum] {
			for _, a := range g.fns {
				for _, b := range g.fns {
					if a.Line == b.Line && a.Name == b.Name {
						continue
					}
					res.Duplicates = append(res.Duplicates, assess.Duplicate{
						Name:          a.Name,
						Line:          a.Line,
						DuplicateOf:   b.Name,
						DuplicateLine: b.Line,
					})
				}
			}
		}
	}
	return res, nil
}

func normalize(body string) string {
	return strings.Join(strings.Fields(body), " ")
}
