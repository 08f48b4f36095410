// Package resolver matches a headline to a French municipality using the
// gazetteer and a popular-city fallback list.
package resolver

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/villefeed/faits-divers-crawler/internal/gazetteer"
	"github.com/villefeed/faits-divers-crawler/internal/normalize"
)

// deptPattern matches a parenthesized French department code, e.g. "(75)" or
// "(974)". The pattern is ASCII-only, so positions are identical in the raw
// and diacritic-stripped forms of a headline.
var deptPattern = regexp.MustCompile(`\((\d{1,3})\)`)

type hint struct {
	folded string
	dept   string
}

// Resolver resolves headlines against an immutable gazetteer. It is safe for
// concurrent use.
//
// When several municipalities of a department share the extracted fragment as
// a name prefix, the shortest normalized name wins, ties broken
// lexicographically (the gazetteer's department order).
type Resolver struct {
	gaz    *gazetteer.Gazetteer
	hints  []hint
	logger *zap.Logger
}

// New builds a Resolver. Hint names are folded once up front; hint order is
// priority order.
func New(gaz *gazetteer.Gazetteer, hints []gazetteer.Hint, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	folded := make([]hint, 0, len(hints))
	for _, h := range hints {
		folded = append(folded, hint{folded: normalize.Fold(h.Name), dept: h.DepartmentCode})
	}
	return &Resolver{gaz: gaz, hints: folded, logger: logger}
}

// maxWindow bounds the trailing token window tried against the gazetteer.
// French commune names never exceed five words once folded.
const maxWindow = 5

// Resolve returns the municipality named by the headline, or false when no
// stage matches. A miss is not an error; the caller drops the article.
func (r *Resolver) Resolve(title string) (gazetteer.Municipality, bool) {
	if m, ok := r.departmentTagged(title); ok {
		return m, true
	}
	if m, ok := r.popularHint(title); ok {
		return m, true
	}
	r.logger.Debug("no municipality resolved", zap.String("title", title))
	return gazetteer.Municipality{}, false
}

// departmentTagged implements stage 1: a "(dd)" department tag with the city
// named immediately before it.
func (r *Resolver) departmentTagged(title string) (gazetteer.Municipality, bool) {
	loc := deptPattern.FindStringSubmatchIndex(title)
	if loc == nil {
		return gazetteer.Municipality{}, false
	}
	dept := title[loc[2]:loc[3]]
	fragment := strings.TrimRight(strings.TrimSpace(title[:loc[0]]), ".!?")
	fragment = normalize.Fold(fragment)

	// Longest trailing token window first: "saint denis" must beat "denis".
	tokens := strings.Fields(fragment)
	for size := min(maxWindow, len(tokens)); size >= 1; size-- {
		window := strings.Join(tokens[len(tokens)-size:], " ")
		if m, ok := r.gaz.Lookup(window, dept); ok {
			return m, true
		}
	}

	// Partial fallback: the fragment is a prefix of a registered name in the
	// same department.
	for _, m := range r.gaz.Department(dept) {
		if strings.HasPrefix(normalize.Fold(m.Name), fragment) {
			r.logger.Debug("partial department match",
				zap.String("fragment", fragment),
				zap.String("city", m.Name),
				zap.String("dept", dept))
			return m, true
		}
	}
	return gazetteer.Municipality{}, false
}

// popularHint implements stage 2: a known city name appearing anywhere in the
// headline, tried in hint priority order.
func (r *Resolver) popularHint(title string) (gazetteer.Municipality, bool) {
	folded := normalize.Fold(title)
	for _, h := range r.hints {
		if h.folded == "" || !strings.Contains(folded, h.folded) {
			continue
		}
		if m, ok := r.gaz.Lookup(h.folded, h.dept); ok {
			return m, true
		}
		for _, m := range r.gaz.Department(h.dept) {
			if strings.HasPrefix(normalize.Fold(m.Name), h.folded) {
				return m, true
			}
		}
	}
	return gazetteer.Municipality{}, false
}
