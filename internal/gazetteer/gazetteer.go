// Package gazetteer holds the reference table of French municipalities used to
// resolve headline locations. The table is built once at startup and is
// read-only afterwards, so it is safe for any number of concurrent readers.
package gazetteer

import (
	"math"
	"sort"

	"github.com/villefeed/faits-divers-crawler/internal/normalize"
)

// Municipality is one gazetteer entry. Name keeps the display spelling;
// lookups go through the normalized form.
type Municipality struct {
	Name           string
	DepartmentCode string
	Latitude       float64
	Longitude      float64
}

// Hint is a popular-city fallback entry. Hints are tried in load order, which
// defines their priority.
type Hint struct {
	Name           string
	DepartmentCode string
}

// Row is one raw input row before validation.
type Row struct {
	Name           string
	DepartmentCode string
	Latitude       float64
	Longitude      float64
}

type nameDeptKey struct {
	name string
	dept string
}

// Gazetteer indexes municipalities by normalized name and by
// (normalized name, department code). Every entry reachable through the
// department-scoped index is also reachable through the name index.
type Gazetteer struct {
	byNameDept map[nameDeptKey]Municipality
	byName     map[string][]Municipality
	byDept     map[string][]Municipality
}

// Build constructs a Gazetteer from raw rows. Rows with NaN or infinite
// coordinates are skipped. The result is immutable.
func Build(rows []Row) *Gazetteer {
	g := &Gazetteer{
		byNameDept: make(map[nameDeptKey]Municipality, len(rows)),
		byName:     make(map[string][]Municipality),
		byDept:     make(map[string][]Municipality),
	}
	for _, row := range rows {
		if !validCoordinate(row.Latitude) || !validCoordinate(row.Longitude) {
			continue
		}
		m := Municipality{
			Name:           row.Name,
			DepartmentCode: row.DepartmentCode,
			Latitude:       row.Latitude,
			Longitude:      row.Longitude,
		}
		name := normalize.Fold(row.Name)
		g.byNameDept[nameDeptKey{name: name, dept: row.DepartmentCode}] = m
		g.byName[name] = append(g.byName[name], m)
		g.byDept[row.DepartmentCode] = append(g.byDept[row.DepartmentCode], m)
	}
	// Prefix fallbacks scan a whole department; a fixed order (shortest
	// normalized name first, then lexicographic) keeps them deterministic.
	for dept := range g.byDept {
		entries := g.byDept[dept]
		sort.Slice(entries, func(i, j int) bool {
			ni, nj := normalize.Fold(entries[i].Name), normalize.Fold(entries[j].Name)
			if len(ni) != len(nj) {
				return len(ni) < len(nj)
			}
			return ni < nj
		})
	}
	return g
}

// Lookup returns the municipality registered under the normalized name and
// department code.
func (g *Gazetteer) Lookup(normalizedName, departmentCode string) (Municipality, bool) {
	m, ok := g.byNameDept[nameDeptKey{name: normalizedName, dept: departmentCode}]
	return m, ok
}

// ByName returns every municipality registered under the normalized name,
// across departments, in build order.
func (g *Gazetteer) ByName(normalizedName string) []Municipality {
	return g.byName[normalizedName]
}

// Department returns the municipalities of one department ordered by
// normalized name length, then lexicographically.
func (g *Gazetteer) Department(departmentCode string) []Municipality {
	return g.byDept[departmentCode]
}

// Len reports the number of distinct (name, department) entries.
func (g *Gazetteer) Len() int {
	return len(g.byNameDept)
}

func validCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
