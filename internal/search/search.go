// Package search implements fuzzy package-name lookup across configured
// repos (spec §6 `search`, SPEC_FULL.md §4.11) using Levenshtein edit
// distance.
package search

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/repo"
)

// Match is one candidate within the requested edit distance.
type Match struct {
	Repo     string
	Pkg      string
	Distance int
}

// String renders the match the way the CLI prints it: "repo/name".
func (m Match) String() string { return m.Repo + "/" + m.Pkg }

// Search ranks every recipe across cfg's configured repos by Levenshtein
// distance to name, keeping only matches within maxDist, sorted by
// (distance, repo, name) for deterministic output.
func Search(cfg *config.Config, name string, maxDist int) ([]Match, error) {
	var matches []Match
	for _, r := range repo.List(cfg) {
		names, err := r.RecipeDirs()
		if err != nil {
			return nil, err
		}
		for _, pkg := range names {
			d := levenshtein.ComputeDistance(name, pkg)
			if d <= maxDist {
				matches = append(matches, Match{Repo: r.Name, Pkg: pkg, Distance: d})
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Repo != b.Repo {
			return a.Repo < b.Repo
		}
		return a.Pkg < b.Pkg
	})
	return matches, nil
}
