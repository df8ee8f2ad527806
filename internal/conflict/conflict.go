// Package conflict implements the conflict-resolution policy (spec §4.7): a
// pure function over a manifest, the live filesystem, and a decision
// source, producing one overwrite decision per pre-existing file.
package conflict

import (
	"bufio"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/jwdevantier/leport/internal/registry"
	"github.com/jwdevantier/leport/internal/types"
)

// Conflict is one pre-existing file a package's manifest also claims.
type Conflict struct {
	Path      string
	OwnedBy   string // "" if the file is untracked (not owned by any package)
	Overwrite bool
}

// Decider resolves a single conflict to an overwrite decision.
type Decider interface {
	Decide(c Conflict) (overwrite bool, err error)
}

// Force always overwrites, matching `install --force` (spec §6).
type Force struct{}

func (Force) Decide(Conflict) (bool, error) { return true, nil }

// Deny never overwrites; used by non-interactive/headless callers that want
// conflicts treated as hard failures-to-skip rather than prompts.
type Deny struct{}

func (Deny) Decide(Conflict) (bool, error) { return false, nil }

// Interactive prompts on the given reader/writer, falling back to Deny
// when Out is not a terminal (so scripted invocations don't hang on a
// prompt that will never be answered).
type Interactive struct {
	In  *os.File
	Out *os.File
}

func (d Interactive) Decide(c Conflict) (bool, error) {
	if !isatty.IsTerminal(d.Out.Fd()) {
		return false, nil
	}
	owner := c.OwnedBy
	if owner == "" {
		owner = "<untracked>"
	}
	fmt.Fprintf(d.Out, "file conflict: %s (owned by %s) already exists. Overwrite? [y/N] ", c.Path, owner)
	reader := bufio.NewReader(d.In)
	line, _ := reader.ReadString('\n')
	switch line {
	case "y\n", "Y\n", "yes\n":
		return true, nil
	default:
		return false, nil
	}
}

// Enumerate walks manifest's file paths in deterministic order and returns
// a Conflict for every one that already exists on the host as anything
// other than a directory. Directory paths are never conflicts: they may be legitimately
// shared across packages (spec §3 dirs table).
func Enumerate(manifest *types.PkgManifest, store *registry.Store) ([]Conflict, error) {
	var out []Conflict
	for _, p := range manifest.Files() {
		fi, err := os.Lstat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		if fi.IsDir() {
			continue
		}
		owner, err := store.WhichPkgOwnsFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, Conflict{Path: p, OwnedBy: owner})
	}
	return out, nil
}

// Resolve enumerates conflicts and asks d to decide each one, returning a
// map usable directly by the install engine (path -> overwrite?).
func Resolve(manifest *types.PkgManifest, store *registry.Store, d Decider) (map[string]bool, []Conflict, error) {
	conflicts, err := Enumerate(manifest, store)
	if err != nil {
		return nil, nil, err
	}
	decisions := make(map[string]bool, len(conflicts))
	for i := range conflicts {
		ov, err := d.Decide(conflicts[i])
		if err != nil {
			return nil, nil, err
		}
		conflicts[i].Overwrite = ov
		decisions[conflicts[i].Path] = ov
	}
	return decisions, conflicts, nil
}
