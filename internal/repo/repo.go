// Package repo wraps one configured repository (spec §3 "Package
// identity", SPEC_FULL.md §4.9): a local recipe directory or a git clone,
// looked up by qualified or unqualified package name, and refreshed via
// git fetch/pull shelled out through os/exec in the teacher's subprocess
// style (cmd/distri/patch.go, cmd/distri/update.go).
package repo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/types"
)

// Repo is one configured repository, resolved to its on-disk directory.
type Repo struct {
	Name string
	Dir  string
	cfg  config.RepoEntry
}

// List returns every configured repo in cfg's declared order.
func List(cfg *config.Config) []Repo {
	out := make([]Repo, 0, len(cfg.Repos))
	for _, r := range cfg.Repos {
		out = append(out, Repo{Name: r.Name, Dir: cfg.RepoDir(r.Name), cfg: r})
	}
	return out
}

// Lookup resolves name (qualified "repo/pkg" or unqualified "pkg") to the
// repo and recipe directory that owns it. An unqualified name searches
// repos in configured order and returns the first match (spec §3).
func Lookup(cfg *config.Config, name string) (repo Repo, recipeDir string, err error) {
	parsed, err := types.ParseName(name)
	if err != nil {
		return Repo{}, "", err
	}
	repos := List(cfg)
	if parsed.Repo != "" {
		for _, r := range repos {
			if r.Name == parsed.Repo {
				dir := filepath.Join(r.Dir, parsed.Pkg)
				if _, err := os.Stat(dir); err != nil {
					return Repo{}, "", xerrors.Errorf("package %q: %w", name, err)
				}
				return r, dir, nil
			}
		}
		return Repo{}, "", &types.RepoNotFoundError{Repo: parsed.Repo}
	}
	for _, r := range repos {
		dir := filepath.Join(r.Dir, parsed.Pkg)
		if _, err := os.Stat(dir); err == nil {
			return r, dir, nil
		}
	}
	return Repo{}, "", xerrors.Errorf("package %q not found in any configured repo", name)
}

// RecipeDirs returns every recipe directory (package subdirectory) within
// the repo, used by the fuzzy-search command.
func (r Repo) RecipeDirs() ([]string, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Refresh updates a git-backed repo in place: clones it if the directory
// doesn't exist yet, otherwise fetches and fast-forwards to the configured
// branch or tag. Local (non-git) repos are a no-op.
func (r Repo) Refresh(ctx context.Context) error {
	if r.cfg.IsLocal() {
		return nil
	}
	if _, err := os.Stat(filepath.Join(r.Dir, ".git")); os.IsNotExist(err) {
		return r.clone(ctx)
	}
	if err := runGit(ctx, r.Dir, "fetch", "--tags", "origin"); err != nil {
		return err
	}
	ref := r.cfg.Branch
	if ref == "" {
		ref = "master"
	}
	if r.cfg.Tag != "" {
		if err := runGit(ctx, r.Dir, "checkout", r.cfg.Tag); err != nil {
			return &types.GitRepoInvalidTagError{Tag: r.cfg.Tag}
		}
		return nil
	}
	if err := runGit(ctx, r.Dir, "checkout", ref); err != nil {
		return &types.GitRepoInvalidBranchError{Branch: ref}
	}
	return runGit(ctx, r.Dir, "merge", "--ff-only", "origin/"+ref)
}

func (r Repo) clone(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.Dir), 0755); err != nil {
		return err
	}
	args := []string{"clone", r.cfg.Git, r.Dir}
	if r.cfg.Branch != "" {
		args = []string{"clone", "--branch", r.cfg.Branch, r.cfg.Git, r.Dir}
	}
	if err := runGit(ctx, "", args...); err != nil {
		return err
	}
	if r.cfg.Tag != "" {
		if err := runGit(ctx, r.Dir, "checkout", r.cfg.Tag); err != nil {
			return &types.GitRepoInvalidTagError{Tag: r.cfg.Tag}
		}
	}
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return &types.GitRepoError{Reason: strings.Join(args, " ") + ": " + err.Error()}
	}
	return nil
}
