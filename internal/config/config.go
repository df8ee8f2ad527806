// Package config loads the root-directory layout and config.yml schema
// (spec §6, SPEC_FULL.md §4.8). A Config is a plain value constructed once
// at the CLI entry point and threaded explicitly through every engine
// constructor; no component reads from ambient/global state (spec §9
// "Process-wide config state").
package config

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// SharedGroup is the POSIX group name that owns the root tree.
const SharedGroup = "leport"

// RepoEntry is one configured repository: a git-backed clone when Git is
// set, otherwise a hand-maintained local directory under repos/<Name>.
type RepoEntry struct {
	Name   string `yaml:"name"`
	Git    string `yaml:"git,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
}

// IsLocal reports whether the entry is a hand-maintained local directory.
func (r RepoEntry) IsLocal() bool { return r.Git == "" }

// File is config.yml's decoded shape.
type File struct {
	Repos []RepoEntry `yaml:"repos"`
}

// Config is the fully resolved runtime configuration: the root directory
// and the decoded config.yml. Every path helper below derives from Root.
type Config struct {
	Root  string
	Repos []RepoEntry
}

// RootDir resolves the install root in priority order: flagRoot (non-empty
// means the --root-dir flag was given), then LEPORT_ROOT, then the
// /opt/leport default (spec §6 "Root-directory discovery").
func RootDir(flagRoot string) string {
	if flagRoot != "" {
		return flagRoot
	}
	if env := os.Getenv("LEPORT_ROOT"); env != "" {
		return env
	}
	return "/opt/leport"
}

// Load reads <root>/config.yml. A missing file yields an empty Config
// (valid before `init` has run for anything but `init` itself).
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, "config.yml"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Root: root}, nil
		}
		return nil, fmt.Errorf("reading config.yml: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config.yml: %w", err)
	}
	return &Config{Root: root, Repos: f.Repos}, nil
}

// Save writes cfg's repos back to <root>/config.yml.
func (c *Config) Save() error {
	data, err := yaml.Marshal(File{Repos: c.Repos})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Root, "config.yml"), data, 0664)
}

// On-disk layout helpers (spec §6 "On-disk layout").

func (c *Config) ReposDir() string             { return filepath.Join(c.Root, "repos") }
func (c *Config) RepoDir(name string) string   { return filepath.Join(c.ReposDir(), name) }
func (c *Config) PkgsDir() string               { return filepath.Join(c.Root, "pkgs") }
func (c *Config) PkgArchive(repo, pkg string) string {
	return filepath.Join(c.PkgsDir(), repo, pkg+".xz")
}
func (c *Config) DataDir() string       { return filepath.Join(c.Root, "data") }
func (c *Config) DBPath() string        { return filepath.Join(c.DataDir(), "db.sqlite") }
func (c *Config) RegistryDir() string   { return filepath.Join(c.DataDir(), "registry") }
func (c *Config) PkgRegistryDir(pkg string) string {
	return filepath.Join(c.RegistryDir(), pkg)
}
func (c *Config) BuildDir(repo, pkg string) string {
	return filepath.Join(c.DataDir(), "build", repo, pkg)
}
func (c *Config) DestDir(repo, pkg string) string {
	return filepath.Join(c.DataDir(), "destdir", repo, pkg)
}

// Init creates the root directory tree, an empty config.yml, and ensures
// the shared group exists (spec §6 `init`). It does not open the registry
// database; Store.Open creates it lazily on first use.
func Init(root string) error {
	dirs := []string{
		root,
		filepath.Join(root, "repos"),
		filepath.Join(root, "pkgs"),
		filepath.Join(root, "data"),
		filepath.Join(root, "data", "registry"),
		filepath.Join(root, "data", "build"),
		filepath.Join(root, "data", "destdir"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0775); err != nil {
			return fmt.Errorf("creating %s: %w", d, err)
		}
	}
	if err := EnsureSharedGroup(os.Stdin, os.Stderr); err != nil {
		return err
	}
	cfgPath := filepath.Join(root, "config.yml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := &Config{Root: root}
		if err := cfg.Save(); err != nil {
			return err
		}
	}
	return nil
}

// RequireSharedGroup fails if the "leport" group does not exist. Used by
// commands other than `init` (spec §4.4 precondition 3: "the package group
// exists") — those commands check, they don't provision.
func RequireSharedGroup() error {
	if _, err := user.LookupGroup(SharedGroup); err != nil {
		return fmt.Errorf("group %q does not exist; run `leport init` first", SharedGroup)
	}
	return nil
}

// EnsureSharedGroup looks up the "leport" group, creating it via groupadd(8)
// if absent. Go's standard library has no group-create primitive, so this
// shells out the same way the original `init` command does (`sh("groupadd",
// group_name)`), after confirming on out/in — falling back to declining
// when out is not a terminal, so a scripted invocation doesn't hang. A
// declined or failed creation is reported as an error (spec §6 "1 on
// group-create refusal").
func EnsureSharedGroup(in, out *os.File) error {
	if _, err := user.LookupGroup(SharedGroup); err == nil {
		return nil
	}
	if !isatty.IsTerminal(out.Fd()) {
		return fmt.Errorf("group %q does not exist and %s is not a terminal to confirm creating it", SharedGroup, out.Name())
	}
	fmt.Fprintf(out, "leport uses a group to allow multiple non-root users to administrate system ports.\n")
	fmt.Fprintf(out, "Create group %q? [y/N] ", SharedGroup)
	reader := bufio.NewReader(in)
	line, _ := reader.ReadString('\n')
	switch line {
	case "y\n", "Y\n", "yes\n":
	default:
		return fmt.Errorf("group %q creation declined", SharedGroup)
	}
	cmd := exec.Command("groupadd", SharedGroup)
	cmd.Stdout, cmd.Stderr = out, out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("groupadd %s: %w", SharedGroup, err)
	}
	return nil
}

// InGroup reports whether the current process has SharedGroup among its
// supplementary group IDs (spec §6 "Non-root commands must run in that
// group").
func InGroup() (bool, error) {
	g, err := user.LookupGroup(SharedGroup)
	if err != nil {
		return false, err
	}
	wantGID := g.Gid
	gids, err := unix.Getgroups()
	if err != nil {
		return false, err
	}
	for _, gid := range gids {
		if fmt.Sprint(gid) == wantGID {
			return true, nil
		}
	}
	return false, nil
}
