// Package types holds the wire-level data model shared by the build,
// install, and remove engines: package identity, recipe/archive metadata
// (PkgInfo, PkgManifest), and the typed errors the core raises.
package types

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// GitSource clones (or reuses a local clone of) a git repository as one of
// a package's sources. Exactly one of Branch/Tag may be set; Branch
// defaults to "master" when neither is given.
type GitSource struct {
	Git    string `yaml:"git"`
	Branch string `yaml:"branch,omitempty"`
	Tag    string `yaml:"tag,omitempty"`
	Name   string `yaml:"name"`
}

// HTTPSource downloads a single file by URI, optionally pinned to a
// sha256 checksum.
type HTTPSource struct {
	URI    string `yaml:"uri"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// FileSource copies a plain file out of the recipe directory, optionally
// pinned to a sha256 checksum. Filename must not contain path segments.
type FileSource struct {
	Filename string `yaml:"filename"`
	SHA256   string `yaml:"sha256,omitempty"`
}

// Source is a closed sum type over the three source kinds a recipe may
// list. Exactly one of Git/HTTP/File is non-nil for any well-formed Source.
type Source struct {
	Git  *GitSource  `yaml:"git_source,omitempty"`
	HTTP *HTTPSource `yaml:"http_source,omitempty"`
	File *FileSource `yaml:"file_source,omitempty"`
}

// rawSource mirrors the YAML shape recipes actually author: one of the
// three variants' fields inlined at the top level, disambiguated by which
// of git/uri/filename is present.
type rawSource struct {
	Git      string `yaml:"git"`
	Branch   string `yaml:"branch"`
	Tag      string `yaml:"tag"`
	Name     string `yaml:"name"`
	URI      string `yaml:"uri"`
	Filename string `yaml:"filename"`
	SHA256   string `yaml:"sha256"`
}

func (s *Source) UnmarshalYAML(node *yaml.Node) error {
	var raw rawSource
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch {
	case raw.Git != "":
		if raw.Branch != "" && raw.Tag != "" {
			return fmt.Errorf("git source %q: cannot specify both branch and tag", raw.Git)
		}
		branch := raw.Branch
		if branch == "" && raw.Tag == "" {
			branch = "master"
		}
		s.Git = &GitSource{Git: raw.Git, Branch: branch, Tag: raw.Tag, Name: raw.Name}
	case raw.URI != "":
		s.HTTP = &HTTPSource{URI: raw.URI, SHA256: raw.SHA256}
	case raw.Filename != "":
		s.File = &FileSource{Filename: raw.Filename, SHA256: raw.SHA256}
	default:
		return fmt.Errorf("source has none of git/uri/filename set")
	}
	return nil
}

func (s Source) MarshalYAML() (interface{}, error) {
	var raw rawSource
	switch {
	case s.Git != nil:
		raw = rawSource{Git: s.Git.Git, Branch: s.Git.Branch, Tag: s.Git.Tag, Name: s.Git.Name}
	case s.HTTP != nil:
		raw = rawSource{URI: s.HTTP.URI, SHA256: s.HTTP.SHA256}
	case s.File != nil:
		raw = rawSource{Filename: s.File.Filename, SHA256: s.File.SHA256}
	}
	return raw, nil
}

// BuildStep is one named stage of the declarative recipe (spec §9 option
// (a)): a list of argv-style commands executed with BUILD_DIR/DEST_DIR in
// the environment. See SPEC_FULL.md §4.13.
type BuildStep [][]string

// BuildSteps is the declarative recipe body that replaces a dynamically
// loaded build.py: one optional step list per pipeline stage.
type BuildSteps struct {
	Prepare    BuildStep `yaml:"prepare,omitempty"`
	PkgVersion BuildStep `yaml:"pkg_version,omitempty"`
	Depends    BuildStep `yaml:"depends,omitempty"`
	Build      BuildStep `yaml:"build,omitempty"`
	Check      BuildStep `yaml:"check,omitempty"`
	Install    BuildStep `yaml:"install,omitempty"`
}

// PkgInfo is recipe and archive metadata, serialized as info.yml.
type PkgInfo struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version,omitempty"`
	Release     int        `yaml:"release"`
	Description string     `yaml:"description,omitempty"`
	Sources     []Source   `yaml:"sources,omitempty"`
	URL         string     `yaml:"url,omitempty"`
	Build       BuildSteps `yaml:"build,omitempty"`
}

// ParsePkgInfo decodes a PkgInfo from its YAML form (info.yml contents).
func ParsePkgInfo(data []byte) (*PkgInfo, error) {
	var info PkgInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing info.yml: %w", err)
	}
	if info.Name == "" {
		return nil, fmt.Errorf("info.yml: name must not be empty")
	}
	return &info, nil
}

// ToYAML serializes info back to its info.yml form.
func (i *PkgInfo) ToYAML() ([]byte, error) {
	return yaml.Marshal(i)
}

// PkgManifestStat is per-path ownership/permission metadata: a user name,
// a group name, and a mode expressed as a three-digit octal string.
type PkgManifestStat struct {
	User  string `yaml:"user"`
	Group string `yaml:"group"`
	Mode  string `yaml:"mode"`
}

// ValidMode reports whether Mode is a well-formed three-digit octal value,
// each digit in {0..7}.
func (s PkgManifestStat) ValidMode() bool {
	if len(s.Mode) != 3 {
		return false
	}
	for _, c := range s.Mode {
		if c < '0' || c > '7' {
			return false
		}
	}
	return true
}

// ModeBits parses Mode into the low 9 permission bits.
func (s PkgManifestStat) ModeBits() (uint32, error) {
	if !s.ValidMode() {
		return 0, fmt.Errorf("invalid mode %q: expected three octal digits", s.Mode)
	}
	var v uint32
	for _, c := range s.Mode {
		v = v*8 + uint32(c-'0')
	}
	return v, nil
}

// PkgManifest is the structured description of everything a package
// contributes to the host: per-file checksums and per-path stat info.
// Invariant M1 (spec §3): every file_checksums entry has a matching stat
// entry; every stat entry not present in file_checksums denotes a
// directory.
type PkgManifest struct {
	FileChecksums map[string]string          `yaml:"file_checksums"`
	Stat          map[string]PkgManifestStat `yaml:"stat"`
}

// ParsePkgManifest decodes a PkgManifest from its YAML form.
func ParsePkgManifest(data []byte) (*PkgManifest, error) {
	m := &PkgManifest{
		FileChecksums: map[string]string{},
		Stat:          map[string]PkgManifestStat{},
	}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parsing manifest.yml: %w", err)
	}
	return m, nil
}

// ToYAML serializes the manifest back to its manifest.yml form.
func (m *PkgManifest) ToYAML() ([]byte, error) {
	return yaml.Marshal(m)
}

// Validate enforces invariant M1: every file_checksums path has a stat
// entry.
func (m *PkgManifest) Validate() error {
	var missing []string
	for p := range m.FileChecksums {
		if _, ok := m.Stat[p]; !ok {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &ManifestViolation{Path: missing[0], Reason: "missing stat entry"}
	}
	return nil
}

// Dirs returns the subset of Stat paths that are directories: those not
// present in FileChecksums.
func (m *PkgManifest) Dirs() []string {
	var dirs []string
	for p := range m.Stat {
		if _, ok := m.FileChecksums[p]; !ok {
			dirs = append(dirs, p)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// Files returns the manifest's file paths in deterministic (sorted)
// order, matching the archive's natural iteration order requirement
// (spec §4.7 "ordering must be deterministic").
func (m *PkgManifest) Files() []string {
	files := make([]string, 0, len(m.FileChecksums))
	for p := range m.FileChecksums {
		files = append(files, p)
	}
	sort.Strings(files)
	return files
}
