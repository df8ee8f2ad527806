package types

import "testing"

func TestParsePkgInfoSources(t *testing.T) {
	data := []byte(`
name: vim
release: 3
description: the editor
sources:
  - git: https://github.com/vim/vim
    tag: v9.0.1
    name: vim-src
  - uri: https://example.org/patch.diff
    sha256: deadbeef
  - filename: local.patch
`)
	info, err := ParsePkgInfo(data)
	if err != nil {
		t.Fatalf("ParsePkgInfo: %v", err)
	}
	if info.Name != "vim" || info.Release != 3 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(info.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(info.Sources))
	}
	if info.Sources[0].Git == nil || info.Sources[0].Git.Tag != "v9.0.1" {
		t.Errorf("source 0 not parsed as git: %+v", info.Sources[0])
	}
	if info.Sources[1].HTTP == nil || info.Sources[1].HTTP.SHA256 != "deadbeef" {
		t.Errorf("source 1 not parsed as http: %+v", info.Sources[1])
	}
	if info.Sources[2].File == nil || info.Sources[2].File.Filename != "local.patch" {
		t.Errorf("source 2 not parsed as file: %+v", info.Sources[2])
	}
}

func TestGitSourceBranchDefaultsToMaster(t *testing.T) {
	info, err := ParsePkgInfo([]byte(`
name: x
release: 1
sources:
  - git: /local/repo
    name: x-src
`))
	if err != nil {
		t.Fatalf("ParsePkgInfo: %v", err)
	}
	if got := info.Sources[0].Git.Branch; got != "master" {
		t.Errorf("Branch = %q, want master", got)
	}
}

func TestGitSourceRejectsBranchAndTag(t *testing.T) {
	_, err := ParsePkgInfo([]byte(`
name: x
release: 1
sources:
  - git: /local/repo
    branch: dev
    tag: v1
    name: x-src
`))
	if err == nil {
		t.Fatal("expected error for branch+tag both set")
	}
}

func TestPkgManifestStatValidMode(t *testing.T) {
	for _, tt := range []struct {
		mode string
		want bool
	}{
		{"755", true},
		{"000", true},
		{"777", true},
		{"75", false},
		{"7558", false},
		{"789", false},
		{"abc", false},
	} {
		s := PkgManifestStat{Mode: tt.mode}
		if got := s.ValidMode(); got != tt.want {
			t.Errorf("ValidMode(%q) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}

func TestPkgManifestValidateM1(t *testing.T) {
	m := &PkgManifest{
		FileChecksums: map[string]string{"/usr/bin/foo": "abc"},
		Stat: map[string]PkgManifestStat{
			"/usr/bin/foo": {User: "root", Group: "root", Mode: "755"},
			"/usr/bin":     {User: "root", Group: "root", Mode: "755"},
		},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got, want := m.Dirs(), []string{"/usr/bin"}; len(got) != 1 || got[0] != want[0] {
		t.Errorf("Dirs() = %v, want %v", got, want)
	}

	bad := &PkgManifest{
		FileChecksums: map[string]string{"/etc/foo.conf": "abc"},
		Stat:          map[string]PkgManifestStat{},
	}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected Validate to fail on missing stat entry")
	}
}
