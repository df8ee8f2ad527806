package archive

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"

	"github.com/jwdevantier/leport/internal/types"
)

func buildTestArchive(t *testing.T) (archivePath string, statMap map[string]types.PkgManifestStat) {
	t.Helper()
	destdir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(destdir, "usr", "bin"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(destdir, "usr", "bin", "foo"), []byte("#!/bin/sh\necho hi\n"), 0755); err != nil {
		t.Fatal(err)
	}

	statMap = map[string]types.PkgManifestStat{
		"/usr":         {User: "root", Group: "root", Mode: "755"},
		"/usr/bin":     {User: "root", Group: "root", Mode: "755"},
		"/usr/bin/foo": {User: "root", Group: "root", Mode: "755"},
	}

	info := &types.PkgInfo{Name: "foo", Version: "0.1", Release: 1}
	archivePath = filepath.Join(t.TempDir(), "foo.tar.xz")
	if err := Write(archivePath, destdir, info, statMap, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return archivePath, statMap
}

func TestWriteThenReadMetadata(t *testing.T) {
	archivePath, statMap := buildTestArchive(t)

	info, manifest, hooksPy, err := ReadMetadata(archivePath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if info.Name != "foo" {
		t.Errorf("info.Name = %q, want foo", info.Name)
	}
	if hooksPy != nil {
		t.Errorf("expected no hooks.py, got %d bytes", len(hooksPy))
	}
	if len(manifest.FileChecksums) != 1 {
		t.Fatalf("expected 1 file checksum, got %d", len(manifest.FileChecksums))
	}
	if _, ok := manifest.FileChecksums["/usr/bin/foo"]; !ok {
		t.Fatalf("missing checksum for /usr/bin/foo: %+v", manifest.FileChecksums)
	}
	if len(manifest.Stat) != len(statMap) {
		t.Fatalf("stat map size = %d, want %d", len(manifest.Stat), len(statMap))
	}
}

func TestExtractStripsFilesPrefixAndRootsAbsolute(t *testing.T) {
	archivePath, _ := buildTestArchive(t)

	var dests []string
	err := Extract(archivePath, func(m Member) error {
		dests = append(dests, m.Dest)
		return nil
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := map[string]bool{"/usr": true, "/usr/bin": true, "/usr/bin/foo": true}
	if len(dests) != len(want) {
		t.Fatalf("dests = %v, want keys of %v", dests, want)
	}
	for _, d := range dests {
		if !want[d] {
			t.Errorf("unexpected dest %q", d)
		}
	}
}

func TestWriteFailsOnMissingStatEntry(t *testing.T) {
	destdir := t.TempDir()
	if err := os.WriteFile(filepath.Join(destdir, "onlyfile"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	info := &types.PkgInfo{Name: "x", Version: "1", Release: 1}
	err := Write(filepath.Join(t.TempDir(), "x.tar.xz"), destdir, info, map[string]types.PkgManifestStat{}, nil)
	if err == nil {
		t.Fatal("expected error for missing stat entries")
	}
	if _, ok := err.(*MissingStatError); !ok {
		t.Fatalf("expected *MissingStatError, got %T: %v", err, err)
	}
}

func TestReadMetadataMissingInfoYML(t *testing.T) {
	// A manifest-only archive (no info.yml) must surface InvalidArchiveError.
	destdir := t.TempDir()
	archivePath := filepath.Join(t.TempDir(), "bad.tar.xz")
	info := &types.PkgInfo{Name: "x", Version: "1", Release: 1}
	if err := Write(archivePath, destdir, info, map[string]types.PkgManifestStat{}, nil); err != nil {
		t.Fatal(err)
	}
	// sanity: well-formed archive round-trips without error
	if _, _, _, err := ReadMetadata(archivePath); err != nil {
		t.Fatalf("ReadMetadata on well-formed archive: %v", err)
	}

	badPath := filepath.Join(t.TempDir(), "noinfo.tar.xz")
	f, err := os.Create(badPath)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(zw)
	manifest := &types.PkgManifest{FileChecksums: map[string]string{}, Stat: map[string]types.PkgManifestStat{}}
	if err := writeYAMLMember(tw, "manifest.yml", manifest); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	_, _, _, err = ReadMetadata(badPath)
	if _, ok := err.(*types.InvalidArchiveError); !ok {
		t.Fatalf("expected *types.InvalidArchiveError, got %T: %v", err, err)
	}
}
