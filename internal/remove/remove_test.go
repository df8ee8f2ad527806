package remove

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/registry"
	"github.com/jwdevantier/leport/internal/types"
)

// installFixture records pkg as installed without going through the
// install engine: it writes the registry metadata directory and the
// relational rows directly, matching what Install would have left behind.
func installFixture(t *testing.T, cfg *config.Config, store *registry.Store, pkg string, files map[string]string, dirs []string) {
	t.Helper()
	metaDir := cfg.PkgRegistryDir(pkg)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		t.Fatal(err)
	}
	info := &types.PkgInfo{Name: pkg, Version: "1", Release: 1}
	infoYAML, err := info.ToYAML()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "info.yml"), infoYAML, 0644); err != nil {
		t.Fatal(err)
	}
	checksums := map[string]string{}
	for p, content := range files {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		checksums[p] = "deadbeef"
	}
	manifest := &types.PkgManifest{FileChecksums: checksums, Stat: map[string]types.PkgManifestStat{}}
	manifestYAML, err := manifest.ToYAML()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(metaDir, "manifest.yml"), manifestYAML, 0644); err != nil {
		t.Fatal(err)
	}

	tx, err := store.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := tx.RecordPkg(info); err != nil {
		t.Fatal(err)
	}
	if err := tx.RecordFiles(pkg, checksums); err != nil {
		t.Fatal(err)
	}
	if err := tx.RecordDirs(pkg, dirs); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func testSetup(t *testing.T) (*config.Config, *registry.Store) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{Root: root}
	store, err := registry.Open(filepath.Join(root, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return cfg, store
}

func TestRemoveUnlinksFilesAndRegistry(t *testing.T) {
	cfg, store := testSetup(t)
	fileDir := t.TempDir()
	filePath := filepath.Join(fileDir, "foo.conf")
	installFixture(t, cfg, store, "foo", map[string]string{filePath: "x"}, nil)

	if err := Remove(context.Background(), cfg, store, "foo"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err = %v", err)
	}
	has, err := store.HasPkg("foo")
	if err != nil || has {
		t.Fatalf("HasPkg(foo) after remove = %v, %v", has, err)
	}
	if _, err := os.Stat(cfg.PkgRegistryDir("foo")); !os.IsNotExist(err) {
		t.Fatalf("metadata dir should be gone, stat err = %v", err)
	}
}

func TestRemoveRefusesQualifiedName(t *testing.T) {
	cfg, store := testSetup(t)
	err := Remove(context.Background(), cfg, store, "repo/foo")
	if err == nil {
		t.Fatal("expected error for qualified name")
	}
}

func TestRemoveMissingRegistryEntry(t *testing.T) {
	cfg, store := testSetup(t)
	err := Remove(context.Background(), cfg, store, "nope")
	if _, ok := err.(*types.InvalidRegistryEntry); !ok {
		t.Fatalf("expected *types.InvalidRegistryEntry, got %v", err)
	}
}

func TestRemoveHonorsSharedDirectory(t *testing.T) {
	cfg, store := testSetup(t)
	shared := t.TempDir()
	aFile := filepath.Join(shared, "a")
	bFile := filepath.Join(shared, "b")
	if err := os.WriteFile(bFile, []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	installFixture(t, cfg, store, "pkga", map[string]string{aFile: "a"}, []string{shared})
	installFixture(t, cfg, store, "pkgb", map[string]string{bFile: "b"}, []string{shared})

	if err := Remove(context.Background(), cfg, store, "pkga"); err != nil {
		t.Fatalf("Remove(pkga): %v", err)
	}
	if _, err := os.Stat(shared); err != nil {
		t.Fatalf("shared dir should persist while pkgb owns it: %v", err)
	}
	if _, err := os.Stat(aFile); !os.IsNotExist(err) {
		t.Fatalf("pkga's file should be gone")
	}

	if err := Remove(context.Background(), cfg, store, "pkgb"); err != nil {
		t.Fatalf("Remove(pkgb): %v", err)
	}
	if _, err := os.Stat(shared); !os.IsNotExist(err) {
		t.Fatalf("shared dir should be pruned once unshared and empty: %v", err)
	}
}
