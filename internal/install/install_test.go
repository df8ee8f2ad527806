package install

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"testing"

	"github.com/jwdevantier/leport/internal/archive"
	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/registry"
	"github.com/jwdevantier/leport/internal/types"
)

// requireRoot skips tests that need real chown/root-only semantics: the
// install engine refuses to run at all for a non-root caller (spec §4.4
// precondition 1), and this suite is the acceptance test for that engine,
// not a chown emulator.
func requireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
}

func currentUserGroup(t *testing.T) (string, string) {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Fatal(err)
	}
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		t.Fatal(err)
	}
	return u.Username, g.Name
}

func buildArchive(t *testing.T, name string, files map[string]string) (string, map[string]types.PkgManifestStat) {
	t.Helper()
	username, groupname := currentUserGroup(t)
	destdir := t.TempDir()
	stat := map[string]types.PkgManifestStat{}
	for rel, content := range files {
		full := filepath.Join(destdir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		stat["/"+rel] = types.PkgManifestStat{User: username, Group: groupname, Mode: "644"}
	}
	// record every traversed directory too, matching archive.Write's
	// destdir-path-set contract (spec §4.3 writer contract step 3).
	filepathWalkDirs(t, destdir, func(rel string) {
		stat["/"+rel] = types.PkgManifestStat{User: username, Group: groupname, Mode: "755"}
	})

	info := &types.PkgInfo{Name: name, Version: "0.1", Release: 1}
	archivePath := filepath.Join(t.TempDir(), name+".tar.xz")
	if err := archive.Write(archivePath, destdir, info, stat, nil); err != nil {
		t.Fatalf("archive.Write: %v", err)
	}
	return archivePath, stat
}

func filepathWalkDirs(t *testing.T, root string, fn func(rel string)) {
	t.Helper()
	err := filepath.Walk(root, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == root || !fi.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		fn(filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) (*config.Config, *registry.Store) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "data", "registry"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Root: root}
	store, err := registry.Open(cfg.DBPath())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return cfg, store
}

func TestInstallRefusesNonRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("this test asserts the non-root refusal path")
	}
	cfg, store := testConfig(t)
	archivePath, _ := buildArchive(t, "foo", map[string]string{"usr/bin/foo": "x"})
	err := Install(context.Background(), cfg, store, archivePath, Options{})
	if err == nil {
		t.Fatal("expected error for non-root caller")
	}
}

func TestHappyPathInstall(t *testing.T) {
	requireRoot(t)
	cfg, store := testConfig(t)
	archivePath, _ := buildArchive(t, "foo", map[string]string{"usr/bin/foo": "hello"})

	if err := Install(context.Background(), cfg, store, archivePath, Options{}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	has, err := store.HasPkg("foo")
	if err != nil || !has {
		t.Fatalf("HasPkg(foo) = %v, %v", has, err)
	}
	owner, err := store.WhichPkgOwnsFile("/usr/bin/foo")
	if err != nil || owner != "foo" {
		t.Fatalf("WhichPkgOwnsFile = %q, %v", owner, err)
	}
	if _, err := os.Stat(cfg.PkgRegistryDir("foo")); err != nil {
		t.Fatalf("registry metadata dir missing: %v", err)
	}
}

func TestDuplicateInstallRefused(t *testing.T) {
	requireRoot(t)
	cfg, store := testConfig(t)
	archivePath, _ := buildArchive(t, "foo", map[string]string{"usr/bin/foo": "hello"})

	if err := Install(context.Background(), cfg, store, archivePath, Options{}); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	err := Install(context.Background(), cfg, store, archivePath, Options{})
	if _, ok := err.(*types.RegistryConflict); !ok {
		t.Fatalf("expected *types.RegistryConflict, got %v", err)
	}
}

func TestOverwriteDeclinedLeavesFileUntouched(t *testing.T) {
	requireRoot(t)
	cfg, store := testConfig(t)
	archivePath, _ := buildArchive(t, "foo", map[string]string{"etc/foo.conf": "new"})

	if err := os.MkdirAll("/etc", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile("/etc/foo.conf", []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Remove("/etc/foo.conf") })

	if err := Install(context.Background(), cfg, store, archivePath, Options{}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	got, err := os.ReadFile("/etc/foo.conf")
	if err != nil || string(got) != "old" {
		t.Fatalf("content = %q, %v, want unchanged", got, err)
	}
	owner, _ := store.WhichPkgOwnsFile("/etc/foo.conf")
	if owner != "" {
		t.Fatalf("WhichPkgOwnsFile = %q, want unowned", owner)
	}
}
