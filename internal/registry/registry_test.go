package registry

import (
	"path/filepath"
	"testing"

	"github.com/jwdevantier/leport/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndQueryPkg(t *testing.T) {
	s := openTestStore(t)

	tx, err := s.Begin()
	if err != nil {
		t.Fatal(err)
	}
	info := &types.PkgInfo{Name: "foo", Version: "0.1", Release: 1}
	if err := tx.RecordPkg(info); err != nil {
		t.Fatalf("RecordPkg: %v", err)
	}
	if err := tx.RecordFiles("foo", map[string]string{
		"/usr/bin/foo": "H1",
	}); err != nil {
		t.Fatalf("RecordFiles: %v", err)
	}
	if err := tx.RecordDirs("foo", []string{"/usr/share/foo"}); err != nil {
		t.Fatalf("RecordDirs: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	has, err := s.HasPkg("foo")
	if err != nil || !has {
		t.Fatalf("HasPkg(foo) = %v, %v; want true, nil", has, err)
	}

	owner, err := s.WhichPkgOwnsFile("/usr/bin/foo")
	if err != nil || owner != "foo" {
		t.Fatalf("WhichPkgOwnsFile = %q, %v; want foo, nil", owner, err)
	}

	pkgs, err := s.ListPkgs()
	if err != nil || len(pkgs) != 1 || pkgs[0].Version != "0.1" {
		t.Fatalf("ListPkgs = %+v, %v", pkgs, err)
	}
}

func TestRegistryConflictOnDuplicateInstall(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	info := &types.PkgInfo{Name: "foo", Version: "0.1", Release: 1}
	if err := tx.RecordPkg(info); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, _ := s.Begin()
	err := tx2.RecordPkg(info)
	tx2.Rollback()
	if _, ok := err.(*types.RegistryConflict); !ok {
		t.Fatalf("expected *types.RegistryConflict, got %v", err)
	}
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	s := openTestStore(t)

	tx, _ := s.Begin()
	info := &types.PkgInfo{Name: "foo", Version: "0.1", Release: 1}
	if err := tx.RecordPkg(info); err != nil {
		t.Fatal(err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatal(err)
	}

	has, err := s.HasPkg("foo")
	if err != nil || has {
		t.Fatalf("HasPkg(foo) = %v, %v; want false, nil", has, err)
	}
}

func TestDirRefCounting(t *testing.T) {
	s := openTestStore(t)

	for _, pkg := range []string{"a", "b"} {
		tx, _ := s.Begin()
		if err := tx.RecordPkg(&types.PkgInfo{Name: pkg, Version: "1", Release: 1}); err != nil {
			t.Fatal(err)
		}
		if err := tx.RecordDirs(pkg, []string{"/opt/shared"}); err != nil {
			t.Fatal(err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	dirs, err := s.PkgDirs("a")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || dirs[0].RefCount != 2 {
		t.Fatalf("PkgDirs(a) = %+v, want refcount 2", dirs)
	}

	tx, _ := s.Begin()
	if err := tx.RmPkg("a"); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	dirs, err = s.PkgDirs("b")
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 || dirs[0].RefCount != 1 {
		t.Fatalf("PkgDirs(b) after removing a = %+v, want refcount 1", dirs)
	}
}

func TestRmPkgAtomicity(t *testing.T) {
	s := openTestStore(t)
	tx, _ := s.Begin()
	if err := tx.RecordPkg(&types.PkgInfo{Name: "foo", Version: "1", Release: 1}); err != nil {
		t.Fatal(err)
	}
	if err := tx.RecordFiles("foo", map[string]string{"/a": "h"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.RecordDirs("foo", []string{"/d"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, _ := s.Begin()
	if err := tx2.RmPkg("foo"); err != nil {
		t.Fatal(err)
	}
	if err := tx2.Commit(); err != nil {
		t.Fatal(err)
	}

	files, err := s.PkgFilesInstalled("foo")
	if err != nil || len(files) != 0 {
		t.Fatalf("expected no files after RmPkg, got %v, %v", files, err)
	}
	dirs, err := s.PkgDirs("foo")
	if err != nil || len(dirs) != 0 {
		t.Fatalf("expected no dirs after RmPkg, got %v, %v", dirs, err)
	}
	has, err := s.HasPkg("foo")
	if err != nil || has {
		t.Fatalf("expected pkg gone after RmPkg, got %v, %v", has, err)
	}
}
