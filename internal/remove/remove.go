// Package remove implements the remove engine (C5, spec §4.5): the
// inverse of install. It loads a package's registry metadata, runs
// prerm/postrm hooks, unlinks every tracked file through the journal,
// deletes the registry rows, and prunes directories that are now unshared
// and empty.
package remove

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/hooks"
	"github.com/jwdevantier/leport/internal/journal"
	"github.com/jwdevantier/leport/internal/registry"
	"github.com/jwdevantier/leport/internal/types"
)

// Remove runs the full remove engine against pkg, an unqualified name
// already installed on the system (spec §4.5: removal refuses qualified
// names — it acts on what's installed, not on a repo).
func Remove(ctx context.Context, cfg *config.Config, store *registry.Store, pkg string) error {
	name, err := types.ParseName(pkg)
	if err != nil {
		return err
	}
	if name.Qualified() {
		return fmt.Errorf("remove takes an installed package name, not a qualified %q", pkg)
	}

	metaDir := cfg.PkgRegistryDir(pkg)
	infoData, err := os.ReadFile(filepath.Join(metaDir, "info.yml"))
	if err != nil {
		return &types.InvalidRegistryEntry{Pkg: pkg, Reason: err.Error()}
	}
	if _, err := types.ParsePkgInfo(infoData); err != nil {
		return &types.InvalidRegistryEntry{Pkg: pkg, Reason: err.Error()}
	}
	manifestData, err := os.ReadFile(filepath.Join(metaDir, "manifest.yml"))
	if err != nil {
		return &types.InvalidRegistryEntry{Pkg: pkg, Reason: err.Error()}
	}
	if _, err := types.ParsePkgManifest(manifestData); err != nil {
		return &types.InvalidRegistryEntry{Pkg: pkg, Reason: err.Error()}
	}
	hooksPath := filepath.Join(metaDir, "hooks.py")
	// The metadata directory, hooks.py included, is gone once the journal
	// commits, so the script is kept in memory for the postrm stage.
	postrmScript, postrmErr := os.ReadFile(hooksPath)

	hooks.Run(ctx, hooksPath, hooks.PreRm, pkg, cfg.Root)

	j := journal.New()
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	rollback := func(cause error) error {
		tx.Rollback()
		return j.Rollback(cause)
	}

	files, err := store.PkgFilesInstalled(pkg)
	if err != nil {
		return rollback(err)
	}
	for _, f := range files {
		a, err := journal.NewRmFile(f.Path)
		if err != nil {
			return rollback(err)
		}
		j.Push(a)
	}
	rt, err := journal.NewRmTree(metaDir)
	if err != nil {
		return rollback(err)
	}
	j.Push(rt)

	dirEntries, err := store.PkgDirs(pkg)
	if err != nil {
		return rollback(err)
	}
	if err := tx.RmPkg(pkg); err != nil {
		return rollback(err)
	}

	if err := tx.Commit(); err != nil {
		return j.Rollback(err)
	}
	if err := j.Commit(); err != nil {
		return err
	}

	for _, d := range dirEntries {
		if d.RefCount != 1 {
			continue
		}
		if err := rmdirIfEmpty(d.Dir); err != nil {
			return err
		}
	}

	if postrmErr == nil {
		if f, err := os.CreateTemp(cfg.RegistryDir(), ".postrm-*"); err == nil {
			_, werr := f.Write(postrmScript)
			f.Close()
			if werr == nil && os.Chmod(f.Name(), 0755) == nil {
				hooks.Run(ctx, f.Name(), hooks.PostRm, pkg, cfg.Root)
			}
			os.Remove(f.Name())
		}
	}
	return nil
}

// rmdirIfEmpty removes dir, accepting ENOTEMPTY as benign: other content
// may have landed there out-of-band (spec §4.5 step 6).
func rmdirIfEmpty(dir string) error {
	err := os.Remove(dir)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if errno, ok := err.(*os.PathError); ok && errno.Err == syscall.ENOTEMPTY {
		return nil
	}
	return err
}
