// Package install implements the install engine (C4, spec §4.4): the
// central state machine that stages a package's registry metadata,
// resolves file conflicts, extracts the payload, verifies checksums,
// applies ownership/permissions, records the registry, and runs hooks,
// all coordinated through a Reversible Action Journal and a registry
// transaction so the whole operation is all-or-nothing.
package install

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/google/renameio"
	"golang.org/x/xerrors"

	"github.com/jwdevantier/leport/internal/archive"
	"github.com/jwdevantier/leport/internal/conflict"
	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/hooks"
	"github.com/jwdevantier/leport/internal/journal"
	"github.com/jwdevantier/leport/internal/progress"
	"github.com/jwdevantier/leport/internal/registry"
	"github.com/jwdevantier/leport/internal/types"
)

// Options configures a single Install call.
type Options struct {
	// Force overwrites every conflicting file without consulting Decider.
	Force bool
	// Decider resolves conflicts when Force is false. Defaults to
	// conflict.Deny{} (decline every overwrite) when nil.
	Decider  conflict.Decider
	Reporter progress.Reporter
}

func (o Options) decider() conflict.Decider {
	if o.Force {
		return conflict.Force{}
	}
	if o.Decider != nil {
		return o.Decider
	}
	return conflict.Deny{}
}

// Install runs the full install engine against the archive at
// archivePath, recording ownership in store and registry metadata under
// cfg's registry directory.
func Install(ctx context.Context, cfg *config.Config, store *registry.Store, archivePath string, opts Options) error {
	reporter := progress.Or(opts.Reporter)

	info, manifest, hooksPy, err := archive.ReadMetadata(archivePath)
	if err != nil {
		return err
	}

	// Preconditions (spec §4.4): fail fast before touching the filesystem.
	if os.Geteuid() != 0 {
		return fmt.Errorf("install requires root privilege")
	}
	has, err := store.HasPkg(info.Name)
	if err != nil {
		return err
	}
	if has {
		return &types.RegistryConflict{Pkg: info.Name}
	}
	if err := config.RequireSharedGroup(); err != nil {
		return err
	}

	decisions, _, err := conflict.Resolve(manifest, store, opts.decider())
	if err != nil {
		return err
	}
	exclude := map[string]bool{}
	for p, overwrite := range decisions {
		if !overwrite {
			exclude[p] = true
		}
	}

	j := journal.New()
	tx, err := store.Begin()
	if err != nil {
		return err
	}
	rollback := func(cause error) error {
		tx.Rollback()
		return j.Rollback(cause)
	}

	metaDir := cfg.PkgRegistryDir(info.Name)
	mk, err := journal.NewMkDir(metaDir, 0755)
	if err != nil {
		return rollback(err)
	}
	j.Push(mk)

	if err := stageMetadata(mk.TmpPath(), info, manifest, hooksPy); err != nil {
		return rollback(err)
	}
	hooksPath := filepath.Join(mk.TmpPath(), "hooks.py")

	for p, overwrite := range decisions {
		if !overwrite {
			continue
		}
		a, err := journal.NewRmFile(p)
		if err != nil {
			return rollback(err)
		}
		j.Push(a)
	}

	hooks.Run(ctx, hooksPath, hooks.PreInst, info.Name, cfg.Root)

	files := manifest.Files()
	dirs := manifest.Dirs()
	installedFiles := make([]string, 0, len(files))

	n := 0
	total := len(files)
	err = archive.Extract(archivePath, func(m archive.Member) error {
		if exclude[m.Dest] {
			return nil
		}
		if err := stageMember(j, m); err != nil {
			return err
		}
		if m.Header.Typeflag != tar.TypeDir {
			n++
			reporter.Step("extract", m.Dest, n, total)
			installedFiles = append(installedFiles, m.Dest)
		}
		return nil
	})
	if err != nil {
		return rollback(err)
	}

	for i, p := range installedFiles {
		reporter.Step("verify", p, i+1, len(installedFiles))
		want, ok := manifest.FileChecksums[p]
		if !ok {
			return rollback(&types.ManifestViolation{Path: p, Reason: "no checksum entry for extracted file"})
		}
		got, err := archive.SHA256File(p)
		if err != nil {
			return rollback(err)
		}
		if got != want {
			return rollback(&types.ManifestViolation{Path: p, Reason: fmt.Sprintf("checksum mismatch: got %s want %s", got, want)})
		}
	}

	allInstalled := make([]string, 0, len(installedFiles)+len(dirs))
	allInstalled = append(allInstalled, installedFiles...)
	for _, d := range dirs {
		if !exclude[d] {
			allInstalled = append(allInstalled, d)
		}
	}
	for _, p := range allInstalled {
		st, ok := manifest.Stat[p]
		if !ok {
			return rollback(&types.ManifestViolation{Path: p, Reason: "missing stat entry"})
		}
		if err := applyStat(p, st); err != nil {
			return rollback(err)
		}
	}

	checksums := make(map[string]string, len(installedFiles))
	for _, p := range installedFiles {
		checksums[p] = manifest.FileChecksums[p]
	}
	if err := tx.RecordPkg(info); err != nil {
		return rollback(err)
	}
	if err := tx.RecordFiles(info.Name, checksums); err != nil {
		return rollback(err)
	}
	var recordDirs []string
	for _, d := range dirs {
		if !exclude[d] {
			recordDirs = append(recordDirs, d)
		}
	}
	if err := tx.RecordDirs(info.Name, recordDirs); err != nil {
		return rollback(err)
	}

	hooks.Run(ctx, hooksPath, hooks.PostInst, info.Name, cfg.Root)

	if err := tx.Commit(); err != nil {
		return j.Rollback(err)
	}
	return j.Commit()
}

func stageMetadata(dir string, info *types.PkgInfo, manifest *types.PkgManifest, hooksPy []byte) error {
	infoYAML, err := info.ToYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "info.yml"), infoYAML, 0644); err != nil {
		return err
	}
	manifestYAML, err := manifest.ToYAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.yml"), manifestYAML, 0644); err != nil {
		return err
	}
	if hooksPy != nil {
		if err := os.WriteFile(filepath.Join(dir, "hooks.py"), hooksPy, 0755); err != nil {
			return err
		}
	}
	gid := -1
	if g, err := user.LookupGroup(config.SharedGroup); err == nil {
		if v, err := strconv.Atoi(g.Gid); err == nil {
			gid = v
		}
	}
	if gid != -1 {
		filepath.Walk(dir, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			os.Chown(p, -1, gid)
			return nil
		})
	}
	return nil
}

// stageMember pushes the journal action matching P's pre-extraction state
// (spec §4.4 step 5) and writes the member's content to its destination.
func stageMember(j *journal.Journal, m archive.Member) error {
	dest := m.Dest
	fi, statErr := os.Lstat(dest)
	switch {
	case statErr == nil && fi.IsDir():
		// leave it; directories are shared across packages.
	case statErr == nil && !fi.IsDir():
		a, err := journal.NewRmFile(dest)
		if err != nil {
			return err
		}
		j.Push(a)
	case os.IsNotExist(statErr):
		j.Push(journal.NewDeleteOnError(dest))
	default:
		return statErr
	}

	if m.Header.Typeflag == tar.TypeDir {
		return os.MkdirAll(dest, 0755)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	// renameio writes via a temp file on dest's filesystem and an atomic
	// rename, so a crash mid-extraction never leaves a truncated file at dest.
	f, err := renameio.TempFile("", dest)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	if m.Data != nil {
		if _, err := io.Copy(f, m.Data); err != nil {
			return err
		}
	}
	return f.CloseAtomicallyReplace()
}

func applyStat(path string, st types.PkgManifestStat) error {
	mode, err := st.ModeBits()
	if err != nil {
		return err
	}
	if err := os.Chmod(path, os.FileMode(mode)); err != nil {
		return err
	}
	u, err := user.Lookup(st.User)
	if err != nil {
		return xerrors.Errorf("resolving user %q for %s: %w", st.User, path, err)
	}
	g, err := user.LookupGroup(st.Group)
	if err != nil {
		return xerrors.Errorf("resolving group %q for %s: %w", st.Group, path, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return err
	}
	return os.Chown(path, uid, gid)
}
