// Package journal implements the reversible action journal (spec §4.1): a
// stack of filesystem mutations, each with an apply/revert pair, applied as
// a two-phase commit. The rename-to-sibling trick mirrors the same trick
// google/renameio applies to file writes: the risky step (rename, mkdir)
// happens at construction time, so apply/revert only ever need to do a
// cheap, near-infallible rename or unlink.
package journal

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/jwdevantier/leport/internal/types"
)

// Action is one reversible filesystem mutation. Construction captures
// everything apply/revert need; apart from DeleteOnError.Revert, which
// checks whether its path exists, neither method reads additional live
// filesystem state.
type Action interface {
	// Apply commits the action: it is expected to be a cheap rename or
	// unlink and should not fail under ordinary conditions.
	Apply() error
	// Revert undoes the action, restoring the filesystem to its
	// pre-construction state.
	Revert() error
	// String names the action for diagnostics.
	String() string
}

// Journal is a stack of Actions appended in the order the engine performs
// them. Commit applies them in insertion order; Rollback reverts them in
// reverse order.
type Journal struct {
	actions []Action
}

// New returns an empty Journal.
func New() *Journal {
	return &Journal{}
}

// push records an already-constructed action.
func (j *Journal) push(a Action) {
	j.actions = append(j.actions, a)
}

// Push records an already-constructed action, to be applied on Commit or
// reverted (in reverse order) on Rollback. Engines in other packages
// (install, remove) call this after constructing each Action.
func (j *Journal) Push(a Action) {
	j.push(a)
}

// Pending returns the actions not yet applied or reverted: every pushed
// action before Commit or Rollback runs, and afterwards only the actions
// whose Apply or Revert failed, so a caller can inspect what is left in an
// indeterminate state.
func (j *Journal) Pending() []Action {
	return j.actions
}

// Commit applies every action in insertion order. Failures are collected,
// not rethrown mid-sequence; the journal retains the actions that failed so
// a caller may inspect them. A non-nil error is always an *types.ApplyFailure.
func (j *Journal) Commit() error {
	var failed []Action
	var errs []error
	for _, a := range j.actions {
		if err := a.Apply(); err != nil {
			failed = append(failed, a)
			errs = append(errs, xerrors.Errorf("apply %s: %w", a, err))
		}
	}
	j.actions = failed
	if len(errs) > 0 {
		return &types.ApplyFailure{Failures: errs}
	}
	return nil
}

// Rollback reverts every action in reverse insertion order. Failures are
// collected, not rethrown mid-sequence. cause is the error that triggered
// the rollback and is wrapped into the returned *types.JournalRevertFailure
// when one or more reverts fail.
func (j *Journal) Rollback(cause error) error {
	var failed []Action
	var errs []error
	for i := len(j.actions) - 1; i >= 0; i-- {
		a := j.actions[i]
		if err := a.Revert(); err != nil {
			failed = append([]Action{a}, failed...)
			errs = append(errs, xerrors.Errorf("revert %s: %w", a, err))
		}
	}
	j.actions = failed
	if len(errs) > 0 {
		return &types.JournalRevertFailure{Cause: cause, Failures: errs}
	}
	return cause
}

// tempSibling returns a path in dir that does not currently exist, suitable
// for a same-filesystem rename-aside.
func tempSibling(dir string) (string, error) {
	f, err := os.CreateTemp(dir, ".journal-*")
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return name, nil
}

// RmFile removes the regular file at path from the journal's perspective:
// construction renames it aside, Apply unlinks the sibling, Revert renames
// it back.
type RmFile struct {
	path string
	tmp  string
}

// NewRmFile fails if path exists and is not a regular file.
func NewRmFile(path string) (*RmFile, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("RmFile(%s): path does not exist", path)
		}
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("RmFile(%s): not a regular file", path)
	}
	tmp, err := tempSibling(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := os.Rename(path, tmp); err != nil {
		return nil, err
	}
	return &RmFile{path: path, tmp: tmp}, nil
}

func (a *RmFile) Apply() error {
	err := os.Remove(a.tmp)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *RmFile) Revert() error {
	return os.Rename(a.tmp, a.path)
}

func (a *RmFile) String() string { return fmt.Sprintf("RmFile(%s)", a.path) }

// RmTree removes the directory tree at path, using the same rename-aside
// trick as RmFile.
type RmTree struct {
	path string
	tmp  string
}

// NewRmTree fails if path exists and is not a directory.
func NewRmTree(path string) (*RmTree, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("RmTree(%s): path does not exist", path)
		}
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("RmTree(%s): not a directory", path)
	}
	tmp, err := tempSibling(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := os.Rename(path, tmp); err != nil {
		return nil, err
	}
	return &RmTree{path: path, tmp: tmp}, nil
}

func (a *RmTree) Apply() error {
	err := os.RemoveAll(a.tmp)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *RmTree) Revert() error {
	return os.Rename(a.tmp, a.path)
}

func (a *RmTree) String() string { return fmt.Sprintf("RmTree(%s)", a.path) }

// MkDir creates a new directory at path. Construction fails if path already
// exists; it creates a sibling temp directory which Apply renames into
// place and Revert removes.
type MkDir struct {
	path string
	tmp  string
}

// NewMkDir fails if path already exists.
func NewMkDir(path string, perm os.FileMode) (*MkDir, error) {
	if _, err := os.Lstat(path); err == nil {
		return nil, fmt.Errorf("MkDir(%s): already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	tmp, err := tempSibling(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(tmp, perm); err != nil {
		return nil, err
	}
	return &MkDir{path: path, tmp: tmp}, nil
}

// TmpPath returns the staging directory the caller should populate before
// the journal is committed.
func (a *MkDir) TmpPath() string { return a.tmp }

func (a *MkDir) Apply() error {
	return os.Rename(a.tmp, a.path)
}

func (a *MkDir) Revert() error {
	err := os.RemoveAll(a.tmp)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *MkDir) String() string { return fmt.Sprintf("MkDir(%s)", a.path) }

// DeleteOnError has no construction-time side effect. Apply is a no-op;
// Revert removes path (recursively if it is a directory) if it exists. It
// is used to mark paths that only need cleanup when the surrounding
// transaction fails.
type DeleteOnError struct {
	path string
}

func NewDeleteOnError(path string) *DeleteOnError {
	return &DeleteOnError{path: path}
}

func (a *DeleteOnError) Apply() error { return nil }

func (a *DeleteOnError) Revert() error {
	fi, err := os.Lstat(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return os.RemoveAll(a.path)
	}
	return os.Remove(a.path)
}

func (a *DeleteOnError) String() string { return fmt.Sprintf("DeleteOnError(%s)", a.path) }
