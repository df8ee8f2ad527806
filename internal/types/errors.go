package types

import "golang.org/x/xerrors"

// RepoNotFoundError is raised when a qualified package name references a
// repo that isn't configured.
type RepoNotFoundError struct {
	Repo string
}

func (e *RepoNotFoundError) Error() string {
	return xerrors.Errorf("repo %q does not exist", e.Repo).Error()
}

// InvalidPackageNameError is raised when a package name has other than one
// optional '/' separator.
type InvalidPackageNameError struct {
	Raw string
}

func (e *InvalidPackageNameError) Error() string {
	return xerrors.Errorf("invalid package name %q, must be of format [<repo>/]<pkg-name>", e.Raw).Error()
}

// InvalidArchiveError covers structural problems with a package archive:
// missing info.yml/manifest.yml, a duplicate tar entry, or payload outside
// files/.
type InvalidArchiveError struct {
	Reason string
}

func (e *InvalidArchiveError) Error() string {
	return xerrors.Errorf("invalid archive: %s", e.Reason).Error()
}

// ManifestViolation covers invariant M1 breakage: a missing stat entry, a
// missing checksum entry, or a checksum mismatch.
type ManifestViolation struct {
	Path   string
	Reason string
}

func (e *ManifestViolation) Error() string {
	return xerrors.Errorf("manifest violation at %s: %s", e.Path, e.Reason).Error()
}

// RegistryConflict is raised when has_pkg(pkg) is already true at install.
type RegistryConflict struct {
	Pkg string
}

func (e *RegistryConflict) Error() string {
	return xerrors.Errorf("package %q is already installed", e.Pkg).Error()
}

// GitRepoError is the umbrella kind for git source/repo failures.
type GitRepoError struct {
	Reason string
}

func (e *GitRepoError) Error() string {
	return xerrors.Errorf("git error: %s", e.Reason).Error()
}

// GitBareRepoError: operation attempted against a repo with no working tree.
type GitBareRepoError struct {
	Path string
}

func (e *GitBareRepoError) Error() string {
	return xerrors.Errorf("%s: bare git repository", e.Path).Error()
}

// GitRepoInvalidTagError: requested tag does not exist.
type GitRepoInvalidTagError struct {
	Tag string
}

func (e *GitRepoInvalidTagError) Error() string {
	return xerrors.Errorf("invalid git tag %q", e.Tag).Error()
}

// GitRepoInvalidBranchError: requested branch does not exist.
type GitRepoInvalidBranchError struct {
	Branch string
}

func (e *GitRepoInvalidBranchError) Error() string {
	return xerrors.Errorf("invalid git branch %q", e.Branch).Error()
}

// MissingProgramsError: a depends() probe could not find one or more
// required executables.
type MissingProgramsError struct {
	Programs []string
}

func (e *MissingProgramsError) Error() string {
	return xerrors.Errorf("missing required programs: %v", e.Programs).Error()
}

// MissingLibrariesError: a depends() probe could not find one or more
// required shared libraries.
type MissingLibrariesError struct {
	Libraries []string
}

func (e *MissingLibrariesError) Error() string {
	return xerrors.Errorf("missing required libraries: %v", e.Libraries).Error()
}

// InvalidRegistryEntry: the per-package registry metadata directory is
// missing or malformed at remove time.
type InvalidRegistryEntry struct {
	Pkg    string
	Reason string
}

func (e *InvalidRegistryEntry) Error() string {
	return xerrors.Errorf("invalid registry entry for %q: %s", e.Pkg, e.Reason).Error()
}

// JournalRevertFailure wraps one or more journal actions that failed to
// revert, together with the original error that triggered the rollback.
type JournalRevertFailure struct {
	Cause    error
	Failures []error
}

func (e *JournalRevertFailure) Error() string {
	return xerrors.Errorf("journal revert failed (%d action(s)) after: %v", len(e.Failures), e.Cause).Error()
}

func (e *JournalRevertFailure) Unwrap() error {
	return e.Cause
}

// ApplyFailure wraps one or more journal actions that failed to apply
// during commit. Unlike JournalRevertFailure, the transaction is considered
// to have stood: apply failures are surfaced but not retried.
type ApplyFailure struct {
	Failures []error
}

func (e *ApplyFailure) Error() string {
	return xerrors.Errorf("journal apply reported %d failure(s)", len(e.Failures)).Error()
}
