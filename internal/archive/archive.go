// Package archive implements the package archive codec (spec §4.3): an
// xz-compressed tar stream containing info.yml, manifest.yml, an optional
// hooks.py, and a files/ tree whose members install to the path obtained by
// stripping the files/ prefix and rooting at /.
package archive

import (
	"archive/tar"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/jwdevantier/leport/internal/types"
)

const filesPrefix = "files/"

// Reader provides streaming access to an archive's metadata and a filtered
// iterator over its payload, without extracting the payload up front.
type Reader struct {
	f  *os.File
	tr *tar.Reader
}

// Open opens the archive at path for reading. The caller must Close it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := xz.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening xz stream: %w", err)
	}
	return &Reader{f: f, tr: tar.NewReader(zr)}, nil
}

func (r *Reader) Close() error { return r.f.Close() }

// Info reads info.yml from the archive. It must be called before any call
// to Manifest or Extract that would otherwise have already consumed the
// underlying stream past info.yml's position; callers that need both
// should use ReadMetadata instead.
func (r *Reader) Info() (*types.PkgInfo, error) {
	data, err := r.readMember("info.yml")
	if err != nil {
		return nil, err
	}
	return types.ParsePkgInfo(data)
}

// Manifest reads manifest.yml from the archive.
func (r *Reader) Manifest() (*types.PkgManifest, error) {
	data, err := r.readMember("manifest.yml")
	if err != nil {
		return nil, err
	}
	m, err := types.ParsePkgManifest(data)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Reader) readMember(name string) ([]byte, error) {
	for {
		hdr, err := r.tr.Next()
		if err == io.EOF {
			return nil, &types.InvalidArchiveError{Reason: fmt.Sprintf("missing %s", name)}
		}
		if err != nil {
			return nil, err
		}
		if hdr.Name == name {
			return io.ReadAll(r.tr)
		}
	}
}

// ReadMetadata reads info.yml, manifest.yml, and hooks.py (if present) in a
// single forward pass over the archive, tolerating any member ordering.
// hooksPy is nil if the archive carries no hooks.py member.
func ReadMetadata(path string) (info *types.PkgInfo, manifest *types.PkgManifest, hooksPy []byte, err error) {
	r, err := Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer r.Close()

	var infoData, manifestData []byte
	seen := map[string]bool{}
	for {
		hdr, err := r.tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, err
		}
		if seen[hdr.Name] {
			return nil, nil, nil, &types.InvalidArchiveError{Reason: fmt.Sprintf("duplicate entry %q", hdr.Name)}
		}
		seen[hdr.Name] = true
		switch hdr.Name {
		case "info.yml":
			if infoData, err = io.ReadAll(r.tr); err != nil {
				return nil, nil, nil, err
			}
		case "manifest.yml":
			if manifestData, err = io.ReadAll(r.tr); err != nil {
				return nil, nil, nil, err
			}
		case "hooks.py":
			if hooksPy, err = io.ReadAll(r.tr); err != nil {
				return nil, nil, nil, err
			}
		}
	}
	if infoData == nil {
		return nil, nil, nil, &types.InvalidArchiveError{Reason: "missing info.yml"}
	}
	if manifestData == nil {
		return nil, nil, nil, &types.InvalidArchiveError{Reason: "missing manifest.yml"}
	}
	if info, err = types.ParsePkgInfo(infoData); err != nil {
		return nil, nil, nil, err
	}
	if manifest, err = types.ParsePkgManifest(manifestData); err != nil {
		return nil, nil, nil, err
	}
	if err = manifest.Validate(); err != nil {
		return nil, nil, nil, err
	}
	return info, manifest, hooksPy, nil
}

// Member is one files/ tree entry rewritten to its absolute destination
// path.
type Member struct {
	Dest   string // absolute destination path, e.g. "/usr/bin/foo"
	Header *tar.Header
	Data   io.Reader // payload for regular files; nil otherwise
}

// Extract streams the archive's files/ tree, calling fn once per member
// with its path rewritten to its absolute destination (files/ prefix
// stripped, rooted at /). Members outside files/ are skipped. fn's Member
// argument's Data is only valid for the duration of the call. Duplicate
// destination paths are ill-formed and reported as *types.InvalidArchiveError.
func Extract(path string, fn func(Member) error) error {
	r, err := Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	seen := map[string]bool{}
	for {
		hdr, err := r.tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if !strings.HasPrefix(hdr.Name, filesPrefix) {
			continue
		}
		dest := "/" + strings.TrimPrefix(hdr.Name, filesPrefix)
		dest = filepath.Clean(dest)
		if seen[dest] {
			return &types.InvalidArchiveError{Reason: fmt.Sprintf("duplicate payload entry %q", hdr.Name)}
		}
		seen[dest] = true
		var data io.Reader
		if hdr.Typeflag == tar.TypeReg {
			data = r.tr
		}
		if err := fn(Member{Dest: dest, Header: hdr, Data: data}); err != nil {
			return err
		}
	}
}

// MissingStatError is raised by Write when one or more destdir paths have
// no entry in the stat map. Stat map keys with no matching destdir path are
// not checked and do not cause this error.
type MissingStatError struct {
	Unpermed []string
}

func (e *MissingStatError) Error() string {
	sort.Strings(e.Unpermed)
	return fmt.Sprintf("missing stat entries for: %s", strings.Join(e.Unpermed, ", "))
}

// Write builds a package archive at dstPath from destdir (a staging
// directory mirroring the final install layout), info, and a per-path stat
// map keyed by absolute install path. See spec §4.3 writer contract.
func Write(dstPath, destdir string, info *types.PkgInfo, stat map[string]types.PkgManifestStat, hooksPy []byte) error {
	for _, stale := range []string{"info.yml", "manifest.yml"} {
		if _, err := os.Stat(filepath.Join(destdir, stale)); err == nil {
			return fmt.Errorf("destdir contains stale %s at its root", stale)
		}
	}

	checksums := map[string]string{}
	seenPaths := map[string]bool{}
	err := filepath.Walk(destdir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == destdir {
			return nil
		}
		rel, err := filepath.Rel(destdir, p)
		if err != nil {
			return err
		}
		dest := "/" + filepath.ToSlash(rel)
		seenPaths[dest] = true
		if fi.IsDir() {
			return nil
		}
		sum, err := sha256File(p)
		if err != nil {
			return err
		}
		checksums[dest] = sum
		return nil
	})
	if err != nil {
		return err
	}

	var unpermed []string
	for p := range seenPaths {
		if _, ok := stat[p]; !ok {
			unpermed = append(unpermed, p)
		}
	}
	if len(unpermed) > 0 {
		return &MissingStatError{Unpermed: unpermed}
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer f.Close()

	zw, err := xz.NewWriter(f)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(zw)

	manifest := &types.PkgManifest{FileChecksums: checksums, Stat: stat}
	if err := writeYAMLMember(tw, "info.yml", info); err != nil {
		return err
	}
	if err := writeYAMLMember(tw, "manifest.yml", manifest); err != nil {
		return err
	}
	if hooksPy != nil {
		if err := tw.WriteHeader(&tar.Header{
			Name: "hooks.py", Mode: 0755, Size: int64(len(hooksPy)), Typeflag: tar.TypeReg,
		}); err != nil {
			return err
		}
		if _, err := tw.Write(hooksPy); err != nil {
			return err
		}
	}

	if err := filepath.Walk(destdir, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == destdir {
			return nil
		}
		rel, err := filepath.Rel(destdir, p)
		if err != nil {
			return err
		}
		name := filesPrefix + filepath.ToSlash(rel)
		if fi.IsDir() {
			return tw.WriteHeader(&tar.Header{Name: name + "/", Mode: 0755, Typeflag: tar.TypeDir})
		}
		hdr, err := tar.FileInfoHeader(fi, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		_, err = io.Copy(tw, src)
		return err
	}); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return zw.Close()
}

func writeYAMLMember(tw *tar.Writer, name string, v interface{ ToYAML() ([]byte, error) }) error {
	data, err := v.ToYAML()
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name: name, Mode: 0644, Size: int64(len(data)), Typeflag: tar.TypeReg,
	}); err != nil {
		return err
	}
	_, err = tw.Write(data)
	return err
}

func sha256File(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256File is the same checksum helper Write uses internally, exported
// for the install engine's checksum-verification phase.
func SHA256File(p string) (string, error) { return sha256File(p) }

// SHA256Bytes hashes an in-memory buffer, used by tests and small fixtures.
func SHA256Bytes(b []byte) string {
	h := sha256.Sum256(b)
	return hex.EncodeToString(h[:])
}
