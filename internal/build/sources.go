package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jwdevantier/leport/internal/types"
)

// httpClient is shared across downloads rather than dialing a fresh one
// per request.
var httpClient = &http.Client{}

// fetchSources realizes every info.Sources entry into buildDir (spec §4.6
// step 1): git sources are cloned/checked out, HTTP sources downloaded and
// checksum-verified, file sources copied from recipeDir. Sources land in
// distinct subtrees of buildDir, so they are fetched concurrently; the
// first failure cancels the rest via the errgroup's derived context.
func fetchSources(ctx context.Context, recipeDir, buildDir string, sources []types.Source) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range sources {
		src := sources[i]
		g.Go(func() error {
			switch {
			case src.Git != nil:
				return fetchGitSource(gctx, buildDir, src.Git)
			case src.HTTP != nil:
				return fetchHTTPSource(gctx, buildDir, src.HTTP)
			case src.File != nil:
				return fetchFileSource(recipeDir, buildDir, src.File)
			}
			return nil
		})
	}
	return g.Wait()
}

func fetchGitSource(ctx context.Context, buildDir string, src *types.GitSource) error {
	dest := filepath.Join(buildDir, src.Name)
	ref := src.Branch
	if src.Tag != "" {
		ref = src.Tag
	}
	if _, err := os.Stat(filepath.Join(dest, ".git")); os.IsNotExist(err) {
		cmd := exec.CommandContext(ctx, "git", "clone", src.Git, dest)
		cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
		if err := cmd.Run(); err != nil {
			return &types.GitRepoError{Reason: fmt.Sprintf("clone %s: %v", src.Git, err)}
		}
	} else {
		cmd := exec.CommandContext(ctx, "git", "fetch", "--tags", "origin")
		cmd.Dir = dest
		cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
		if err := cmd.Run(); err != nil {
			return &types.GitRepoError{Reason: fmt.Sprintf("fetch %s: %v", src.Git, err)}
		}
	}
	cmd := exec.CommandContext(ctx, "git", "checkout", ref)
	cmd.Dir = dest
	cmd.Stdout, cmd.Stderr = os.Stderr, os.Stderr
	if err := cmd.Run(); err != nil {
		if src.Tag != "" {
			return &types.GitRepoInvalidTagError{Tag: src.Tag}
		}
		return &types.GitRepoInvalidBranchError{Branch: ref}
	}
	return nil
}

func fetchHTTPSource(ctx context.Context, buildDir string, src *types.HTTPSource) error {
	u, err := url.Parse(src.URI)
	if err != nil {
		return err
	}
	dest := filepath.Join(buildDir, filepath.Base(u.Path))

	if src.SHA256 != "" {
		if sum, err := sha256File(dest); err == nil && sum == src.SHA256 {
			return nil // cached copy already verified
		}
	}

	if err := download(ctx, src.URI, dest); err != nil {
		return err
	}
	if src.SHA256 == "" {
		return nil
	}
	sum, err := sha256File(dest)
	if err != nil {
		return err
	}
	if sum == src.SHA256 {
		return nil
	}
	// one re-download attempt, per spec §4.6 step 1
	if err := download(ctx, src.URI, dest); err != nil {
		return err
	}
	sum, err = sha256File(dest)
	if err != nil {
		return err
	}
	if sum != src.SHA256 {
		return &types.ManifestViolation{Path: dest, Reason: fmt.Sprintf("sha256 mismatch: got %s want %s", sum, src.SHA256)}
	}
	return nil
}

func download(ctx context.Context, uri, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", uri, resp.Status)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

func fetchFileSource(recipeDir, buildDir string, src *types.FileSource) error {
	srcPath := filepath.Join(recipeDir, src.Filename)
	dest := filepath.Join(buildDir, src.Filename)
	in, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("file source %q: %w", src.Filename, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if src.SHA256 == "" {
		return nil
	}
	sum, err := sha256File(dest)
	if err != nil {
		return err
	}
	if sum != src.SHA256 {
		return &types.ManifestViolation{Path: dest, Reason: fmt.Sprintf("sha256 mismatch: got %s want %s", sum, src.SHA256)}
	}
	return nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
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
