// Package build implements the build pipeline (C6, spec §4.6): drives a
// recipe through prepare -> version -> depends -> build -> check ->
// install -> package. Per spec §9 option (a), the recipe is not a
// dynamically loaded build.py but a declarative step list embedded in
// info.yml's `build:` section (types.BuildSteps), avoiding a scripting
// runtime.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jwdevantier/leport/internal/archive"
	"github.com/jwdevantier/leport/internal/progress"
	"github.com/jwdevantier/leport/internal/types"
)

// Result is what a successful Build produces: the (possibly
// version-updated) info and the stat map handed to the archive writer.
type Result struct {
	Info *types.PkgInfo
	Stat map[string]types.PkgManifestStat
}

// Build drives recipeDir's declarative recipe, using buildDir as scratch
// space and destDir as the fake root the install step populates, and
// writes the resulting package archive to archivePath.
func Build(ctx context.Context, recipeDir, buildDir, destDir, archivePath string, reporter progress.Reporter) (*Result, error) {
	reporter = progress.Or(reporter)

	infoData, err := os.ReadFile(filepath.Join(recipeDir, "info.yml"))
	if err != nil {
		return nil, fmt.Errorf("reading recipe: %w", err)
	}
	info, err := types.ParsePkgInfo(infoData)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, err
	}

	reporter.Step("fetch", recipeDir, 0, 0)
	if err := fetchSources(ctx, recipeDir, buildDir, info.Sources); err != nil {
		return nil, err
	}

	reporter.Step("prepare", recipeDir, 0, 0)
	if err := runSteps(ctx, info.Build.Prepare, buildDir, buildDir, destDir); err != nil {
		return nil, err
	}

	if len(info.Build.PkgVersion) > 0 {
		reporter.Step("pkg_version", recipeDir, 0, 0)
		version, err := runStepsCapture(ctx, info.Build.PkgVersion, buildDir, buildDir, destDir)
		if err != nil {
			return nil, err
		}
		if version == "" {
			return nil, fmt.Errorf("pkg_version step produced no version for %s", info.Name)
		}
		info.Version = version
	}
	if info.Version == "" {
		return nil, fmt.Errorf("package %s has no version (recipe carries neither a static version nor a pkg_version step)", info.Name)
	}

	reporter.Step("depends", recipeDir, 0, 0)
	if err := depends(ctx, info.Build.Depends, buildDir, buildDir, destDir); err != nil {
		return nil, err
	}

	reporter.Step("build", recipeDir, 0, 0)
	if err := runSteps(ctx, info.Build.Build, buildDir, buildDir, destDir); err != nil {
		return nil, err
	}

	reporter.Step("check", recipeDir, 0, 0)
	if err := runSteps(ctx, info.Build.Check, buildDir, buildDir, destDir); err != nil {
		return nil, err
	}

	reporter.Step("install", recipeDir, 0, 0)
	if err := runSteps(ctx, info.Build.Install, buildDir, buildDir, destDir); err != nil {
		return nil, err
	}
	stat, err := readStatYAML(buildDir, destDir)
	if err != nil {
		return nil, err
	}

	reporter.Step("package", archivePath, 0, 0)
	var hooksPy []byte
	if b, err := os.ReadFile(filepath.Join(recipeDir, "hooks.py")); err == nil {
		hooksPy = b
	}
	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return nil, err
	}
	if err := archive.Write(archivePath, destDir, info, stat, hooksPy); err != nil {
		return nil, err
	}

	return &Result{Info: info, Stat: stat}, nil
}

// statEntry mirrors one stat.yml row: a destDir-relative path (no leading
// '/') mapped to ownership/mode.
type statEntry struct {
	Path  string `yaml:"path"`
	User  string `yaml:"user"`
	Group string `yaml:"group"`
	Mode  string `yaml:"mode"`
}

// readStatYAML loads buildDir/stat.yml, the recipe install step's
// set_stat(relative_path, user, group, mode) output (spec §4.6 step 7),
// and rewrites each relative path to its absolute install path ("/" + path).
func readStatYAML(buildDir, destDir string) (map[string]types.PkgManifestStat, error) {
	data, err := os.ReadFile(filepath.Join(buildDir, "stat.yml"))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]types.PkgManifestStat{}, nil
		}
		return nil, fmt.Errorf("reading stat.yml: %w", err)
	}
	var entries []statEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing stat.yml: %w", err)
	}
	out := make(map[string]types.PkgManifestStat, len(entries))
	for _, e := range entries {
		if filepath.IsAbs(e.Path) {
			return nil, fmt.Errorf("stat.yml: path %q must be relative to dest_dir", e.Path)
		}
		abs := filepath.Join(destDir, e.Path)
		if _, err := os.Lstat(abs); err != nil {
			return nil, fmt.Errorf("stat.yml: %q does not exist under dest_dir: %w", e.Path, err)
		}
		out["/"+filepath.ToSlash(e.Path)] = types.PkgManifestStat{User: e.User, Group: e.Group, Mode: e.Mode}
	}
	return out, nil
}
