package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jwdevantier/leport/internal/build"
	"github.com/jwdevantier/leport/internal/progress"
	"github.com/jwdevantier/leport/internal/repo"
	"github.com/jwdevantier/leport/internal/types"
)

func cmdBuild(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	clean := fs.Bool("clean", false, "wipe the scratch build/dest directories before building")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(fs.Output(), "usage: leport build [--clean] <[repo/]pkg>")
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		return fatal(err)
	}
	name, err := types.ParseName(rest[0])
	if err != nil {
		return fatal(err)
	}
	r, recipeDir, err := repo.Lookup(cfg, rest[0])
	if err != nil {
		return fatal(err)
	}

	buildDir := cfg.BuildDir(r.Name, name.Pkg)
	destDir := cfg.DestDir(r.Name, name.Pkg)
	if *clean {
		os.RemoveAll(buildDir)
		os.RemoveAll(destDir)
	}

	archivePath := cfg.PkgArchive(r.Name, name.Pkg)
	if _, err := build.Build(ctx, recipeDir, buildDir, destDir, archivePath, progress.NewStderr()); err != nil {
		return fatal(err)
	}
	fmt.Println(archivePath)
	return 0
}
