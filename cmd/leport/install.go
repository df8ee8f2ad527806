package main

import (
	"context"
	"flag"
	"fmt"

	"os"

	"github.com/jwdevantier/leport/internal/conflict"
	"github.com/jwdevantier/leport/internal/install"
	"github.com/jwdevantier/leport/internal/progress"
)

func cmdInstall(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite conflicting files without prompting")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(fs.Output(), "usage: leport install [--force] <archive>")
		return 2
	}
	if !requireRoot() {
		return 1
	}

	cfg, store, err := openStore()
	if err != nil {
		return fatal(err)
	}
	defer store.Close()

	opts := install.Options{Force: *force, Reporter: progress.NewStderr()}
	if !*force {
		opts.Decider = conflict.Interactive{In: os.Stdin, Out: os.Stderr}
	}
	if err := install.Install(ctx, cfg, store, rest[0], opts); err != nil {
		return fatal(err)
	}
	return 0
}
