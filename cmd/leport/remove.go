package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jwdevantier/leport/internal/remove"
)

func cmdRemove(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(fs.Output(), "usage: leport remove <pkg>")
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

	if err := remove.Remove(ctx, cfg, store, rest[0]); err != nil {
		return fatal(err)
	}
	return 0
}
