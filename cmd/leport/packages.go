package main

import (
	"context"
	"flag"
	"fmt"
)

func cmdPackages(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("packages", flag.ExitOnError)
	fs.Parse(args)
	if !requireGroup() {
		return 1
	}

	_, store, err := openStore()
	if err != nil {
		return fatal(err)
	}
	defer store.Close()

	pkgs, err := store.ListPkgs()
	if err != nil {
		return fatal(err)
	}
	if len(pkgs) == 0 {
		return 2
	}
	for _, p := range pkgs {
		fmt.Printf("%s %s-%d\n", p.Name, p.Version, p.Release)
	}
	return 0
}
