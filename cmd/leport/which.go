package main

import (
	"context"
	"flag"
	"fmt"
)

// cmdWhich preserves the inverted exit-code convention documented as a
// known quirk (spec §6/§9): exit 1 means the path IS owned, exit 2 means
// it is not. Left as-is rather than "fixed" to the usual convention.
func cmdWhich(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("which", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(fs.Output(), "usage: leport which <path>")
		return 2
	}
	if !requireGroup() {
		return 1
	}

	_, store, err := openStore()
	if err != nil {
		return fatal(err)
	}
	defer store.Close()

	owner, err := store.WhichPkgOwnsFile(rest[0])
	if err != nil {
		return fatal(err)
	}
	if owner == "" {
		return 2
	}
	fmt.Println(owner)
	return 1
}
