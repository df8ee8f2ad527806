package main

import (
	"context"
	"flag"
	"fmt"
)

func cmdFiles(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("files", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(fs.Output(), "usage: leport files <pkg>")
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

	has, err := store.HasPkg(rest[0])
	if err != nil {
		return fatal(err)
	}
	if !has {
		return 2
	}
	files, err := store.PkgFilesInstalled(rest[0])
	if err != nil {
		return fatal(err)
	}
	for _, f := range files {
		fmt.Println(f.Path)
	}
	return 0
}
