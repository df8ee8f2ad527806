package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/jwdevantier/leport/internal/search"
)

func cmdSearch(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(fs.Output(), "usage: leport search <name> [dist]")
		return 2
	}
	name := rest[0]
	dist := 2
	if len(rest) > 1 {
		d, err := strconv.Atoi(rest[1])
		if err != nil {
			return fatal(err)
		}
		dist = d
	}

	cfg, err := loadConfig()
	if err != nil {
		return fatal(err)
	}
	matches, err := search.Search(cfg, name, dist)
	if err != nil {
		return fatal(err)
	}
	for _, m := range matches {
		fmt.Println(m.String())
	}
	return 0
}
