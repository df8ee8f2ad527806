package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jwdevantier/leport/internal/repo"
)

func cmdRefresh(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if !requireGroup() {
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		return fatal(err)
	}
	repos := repo.List(cfg)
	if len(rest) == 1 {
		var target *repo.Repo
		for i := range repos {
			if repos[i].Name == rest[0] {
				target = &repos[i]
				break
			}
		}
		if target == nil {
			return fatal(fmt.Errorf("no such repo %q", rest[0]))
		}
		if err := target.Refresh(ctx); err != nil {
			return fatal(err)
		}
		return 0
	}
	for _, r := range repos {
		if err := r.Refresh(ctx); err != nil {
			return fatal(err)
		}
	}
	return 0
}
