package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/jwdevantier/leport/internal/repo"
)

func cmdRepos(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("repos", flag.ExitOnError)
	fs.Parse(args)
	if !requireGroup() {
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		return fatal(err)
	}
	repos := repo.List(cfg)
	if len(repos) == 0 {
		return 2
	}
	for _, r := range repos {
		fmt.Println(r.Name)
	}
	return 0
}
