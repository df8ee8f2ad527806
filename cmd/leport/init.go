package main

import (
	"context"

	"github.com/jwdevantier/leport/internal/config"
)

func cmdInit(ctx context.Context, args []string) int {
	if !requireRoot() {
		return 1
	}
	root := config.RootDir(*rootDirFlag)
	if err := config.Init(root); err != nil {
		return fatal(err)
	}
	return 0
}
