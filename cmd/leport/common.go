package main

import (
	"fmt"
	"os"

	"github.com/jwdevantier/leport/internal/config"
	"github.com/jwdevantier/leport/internal/registry"
)

// loadConfig resolves the root directory and loads config.yml, matching
// the discovery order in spec §6.
func loadConfig() (*config.Config, error) {
	root := config.RootDir(*rootDirFlag)
	return config.Load(root)
}

// openStore loads the config and opens the registry database, the
// pairing every read/write subcommand other than init needs.
func openStore() (*config.Config, *registry.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := registry.Open(cfg.DBPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

// requireRoot enforces the "requires root" preconditions spec §6 lists
// for init/install/remove.
func requireRoot() bool {
	if os.Geteuid() != 0 {
		fmt.Fprintln(os.Stderr, "this command requires root")
		return false
	}
	return true
}

// requireGroup enforces "non-root commands must run in that group"
// (spec §6 shared group) for commands that only read state.
func requireGroup() bool {
	if os.Geteuid() == 0 {
		return true
	}
	ok, err := config.InGroup()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "must be a member of the %q group\n", config.SharedGroup)
		return false
	}
	return true
}

func fatal(err error) int {
	fmt.Fprintln(os.Stderr, err)
	return 1
}
