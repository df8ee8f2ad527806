// Command leport is a BSD-ports-style source package manager: fetch,
// build, install, and remove packages described by declarative recipes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jwdevantier/leport"
)

var rootDirFlag = flag.String("root-dir", "", "leport root directory (default: $LEPORT_ROOT or /opt/leport)")

type cmd struct {
	fn func(ctx context.Context, args []string) int
}

var verbs = map[string]cmd{
	"init":     {cmdInit},
	"search":   {cmdSearch},
	"build":    {cmdBuild},
	"install":  {cmdInstall},
	"remove":   {cmdRemove},
	"which":    {cmdWhich},
	"files":    {cmdFiles},
	"packages": {cmdPackages},
	"repos":    {cmdRepos},
	"refresh":  {cmdRefresh},
}

func usage() {
	fmt.Fprintf(os.Stderr, "leport [-root-dir dir] <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\tinit               create the root directory tree and shared group\n")
	fmt.Fprintf(os.Stderr, "\tsearch <name>      fuzzy search across configured repos\n")
	fmt.Fprintf(os.Stderr, "\tbuild <pkg>        build a package from its recipe\n")
	fmt.Fprintf(os.Stderr, "\tinstall <archive>  install a built package archive\n")
	fmt.Fprintf(os.Stderr, "\tremove <pkg>       remove an installed package\n")
	fmt.Fprintf(os.Stderr, "\twhich <path>       print the package owning path\n")
	fmt.Fprintf(os.Stderr, "\tfiles <pkg>        list a package's installed files\n")
	fmt.Fprintf(os.Stderr, "\tpackages           list installed packages\n")
	fmt.Fprintf(os.Stderr, "\trepos              list configured repos\n")
	fmt.Fprintf(os.Stderr, "\trefresh [repo]     refresh git-backed repos\n")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	verb, rest := args[0], args[1:]
	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		usage()
		os.Exit(2)
	}

	ctx, canc := leport.InterruptibleContext()
	defer canc()

	code := v.fn(ctx, rest)
	if err := leport.RunAtExit(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
