// Package hooks invokes a package's optional hooks.py out-of-process (spec
// §9 "Recipe plug-ins" option (b)): preinst/postinst/prerm/postrm are a
// single executable script taking the stage name as its sole argument.
// Failures are logged and swallowed (spec §4.4 steps 4/8, §4.5 steps 2/7) —
// a design decision, not a bug.
package hooks

import (
	"context"
	"log"
	"os"
	"os/exec"
)

// Stage identifies one of the four lifecycle points a hook may run at.
type Stage string

const (
	PreInst  Stage = "preinst"
	PostInst Stage = "postinst"
	PreRm    Stage = "prerm"
	PostRm   Stage = "postrm"
)

// Run invokes scriptPath (expected to be executable, typically the
// registry metadata directory's hooks.py) with stage as its only argument,
// working directory "/", and LEPORT_PKG/LEPORT_ROOT in its environment. If
// scriptPath does not exist, Run is a silent no-op: most packages carry no
// hooks.py at all. Any other failure (spawn or non-zero exit) is logged
// and swallowed, matching spec §4.4/§4.5's failure-tolerant hook policy.
func Run(ctx context.Context, scriptPath string, stage Stage, pkg, root string) {
	if _, err := os.Stat(scriptPath); err != nil {
		return
	}
	cmd := exec.CommandContext(ctx, scriptPath, string(stage))
	cmd.Dir = "/"
	cmd.Env = append(os.Environ(),
		"LEPORT_PKG="+pkg,
		"LEPORT_ROOT="+root,
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Printf("hook %s(%s) failed (ignored): %v", stage, pkg, err)
	}
}
