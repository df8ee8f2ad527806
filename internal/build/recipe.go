package build

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jwdevantier/leport/internal/types"
)

// runSteps runs each argv-style command in steps (spec §9 option (a),
// SPEC_FULL.md §4.13) in dir with BUILD_DIR/DEST_DIR exported, streaming
// output to stderr.
func runSteps(ctx context.Context, steps types.BuildStep, dir, buildDir, destDir string) error {
	for _, argv := range steps {
		if len(argv) == 0 {
			continue
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Env = stepEnv(buildDir, destDir)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("step %q: %w", strings.Join(argv, " "), err)
		}
	}
	return nil
}

// runStepsCapture is runSteps but additionally captures the final
// command's stdout, used by the pkg_version step.
func runStepsCapture(ctx context.Context, steps types.BuildStep, dir, buildDir, destDir string) (string, error) {
	var out bytes.Buffer
	for i, argv := range steps {
		if len(argv) == 0 {
			continue
		}
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		cmd.Env = stepEnv(buildDir, destDir)
		cmd.Stderr = os.Stderr
		if i == len(steps)-1 {
			out.Reset()
			cmd.Stdout = &out
		} else {
			cmd.Stdout = os.Stderr
		}
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("step %q: %w", strings.Join(argv, " "), err)
		}
	}
	return strings.TrimSpace(out.String()), nil
}

func stepEnv(buildDir, destDir string) []string {
	return append(os.Environ(),
		"BUILD_DIR="+buildDir,
		"DEST_DIR="+destDir,
	)
}

// depends runs the depends step and translates a non-zero exit into
// MissingProgramsError (spec §4.6 step 4).
func depends(ctx context.Context, steps types.BuildStep, dir, buildDir, destDir string) error {
	if err := runSteps(ctx, steps, dir, buildDir, destDir); err != nil {
		var programs []string
		for _, argv := range steps {
			if len(argv) > 0 {
				programs = append(programs, argv[0])
			}
		}
		return &types.MissingProgramsError{Programs: programs}
	}
	return nil
}
