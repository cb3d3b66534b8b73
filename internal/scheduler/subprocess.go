package scheduler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// SubprocessRunner returns a Runner that re-execs the current binary
// with --run (plus any extraArgs, e.g. --filter/--log-level) instead
// of invoking the orchestrator in process. A cycle that panics or is
// OOM-killed then only takes down the child, leaving the daemon loop
// itself free to schedule the next tick.
func SubprocessRunner(extraArgs ...string) Runner {
	return func(ctx context.Context) error {
		args := append([]string{"--run"}, extraArgs...)
		cmd := exec.CommandContext(ctx, os.Args[0], args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = os.Environ()
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("cycle subprocess: %w", err)
		}
		return nil
	}
}
