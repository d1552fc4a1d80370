package runtime

import (
	"context"
	"fmt"
	"strings"
)

type ExecResult struct {
	// Output holds stdout and stderr merged in arrival order.
	Output   string
	ExitCode int
}

// Runtime is a set of long-lived containers that run staged code. All
// operations address a container by name.
type Runtime interface {
	// Report whether a container with exactly this name is running
	IsAlive(ctx context.Context, name string) (bool, error)
	// Copy a local file into the container at dst (a full file path)
	CopyFile(ctx context.Context, name string, src string, dst string) error
	// Run cmd inside the container. When ctx ends first, the partial output
	// is returned together with ctx's error.
	Exec(ctx context.Context, name string, cmd []string) (*ExecResult, error)
	// Forcibly kill every process in the container whose command line
	// contains pattern
	KillMatching(ctx context.Context, name string, pattern string) error
	Close() error
}

// DiskUsage reports the human-readable size of dir inside the container.
func DiskUsage(ctx context.Context, rt Runtime, name, dir string) (string, error) {
	res, err := rt.Exec(ctx, name, []string{"du", "-sh", dir})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(res.Output)
	if res.ExitCode != 0 {
		return "", &ExitError{Cmd: "du", ExitCode: res.ExitCode, Output: out}
	}
	if fields := strings.Fields(out); len(fields) > 0 {
		return fields[0], nil
	}
	return out, nil
}

// ExitError reports a helper command that exited non-zero.
type ExitError struct {
	Cmd      string
	ExitCode int
	Output   string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s exited with code %d", e.Cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Cmd, e.ExitCode, e.Output)
}
