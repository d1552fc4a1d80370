package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

const (
	killTimeout    = 5 * time.Second
	inspectPoll    = 10 * time.Millisecond
	inspectRetries = 50

	commandNotFound = 127
)

// procKillScript kills every process whose cmdline contains $0, except the
// shell running it. The pattern is an argument, never part of the script.
const procKillScript = `for d in /proc/[0-9]*; do
	pid=${d#/proc/}
	[ "$pid" = "$$" ] && continue
	cmd=$(tr '\0' ' ' < "$d/cmdline" 2>/dev/null) || continue
	case "$cmd" in *"$0"*) kill -9 "$pid" 2>/dev/null ;; esac
done
exit 0`

// dockerClient is the subset of the Engine API the runtime uses.
type dockerClient interface {
	ContainerList(ctx context.Context, options types.ContainerListOptions) ([]types.Container, error)
	ContainerExecCreate(ctx context.Context, container string, config types.ExecConfig) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, config types.ExecStartCheck) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (types.ContainerExecInspect, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options types.CopyToContainerOptions) error
	Close() error
}

type DockerRuntime struct {
	cli    dockerClient
	logger *zap.Logger
}

// NewDockerRuntime connects using the standard DOCKER_* environment.
func NewDockerRuntime(logger *zap.Logger) (*DockerRuntime, error) {
	cli, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return newDockerRuntime(cli, logger), nil
}

func newDockerRuntime(cli dockerClient, logger *zap.Logger) *DockerRuntime {
	return &DockerRuntime{cli: cli, logger: logger}
}

func (dr *DockerRuntime) IsAlive(ctx context.Context, name string) (bool, error) {
	containers, err := dr.cli.ContainerList(ctx, types.ContainerListOptions{})
	if err != nil {
		return false, fmt.Errorf("list containers: %w", err)
	}
	for _, c := range containers {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") == name {
				return true, nil
			}
		}
	}
	return false, nil
}

func (dr *DockerRuntime) CopyFile(ctx context.Context, name string, src string, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	archive, err := tarFile(path.Base(dst), content)
	if err != nil {
		return err
	}
	return dr.cli.CopyToContainer(ctx, name, path.Dir(dst), archive, types.CopyToContainerOptions{})
}

func (dr *DockerRuntime) Exec(ctx context.Context, name string, cmd []string) (*ExecResult, error) {
	config := types.ExecConfig{AttachStdout: true, AttachStderr: true, Cmd: cmd}
	respCreate, err := dr.cli.ContainerExecCreate(ctx, name, config)
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	respExec, err := dr.cli.ContainerExecAttach(ctx, respCreate.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer respExec.Close()

	// Both streams go to one buffer, so stdout and stderr interleave the way
	// the program wrote them.
	var out bytes.Buffer
	outputDone := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&out, &out, respExec.Reader)
		outputDone <- err
	}()

	select {
	case err := <-outputDone:
		if err != nil {
			return nil, fmt.Errorf("read exec output: %w", err)
		}
	case <-ctx.Done():
		respExec.Close()
		<-outputDone
		return &ExecResult{Output: out.String(), ExitCode: -1}, ctx.Err()
	}

	exitCode, err := dr.waitExitCode(ctx, respCreate.ID)
	if err != nil {
		return nil, err
	}
	return &ExecResult{Output: out.String(), ExitCode: exitCode}, nil
}

// waitExitCode polls until the exec is reported as finished. The output
// stream can close a moment before the daemon records the exit code.
func (dr *DockerRuntime) waitExitCode(ctx context.Context, execID string) (int, error) {
	for i := 0; ; i++ {
		res, err := dr.cli.ContainerExecInspect(ctx, execID)
		if err != nil {
			return 0, fmt.Errorf("inspect exec: %w", err)
		}
		if !res.Running {
			return res.ExitCode, nil
		}
		if i >= inspectRetries {
			return -1, fmt.Errorf("exec %s still running after its output closed", execID)
		}
		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(inspectPoll):
		}
	}
}

// KillMatching sends SIGKILL to every process in the container whose command
// line contains pattern. It uses pkill and falls back to walking /proc when
// the image does not ship procps.
func (dr *DockerRuntime) KillMatching(ctx context.Context, name string, pattern string) error {
	ctx, cancel := context.WithTimeout(ctx, killTimeout)
	defer cancel()

	res, err := dr.Exec(ctx, name, []string{"pkill", "-KILL", "-f", "--", pattern})
	if err != nil {
		return err
	}
	if res.ExitCode == commandNotFound {
		dr.logger.Debug("pkill not available, scanning /proc",
			zap.String("runtime", name))
		res, err = dr.Exec(ctx, name, []string{"sh", "-c", procKillScript, pattern})
		if err != nil {
			return err
		}
		if res.ExitCode != 0 {
			return &ExitError{Cmd: "kill", ExitCode: res.ExitCode, Output: strings.TrimSpace(res.Output)}
		}
		return nil
	}
	// pkill exits 1 when nothing matched, which means the process is gone.
	if res.ExitCode > 1 {
		return &ExitError{Cmd: "pkill", ExitCode: res.ExitCode, Output: strings.TrimSpace(res.Output)}
	}
	dr.logger.Debug("killed processes",
		zap.String("runtime", name),
		zap.String("pattern", pattern),
		zap.Bool("matched", res.ExitCode == 0))
	return nil
}

func (dr *DockerRuntime) Close() error {
	return dr.cli.Close()
}
