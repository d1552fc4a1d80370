package runner

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bskracic/langs-executor/lang"
	"github.com/bskracic/langs-executor/runtime"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"
)

type RunStatus string

const (
	Completed   RunStatus = "Completed"
	TimedOut    RunStatus = "TimedOut"
	InfraFailed RunStatus = "InfraFailed"
)

// Exit statuses of coreutils timeout when it fired: 124 after TERM, 128+9
// after escalating to KILL.
const (
	innerTimeoutExit = 124
	innerKilledExit  = 137
	innerKillGrace   = 2 * time.Second
)

// Outcome is the terminal state of one execution unit.
type Outcome struct {
	Status   RunStatus
	Output   string
	ExitCode int
	Duration time.Duration
}

type Options struct {
	// Namespace is the shared directory inside every runtime.
	Namespace string
	// InnerTimeout bounds each command inside the container.
	InnerTimeout time.Duration
	// SupervisoryTimeout bounds the whole unit from the host side.
	SupervisoryTimeout time.Duration
	// CleanupTimeout bounds file removal after the unit ends.
	CleanupTimeout time.Duration
}

// Unit is one run of a program against one test case. It is a value: all of
// its container paths derive from (namespace, id, entry).
type Unit struct {
	ID        string
	Runtime   string
	Namespace string
	entry     lang.Entry
}

// Prefix is shared by every file the unit owns in the namespace.
func (u Unit) Prefix() string {
	return path.Join(u.Namespace, u.ID+"_")
}

func (u Unit) Paths() lang.Paths {
	prefix := u.Prefix()
	return lang.Paths{
		Namespace: u.Namespace,
		Source:    prefix + u.entry.SourceFile,
		Input:     prefix + "input.txt",
		Binary:    prefix + "a.out",
		BuildDir:  prefix + "build",
	}
}

// Files lists every container path the unit may have created.
func (u Unit) Files() []string {
	p := u.Paths()
	return append([]string{p.Source, p.Input}, u.entry.ArtifactPaths(p)...)
}

// NewUnitID combines a millisecond timestamp with 48 random bits.
func NewUnitID() string {
	token := strings.ReplaceAll(uuid.NewV4().String(), "-", "")
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), token[:12])
}

type Runner struct {
	runtime runtime.Runtime
	opts    Options
	logger  *zap.Logger
	newID   func() string
}

func NewRunner(rt runtime.Runtime, opts Options, logger *zap.Logger) *Runner {
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = 10 * time.Second
	}
	return &Runner{
		runtime: rt,
		opts:    opts,
		logger:  logger,
		newID:   NewUnitID,
	}
}

func timeoutMessage(d time.Duration) string {
	return fmt.Sprintf("Error: Execution timed out (%s seconds limit exceeded)", seconds(d))
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
