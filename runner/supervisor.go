package runner

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/bskracic/langs-executor/metrics"
	"go.uber.org/zap"
)

// stdinScript feeds the file named by $0 to the command in "$@". It is a
// constant; paths and argv only ever travel as separate arguments.
const stdinScript = `exec "$@" < "$0"`

// Run executes a staged unit: every build step, then the program with the
// staged input on stdin. Each command carries the inner timeout; the whole
// unit is bounded by the supervisory timeout, after which the unit's
// processes are killed.
func (r *Runner) Run(ctx context.Context, unit Unit) Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.opts.SupervisoryTimeout)
	defer cancel()

	out := r.run(ctx, unit)
	out.Duration = time.Since(start)

	metrics.UnitDuration.WithLabelValues(unit.entry.Language, string(out.Status)).Observe(out.Duration.Seconds())
	r.logger.Debug("unit finished",
		zap.String("runtime", unit.Runtime),
		zap.String("unit", unit.ID),
		zap.String("status", string(out.Status)),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("duration", out.Duration))
	return out
}

func (r *Runner) run(ctx context.Context, unit Unit) Outcome {
	p := unit.Paths()

	var output strings.Builder
	for _, step := range unit.entry.BuildCommands(p) {
		out, done := r.step(ctx, unit, r.bounded(step), &output)
		if done {
			return out
		}
	}

	runCmd := append([]string{"sh", "-c", stdinScript, p.Input}, unit.entry.RunCommand(p)...)
	out, _ := r.step(ctx, unit, r.bounded(runCmd), &output)
	return out
}

// step runs one command and reports whether the unit has reached a terminal
// state. Output accumulates across steps, so compiler diagnostics end up in
// the captured text exactly as a combined build-and-run would show them.
func (r *Runner) step(ctx context.Context, unit Unit, cmd []string, output *strings.Builder) (Outcome, bool) {
	start := time.Now()
	res, err := r.runtime.Exec(ctx, unit.Runtime, cmd)
	if err != nil {
		if ctx.Err() != nil {
			r.kill(unit)
			return Outcome{Status: TimedOut, Output: timeoutMessage(r.opts.SupervisoryTimeout), ExitCode: -1}, true
		}
		r.logger.Error("error during container execution",
			zap.String("runtime", unit.Runtime),
			zap.String("unit", unit.ID),
			zap.Error(err))
		return Outcome{Status: InfraFailed, Output: fmt.Sprintf("Error: %v", err), ExitCode: -1}, true
	}

	output.WriteString(res.Output)
	switch {
	case r.innerTimedOut(res.ExitCode, time.Since(start)):
		return Outcome{Status: TimedOut, Output: timeoutMessage(r.opts.InnerTimeout), ExitCode: res.ExitCode}, true
	case res.ExitCode != 0:
		return Outcome{Status: Completed, Output: trimOutput(output.String()), ExitCode: res.ExitCode}, true
	}
	return Outcome{Status: Completed, Output: trimOutput(output.String())}, false
}

// bounded sends TERM at the inner timeout and KILL innerKillGrace later if
// the command is still alive.
func (r *Runner) bounded(cmd []string) []string {
	return append([]string{"timeout", "-k", seconds(innerKillGrace) + "s", seconds(r.opts.InnerTimeout) + "s"}, cmd...)
}

// innerTimedOut reads the exit status of a bounded command. timeout exits
// 124 after TERM and 137 when it had to escalate to KILL; a 137 that comes
// before the limit is the program's own death by SIGKILL.
func (r *Runner) innerTimedOut(exitCode int, elapsed time.Duration) bool {
	switch exitCode {
	case innerTimeoutExit:
		return true
	case innerKilledExit:
		return elapsed >= r.opts.InnerTimeout
	}
	return false
}

// kill runs with its own deadline because the unit's context has expired.
func (r *Runner) kill(unit Unit) {
	r.logger.Warn("process timed out and was killed",
		zap.String("runtime", unit.Runtime),
		zap.String("unit", unit.ID))

	ctx, cancel := context.WithTimeout(context.Background(), r.opts.CleanupTimeout)
	defer cancel()
	if err := r.runtime.KillMatching(ctx, unit.Runtime, unit.Prefix()); err != nil {
		r.logger.Warn("failed to kill timed out unit",
			zap.String("runtime", unit.Runtime),
			zap.String("unit", unit.ID),
			zap.Error(err))
	}
}

func trimOutput(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
