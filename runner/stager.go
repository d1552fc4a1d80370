package runner

import (
	"context"
	"strings"

	"github.com/bskracic/langs-executor/apperr"
	"github.com/bskracic/langs-executor/lang"
	"github.com/bskracic/langs-executor/metrics"
	"github.com/bskracic/langs-executor/runtime"
	"go.uber.org/zap"
)

// Stage allocates a fresh unit and copies the source and input files into
// the runtime namespace. The returned unit is valid even when an error is
// returned, so a partially staged unit can still be released.
func (r *Runner) Stage(ctx context.Context, entry lang.Entry, source, input string) (Unit, error) {
	unit := Unit{
		ID:        r.newID(),
		Runtime:   entry.Runtime,
		Namespace: r.opts.Namespace,
		entry:     entry,
	}
	p := unit.Paths()

	if err := r.runtime.CopyFile(ctx, unit.Runtime, source, p.Source); err != nil {
		r.logger.Error("failed to copy code file to container",
			zap.String("runtime", unit.Runtime),
			zap.String("unit", unit.ID),
			zap.Error(err))
		return unit, apperr.Wrapf(err, apperr.CopyFailure, "Error: Failed to copy code file to container")
	}
	if err := r.runtime.CopyFile(ctx, unit.Runtime, input, p.Input); err != nil {
		r.logger.Error("failed to copy input file to container",
			zap.String("runtime", unit.Runtime),
			zap.String("unit", unit.ID),
			zap.Error(err))
		return unit, apperr.Wrapf(err, apperr.CopyFailure, "Error: Failed to copy input file to container")
	}

	r.logger.Debug("unit staged",
		zap.String("runtime", unit.Runtime),
		zap.String("unit", unit.ID))
	return unit, nil
}

// Release removes every file the unit owns. Failures are logged and counted;
// the caller is free to ignore the returned error.
func (r *Runner) Release(ctx context.Context, unit Unit) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.CleanupTimeout)
	defer cancel()

	cmd := append([]string{"rm", "-rf", "--"}, unit.Files()...)
	res, err := r.runtime.Exec(ctx, unit.Runtime, cmd)
	if err == nil && res.ExitCode != 0 {
		err = &runtime.ExitError{Cmd: "rm", ExitCode: res.ExitCode, Output: strings.TrimSpace(res.Output)}
	}
	if err != nil {
		metrics.CleanupFailures.WithLabelValues(unit.Runtime).Inc()
		r.logger.Warn("failed to clean up unit files",
			zap.String("runtime", unit.Runtime),
			zap.String("unit", unit.ID),
			zap.Error(err))
		return err
	}

	r.logger.Debug("unit cleaned up",
		zap.String("runtime", unit.Runtime),
		zap.String("unit", unit.ID))
	return nil
}
