// Package janitor reclaims stale files from the shared runtime namespaces.
//
// Units clean up after themselves as soon as their result is captured; the
// sweep here is a backstop for crashed requests and failed removals. It
// holds no per-file ownership and relies on an age threshold far above the
// execution timeout so it never touches an in-flight unit.
package janitor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bskracic/langs-executor/metrics"
	"github.com/bskracic/langs-executor/runtime"
	"go.uber.org/zap"
)

type Config struct {
	Interval  time.Duration
	MaxAge    time.Duration
	Namespace string
	// Timeout bounds the sweep of a single runtime.
	Timeout time.Duration
}

type Janitor struct {
	runtime  runtime.Runtime
	runtimes []string
	cfg      Config
	logger   *zap.Logger
}

func New(rt runtime.Runtime, runtimes []string, cfg Config, logger *zap.Logger) *Janitor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Janitor{
		runtime:  rt,
		runtimes: runtimes,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run sweeps every Interval until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.logger.Info("janitor started",
		zap.Duration("interval", j.cfg.Interval),
		zap.Duration("max_age", j.cfg.MaxAge),
		zap.Strings("runtimes", j.runtimes))
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("janitor stopping")
			return nil
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep cleans every live runtime once and returns how many were swept.
func (j *Janitor) Sweep(ctx context.Context) int {
	swept := 0
	for _, name := range j.runtimes {
		if ctx.Err() != nil {
			return swept
		}
		if j.sweepRuntime(ctx, name) {
			swept++
		}
	}
	return swept
}

func (j *Janitor) sweepRuntime(ctx context.Context, name string) bool {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	alive, err := j.runtime.IsAlive(ctx, name)
	if err != nil || !alive {
		metrics.Sweeps.WithLabelValues(name, "skipped").Inc()
		j.logger.Debug("skipping sweep, runtime not running",
			zap.String("runtime", name),
			zap.Error(err))
		return false
	}

	for _, cmd := range j.commands() {
		res, err := j.runtime.Exec(ctx, name, cmd)
		if err == nil && res.ExitCode != 0 {
			err = &runtime.ExitError{Cmd: cmd[0], ExitCode: res.ExitCode, Output: strings.TrimSpace(res.Output)}
		}
		if err != nil {
			metrics.Sweeps.WithLabelValues(name, "failed").Inc()
			j.logger.Warn("periodic cleanup had issues",
				zap.String("runtime", name),
				zap.Error(err))
			return false
		}
	}

	metrics.Sweeps.WithLabelValues(name, "ok").Inc()
	j.logger.Info("periodic cleanup completed", zap.String("runtime", name))
	return true
}

// commands deletes stale files first, then the build directories they left
// empty.
func (j *Janitor) commands() [][]string {
	minutes := fmt.Sprintf("+%d", int(math.Ceil(j.cfg.MaxAge.Minutes())))
	return [][]string{
		{"find", j.cfg.Namespace, "-mindepth", "1", "-type", "f", "-mmin", minutes, "-delete"},
		{"find", j.cfg.Namespace, "-mindepth", "1", "-type", "d", "-empty", "-mmin", minutes, "-delete"},
	}
}
