// Package execution runs a request's code against its test cases in the
// runtime bound to the request's language.
package execution

import (
	"context"
	"time"

	"github.com/bskracic/langs-executor/apperr"
	"github.com/bskracic/langs-executor/lang"
	"github.com/bskracic/langs-executor/metrics"
	"github.com/bskracic/langs-executor/runner"
	"github.com/bskracic/langs-executor/runtime"
	"github.com/bskracic/langs-executor/workspace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// WorkspaceRoot is the host directory that holds request workspaces.
	// Empty means the system temp dir.
	WorkspaceRoot string
	// Namespace is the shared directory inside every runtime.
	Namespace string
	// Parallelism bounds how many test cases of one request run at once.
	Parallelism int
}

type Service struct {
	registry *lang.Registry
	runtime  runtime.Runtime
	runner   *runner.Runner
	opts     Options
	logger   *zap.Logger
}

func NewService(registry *lang.Registry, rt runtime.Runtime, r *runner.Runner, opts Options, logger *zap.Logger) *Service {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Service{
		registry: registry,
		runtime:  rt,
		runner:   r,
		opts:     opts,
		logger:   logger,
	}
}

// Execute never fails: every error, panics included, is folded into the
// returned Result. The work is detached from ctx's cancellation so a caller
// that stops waiting does not leave a unit half staged.
func (s *Service) Execute(ctx context.Context, req Request) (res Result) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	label, status := "unknown", "ok"

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered from panic during execution",
				zap.String("language", req.Language),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res, status = Failure(apperr.Newf(apperr.InternalError, "Internal error: %v", r)), "internal"
		}
		metrics.RequestsTotal.WithLabelValues(label, status).Inc()
		s.logger.Info("execution completed",
			zap.String("language", req.Language),
			zap.Bool("success", res.Success),
			zap.Int("passed", res.PassedTests),
			zap.Int("total", res.TotalTests),
			zap.Duration("duration", time.Since(start)))
	}()

	s.logger.Info("execution requested",
		zap.String("language", req.Language),
		zap.Int("test_cases", len(req.TestCases)))

	entry, err := s.registry.Resolve(req.Language)
	if err != nil {
		status = requestStatus(err)
		return s.fail(req, err)
	}
	label = entry.Language

	results, err := s.execute(ctx, entry, req)
	if err != nil {
		status = requestStatus(err)
		return s.fail(req, err)
	}
	return Succeeded(results)
}

func (s *Service) execute(ctx context.Context, entry lang.Entry, req Request) ([]TestCaseResult, error) {
	if err := s.ensureAlive(ctx, entry.Runtime); err != nil {
		return nil, err
	}

	ws, err := workspace.Create(s.opts.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			s.logger.Warn("failed to remove workspace", zap.String("dir", ws.Dir()), zap.Error(err))
		}
	}()

	source, err := ws.WriteSource(entry.SourceFile, req.Code)
	if err != nil {
		return nil, err
	}

	results := make([]TestCaseResult, len(req.TestCases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for i, tc := range req.TestCases {
		i, tc := i, tc
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("recovered from panic in test case",
						zap.Int("index", i),
						zap.Any("panic", r),
						zap.Stack("stack"))
					err = apperr.Newf(apperr.InternalError, "Internal error: %v", r)
				}
			}()
			if gctx.Err() != nil {
				return nil
			}
			res, err := s.runTestCase(ctx, entry, ws, source, i, tc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runTestCase stages, runs and releases one unit. Only host-side staging
// errors are returned; anything that goes wrong inside the runtime becomes
// the test case's actual output.
func (s *Service) runTestCase(ctx context.Context, entry lang.Entry, ws *workspace.Workspace, source string, index int, tc TestCase) (TestCaseResult, error) {
	input, err := ws.WriteInput(index, tc.Input)
	if err != nil {
		return TestCaseResult{}, err
	}

	var actual string
	unit, err := s.runner.Stage(ctx, entry, source, input)
	if err != nil {
		actual = err.Error()
	} else {
		actual = s.runner.Run(ctx, unit).Output
	}
	_ = s.runner.Release(ctx, unit)

	return Evaluate(tc, actual), nil
}

func (s *Service) ensureAlive(ctx context.Context, name string) error {
	alive, err := s.runtime.IsAlive(ctx, name)
	if err != nil {
		return apperr.Wrapf(err, apperr.RuntimeUnavailable, "Container down: failed to query %s: %v", name, err)
	}
	if !alive {
		return apperr.Newf(apperr.RuntimeUnavailable, "Container down: %s is not running.", name)
	}
	return nil
}

func (s *Service) fail(req Request, err error) Result {
	s.logger.Error("execution failed",
		zap.String("language", req.Language),
		zap.Stringer("code", apperr.GetCode(err)),
		zap.Error(err))
	return Failure(err)
}

// RuntimeAlive reports the runtime bound to language and whether it runs.
func (s *Service) RuntimeAlive(ctx context.Context, language string) (string, bool, error) {
	entry, err := s.registry.Resolve(language)
	if err != nil {
		return "", false, err
	}
	alive, err := s.runtime.IsAlive(ctx, entry.Runtime)
	if err != nil {
		return entry.Runtime, false, apperr.Wrap(err, apperr.RuntimeUnavailable)
	}
	return entry.Runtime, alive, nil
}

// DiskUsage reports the size of the shared namespace in language's runtime.
func (s *Service) DiskUsage(ctx context.Context, language string) (string, error) {
	entry, err := s.registry.Resolve(language)
	if err != nil {
		return "", err
	}
	if err := s.ensureAlive(ctx, entry.Runtime); err != nil {
		return "", err
	}
	usage, err := runtime.DiskUsage(ctx, s.runtime, entry.Runtime, s.opts.Namespace)
	if err != nil {
		return "", apperr.Wrapf(err, apperr.ExecFailure, "Error checking disk usage: %v", err)
	}
	return usage, nil
}

// Languages lists the supported languages.
func (s *Service) Languages() []string {
	return s.registry.Languages()
}

func requestStatus(err error) string {
	switch apperr.GetCode(err) {
	case apperr.UnsupportedLanguage:
		return "unsupported"
	case apperr.RuntimeUnavailable:
		return "runtime_down"
	case apperr.StagingFailure:
		return "staging_failed"
	default:
		return "internal"
	}
}
