package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bskracic/langs-executor/config"
	"github.com/bskracic/langs-executor/execution"
	"github.com/bskracic/langs-executor/httpapi"
	"github.com/bskracic/langs-executor/janitor"
	"github.com/bskracic/langs-executor/lang"
	"github.com/bskracic/langs-executor/logger"
	"github.com/bskracic/langs-executor/rpc"
	"github.com/bskracic/langs-executor/runner"
	"github.com/bskracic/langs-executor/runtime"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("executor stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	registry, err := lang.NewRegistry(lang.Defaults, cfg.Runtimes)
	if err != nil {
		return fmt.Errorf("build runtime registry: %w", err)
	}

	dockerRuntime, err := runtime.NewDockerRuntime(log)
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer dockerRuntime.Close()

	r := runner.NewRunner(dockerRuntime, runner.Options{
		Namespace:          cfg.Execution.Namespace,
		InnerTimeout:       cfg.Execution.InnerTimeout,
		SupervisoryTimeout: cfg.Execution.SupervisoryTimeout,
		CleanupTimeout:     cfg.Execution.CleanupTimeout,
	}, log)
	svc := execution.NewService(registry, dockerRuntime, r, execution.Options{
		WorkspaceRoot: cfg.Execution.WorkspaceRoot,
		Namespace:     cfg.Execution.Namespace,
		Parallelism:   cfg.Execution.Parallelism,
	}, log)
	jan := janitor.New(dockerRuntime, registry.Runtimes(), janitor.Config{
		Interval:  cfg.Janitor.Interval,
		MaxAge:    cfg.Janitor.MaxAge,
		Namespace: cfg.Execution.Namespace,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return jan.Run(ctx)
	})

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcServer := grpc.NewServer()
		rpc.Register(grpcServer, rpc.NewServer(svc, log))

		g.Go(func() error {
			log.Info("grpc server started", zap.String("addr", cfg.Server.GRPCAddr))
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-ctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	if cfg.Server.HTTPAddr != "" {
		httpServer := &http.Server{
			Addr:    cfg.Server.HTTPAddr,
			Handler: httpapi.NewRouter(svc, log),
		}
		g.Go(func() error {
			log.Info("http server started", zap.String("addr", cfg.Server.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	log.Info("executor started",
		zap.Strings("languages", registry.Languages()),
		zap.Strings("runtimes", registry.Runtimes()),
		zap.String("namespace", cfg.Execution.Namespace))

	err = g.Wait()
	log.Info("executor stopped")
	return err
}
