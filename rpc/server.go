package rpc

import (
	"context"
	"fmt"

	"github.com/bskracic/langs-executor/execution"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	serviceName       = "langs.ExecutionService"
	executeCodeMethod = "/" + serviceName + "/ExecuteCode"
)

// ExecutionServiceServer is the server API for langs.ExecutionService.
type ExecutionServiceServer interface {
	ExecuteCode(context.Context, *CodeExecutionRequest) (*CodeExecutionResponse, error)
}

var executionServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExecutionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ExecuteCode",
			Handler:    executeCodeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "langs/execution.proto",
}

func executeCodeHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CodeExecutionRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ExecutionServiceServer).ExecuteCode(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: executeCodeMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ExecutionServiceServer).ExecuteCode(ctx, req.(*CodeExecutionRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Executor runs one request to completion.
type Executor interface {
	Execute(ctx context.Context, req execution.Request) execution.Result
}

type Server struct {
	executor Executor
	logger   *zap.Logger
}

func NewServer(executor Executor, logger *zap.Logger) *Server {
	return &Server{executor: executor, logger: logger}
}

// Register installs the execution service and a health service reporting
// it as serving.
func Register(s *grpc.Server, srv *Server) *health.Server {
	s.RegisterService(&executionServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return hs
}

// ExecuteCode always answers with a response; faults are reported in it
// rather than as a gRPC status.
func (s *Server) ExecuteCode(ctx context.Context, req *CodeExecutionRequest) (resp *CodeExecutionResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("grpc execution failed", zap.Any("panic", r), zap.Stack("stack"))
			resp, err = internalError(fmt.Sprint(r)), nil
		}
	}()

	s.logger.Info("received grpc execution request",
		zap.String("language", req.Language),
		zap.Int("test_cases", len(req.TestCases)))

	res := s.executor.Execute(ctx, req.toExecution())

	s.logger.Info("grpc execution completed",
		zap.Bool("success", res.Success),
		zap.Int("passed", res.PassedTests),
		zap.Int("total", res.TotalTests))
	return responseFromExecution(res), nil
}

func internalError(msg string) *CodeExecutionResponse {
	return &CodeExecutionResponse{
		Success:      false,
		ErrorMessage: "Internal server error: " + msg,
		ExitCode:     1,
		TestResults:  []ExecutionTestResult{},
	}
}
