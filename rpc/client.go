package rpc

import (
	"context"
	"time"

	"github.com/bskracic/langs-executor/execution"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

const healthCheckTimeout = 2 * time.Second

// Client calls a remote execution service. Transport failures never
// surface as errors; they come back as results with exit code -1.
type Client struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// Dial connects to addr without transport security.
func Dial(ctx context.Context, addr string, logger *zap.Logger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Execute runs req remotely with no deadline of its own.
func (c *Client) Execute(ctx context.Context, req execution.Request) execution.Result {
	c.logger.Info("executing code via grpc",
		zap.String("language", req.Language),
		zap.Int("test_cases", len(req.TestCases)))

	resp, err := c.call(ctx, req)
	if err != nil {
		c.logger.Error("grpc call failed", zap.Error(err))
		return execution.NewResult(false, -1, "gRPC call failed: "+status.Convert(err).Message(), nil)
	}

	res := resp.toExecution()
	c.logger.Info("code execution completed",
		zap.Bool("success", res.Success),
		zap.Int("exit_code", res.ExitCode))
	return res
}

// ExecuteWithTimeout bounds the whole call by timeout. It should be well
// above the service's supervisory timeout times the number of test cases.
func (c *Client) ExecuteWithTimeout(ctx context.Context, req execution.Request, timeout time.Duration) execution.Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.call(ctx, req)
	if err != nil {
		c.logger.Error("grpc call failed with timeout", zap.Duration("timeout", timeout), zap.Error(err))
		return execution.NewResult(false, -1, "Execution timeout or gRPC error: "+status.Convert(err).Message(), nil)
	}
	return resp.toExecution()
}

// Healthy runs a trivial python program with a short deadline.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_, err := c.call(ctx, execution.Request{Language: "python", Code: "print('health check')"})
	if err != nil {
		c.logger.Warn("health check failed", zap.Error(err))
		return false
	}
	return true
}

func (c *Client) call(ctx context.Context, req execution.Request) (*CodeExecutionResponse, error) {
	out := new(CodeExecutionResponse)
	err := c.conn.Invoke(ctx, executeCodeMethod, requestFromExecution(req), out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
