package rpc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bskracic/langs-executor/execution"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type fakeExecutor struct {
	execute func(ctx context.Context, req execution.Request) execution.Result
}

func (f *fakeExecutor) Execute(ctx context.Context, req execution.Request) execution.Result {
	return f.execute(ctx, req)
}

type testEnv struct {
	server *grpc.Server
	client *Client
	conn   *grpc.ClientConn
}

func startServer(t *testing.T, exec *fakeExecutor) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	Register(s, NewServer(exec, logger))
	go func() { _ = s.Serve(lis) }()

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	client, err := Dial(context.Background(), "bufnet", logger, dialer)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
		s.Stop()
	})
	return &testEnv{server: s, client: client, conn: client.conn}
}

func TestExecuteRoundTrip(t *testing.T) {
	var got execution.Request
	env := startServer(t, &fakeExecutor{execute: func(ctx context.Context, req execution.Request) execution.Result {
		got = req
		return execution.Succeeded([]execution.TestCaseResult{
			execution.Evaluate(req.TestCases[0], "2"),
			execution.Evaluate(req.TestCases[1], "3"),
		})
	}})

	req := execution.Request{
		Language: "python",
		Code:     "print(int(input())+1)",
		TestCases: []execution.TestCase{
			{Input: "1", ExpectedOutput: "2"},
			{Input: "2", ExpectedOutput: "4"},
		},
	}
	res := env.client.Execute(context.Background(), req)

	if got.Language != "python" || len(got.TestCases) != 2 || got.TestCases[1].ExpectedOutput != "4" {
		t.Fatalf("request not delivered intact: %+v", got)
	}
	if !res.Success || res.ExitCode != 0 || res.PassedTests != 1 || res.TotalTests != 2 || res.AllTestsPassed {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.TestResults[1].ActualOutput != "3" || res.TestResults[1].Passed {
		t.Fatalf("unexpected second result %+v", res.TestResults[1])
	}
}

func TestClientRecomputesAggregates(t *testing.T) {
	env := startServer(t, &fakeExecutor{execute: func(ctx context.Context, req execution.Request) execution.Result {
		return execution.Result{
			Success:        true,
			TestResults:    []execution.TestCaseResult{{Passed: false}},
			PassedTests:    1,
			TotalTests:     1,
			AllTestsPassed: true,
		}
	}})

	res := env.client.Execute(context.Background(), execution.Request{Language: "python"})
	if res.PassedTests != 0 || res.AllTestsPassed {
		t.Fatalf("aggregates must follow the test results, got %+v", res)
	}
}

func TestServerConvertsPanics(t *testing.T) {
	env := startServer(t, &fakeExecutor{execute: func(ctx context.Context, req execution.Request) execution.Result {
		panic("boom")
	}})

	res := env.client.Execute(context.Background(), execution.Request{Language: "python"})
	if res.Success || res.ExitCode != 1 || res.ErrorMessage != "Internal server error: boom" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestExecuteWithTimeout(t *testing.T) {
	release := make(chan struct{})
	env := startServer(t, &fakeExecutor{execute: func(ctx context.Context, req execution.Request) execution.Result {
		<-release
		return execution.Succeeded(nil)
	}})
	defer close(release)

	res := env.client.ExecuteWithTimeout(context.Background(), execution.Request{Language: "python"}, 50*time.Millisecond)
	if res.Success || res.ExitCode != -1 {
		t.Fatalf("expected a transport failure, got %+v", res)
	}
	if !strings.HasPrefix(res.ErrorMessage, "Execution timeout or gRPC error") {
		t.Fatalf("unexpected message %q", res.ErrorMessage)
	}
}

func TestHealthy(t *testing.T) {
	var got execution.Request
	env := startServer(t, &fakeExecutor{execute: func(ctx context.Context, req execution.Request) execution.Result {
		got = req
		return execution.Succeeded(nil)
	}})

	if !env.client.Healthy(context.Background()) {
		t.Fatalf("expected a healthy service")
	}
	if got.Language != "python" || len(got.TestCases) != 0 {
		t.Fatalf("unexpected health request %+v", got)
	}

	env.server.Stop()
	if env.client.Healthy(context.Background()) {
		t.Fatalf("a stopped server must not report healthy")
	}
}

func TestExecuteAfterShutdown(t *testing.T) {
	env := startServer(t, &fakeExecutor{execute: func(ctx context.Context, req execution.Request) execution.Result {
		return execution.Succeeded(nil)
	}})
	env.server.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res := env.client.Execute(ctx, execution.Request{Language: "python"})
	if res.Success || res.ExitCode != -1 || !strings.HasPrefix(res.ErrorMessage, "gRPC call failed") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestHealthService(t *testing.T) {
	env := startServer(t, &fakeExecutor{})
	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected status %v", resp.GetStatus())
	}
}
