package rpc

import "github.com/bskracic/langs-executor/execution"

type ExecutionTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

type CodeExecutionRequest struct {
	Language  string              `json:"language"`
	Code      string              `json:"code"`
	TestCases []ExecutionTestCase `json:"test_cases"`
}

type ExecutionTestResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	ActualOutput   string `json:"actual_output"`
	Passed         bool   `json:"passed"`
}

type CodeExecutionResponse struct {
	Success        bool                  `json:"success"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	ExitCode       int32                 `json:"exit_code"`
	TestResults    []ExecutionTestResult `json:"test_results"`
	PassedTests    int32                 `json:"passed_tests"`
	TotalTests     int32                 `json:"total_tests"`
	AllTestsPassed bool                  `json:"all_tests_passed"`
}

func requestFromExecution(req execution.Request) *CodeExecutionRequest {
	out := &CodeExecutionRequest{
		Language:  req.Language,
		Code:      req.Code,
		TestCases: make([]ExecutionTestCase, 0, len(req.TestCases)),
	}
	for _, tc := range req.TestCases {
		out.TestCases = append(out.TestCases, ExecutionTestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput})
	}
	return out
}

func (r *CodeExecutionRequest) toExecution() execution.Request {
	req := execution.Request{
		Language:  r.Language,
		Code:      r.Code,
		TestCases: make([]execution.TestCase, 0, len(r.TestCases)),
	}
	for _, tc := range r.TestCases {
		req.TestCases = append(req.TestCases, execution.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput})
	}
	return req
}

func responseFromExecution(res execution.Result) *CodeExecutionResponse {
	out := &CodeExecutionResponse{
		Success:        res.Success,
		ErrorMessage:   res.ErrorMessage,
		ExitCode:       int32(res.ExitCode),
		TestResults:    make([]ExecutionTestResult, 0, len(res.TestResults)),
		PassedTests:    int32(res.PassedTests),
		TotalTests:     int32(res.TotalTests),
		AllTestsPassed: res.AllTestsPassed,
	}
	for _, tr := range res.TestResults {
		out.TestResults = append(out.TestResults, ExecutionTestResult{
			Input:          tr.Input,
			ExpectedOutput: tr.ExpectedOutput,
			ActualOutput:   tr.ActualOutput,
			Passed:         tr.Passed,
		})
	}
	return out
}

// toExecution rebuilds the aggregate fields from the test results instead
// of trusting the ones on the wire.
func (r *CodeExecutionResponse) toExecution() execution.Result {
	results := make([]execution.TestCaseResult, 0, len(r.TestResults))
	for _, tr := range r.TestResults {
		results = append(results, execution.TestCaseResult{
			Input:          tr.Input,
			ExpectedOutput: tr.ExpectedOutput,
			ActualOutput:   tr.ActualOutput,
			Passed:         tr.Passed,
		})
	}
	return execution.NewResult(r.Success, int(r.ExitCode), r.ErrorMessage, results)
}
