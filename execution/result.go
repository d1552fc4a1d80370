package execution

import (
	"strings"

	"github.com/bskracic/langs-executor/apperr"
)

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

type Request struct {
	Language  string     `json:"language"`
	Code      string     `json:"code"`
	TestCases []TestCase `json:"testCases"`
}

type TestCaseResult struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
	ActualOutput   string `json:"actualOutput"`
	Passed         bool   `json:"passed"`
}

// Result is the outcome of a whole request. Build it with NewResult or
// Failure so the aggregate fields always agree with TestResults.
type Result struct {
	Success        bool             `json:"success"`
	ExitCode       int              `json:"exitCode"`
	ErrorMessage   string           `json:"errorMessage,omitempty"`
	TestResults    []TestCaseResult `json:"testResults"`
	PassedTests    int              `json:"passedTests"`
	TotalTests     int              `json:"totalTests"`
	AllTestsPassed bool             `json:"allTestsPassed"`
}

// NewResult derives the aggregate fields from results.
func NewResult(success bool, exitCode int, errorMessage string, results []TestCaseResult) Result {
	if results == nil {
		results = []TestCaseResult{}
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return Result{
		Success:        success,
		ExitCode:       exitCode,
		ErrorMessage:   errorMessage,
		TestResults:    results,
		PassedTests:    passed,
		TotalTests:     len(results),
		AllTestsPassed: success && passed == len(results),
	}
}

// Succeeded is the result of a request whose infrastructure held up,
// whatever the individual test cases did.
func Succeeded(results []TestCaseResult) Result {
	return NewResult(true, 0, "", results)
}

// Failure converts an infrastructure error into a result with no test
// results and exit code 1.
func Failure(err error) Result {
	msg := apperr.InternalError.Message()
	if err != nil {
		msg = err.Error()
	}
	return NewResult(false, 1, msg, nil)
}

// Evaluate compares actual to expected after trimming surrounding
// whitespace from both. Nothing else is normalized.
func Evaluate(tc TestCase, actual string) TestCaseResult {
	return TestCaseResult{
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		ActualOutput:   actual,
		Passed:         strings.TrimSpace(actual) == strings.TrimSpace(tc.ExpectedOutput),
	}
}
