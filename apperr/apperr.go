package apperr

import (
	"errors"
	"fmt"
)

// Code classifies a failure in the execution pipeline.
type Code int

const (
	InternalError Code = iota + 1
	InvalidParams
	UnsupportedLanguage
	RuntimeUnavailable
	StagingFailure
	CopyFailure
	ExecFailure
	ExecutionTimeout
)

var messages = map[Code]string{
	InternalError:       "internal error",
	InvalidParams:       "invalid parameters",
	UnsupportedLanguage: "unsupported language",
	RuntimeUnavailable:  "runtime unavailable",
	StagingFailure:      "failed to stage workspace",
	CopyFailure:         "failed to copy file to container",
	ExecFailure:         "failed to execute in container",
	ExecutionTimeout:    "execution timed out",
}

// Message returns the default message for the code.
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return messages[InternalError]
}

func (c Code) String() string {
	return c.Message()
}

// Error carries a Code, a caller-facing message and the wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code) *Error {
	return &Error{Code: code, Message: code.Message()}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to err. A nil err yields nil.
func Wrap(err error, code Code) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// GetCode returns the code of the outermost *Error in err's chain,
// InternalError for foreign errors and 0 for nil.
func GetCode(err error) Code {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

func Is(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}
