package testfloat

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-testfloat/exitcodes"
)

// ConfigError represents an invalid invocation that should lead to exit code 1.
// Nothing has been run when it is returned.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(err error) *ConfigError {
	return &ConfigError{Err: err}
}

// IsConfigError checks if the error is or wraps a ConfigError
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return err != nil && errors.As(err, &configErr)
}

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include a process that cannot be started, a broken pipe or an interrupt.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// CaseFailureError is a test case that did not pass. The process exits with
// its Status.
type CaseFailureError struct {
	Status  int
	Message string
}

func (e *CaseFailureError) Error() string {
	return fmt.Sprintf("test case failed with status %d: %s", e.Status, e.Message)
}

// NewCaseFailureError creates a new CaseFailureError
func NewCaseFailureError(status int, message string) *CaseFailureError {
	return &CaseFailureError{Status: status, Message: message}
}

// IsCaseFailureError checks if the error is or wraps a CaseFailureError
func IsCaseFailureError(err error) bool {
	var caseErr *CaseFailureError
	return err != nil && errors.As(err, &caseErr)
}

// ExitCode maps an error returned by the harness to the process exit status.
// Unclassified errors are treated as runtime errors.
func ExitCode(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	var caseErr *CaseFailureError
	if errors.As(err, &caseErr) {
		return caseErr.Status
	}
	if IsConfigError(err) {
		return exitcodes.ConfigErr
	}
	return exitcodes.RuntimeErr
}
