package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChange is returned when a diff's before and after contents are equal.
	ErrNoChange = errors.New("file content unchanged")
	// ErrDeclined signals that the generator decided no test is needed.
	ErrDeclined = errors.New("generator declined to write a test")
	// ErrMalformedResponse signals a generator response missing required tags.
	ErrMalformedResponse = errors.New("malformed generator response")
	// ErrDuplicateTest signals a test name already present in the container.
	ErrDuplicateTest = errors.New("test name already exists in test module")
	// ErrUnknownTarget signals a generated filename outside the change set.
	ErrUnknownTarget = errors.New("target file is not part of the change")
)

// ParseError reports a file that could not be parsed.
type ParseError struct {
	File   Path
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s:%d:%d: %v", e.fileLabel(), e.Line, e.Column, e.Err)
	}

	return fmt.Sprintf("parse %s:%d:%d: syntax error", e.fileLabel(), e.Line, e.Column)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) fileLabel() string {
	if e.File == "" {
		return "<input>"
	}

	return string(e.File)
}

// PatchApplicationError reports a patch that did not apply cleanly. Output is
// the patch tool's reject output, unmodified.
type PatchApplicationError struct {
	Output string
	Err    error
}

func (e *PatchApplicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("patch does not apply: %v", e.Err)
	}

	return "patch does not apply"
}

func (e *PatchApplicationError) Unwrap() error { return e.Err }

// ExecutionError reports a failure of the sandbox itself, not of the tests.
type ExecutionError struct {
	Op     string
	Output string
	Err    error
}

func (e *ExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("execution failed during %s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("execution failed during %s", e.Op)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// NoTestContainerFunctionError reports a test module with nothing to anchor
// an insertion against.
type NoTestContainerFunctionError struct {
	Module string
}

func (e *NoTestContainerFunctionError) Error() string {
	return fmt.Sprintf("test module %q has no function to insert after", e.Module)
}

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	var (
		parseErr *ParseError
		execErr  *ExecutionError
		noFnErr  *NoTestContainerFunctionError
	)

	return errors.As(err, &parseErr) || errors.As(err, &execErr) || errors.As(err, &noFnErr)
}
