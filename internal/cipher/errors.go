package cipher

import (
	"context"
	"errors"
	"fmt"
)

// Category is the caller-visible failure class of an error.
type Category string

const (
	CategoryNone          Category = ""
	CategoryUnknownCipher Category = "unknown_cipher"
	CategoryLoad          Category = "load_error"
	CategoryCompile       Category = "compile_error"
	CategoryFault         Category = "cipher_fault"
	CategoryCancelled     Category = "cancelled"
	CategoryInternal      Category = "internal"
)

// UnknownCipherError reports a built-in id with no registered implementation.
type UnknownCipherError struct {
	ID string
}

func (e *UnknownCipherError) Error() string {
	return fmt.Sprintf("unknown cipher %q", e.ID)
}

// LoadError reports plugin source that contains no usable cipher type, or
// that was refused before evaluation.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string {
	return "load plugin: " + e.Reason
}

// CompileError reports plugin source, or a constructor, that failed to
// evaluate or instantiate.
type CompileError struct {
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("compile plugin: %s: %v", e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("compile plugin: %v", e.Err)
	default:
		return "compile plugin: " + e.Message
	}
}

func (e *CompileError) Unwrap() error { return e.Err }

// RuntimeFault reports a conforming cipher that failed while being invoked.
// A faulty cipher invalidates any statistical conclusion about it.
type RuntimeFault struct {
	Cipher string
	Op     Op
	Err    error
}

func (e *RuntimeFault) Error() string {
	return fmt.Sprintf("cipher %q faulted during %s: %v", e.Cipher, e.Op, e.Err)
}

func (e *RuntimeFault) Unwrap() error { return e.Err }

// CategoryOf classifies err for callers that must distinguish loader failures
// from measurement faults.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var (
		unknown *UnknownCipherError
		load    *LoadError
		compile *CompileError
		fault   *RuntimeFault
	)
	switch {
	case errors.As(err, &unknown):
		return CategoryUnknownCipher
	case errors.As(err, &load):
		return CategoryLoad
	case errors.As(err, &compile):
		return CategoryCompile
	case errors.As(err, &fault):
		return CategoryFault
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CategoryCancelled
	default:
		return CategoryInternal
	}
}
