// Package gudaprim structured error types for better error handling
package gudaprim

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Invalid argument errors
	ErrTypeInvalidArg ErrorType = iota
	// Memory errors
	ErrTypeMemory
	// Launch-time precondition violations (sizing, local memory capacity)
	ErrTypeLaunch
	// Errors raised while a kernel was executing
	ErrTypeExecution
	// Device errors
	ErrTypeDevice
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gudaprim %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("gudaprim %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeLaunch:
		return "Launch"
	case ErrTypeExecution:
		return "Execution"
	case ErrTypeDevice:
		return "Device"
	default:
		return "Unknown"
	}
}

// Common error constructors

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewConfigError creates an invalid argument error for a rejected
// configuration. err holds the individual problems.
func NewConfigError(op string, err error) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: "invalid configuration",
		Err:     err,
	}
}

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewLaunchError creates an error for a kernel that could not be launched
// because a launch-time precondition does not hold.
func NewLaunchError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeLaunch,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewDeviceError creates a device error
func NewDeviceError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Common pre-defined errors

var (
	// ErrBarrierBroken is raised in items parked on a barrier whose group
	// had an item fail.
	ErrBarrierBroken = errors.New("work-group barrier broken")

	// ErrLaunchAborted is raised in items of a launch that was aborted by a
	// failure in another work-group.
	ErrLaunchAborted = errors.New("launch aborted")

	// ErrDependencyFailed marks events whose kernel did not run because an
	// upstream event failed.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrLocalMemoryExceeded is returned when a work-group requests more
	// shared memory than the device provides.
	ErrLocalMemoryExceeded = errors.New("local memory exceeded")

	// ErrInvalidWorkGroupSize indicates an empty or oversized work-group.
	ErrInvalidWorkGroupSize = NewInvalidArgError("Launch", "invalid work-group size")

	// ErrCapacityExceeded indicates an input larger than a single
	// work-group can hold.
	ErrCapacityExceeded = errors.New("input exceeds work-group capacity")

	// ErrContextDestroyed is returned by launches on a destroyed context.
	ErrContextDestroyed = NewDeviceError("Launch", "context destroyed", nil)
)

func hasType(err error, t ErrorType) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Type == t {
			return true
		}
		err = e.Err
	}
	return false
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool { return hasType(err, ErrTypeInvalidArg) }

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool { return hasType(err, ErrTypeMemory) }

// IsLaunchError checks if an error is a launch precondition error
func IsLaunchError(err error) bool { return hasType(err, ErrTypeLaunch) }

// IsExecutionError checks if an error is an execution error
func IsExecutionError(err error) bool { return hasType(err, ErrTypeExecution) }

// IsDeviceError checks if an error is a device error
func IsDeviceError(err error) bool { return hasType(err, ErrTypeDevice) }
