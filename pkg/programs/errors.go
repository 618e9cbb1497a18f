package programs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned when a program is used before Load succeeded
	// or after it was closed.
	ErrNotLoaded = errors.New("program not loaded")

	// ErrAlreadyLoaded is returned by a second Load on the same handle.
	ErrAlreadyLoaded = errors.New("program already loaded")

	// ErrAlreadyAttached is returned when a link with the same id is
	// already tracked.
	ErrAlreadyAttached = errors.New("program already attached")

	// ErrNotAttached is returned when detaching an unknown link id.
	ErrNotAttached = errors.New("program not attached")
)

// LoadError represents a program the kernel refused to load.
type LoadError struct {
	Program string
	Type    string
	Cause   error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("failed to load eBPF program %s (type: %s): %v", e.Program, e.Type, e.Cause)
}

func (e LoadError) Unwrap() error {
	return e.Cause
}

// InvocationError represents a failed synchronous run of a loaded program.
type InvocationError struct {
	Program string
	Cause   error
}

func (e InvocationError) Error() string {
	return fmt.Sprintf("failed to invoke eBPF program %s: %v", e.Program, e.Cause)
}

func (e InvocationError) Unwrap() error {
	return e.Cause
}

// NotSupportedError represents a feature missing on the running platform.
type NotSupportedError struct {
	Feature  string
	Platform string
	Reason   string
}

func (e NotSupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s is not supported on %s: %s", e.Feature, e.Platform, e.Reason)
	}
	return fmt.Sprintf("%s is not supported on %s", e.Feature, e.Platform)
}
