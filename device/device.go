// Package device decides which compute path a model call runs on and
// degrades a failed accelerator call to the fallback path once.
package device

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Kind is the compute path of a model call.
type Kind int

const (
	Fallback Kind = iota
	Accelerator
)

func (k Kind) String() string {
	switch k {
	case Accelerator:
		return "accelerator"
	case Fallback:
		return "fallback"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Selection is the outcome of a device probe for one model load.
type Selection struct {
	Kind Kind
	// Name is the device identifier passed to model services,
	// e.g. "cuda:0" or "cpu".
	Name string
	// RetryOnFallback allows one retry on the fallback path when an
	// accelerator call fails with an *Error.
	RetryOnFallback bool
	// Reason explains the selection for logs.
	Reason string
}

// Error reports a compute-device failure, e.g. out of memory or an
// unsupported architecture. Errors of any other type are not retried.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsDeviceError reports whether err carries an *Error.
func IsDeviceError(err error) bool {
	var de *Error
	return errors.As(err, &de)
}

// FallbackName is the device identifier of the fallback path.
const FallbackName = "cpu"

// Policy selects a device from static capability information.
type Policy struct {
	// Accelerator is the accelerator identifier; empty disables it.
	Accelerator string
	// Capability is the accelerator's compute capability, e.g. "sm_61".
	Capability string
	// SupportedArches lists capabilities the model runtime was built for.
	// Empty accepts any capability.
	SupportedArches []string
	RetryOnFallback bool
}

// Select returns the device a model load should use.
func (p Policy) Select() Selection {
	if p.Accelerator == "" {
		return Selection{Kind: Fallback, Name: FallbackName, Reason: "no accelerator configured, using cpu"}
	}
	if len(p.SupportedArches) > 0 && !slices.Contains(p.SupportedArches, p.Capability) {
		return Selection{
			Kind:   Fallback,
			Name:   FallbackName,
			Reason: fmt.Sprintf("accelerator %s (capability %q) is not supported by this runtime, using cpu",
				p.Accelerator, p.Capability),
		}
	}
	return Selection{
		Kind:            Accelerator,
		Name:            p.Accelerator,
		RetryOnFallback: p.RetryOnFallback,
		Reason:          fmt.Sprintf("using accelerator %s", p.Accelerator),
	}
}

// Op is a model call on a named device.
type Op[T any] func(ctx context.Context, dev string) (T, error)

// Run executes op on sel. When op fails with an *Error on the accelerator
// and sel allows it, op runs once more on the fallback path. The fallback
// applies to this call only. onFallback, if non-nil, is invoked before the
// retry.
func Run[T any](ctx context.Context, sel Selection, op Op[T], onFallback func(error)) (T, error) {
	out, err := op(ctx, sel.Name)
	if err == nil {
		return out, nil
	}
	if sel.Kind != Accelerator || !sel.RetryOnFallback || !IsDeviceError(err) {
		return out, err
	}
	if onFallback != nil {
		onFallback(err)
	}
	out, retryErr := op(ctx, FallbackName)
	if retryErr != nil {
		return out, fmt.Errorf("retry on %s after %v: %w", FallbackName, err, retryErr)
	}
	return out, nil
}
