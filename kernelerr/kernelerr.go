// Package kernelerr defines the kernel's error taxonomy: a small hierarchy of
// concrete, wrappable error kinds rather than exception subclasses. Every
// kind embeds base, which carries a message and an optional cause and
// supports errors.Is/errors.As through Unwrap, mirroring the tool-error
// wrap/unwrap chain pattern used throughout the runtime.
package kernelerr

import (
	"errors"
	"fmt"
)

// base is embedded by every concrete error kind in this package.
type base struct {
	Message string
	Cause   error
}

func (b *base) Error() string {
	if b == nil {
		return ""
	}
	if b.Cause != nil {
		return fmt.Sprintf("%s: %s", b.Message, b.Cause.Error())
	}
	return b.Message
}

func (b *base) Unwrap() error {
	if b == nil {
		return nil
	}
	return b.Cause
}

// KernelError reports that the model API call failed, or that a loop
// invariant was violated mid-run. It always aborts the run.
type KernelError struct {
	*base
	Turn  int
	Phase string
}

// NewKernelError constructs a KernelError for the given turn and phase.
func NewKernelError(turn int, phase, message string, cause error) *KernelError {
	return &KernelError{
		base:  &base{Message: message, Cause: cause},
		Turn:  turn,
		Phase: phase,
	}
}

func (e *KernelError) Error() string {
	return fmt.Sprintf("kernel error (turn=%d phase=%s): %s", e.Turn, e.Phase, e.base.Error())
}

// ToolExecutionError is reserved for framework-level tool-backend failures —
// not per-call exceptions, which always become error ToolResults instead.
type ToolExecutionError struct {
	*base
	ToolName string
	CallID   string
	Code     string
}

// NewToolExecutionError constructs a ToolExecutionError.
func NewToolExecutionError(toolName, callID, code, message string, cause error) *ToolExecutionError {
	return &ToolExecutionError{
		base:     &base{Message: message, Cause: cause},
		ToolName: toolName,
		CallID:   callID,
		Code:     code,
	}
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool execution error (tool=%s call=%s): %s", e.ToolName, e.CallID, e.base.Error())
}

// AdapterError reports that response parsing or grammar construction is
// structurally impossible — e.g. an unknown grammar strategy was requested.
type AdapterError struct {
	*base
}

// NewAdapterError constructs an AdapterError.
func NewAdapterError(message string, cause error) *AdapterError {
	return &AdapterError{base: &base{Message: message, Cause: cause}}
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter error: %s", e.base.Error())
}

// BundleError reports that a manifest is missing, unparseable, or fails
// structural validation. It surfaces at construction time, never mid-run.
type BundleError struct {
	*base
	Path string
}

// NewBundleError constructs a BundleError for the given bundle path.
func NewBundleError(path, message string, cause error) *BundleError {
	return &BundleError{base: &base{Message: message, Cause: cause}, Path: path}
}

func (e *BundleError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("bundle error (%s): %s", e.Path, e.base.Error())
	}
	return fmt.Sprintf("bundle error: %s", e.base.Error())
}

// ProviderErrorKind classifies model-client failures. The classified
// ProviderError is the cause of the KernelError a failed model call returns,
// reachable through errors.As; it does not change KernelError propagation.
type ProviderErrorKind string

const (
	ProviderRateLimited    ProviderErrorKind = "rate_limited"
	ProviderUnavailable    ProviderErrorKind = "unavailable"
	ProviderAuth           ProviderErrorKind = "auth"
	ProviderInvalidRequest ProviderErrorKind = "invalid_request"
	ProviderUnknown        ProviderErrorKind = "unknown"
)

// ProviderError wraps a raw client error with a coarse classification.
type ProviderError struct {
	*base
	Kind ProviderErrorKind
}

// NewProviderError constructs a ProviderError of the given kind.
func NewProviderError(kind ProviderErrorKind, message string, cause error) *ProviderError {
	return &ProviderError{base: &base{Message: message, Cause: cause}, Kind: kind}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %s", e.Kind, e.base.Error())
}

// ClassifyProviderError produces a best-effort ProviderError from an
// arbitrary client error when no richer classification is available.
func ClassifyProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return NewProviderError(ProviderUnknown, err.Error(), err)
}
