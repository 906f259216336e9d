// Package sandboxerr defines the closed error taxonomy shared by every
// layer of the orchestrator (config validation, VM lifecycle, the agent
// client, and the registry). Callers branch on Kind rather than matching
// error strings.
package sandboxerr

import "fmt"

// Kind classifies an error by recovery strategy, not by the component that
// raised it.
type Kind int

const (
	// KindInvalidConfig marks a SandboxConfig or MachineSpec that failed
	// validation. Non-retryable.
	KindInvalidConfig Kind = iota
	// KindVM marks a hypervisor control-API failure (create/start/stop).
	// Non-retryable at the same call.
	KindVM
	// KindConnection marks an Agent Client connect failure after the
	// internal retry budget is exhausted.
	KindConnection
	// KindRPC marks a framing, I/O, or deadline failure on an
	// already-established Agent Client connection, and also a JSON-RPC
	// error object returned by the guest agent (see RPC).
	KindRPC
	// KindDispatch names guest-agent dispatch failures (method not found,
	// invalid params, internal error) as a separate kind. No package in
	// this module returns it: the agent client reports those as KindRPC.
	KindDispatch
	// KindNotFound marks a Registry lookup miss.
	KindNotFound
	// KindInvalidState marks an operation attempted against a Sandbox not
	// in the Ready state.
	KindInvalidState
	// KindCapacity marks a Registry at its configured sandbox limit.
	KindCapacity
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfig:
		return "invalid_config"
	case KindVM:
		return "vm"
	case KindConnection:
		return "connection"
	case KindRPC:
		return "rpc"
	case KindDispatch:
		return "dispatch"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Error is the concrete error type threaded through every package. It
// wraps an underlying cause (if any) with a Kind so callers can branch
// without parsing message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error carrying an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given Kind. It lets callers
// write `if sandboxerr.Is(err, sandboxerr.KindNotFound)` instead of a type
// assertion.
func Is(err error, kind Kind) bool {
	se, ok := err.(*Error)
	return ok && se.Kind == kind
}

// InvalidState builds the invalid-state error shape: the expected state is
// always "Ready", the actual state is whatever the Sandbox was in.
func InvalidState(actual string) *Error {
	return New(KindInvalidState, fmt.Sprintf("invalid state: expected Ready, got %s", actual))
}

// NotFound builds the Registry not-found error for an unknown sandbox id.
func NotFound(id string) *Error {
	return New(KindNotFound, fmt.Sprintf("sandbox not found: %s", id))
}

// CapacityExceeded builds the Registry capacity error.
func CapacityExceeded(max int) *Error {
	return New(KindCapacity, fmt.Sprintf("registry at capacity (max_sandboxes=%d)", max))
}

// RPC builds a KindRPC error carrying the agent's own error code/message,
// matching the wire.RPCError shape the agent client unwraps.
func RPC(code int, message string) *Error {
	return New(KindRPC, fmt.Sprintf("RPC error %d: %s", code, message))
}
