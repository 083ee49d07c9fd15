package ping

import "errors"

// Sentinel errors returned by Session operations.
// Wrap with fmt.Errorf("...: %w", Err...) and test with errors.Is.
var (
	// ErrResolutionFailed means the resolver could not turn a hostname
	// into an address. Returned by AddHost.
	ErrResolutionFailed = errors.New("hostname resolution failed")

	// ErrDuplicateHost means the resolved address is already tracked
	// by this session.
	ErrDuplicateHost = errors.New("host already tracked")

	// ErrHostNotFound means no tracked target matches the given
	// name or address. Returned by RemoveHost.
	ErrHostNotFound = errors.New("host not tracked")

	// ErrTransmitFailed covers socket-level send failures
	// (unreachable routes, missing privileges, unavailable family).
	ErrTransmitFailed = errors.New("echo request transmit failed")

	// ErrTimeExceeded marks a round result where an intermediate
	// router reported TTL exceeded instead of the target replying.
	ErrTimeExceeded = errors.New("time to live exceeded in transit")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)
