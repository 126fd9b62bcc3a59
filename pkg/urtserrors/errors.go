// Package urtserrors defines the error kinds the core surfaces at its
// public API boundaries (spec §7). Callers use errors.Is against the
// sentinel Kind values; wrapped errors carry additional context via
// fmt.Errorf("...: %w", ...).
package urtserrors

import "errors"

// Kind identifies one of the core's error categories.
type Kind error

var (
	// InvalidArgument marks bad inputs at a public API boundary: empty
	// name component, non-positive sampling rate, t1 <= t0, mismatched
	// channel name, capacity < 1.
	InvalidArgument Kind = errors.New("invalid argument")

	// Empty marks an operation that requires at least one element
	// (e.g. earliest start time of a ring with no packets).
	Empty Kind = errors.New("empty")

	// UnknownSensor marks a queried channel that is not in the cache.
	UnknownSensor Kind = errors.New("unknown sensor")

	// UnknownRate marks a sampling rate the sanitizer cannot classify
	// into a duplicate-tolerance bucket. This is a configuration
	// problem, not a data problem, and is raised to the caller.
	UnknownRate Kind = errors.New("unknown sampling rate")

	// InconsistentPackets marks a channel-name or sampling-rate mismatch
	// across the packets backing one response.
	InconsistentPackets Kind = errors.New("inconsistent packets")

	// OutOfRange marks a requested window that does not overlap the
	// available data at all.
	OutOfRange Kind = errors.New("out of range")

	// InvalidMessage marks a decode failure on a wire request.
	InvalidMessage Kind = errors.New("invalid message")

	// AlgorithmicFailure marks an internal error serving an otherwise
	// valid, decoded request.
	AlgorithmicFailure Kind = errors.New("algorithmic failure")

	// TransportFailure marks a transport-layer failure bubbling out of
	// the feeder or reply loop; the caller logs and continues.
	TransportFailure Kind = errors.New("transport failure")
)

// Is reports whether err (or any error it wraps) is kind.
func Is(err error, kind Kind) bool {
	return errors.Is(err, kind)
}
