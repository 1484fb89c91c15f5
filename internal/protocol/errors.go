package protocol

import "errors"

// Sentinel errors classifying the failures listed in spec.md §7. Callers
// use errors.Is against these; wrapped context is added with fmt.Errorf("%w: ...").
var (
	// ErrEndOfStream signals the peer closed before any header byte arrived.
	// This is a normal session termination, not a failure.
	ErrEndOfStream = errors.New("protocol: end of stream")

	// ErrProtocol covers a short/garbled frame header or body, or a body
	// length over the 8KiB ceiling.
	ErrProtocol = errors.New("protocol: framing error")

	// ErrMalformedBet is raised when a bet payload is missing a required field.
	ErrMalformedBet = errors.New("protocol: malformed bet")

	// ErrMalformedBatch is raised when a batch envelope is truncated, overflows,
	// or never marks a terminal entry.
	ErrMalformedBatch = errors.New("protocol: malformed batch")

	// ErrMalformedID is raised when an AGENCY_ID=<value> body is misshapen.
	ErrMalformedID = errors.New("protocol: malformed id")

	// ErrFatalIO covers an unrecoverable socket error while writing a frame.
	ErrFatalIO = errors.New("protocol: fatal io")
)
