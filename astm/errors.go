package astm

import "errors"

// Sentinel errors for the taxonomy of §7: link-layer errors are
// recoverable by restarting the session, semantic errors in records are
// localized to that record.
var (
	// ErrTransportClosed means the byte stream ended; the session
	// returns to Idle and the controller's reconnect loop takes over.
	ErrTransportClosed = errors.New("astm: transport closed")

	// ErrFrameError means the framer could not classify or validate a
	// data frame; the caller should NAK and drop the frame.
	ErrFrameError = errors.New("astm: malformed frame")

	// ErrChecksumMismatch means a frame's trailing checksum did not
	// match its computed checksum.
	ErrChecksumMismatch = errors.New("astm: checksum mismatch")

	// ErrProtocolTimeout means a no-progress or ACK-wait timer expired.
	ErrProtocolTimeout = errors.New("astm: protocol timeout")

	// ErrPersistence wraps a failure from the persistence collaborator.
	ErrPersistence = errors.New("astm: persistence failure")

	// ErrMalformedRecord means a single record within a message body
	// could not be interpreted; parsing continues with the next record.
	ErrMalformedRecord = errors.New("astm: malformed record")
)
