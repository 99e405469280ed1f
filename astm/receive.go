package astm

import "time"

// NoProgressTimeout is how long the receive machine will wait for the
// next byte while in Receiving before aborting to Idle (§4.2).
const NoProgressTimeout = 30 * time.Second

// maxConsecutiveChecksumFailures aborts the session back to Idle with
// an outbound EOT after this many bad frames in a row (§4.2).
const maxConsecutiveChecksumFailures = 3

// ReceiveOutcome is what the caller should do after feeding one token
// to the ReceiveMachine.
type ReceiveOutcome struct {
	// Reply, if non-nil, is the byte the transport should write back
	// (ACK, NAK, or EOT).
	Reply []byte
	// Complete is true once EOT closed the message; Body then holds
	// the accumulated, frame-stripped message body.
	Complete bool
	Body     []byte
	// Aborted is true when three consecutive checksum failures forced
	// the session back to Idle (§4.2, §7).
	Aborted bool
}

// ReceiveMachine is C2: it accumulates a message body from DataFrame
// tokens while the session is in Receiving, replying ACK/NAK per frame,
// and signals completion on EOT. The session controller owns the
// Idle/Receiving/Sending transition; ReceiveMachine only runs once
// entry has already been granted.
type ReceiveMachine struct {
	NetworkAck bool

	body                    []byte
	consecutiveChecksumFail int
}

// NewReceiveMachine returns a ReceiveMachine. networkAck selects
// whether standalone STX/ETX tokens are individually ACKed (§4.2).
func NewReceiveMachine(networkAck bool) *ReceiveMachine {
	return &ReceiveMachine{NetworkAck: networkAck}
}

// Reset clears the accumulated body and failure count. The caller
// invokes this whenever the session returns to Idle (§3 invariant 3).
func (r *ReceiveMachine) Reset() {
	r.body = nil
	r.consecutiveChecksumFail = 0
}

// HandleToken processes one token arriving while the session is in
// Receiving.
func (r *ReceiveMachine) HandleToken(tok Token) ReceiveOutcome {
	switch tok.Kind {
	case TokenDataFrame:
		payload, err := StripFrameEnvelope(tok.Bytes)
		if err != nil {
			r.consecutiveChecksumFail++
			if r.consecutiveChecksumFail >= maxConsecutiveChecksumFailures {
				out := ReceiveOutcome{Reply: []byte{EOT}, Aborted: true}
				r.Reset()
				return out
			}
			return ReceiveOutcome{Reply: []byte{NAK}}
		}
		r.consecutiveChecksumFail = 0
		r.body = append(r.body, payload...)
		return ReceiveOutcome{Reply: []byte{ACK}}

	case TokenSTX, TokenETX:
		if r.NetworkAck {
			return ReceiveOutcome{Reply: []byte{ACK}}
		}
		return ReceiveOutcome{}

	case TokenEOT:
		body := r.body
		r.Reset()
		return ReceiveOutcome{Reply: []byte{ACK}, Complete: true, Body: body}

	default:
		// An ENQ mid-receive is busy-NAKed by the session controller
		// before it reaches here; ACK and NAK are ignored.
		return ReceiveOutcome{}
	}
}
