package astm

import (
	"context"
	"fmt"
	"time"
)

// AckTimeout is the per-WaitXxxAck timeout; expiry behaves as a
// non-ACK and triggers Abort(EOT) (§4.4).
const AckTimeout = 15 * time.Second

// SendTransport is the write half of the byte-oriented transport
// contract (§6) that SendMachine drives.
type SendTransport interface {
	Write(b []byte) error
}

// SendMachine is C4: it drives the ENQ/STX/frames/ETX/EOT handshake for
// one outbound message, ACK-gated at every step, aborting on any
// non-ACK token or timeout (§4.4).
type SendMachine struct {
	// NetworkAck selects the dialect: true sends standalone STX/ETX
	// tokens and waits for discrete ACKs around the frame sequence
	// (on top of each frame's own embedded STX/ETX); false (serial)
	// skips those standalone waits since each built frame is already
	// self-contained and the peer ACKs once per frame.
	NetworkAck bool
}

// NewSendMachine returns a SendMachine configured for the given dialect.
func NewSendMachine(networkAck bool) *SendMachine {
	return &SendMachine{NetworkAck: networkAck}
}

// Send transmits message — a LF-joined list of CR-terminated record
// strings (§6) — over out, reading link-layer tokens from in. Frame
// numbers start at 1 and wrap 7→1 across the message (§3 invariant 4).
// It returns nil on a clean EOT-terminated handshake. Any non-ACK
// token, a read-side close, a context cancellation, or an ACK timeout
// triggers Abort(EOT): a single EOT is sent and the error is returned.
func (m *SendMachine) Send(ctx context.Context, message []byte, out SendTransport, in <-chan Token, sink Sink) error {
	if sink == nil {
		sink = NopSink{}
	}

	send := func(b []byte) error {
		if err := out.Write(b); err != nil {
			return err
		}
		sink.OnSent(b)
		return nil
	}

	abort := func(cause error) error {
		_ = send([]byte{EOT})
		return cause
	}

	waitAck := func() (Token, error) {
		select {
		case tok, ok := <-in:
			if !ok {
				return Token{}, ErrTransportClosed
			}
			return tok, nil
		case <-time.After(AckTimeout):
			return Token{}, ErrProtocolTimeout
		case <-ctx.Done():
			return Token{}, ctx.Err()
		}
	}

	step := func(b []byte) error {
		if err := send(b); err != nil {
			return err
		}
		tok, err := waitAck()
		if err != nil {
			return abort(err)
		}
		if tok.Kind != TokenACK {
			return abort(fmt.Errorf("astm: send aborted on non-ACK token %s", tok.Kind))
		}
		return nil
	}

	if err := step([]byte{ENQ}); err != nil {
		return err
	}

	if m.NetworkAck {
		if err := step([]byte{STX}); err != nil {
			return err
		}
	}

	seq := 1
	for _, record := range splitRecords(message) {
		frame := BuildFrame(seq, record)
		if err := step(frame); err != nil {
			return err
		}
		seq = nextFrameNumber(seq)
	}

	if m.NetworkAck {
		if err := step([]byte{ETX}); err != nil {
			return err
		}
	}

	return send([]byte{EOT})
}
