package astm

import (
	"bytes"
	"errors"
	"testing"
)

func TestFramerControlBytes(t *testing.T) {
	cases := []struct {
		name string
		b    byte
		want TokenKind
	}{
		{"ENQ", ENQ, TokenENQ},
		{"ACK", ACK, TokenACK},
		{"NAK", NAK, TokenNAK},
		{"EOT", EOT, TokenEOT},
		{"bare ETX", ETX, TokenETX},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFramer()
			toks, err := f.Feed([]byte{tc.b})
			if err != nil {
				t.Fatalf("Feed returned error: %v", err)
			}
			if len(toks) != 1 || toks[0].Kind != tc.want {
				t.Fatalf("Feed(%#02x) = %v, want single %s token", tc.b, toks, tc.want)
			}
		})
	}
}

func TestFramerDataFrame(t *testing.T) {
	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3\r"))

	f := NewFramer()
	toks, err := f.Feed(frame)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != TokenDataFrame {
		t.Fatalf("Feed(frame) = %v, want single DataFrame token", toks)
	}
	if !bytes.Equal(toks[0].Bytes, frame) {
		t.Errorf("token bytes = %q, want %q", toks[0].Bytes, frame)
	}

	payload, err := StripFrameEnvelope(toks[0].Bytes)
	if err != nil {
		t.Fatalf("StripFrameEnvelope: %v", err)
	}
	if string(payload) != "R|1|^^^GLU|5.3\r" {
		t.Errorf("payload = %q, want %q", payload, "R|1|^^^GLU|5.3\r")
	}
}

func TestFramerByteAtATime(t *testing.T) {
	frame := BuildFrame(2, []byte("H|\\^&\r"))

	f := NewFramer()
	var got []Token
	for _, b := range frame {
		toks, err := f.Feed([]byte{b})
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		got = append(got, toks...)
	}
	if len(got) != 1 || got[0].Kind != TokenDataFrame {
		t.Fatalf("byte-at-a-time feed produced %v, want single DataFrame token", got)
	}
	if !bytes.Equal(got[0].Bytes, frame) {
		t.Errorf("reassembled frame = %q, want %q", got[0].Bytes, frame)
	}
}

func TestFramerChecksumMismatch(t *testing.T) {
	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3\r"))
	// Corrupt a checksum digit.
	corrupt := append([]byte(nil), frame...)
	corrupt[len(corrupt)-4] = '0'
	if corrupt[len(corrupt)-4] == frame[len(frame)-4] {
		corrupt[len(corrupt)-4] = '1'
	}

	f := NewFramer()
	toks, err := f.Feed(corrupt)
	if err != nil {
		t.Fatalf("Feed returned error: %v", err)
	}
	_, err = StripFrameEnvelope(toks[0].Bytes)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("StripFrameEnvelope error = %v, want ErrChecksumMismatch", err)
	}
}

func TestFramerOversizedBufferResets(t *testing.T) {
	f := NewFramer()
	garbage := bytes.Repeat([]byte{'x'}, maxFrameBuffer+10)
	garbage[0] = STX

	_, err := f.Feed(garbage)
	if !errors.Is(err, ErrFrameError) {
		t.Fatalf("Feed oversized garbage error = %v, want ErrFrameError", err)
	}

	// The framer must have reset: a fresh frame should parse cleanly.
	frame := BuildFrame(1, []byte("L|1|N\r"))
	toks, err := f.Feed(frame)
	if err != nil {
		t.Fatalf("Feed after reset returned error: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != TokenDataFrame {
		t.Fatalf("Feed after reset = %v, want single DataFrame token", toks)
	}
}

func TestFramerStrayAckDuringFrameAccumulationIsDropped(t *testing.T) {
	frame := BuildFrame(1, []byte("P|1\r"))

	f := NewFramer()
	// Feed the opening STX, an intruding ACK, then the rest of the frame.
	toks, err := f.Feed(frame[:1])
	if err != nil || len(toks) != 0 {
		t.Fatalf("Feed(STX) = %v, %v", toks, err)
	}
	toks, err = f.Feed([]byte{ACK})
	if err != nil || len(toks) != 0 {
		t.Fatalf("Feed(ACK mid-frame) = %v, %v, want dropped", toks, err)
	}
	toks, err = f.Feed(frame[1:])
	if err != nil {
		t.Fatalf("Feed remainder: %v", err)
	}
	if len(toks) != 1 || toks[0].Kind != TokenDataFrame {
		t.Fatalf("final tokens = %v, want single DataFrame token", toks)
	}
	if !bytes.Equal(toks[0].Bytes, frame) {
		t.Errorf("reassembled frame = %q, want %q (ACK should have been dropped)", toks[0].Bytes, frame)
	}
}
