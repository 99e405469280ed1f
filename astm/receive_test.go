package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiveMachineSingleFrameMessage(t *testing.T) {
	r := NewReceiveMachine(false)

	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3\r"))
	toks, err := NewFramer().Feed(frame)
	require.NoError(t, err)
	require.Len(t, toks, 1)

	outcome := r.HandleToken(toks[0])
	assert.Equal(t, []byte{ACK}, outcome.Reply)
	assert.False(t, outcome.Complete)

	outcome = r.HandleToken(Token{Kind: TokenEOT})
	assert.Equal(t, []byte{ACK}, outcome.Reply)
	assert.True(t, outcome.Complete)
	assert.Equal(t, "R|1|^^^GLU|5.3\r", string(outcome.Body))
}

func TestReceiveMachineMultiFrameMessage(t *testing.T) {
	r := NewReceiveMachine(false)

	records := [][]byte{
		[]byte("H|\\^&\r"),
		[]byte("P|1\r"),
		[]byte("R|1|^^^GLU|5.3\r"),
		[]byte("L|1|N\r"),
	}
	for i, rec := range records {
		frame := BuildFrame(i+1, rec)
		toks, err := NewFramer().Feed(frame)
		require.NoError(t, err)
		require.Len(t, toks, 1)

		outcome := r.HandleToken(toks[0])
		assert.Equal(t, []byte{ACK}, outcome.Reply)
	}

	outcome := r.HandleToken(Token{Kind: TokenEOT})
	require.True(t, outcome.Complete)
	assert.Equal(t, "H|\\^&\rP|1\rR|1|^^^GLU|5.3\rL|1|N\r", string(outcome.Body))
}

func TestReceiveMachineChecksumFailureNAKs(t *testing.T) {
	r := NewReceiveMachine(false)

	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3\r"))
	corrupt := append([]byte(nil), frame...)
	corrupt[len(corrupt)-4] = corrupt[len(corrupt)-4] ^ 0x01

	outcome := r.HandleToken(Token{Kind: TokenDataFrame, Bytes: corrupt})
	assert.Equal(t, []byte{NAK}, outcome.Reply)
	assert.False(t, outcome.Aborted)
}

func TestReceiveMachineThreeChecksumFailuresAborts(t *testing.T) {
	r := NewReceiveMachine(false)

	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3\r"))
	corrupt := append([]byte(nil), frame...)
	corrupt[len(corrupt)-4] = corrupt[len(corrupt)-4] ^ 0x01

	var last ReceiveOutcome
	for i := 0; i < 3; i++ {
		last = r.HandleToken(Token{Kind: TokenDataFrame, Bytes: corrupt})
	}
	assert.Equal(t, []byte{EOT}, last.Reply)
	assert.True(t, last.Aborted)
}

func TestReceiveMachineNetworkAckAcksStandaloneStxEtx(t *testing.T) {
	r := NewReceiveMachine(true)

	outcome := r.HandleToken(Token{Kind: TokenSTX})
	assert.Equal(t, []byte{ACK}, outcome.Reply)

	outcome = r.HandleToken(Token{Kind: TokenETX})
	assert.Equal(t, []byte{ACK}, outcome.Reply)
}

func TestReceiveMachineSerialDialectIgnoresStandaloneStxEtx(t *testing.T) {
	r := NewReceiveMachine(false)

	outcome := r.HandleToken(Token{Kind: TokenSTX})
	assert.Nil(t, outcome.Reply)

	outcome = r.HandleToken(Token{Kind: TokenETX})
	assert.Nil(t, outcome.Reply)
}
