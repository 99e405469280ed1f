package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParserExtractsReadingsQualifiedByMachineID(t *testing.T) {
	p := NewParser("ANALYZER1", nil)
	body := []byte("H|\\^&\rP|1\rO|1|SPEC001||^^^GLU|R\rR|1|^^^GLU|5.3|mg/dL||||F\rL|1|N\r")

	result := p.ParseMessage(body)

	require.Len(t, result.Readings, 1)
	r := result.Readings[0]
	assert.Equal(t, "SPEC001", r.LabNumber)
	assert.Equal(t, "GLU", r.Param)
	assert.Equal(t, "5.3", r.Value)
	assert.Equal(t, "ANALYZER1_GLU", r.QualifiedParam())
}

func TestParserSkipsSentinelAndOverlongReadings(t *testing.T) {
	p := NewParser("M1", nil)
	body := []byte("O|1|SPEC002||^^^NA|R\r" +
		"R|1|^^^NA|----|mmol/L||||F\r" +
		"R|2|^^^SOMEVERYLONGPARAMETERNAME|1.0|U/L||||F\r" +
		"R|3|^^^K|4.0|mmol/L||||F\r")

	result := p.ParseMessage(body)

	require.Len(t, result.Readings, 1)
	assert.Equal(t, "K", result.Readings[0].Param)
}

func TestParserTracksQueryRecord(t *testing.T) {
	p := NewParser("M1", nil)
	body := []byte("H|\\^&\rQ|1|SPEC003^^^^|ALL||||||||O\rL|1|N\r")

	result := p.ParseMessage(body)

	require.Len(t, result.Queries, 1)
	assert.Equal(t, "SPEC003", result.Queries[0].LabNumber)
}

func TestParserPublishesToSink(t *testing.T) {
	sink := &RecordingSink{}
	p := NewParser("M1", sink)
	body := []byte("H|\\^&\rP|1\rO|1|SPEC004||^^^GLU|R\rR|1|^^^GLU|5.0|mg/dL||||F\rL|1|N\r")

	p.ParseMessage(body)

	readings := sink.Readings()
	require.Len(t, readings, 1)
	assert.Equal(t, "GLU", readings[0].Param)

	require.Len(t, sink.Decoded, 5)
}

func TestParserHandlesLeadingFrameNumberDigitOnRecord(t *testing.T) {
	p := NewParser("M1", nil)
	// A record that still carries the leading frame-number digit and a
	// trailing checksum-shaped suffix, as can happen when a caller feeds
	// a raw frame body straight through without stripping it first.
	body := []byte("2R|1|^^^GLU|5.3|mg/dL||||FAB\r")

	result := p.ParseMessage(body)

	require.Len(t, result.Readings, 1)
	assert.Equal(t, "GLU", result.Readings[0].Param)
}
