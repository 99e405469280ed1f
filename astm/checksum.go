package astm

import "fmt"

// Checksum computes the low eight bits of the sum of every byte in b.
//
// Frames are checksummed over every byte after STX through and
// including ETX: the frame-number digit, the record payload with its
// terminating CR, and ETX itself. Callers pass the slice already sliced
// to that range.
func Checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return sum
}

// ChecksumHex renders a checksum as the two uppercase hex digits ASTM
// frames carry after ETX.
func ChecksumHex(sum byte) string {
	return fmt.Sprintf("%02X", sum)
}
