package astm

import (
	"bytes"
	"fmt"
)

// BuildFrame wraps payload (a single CR-terminated record string) in
// the STX…ETX envelope with frame number seq (1-7) and a trailing hex
// checksum, CR, LF (§3, §6).
func BuildFrame(seq int, payload []byte) []byte {
	frameNum := byte('0' + seq)

	var body bytes.Buffer
	body.WriteByte(frameNum)
	body.Write(payload)
	body.WriteByte(ETX)

	sum := Checksum(body.Bytes())

	var out bytes.Buffer
	out.WriteByte(STX)
	out.Write(body.Bytes())
	out.WriteString(ChecksumHex(sum))
	out.WriteByte(CR)
	out.WriteByte(LF)
	return out.Bytes()
}

// nextFrameNumber wraps the outbound frame sequence 1→2→…→7→1 (§3
// invariant 4).
func nextFrameNumber(seq int) int {
	seq++
	if seq > 7 {
		seq = 1
	}
	return seq
}

// splitRecords splits a LF-joined list of CR-terminated record strings
// into its individual records, each still carrying its trailing CR (§6:
// "C4 strips the trailing LF of each record to frame it").
func splitRecords(message []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range message {
		if b == LF {
			if i > start {
				out = append(out, message[start:i])
			}
			start = i + 1
		}
	}
	if start < len(message) {
		out = append(out, message[start:])
	}
	return out
}

// Order is a single outstanding test request returned by the
// persistence collaborator's fetch_orders operation (§6).
type Order struct {
	AssayCode string
}

// BuildOrderMessage synthesizes the outbound order message (§6, §4.5):
// an H header record using machineName and timestamp, a single P|1
// patient record, one O|i|labNumber||^^^assay|R order record per
// fetched order (1-indexed), and an L|1|N terminator. The result is a
// LF-joined list of CR-terminated records ready for SendMachine.Send.
func BuildOrderMessage(machineName string, timestamp string, labNumber string, orders []Order) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "H|\\^&||PSWD|%s User|||||Lis||P|E1394-97%s\r\n", machineName, timestamp)
	buf.WriteString("P|1\r\n")
	for i, o := range orders {
		fmt.Fprintf(&buf, "O|%d|%s||^^^%s|R\r\n", i+1, labNumber, o.AssayCode)
	}
	buf.WriteString("L|1|N\r")

	return buf.Bytes()
}
