package astm

import "strings"

// ParseResult collects everything C3 extracts from one message body.
type ParseResult struct {
	Headers     []HeaderRecord
	Patients    []PatientRecord
	Orders      []OrderRecord
	Readings    []Reading
	Queries     []QueryRequest
	Terminators []TerminatorRecord
}

// Parser splits a complete ASTM message body into typed records (§4.3).
// Input is the message body with frame envelopes already removed: the
// concatenation of record payloads between a matched ENQ and EOT.
type Parser struct {
	MachineID string
	Sink      Sink
}

// NewParser returns a Parser that qualifies readings with machineID and
// publishes decoded records to sink (NopSink if nil).
func NewParser(machineID string, sink Sink) *Parser {
	if sink == nil {
		sink = NopSink{}
	}
	return &Parser{MachineID: machineID, Sink: sink}
}

// ParseMessage decodes bytes as 7-bit ASCII (high-bit bytes pass
// through as-is), splits on CR into records, and dispatches each one.
func (p *Parser) ParseMessage(body []byte) ParseResult {
	var result ParseResult
	currentLabNumber := ""

	records := strings.Split(string(body), string(CR))
	for _, raw := range records {
		rec := sanitizeRecord(raw)
		if rec == "" {
			continue
		}

		switch rec[0] {
		case 'H':
			h := HeaderRecord{Raw: rec}
			result.Headers = append(result.Headers, h)
			p.Sink.OnDecoded(h)

		case 'P':
			pr := PatientRecord{Raw: rec}
			result.Patients = append(result.Patients, pr)
			p.Sink.OnDecoded(pr)

		case 'O':
			labNumber := component(field(rec, 3), 1)
			currentLabNumber = labNumber
			o := OrderRecord{Raw: rec, LabNumber: labNumber}
			result.Orders = append(result.Orders, o)
			p.Sink.OnDecoded(o)

		case 'R':
			param := component(field(rec, 3), 4)
			value := component(field(rec, 4), 1)
			if acceptReading(param, value) {
				reading := Reading{
					LabNumber: currentLabNumber,
					MachineID: p.MachineID,
					Param:     param,
					Value:     value,
				}
				result.Readings = append(result.Readings, reading)
				p.Sink.OnDecoded(reading)
			}

		case 'Q':
			labNumber := component(field(rec, 3), 2)
			if labNumber == "" {
				labNumber = component(field(rec, 3), 1)
			}
			q := QueryRecord{Raw: rec, LabNumber: labNumber}
			result.Queries = append(result.Queries, QueryRequest{LabNumber: labNumber})
			p.Sink.OnDecoded(q)

		case 'L':
			t := TerminatorRecord{Raw: rec, Code: field(rec, 3)}
			result.Terminators = append(result.Terminators, t)
			p.Sink.OnDecoded(t)

		default:
			// Unrecognized tag: skip (MalformedRecord, §7), keep parsing.
		}
	}

	return result
}

// sanitizeRecord implements the §4.3 edge case: a record whose first
// character is a digit is a leading frame-number byte that somehow
// survived frame-envelope stripping. Strip it, and a trailing
// checksum-shaped window if one is present, then let the caller
// re-dispatch on the cleaned tag byte.
func sanitizeRecord(raw string) string {
	rec := strings.TrimSpace(raw)
	if rec == "" {
		return rec
	}
	if rec[0] < '0' || rec[0] > '9' {
		return rec
	}
	rec = rec[1:]
	if len(rec) >= 3 {
		tail := rec[len(rec)-3:]
		if isHexDigit(tail[1]) && isHexDigit(tail[2]) {
			rec = rec[:len(rec)-3]
		}
	}
	return rec
}
