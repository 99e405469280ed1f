package astm

import "strings"

// Record variants (§3). Each carries its raw line plus the fields the
// parser extracted from it.
type HeaderRecord struct{ Raw string }
type PatientRecord struct{ Raw string }
type TerminatorRecord struct {
	Raw  string
	Code string
}

// OrderRecord carries the lab number that subsequent Result records in
// the message are attributed to.
type OrderRecord struct {
	Raw       string
	LabNumber string
}

// QueryRecord asks the host for outstanding orders for a lab number.
type QueryRecord struct {
	Raw       string
	LabNumber string
}

// Reading is the persisted result: the qualified parameter name is
// machine_id ++ "_" ++ param_name (§3).
type Reading struct {
	LabNumber string
	MachineID string
	Param     string
	Value     string
}

// QualifiedParam returns MachineID ++ "_" ++ Param.
func (r Reading) QualifiedParam() string {
	return r.MachineID + "_" + r.Param
}

// QueryRequest is published when C3 sees a Q record; C5 acts on it once
// the receiving session returns to Idle.
type QueryRequest struct {
	LabNumber string
}

// readingSentinel is the literal value that means "no result."
const readingSentinel = "----"

// maxParamLen excludes overlong parameter names from persistence (§3).
const maxParamLen = 15

// acceptReading applies the §3 Reading filter: param_name shorter than
// 15, value non-empty, value not the literal sentinel "----".
func acceptReading(param, value string) bool {
	if len(param) >= maxParamLen {
		return false
	}
	if value == "" {
		return false
	}
	if value == readingSentinel {
		return false
	}
	return true
}

// field returns the 1-based, '|'-delimited field n of a record, or ""
// if the record has fewer fields.
func field(record string, n int) string {
	parts := strings.Split(record, "|")
	if n < 1 || n > len(parts) {
		return ""
	}
	return parts[n-1]
}

// component returns the 1-based, '^'-delimited component n of a field,
// falling back to the first component when the field has only one.
func component(fieldValue string, n int) string {
	parts := strings.Split(fieldValue, "^")
	if n >= 1 && n <= len(parts) {
		return parts[n-1]
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return ""
}
