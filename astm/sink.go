package astm

import (
	"sync"

	"github.com/charmbracelet/log"
)

// SessionState is exactly one of {Idle, Receiving, Sending} (§3). It
// belongs to the session controller, which checks it before routing a
// token to C2 or C4; C2 and C4 do not consult it themselves.
type SessionState int

const (
	Idle SessionState = iota
	Receiving
	Sending
)

func (s SessionState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Receiving:
		return "Receiving"
	case Sending:
		return "Sending"
	default:
		return "Unknown"
	}
}

// StateGuard is a function that reports the session's current state.
// No component in this package takes or calls one.
type StateGuard func() SessionState

// StatusChange reports a session-state transition to a Sink.
type StatusChange struct {
	From   SessionState
	To     SessionState
	Reason string
}

// Sink is the explicit event interface that replaces the source's
// broadcast events (§9). The core never assumes the sink is a UI; tests
// supply a recording sink, production wires a logging sink.
type Sink interface {
	OnRaw(b []byte)
	OnDecoded(record any)
	OnSent(b []byte)
	OnStatus(s StatusChange)
}

// NopSink discards every event. It is the default when no sink is
// supplied.
type NopSink struct{}

func (NopSink) OnRaw([]byte)          {}
func (NopSink) OnDecoded(any)         {}
func (NopSink) OnSent([]byte)         {}
func (NopSink) OnStatus(StatusChange) {}

// RecordingSink accumulates every event for assertions in tests.
type RecordingSink struct {
	mu       sync.Mutex
	Raw      [][]byte
	Decoded  []any
	Sent     [][]byte
	Statuses []StatusChange
}

func (s *RecordingSink) OnRaw(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Raw = append(s.Raw, append([]byte(nil), b...))
}

func (s *RecordingSink) OnDecoded(record any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Decoded = append(s.Decoded, record)
}

func (s *RecordingSink) OnSent(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, append([]byte(nil), b...))
}

func (s *RecordingSink) OnStatus(status StatusChange) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statuses = append(s.Statuses, status)
}

// Readings returns every Reading the sink has recorded, in order.
func (s *RecordingSink) Readings() []Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Reading
	for _, d := range s.Decoded {
		if r, ok := d.(Reading); ok {
			out = append(out, r)
		}
	}
	return out
}

// LogSink forwards events to a charmbracelet/log logger, the structured
// logger the ambient stack adopts for the whole gateway.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink returns a Sink backed by logger, logging raw/decoded/sent
// traffic at Debug and status transitions at Info (§7).
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (s *LogSink) OnRaw(b []byte) {
	s.Logger.Debug("raw bytes", "len", len(b))
}

func (s *LogSink) OnDecoded(record any) {
	s.Logger.Debug("decoded record", "type", recordTypeName(record))
}

func (s *LogSink) OnSent(b []byte) {
	s.Logger.Debug("sent bytes", "len", len(b))
}

func (s *LogSink) OnStatus(status StatusChange) {
	s.Logger.Info("session state", "from", status.From, "to", status.To, "reason", status.Reason)
}

func recordTypeName(record any) string {
	switch record.(type) {
	case HeaderRecord:
		return "H"
	case PatientRecord:
		return "P"
	case OrderRecord:
		return "O"
	case Reading:
		return "R"
	case QueryRecord:
		return "Q"
	case TerminatorRecord:
		return "L"
	default:
		return "unknown"
	}
}
