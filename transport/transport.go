// Package transport supplies the byte-oriented transport contract the
// session controller drives (§6): a serial line for a directly wired
// analyzer, and a TCP listener or dialer for a networked one.
package transport

import "io"

// Transport is the link-layer byte stream the session controller reads
// and writes. It carries no framing knowledge of its own; astm.Framer
// and the session controller own that.
type Transport interface {
	io.ReadWriteCloser
}

// Opener produces a fresh Transport each time it is called. The
// session's reconnect loop (§7) calls Open again after a transport
// closes, so a TCP listener Opener blocks until the next connection and
// a serial Opener simply reopens the device.
type Opener interface {
	Open() (Transport, error)
}

// OpenerFunc adapts a plain function to Opener.
type OpenerFunc func() (Transport, error)

// Open calls f.
func (f OpenerFunc) Open() (Transport, error) { return f() }
