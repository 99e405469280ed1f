package transport

import (
	"fmt"
	"net"
)

// TCPConfig configures a networked analyzer connection (§6). Role
// selects which side dials and which side listens: some analyzers
// originate the connection to the gateway, others expect the gateway
// to dial in.
type TCPConfig struct {
	// Role is "server" (gateway listens, analyzer dials in) or
	// "client" (gateway dials the analyzer).
	Role string
	// Address is the listen address in server role, or the dial
	// address in client role (host:port either way).
	Address string
}

type tcpConn struct {
	net.Conn
}

// tcpListenerOpener accepts one connection per Open call; the listener
// itself stays open across reconnects so the analyzer can redial.
type tcpListenerOpener struct {
	ln net.Listener
}

// OpenTCPServer starts listening on cfg.Address and returns an Opener
// whose Open blocks until the next inbound connection.
func OpenTCPServer(cfg TCPConfig) (Opener, error) {
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("transport: listen on %s: %w", cfg.Address, err)
	}
	return &tcpListenerOpener{ln: ln}, nil
}

func (o *tcpListenerOpener) Open() (Transport, error) {
	conn, err := o.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	return &tcpConn{conn}, nil
}

// TCPClientOpener returns an Opener that dials cfg.Address fresh on
// every call, for the originating role.
func TCPClientOpener(cfg TCPConfig) Opener {
	return OpenerFunc(func() (Transport, error) {
		conn, err := net.Dial("tcp", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", cfg.Address, err)
		}
		return &tcpConn{conn}, nil
	})
}
