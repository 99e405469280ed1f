// Package session implements C5, the Session Controller: it owns the
// shared transport and the Idle/Receiving/Sending state, arbitrates
// between the receive and send state machines, and turns a received
// Query record into an outbound order message via the persistence
// collaborator (§4.5).
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"astmgw/astm"
	"astmgw/store"
	"astmgw/transport"
)

// Config configures the session controller.
type Config struct {
	// MachineName identifies this gateway in outbound headers and as
	// the qualifying prefix on persisted readings (§6).
	MachineName string
	// NetworkAck selects the send-side dialect (§4.4).
	NetworkAck bool
	// Now returns the current time for outbound header timestamps;
	// defaults to time.Now. Tests override it for determinism.
	Now func() time.Time
}

// Controller is C5. One Controller drives exactly one transport-attached
// session lifecycle (§5): it owns the transport exclusively and is not
// shared across sessions.
type Controller struct {
	transport transport.Transport
	store     store.Store
	sink      astm.Sink
	logger    *log.Logger

	machineName string
	networkAck  bool
	now         func() time.Time

	framer         *astm.Framer
	receiveMachine *astm.ReceiveMachine
	sendMachine    *astm.SendMachine
	parser         *astm.Parser

	events chan tokenEvent

	stateMu sync.RWMutex
	state   astm.SessionState

	sendTokens     chan astm.Token
	pendingQueries []string
}

type tokenEvent struct {
	tok astm.Token
	err error
}

// New returns a Controller bound to t and s, publishing events to sink
// (NopSink if nil) and logging to logger (a no-op discard logger if nil).
func New(t transport.Transport, s store.Store, sink astm.Sink, logger *log.Logger, cfg Config) *Controller {
	if sink == nil {
		sink = astm.NopSink{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		transport:      t,
		store:          s,
		sink:           sink,
		logger:         logger,
		machineName:    cfg.MachineName,
		networkAck:     cfg.NetworkAck,
		now:            now,
		framer:         astm.NewFramer(),
		receiveMachine: astm.NewReceiveMachine(cfg.NetworkAck),
		sendMachine:    astm.NewSendMachine(cfg.NetworkAck),
		parser:         astm.NewParser(cfg.MachineName, sink),
		events:         make(chan tokenEvent, 32),
		state:          astm.Idle,
	}
}

// State returns the current session state (Idle, Receiving, or Sending).
func (c *Controller) State() astm.SessionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Controller) setState(s astm.SessionState, reason string) {
	c.stateMu.Lock()
	from := c.state
	c.state = s
	c.stateMu.Unlock()
	if from != s {
		c.sink.OnStatus(astm.StatusChange{From: from, To: s, Reason: reason})
	}
}

// Run drives the session until the transport closes or ctx is
// cancelled. It returns ErrTransportClosed-wrapped errors on a closed
// transport so a caller can implement the §7 reconnect loop.
func (c *Controller) Run(ctx context.Context) error {
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		c.readLoop(ctx)
	}()
	defer func() {
		<-readerDone
	}()

	var sendDone chan error
	noProgress := time.NewTimer(astm.NoProgressTimeout)
	defer noProgress.Stop()

	for {
		select {
		case <-ctx.Done():
			c.abortToIdle("context cancelled")
			// Closing the transport unblocks readLoop's pending Read so
			// the deferred wait above can finish.
			_ = c.transport.Close()
			return ctx.Err()

		case ev, ok := <-c.events:
			if !ok {
				return nil
			}
			resetTimer(noProgress, astm.NoProgressTimeout)

			if ev.err != nil {
				if errors.Is(ev.err, astm.ErrTransportClosed) {
					c.abortToIdle("transport closed")
					return ev.err
				}
				c.onFrameError(ev.err)
				continue
			}
			c.onToken(ctx, ev.tok)

		case err, ok := <-sendDone:
			if ok {
				c.finishSend(err)
			}
			sendDone = nil
			if next, started := c.maybeStartSend(ctx); started {
				sendDone = next
			}

		case <-noProgress.C:
			if c.State() == astm.Receiving {
				c.logger.Warn("no-progress timeout, aborting to Idle")
				c.receiveMachine.Reset()
				c.setState(astm.Idle, "no-progress timeout")
			}
			noProgress.Reset(astm.NoProgressTimeout)
		}

		if sendDone == nil {
			if next, started := c.maybeStartSend(ctx); started {
				sendDone = next
			}
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func (c *Controller) readLoop(ctx context.Context) {
	buf := make([]byte, 4096)
	for {
		n, err := c.transport.Read(buf)
		if err != nil {
			c.sendEvent(ctx, tokenEvent{err: fmt.Errorf("%w: %v", astm.ErrTransportClosed, err)})
			return
		}
		if n == 0 {
			continue
		}
		chunk := append([]byte(nil), buf[:n]...)
		c.sink.OnRaw(chunk)

		toks, ferr := c.framer.Feed(chunk)
		for _, tok := range toks {
			if !c.sendEvent(ctx, tokenEvent{tok: tok}) {
				return
			}
		}
		if ferr != nil {
			if !c.sendEvent(ctx, tokenEvent{err: ferr}) {
				return
			}
		}
	}
}

func (c *Controller) sendEvent(ctx context.Context, ev tokenEvent) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Controller) onFrameError(err error) {
	c.logger.Warn("frame error", "err", err)
	_, _ = c.transport.Write([]byte{astm.NAK})
}

func (c *Controller) onToken(ctx context.Context, tok astm.Token) {
	switch c.State() {
	case astm.Idle:
		c.onIdleToken(tok)
	case astm.Receiving:
		c.onReceivingToken(ctx, tok)
	case astm.Sending:
		c.onSendingToken(tok)
	}
}

func (c *Controller) onIdleToken(tok astm.Token) {
	if tok.Kind != astm.TokenENQ {
		return
	}
	c.receiveMachine.Reset()
	c.setState(astm.Receiving, "ENQ accepted")
	c.writeReply([]byte{astm.ACK})
}

func (c *Controller) onReceivingToken(ctx context.Context, tok astm.Token) {
	if tok.Kind == astm.TokenENQ {
		// Busy: already receiving a message from this same peer.
		c.writeReply([]byte{astm.NAK})
		return
	}

	outcome := c.receiveMachine.HandleToken(tok)
	if outcome.Reply != nil {
		c.writeReply(outcome.Reply)
	}
	if outcome.Aborted {
		c.logger.Warn("three consecutive checksum failures, aborting session")
		c.setState(astm.Idle, "checksum failures")
		return
	}
	if outcome.Complete {
		c.setState(astm.Idle, "EOT received")
		if len(outcome.Body) > 0 {
			c.deliverMessage(ctx, outcome.Body)
		}
	}
}

func (c *Controller) onSendingToken(tok astm.Token) {
	if tok.Kind == astm.TokenENQ {
		c.writeReply([]byte{astm.NAK})
		return
	}
	if c.sendTokens != nil {
		select {
		case c.sendTokens <- tok:
		default:
		}
	}
}

func (c *Controller) writeReply(b []byte) {
	if _, err := c.transport.Write(b); err != nil {
		c.logger.Error("write failed", "err", err)
		return
	}
	c.sink.OnSent(b)
}

// deliverMessage runs C3 over a completed message body and acts on its
// readings and queries. This executes synchronously, before the
// controller returns to Idle is ever visible to the next event: the
// ordering guarantee in §5 ("persistence writes... issued after the
// message completes and before the next ENQ is accepted") falls out of
// processing exactly one event at a time on this goroutine.
func (c *Controller) deliverMessage(ctx context.Context, body []byte) {
	result := c.parser.ParseMessage(body)

	if len(result.Readings) > 0 {
		if err := c.store.InsertReadings(ctx, result.Readings); err != nil {
			c.logger.Error("persistence failure, readings lost", "err", fmt.Errorf("%w: %v", astm.ErrPersistence, err))
		}
	}

	for _, q := range result.Queries {
		c.pendingQueries = append(c.pendingQueries, q.LabNumber)
	}
}

// maybeStartSend pops the next pending query and starts an outbound
// order-message transfer if the session is Idle. It returns the
// channel the Run loop should watch for completion, or false if
// nothing was started.
func (c *Controller) maybeStartSend(ctx context.Context) (chan error, bool) {
	if c.State() != astm.Idle || len(c.pendingQueries) == 0 {
		return nil, false
	}

	labNumber := c.pendingQueries[0]
	c.pendingQueries = c.pendingQueries[1:]

	orders, err := c.store.FetchOrders(ctx, labNumber)
	if err != nil {
		c.logger.Error("fetch orders failed", "lab_number", labNumber, "err", err)
		return nil, false
	}

	var astmOrders []astm.Order
	for _, o := range orders {
		astmOrders = append(astmOrders, astm.Order{AssayCode: o.AssayCode})
	}
	message := astm.BuildOrderMessage(c.machineName, c.now().Format("20060102"), labNumber, astmOrders)

	c.sendTokens = make(chan astm.Token, 4)
	c.setState(astm.Sending, "query turnaround")

	done := make(chan error, 1)
	writer := transportWriter{c.transport}
	tokens := c.sendTokens
	go func() {
		done <- c.sendMachine.Send(ctx, message, writer, tokens, c.sink)
	}()
	return done, true
}

func (c *Controller) finishSend(err error) {
	c.sendTokens = nil
	c.setState(astm.Idle, "send complete")
	if err != nil {
		c.logger.Warn("outbound send aborted", "err", err)
	}
}

func (c *Controller) abortToIdle(reason string) {
	c.receiveMachine.Reset()
	c.framer.Reset()
	c.sendTokens = nil
	c.setState(astm.Idle, reason)
}

// transportWriter adapts transport.Transport to astm.SendTransport.
type transportWriter struct {
	t transport.Transport
}

func (w transportWriter) Write(b []byte) error {
	_, err := w.t.Write(b)
	return err
}
