// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// sessionHandler reacts to the packets of one protocol phase. Exactly
// one handler is active per connection at a time; all methods run on the
// connection's event loop.
type sessionHandler interface {
	// activated runs once when the handler becomes active.
	activated()
	// deactivated runs once when the handler is replaced.
	deactivated()
	// handlePacket receives every decoded inbound frame.
	handlePacket(pc *packet.Decoded)
	// disconnected runs once after the connection closed, on whichever
	// handler is active at that moment.
	disconnected()
}

// nopSessionHandler provides no-op lifecycle methods for embedding.
type nopSessionHandler struct{}

func (nopSessionHandler) activated()                  {}
func (nopSessionHandler) deactivated()                {}
func (nopSessionHandler) handlePacket(*packet.Decoded) {}
func (nopSessionHandler) disconnected()               {}

// Conn is the per-client transport handle: it owns the socket, the
// framing codec, the single-threaded event loop and the active session
// handler slot.
type Conn struct {
	id    ulid.ULID
	proxy *Proxy
	log   *slog.Logger
	c     net.Conn
	loop  *eventLoop

	dec *packet.Decoder
	enc *packet.Encoder

	// wmu serializes packet writes; reads are single-goroutine.
	wmu sync.Mutex

	version protocol.Version // set once during handshake, read afterwards
	closed  atomic.Bool

	// handler and state are touched only on the event loop.
	handler sessionHandler

	// association is the player this connection belongs to once login
	// completes far enough to have one.
	association atomic.Pointer[connectedPlayer]
}

func newConn(p *Proxy, c net.Conn) *Conn {
	conn := &Conn{
		id:      ulid.Make(),
		proxy:   p,
		c:       c,
		loop:    newEventLoop(),
		version: protocol.Minecraft1_20_2,
	}
	conn.log = p.log.With("conn_id", conn.id.String(), "remote_addr", c.RemoteAddr().String())
	conn.dec = packet.NewDecoder(c, packet.Serverbound, conn.version)
	conn.enc = packet.NewEncoder(c, conn.version)
	return conn
}

// run starts the event loop and the read loop and blocks until the
// connection is torn down.
func (c *Conn) run(initial sessionHandler) {
	go c.loop.run()
	c.loop.Post(func() { c.setActiveSessionHandler(protocol.StateHandshake, initial) })
	c.readLoop()
}

// readLoop decodes inbound frames and dispatches them onto the event
// loop. It is the only reader of the socket. Each packet is fully
// handled before the next frame is read, so state transitions made by a
// handler apply to the decoding of the following packet; a client that
// pipelines its login packets still gets each one decoded in the right
// state.
func (c *Conn) readLoop() {
	for {
		pc, err := c.dec.ReadPacket()
		if err != nil {
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				c.log.Debug("connection read failed", "error", err)
			}
			c.Close()
			return
		}
		handled := make(chan struct{})
		c.loop.Post(func() {
			defer close(handled)
			if c.handler != nil {
				c.handler.handlePacket(pc)
			}
		})
		select {
		case <-handled:
		case <-c.loop.quit:
			return
		}
	}
}

// Protocol returns the negotiated protocol version.
func (c *Conn) Protocol() protocol.Version { return c.version }

// setProtocol fixes the version negotiated by the handshake. Called once,
// before any login packet is decoded.
func (c *Conn) setProtocol(v protocol.Version) {
	c.version = v
	c.dec.SetVersion(v)
	c.wmu.Lock()
	c.enc.SetVersion(v)
	c.wmu.Unlock()
}

// Closed reports whether the connection is closed. This is the liveness
// poll performed after every hook resumption.
func (c *Conn) Closed() bool { return c.closed.Load() }

// WritePacket frames and writes p. Writing to a closed connection is a
// silent no-op: close races are normal during login.
func (c *Conn) WritePacket(p packet.Packet) error {
	if c.closed.Load() {
		return nil
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.enc.WritePacket(p); err != nil {
		c.log.Debug("packet write failed", "error", err)
		return err
	}
	return nil
}

// SetCompressionThreshold switches both directions of the codec to
// compressed framing. The caller must already have announced the
// threshold to the client; this method is the point after which nothing
// further leaves uncompressed.
func (c *Conn) SetCompressionThreshold(threshold int32) {
	c.wmu.Lock()
	c.enc.SetCompressionThreshold(threshold)
	c.wmu.Unlock()
	c.dec.SetCompressionThreshold(threshold)
}

// setActiveSessionHandler swaps the protocol phase and its handler.
// Must run on the event loop.
func (c *Conn) setActiveSessionHandler(state protocol.State, handler sessionHandler) {
	if c.handler != nil {
		c.handler.deactivated()
	}
	c.wmu.Lock()
	c.enc.SetState(state)
	c.wmu.Unlock()
	c.dec.SetState(state)
	c.handler = handler
	handler.activated()
}

// setAssociation ties the connection to its player handle.
func (c *Conn) setAssociation(p *connectedPlayer) { c.association.Store(p) }

// closeWith writes p and then closes the connection.
func (c *Conn) closeWith(p packet.Packet) {
	_ = c.WritePacket(p)
	c.Close()
}

// Close tears the connection down: the socket closes, the active session
// handler's disconnected hook runs on the loop, and the loop stops.
// Idempotent; duplicate close notifications are absorbed here.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if err := c.c.Close(); err != nil {
		c.log.Debug("error closing connection", "error", err)
	}
	c.loop.Post(func() {
		if c.handler != nil {
			c.handler.disconnected()
		}
		c.loop.stop()
	})
}
