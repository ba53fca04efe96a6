// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package proxy implements the Wardstone game proxy: the inbound
// connection front, the login-completion handshake state machine and the
// player session registry.
package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/wardstone/wardstone/internal/config"
	"github.com/wardstone/wardstone/internal/event"
	"github.com/wardstone/wardstone/internal/observability"
)

// RegisteredServer is a backend server known to the proxy.
type RegisteredServer struct {
	name string
	addr string
}

// Name returns the server's configured name.
func (s *RegisteredServer) Name() string { return s.name }

// Addr returns the server's dial address.
func (s *RegisteredServer) Addr() string { return s.addr }

func (s *RegisteredServer) String() string { return s.name }

// Proxy is the proxy-wide state shared by all connections: routing
// configuration, the extension-hook runner, the session registry and the
// backend connector.
type Proxy struct {
	cfg       *config.Config
	log       *slog.Logger
	events    *event.Manager
	metrics   *observability.Metrics // may be nil
	registry  *connectionRegistry
	servers   map[string]*RegisteredServer // immutable after construction
	connector Connector

	mu       sync.RWMutex
	listener net.Listener
}

// New creates a proxy from validated configuration.
// A nil logger discards output; a nil metrics disables counters.
func New(cfg *config.Config, logger *slog.Logger, events *event.Manager, metrics *observability.Metrics) (*Proxy, error) {
	if cfg == nil {
		return nil, oops.In("proxy").Code("NIL_CONFIG").New("config is required")
	}
	if events == nil {
		return nil, oops.In("proxy").Code("NIL_EVENTS").New("event manager is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	servers := make(map[string]*RegisteredServer, len(cfg.Servers))
	for name, addr := range cfg.Servers {
		servers[name] = &RegisteredServer{name: name, addr: addr}
	}

	p := &Proxy{
		cfg:      cfg,
		log:      logger,
		events:   events,
		metrics:  metrics,
		registry: newConnectionRegistry(),
		servers:  servers,
	}
	p.connector = newDialConnector(p)
	return p, nil
}

// Events returns the extension-hook runner.
func (p *Proxy) Events() *event.Manager { return p.events }

// Config returns the proxy configuration.
func (p *Proxy) Config() *config.Config { return p.cfg }

// Server returns the registered server with the given name, or nil.
func (p *Proxy) Server(name string) *RegisteredServer { return p.servers[name] }

// PlayerCount returns the number of registered players.
func (p *Proxy) PlayerCount() int { return p.registry.Count() }

// SetConnector replaces the backend connector. Intended for tests and
// embedders; must be called before Run.
func (p *Proxy) SetConnector(c Connector) {
	if c != nil {
		p.connector = c
	}
}

// Addr returns the listen address, or "" before Run.
func (p *Proxy) Addr() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

// Run starts the proxy and blocks until the context is cancelled.
func (p *Proxy) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", p.cfg.Bind)
	if err != nil {
		return oops.In("proxy").With("bind", p.cfg.Bind).Wrap(err)
	}

	p.mu.Lock()
	p.listener = listener
	p.mu.Unlock()

	p.log.Info("proxy started", "addr", listener.Addr().String(), "online_mode", p.cfg.OnlineMode)

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			p.log.Debug("error closing listener", "error", err)
		}
	}()

	for {
		c, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				p.log.Error("accept failed", "error", err)
				continue
			}
		}
		go p.handleConn(c)
	}
}

// handleConn drives one client connection from handshake to teardown.
func (p *Proxy) handleConn(c net.Conn) {
	conn := newConn(p, c)
	conn.run(newHandshakeSessionHandler(conn))
}
