// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"context"
	"io"
	"errors"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardstone/wardstone/internal/config"
	"github.com/wardstone/wardstone/internal/event"
	"github.com/wardstone/wardstone/internal/permission"
	"github.com/wardstone/wardstone/internal/profile"
	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

const testTimeout = 2 * time.Second

// fakeConnector records backend connection attempts instead of dialing.
type fakeConnector struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeConnector) Connect(_ context.Context, _ Player, server *RegisteredServer) (*serverConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, server.Name())
	if f.err != nil {
		return nil, f.err
	}
	_, proxySide := net.Pipe()
	return &serverConnection{server: server, c: proxySide}, nil
}

func (f *fakeConnector) connected() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestProxy(t *testing.T, mutate func(*config.Config)) (*Proxy, *fakeConnector) {
	t.Helper()
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.OnlineMode = false
	cfg.CompressionThreshold = -1
	if mutate != nil {
		mutate(cfg)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := New(cfg, logger, event.NewManager(logger), nil)
	require.NoError(t, err)

	fc := &fakeConnector{}
	p.SetConnector(fc)
	return p, fc
}

func withLobby(cfg *config.Config) {
	cfg.Servers = map[string]string{"lobby": "127.0.0.1:25566"}
	cfg.Try = []string{"lobby"}
}

// testClient drives one side of an in-memory connection the way a real
// client would.
type testClient struct {
	t       *testing.T
	c       net.Conn
	version protocol.Version
	enc     *packet.Encoder
	dec     *packet.Decoder
}

func dialTestProxy(t *testing.T, p *Proxy, v protocol.Version) *testClient {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	require.NoError(t, clientSide.SetDeadline(time.Now().Add(5*time.Second)))
	go p.handleConn(serverSide)
	t.Cleanup(func() { _ = clientSide.Close() })
	return &testClient{
		t:       t,
		c:       clientSide,
		version: v,
		enc:     packet.NewEncoder(clientSide, v),
		dec:     packet.NewDecoder(clientSide, packet.Clientbound, v),
	}
}

func (c *testClient) write(p packet.Packet) {
	c.t.Helper()
	require.NoError(c.t, c.enc.WritePacket(p))
}

func (c *testClient) read() *packet.Decoded {
	c.t.Helper()
	pc, err := c.dec.ReadPacket()
	require.NoError(c.t, err)
	return pc
}

// startLogin performs the handshake and sends the login start packet.
func (c *testClient) startLogin(username string) {
	c.t.Helper()
	c.write(&packet.Handshake{
		ProtocolVersion: int32(c.version),
		ServerAddress:   "play.example.com",
		Port:            25565,
		NextState:       packet.LoginIntent,
	})
	c.enc.SetState(protocol.StateLogin)
	c.dec.SetState(protocol.StateLogin)
	c.write(&packet.LoginStart{Username: username, UUID: profile.OfflinePlayerUUID(username)})
}

func (c *testClient) expectDisconnect() string {
	c.t.Helper()
	pc := c.read()
	d, ok := pc.Packet.(*packet.Disconnect)
	require.True(c.t, ok, "expected disconnect, got %T (id 0x%02x)", pc.Packet, pc.ID)
	return d.Reason
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, testTimeout, 10*time.Millisecond, msg)
}

func TestLogin_ModernClientFullHandshake(t *testing.T) {
	p, fc := newTestProxy(t, withLobby)
	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)

	c.startLogin("Steve")

	pc := c.read()
	success, ok := pc.Packet.(*packet.ServerLoginSuccess)
	require.True(t, ok, "expected login success, got %T", pc.Packet)
	assert.Equal(t, "Steve", success.Username)
	assert.Equal(t, profile.OfflinePlayerUUID("Steve"), success.UUID,
		"offline-mode players must get the name-derived UUID")

	c.write(&packet.LoginAcknowledged{})

	eventually(t, func() bool { return len(fc.connected()) == 1 }, "backend never dialed")
	assert.Equal(t, []string{"lobby"}, fc.connected())
	assert.Equal(t, 1, p.PlayerCount())
	assert.NotNil(t, p.registry.Player("Steve"))
}

func TestLogin_LegacyClientSkipsAcknowledgement(t *testing.T) {
	p, fc := newTestProxy(t, withLobby)
	c := dialTestProxy(t, p, protocol.Minecraft1_19)

	c.startLogin("Steve")

	pc := c.read()
	require.IsType(t, &packet.ServerLoginSuccess{}, pc.Packet)

	// No acknowledgement exists before 1.20.2; the proxy must proceed on
	// its own.
	eventually(t, func() bool { return len(fc.connected()) == 1 }, "backend never dialed")
	assert.Equal(t, 1, p.PlayerCount())
}

func TestLogin_CompressionAnnouncedBeforeLoginSuccess(t *testing.T) {
	const threshold = 64
	p, fc := newTestProxy(t, func(cfg *config.Config) {
		withLobby(cfg)
		cfg.CompressionThreshold = threshold
	})
	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)

	c.startLogin("Steve")

	pc := c.read()
	sc, ok := pc.Packet.(*packet.SetCompression)
	require.True(t, ok, "compression must be announced before login success, got %T", pc.Packet)
	assert.Equal(t, int32(threshold), sc.Threshold)

	c.enc.SetCompressionThreshold(threshold)
	c.dec.SetCompressionThreshold(threshold)

	pc = c.read()
	require.IsType(t, &packet.ServerLoginSuccess{}, pc.Packet,
		"login success must follow under the compressed framing")

	c.write(&packet.LoginAcknowledged{})
	eventually(t, func() bool { return len(fc.connected()) == 1 }, "backend never dialed")
}

func TestLogin_OldClientGetsNoCompressionPacket(t *testing.T) {
	p, _ := newTestProxy(t, func(cfg *config.Config) {
		withLobby(cfg)
		cfg.CompressionThreshold = 64
	})
	// Protocol 5 (1.7.x) predates the set-compression packet.
	c := dialTestProxy(t, p, protocol.Version(5))

	c.startLogin("Steve")

	pc := c.read()
	require.IsType(t, &packet.ServerLoginSuccess{}, pc.Packet,
		"pre-1.8 clients must never be sent set-compression")
}

func TestLogin_GameProfileOverride(t *testing.T) {
	p, _ := newTestProxy(t, withLobby)

	replacement, err := profile.NewOffline("Renamed")
	require.NoError(t, err)
	p.Events().Subscribe(&GameProfileRequestEvent{}, 0, func(e event.Event) {
		e.(*GameProfileRequestEvent).SetGameProfile(replacement)
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")

	pc := c.read()
	success, ok := pc.Packet.(*packet.ServerLoginSuccess)
	require.True(t, ok)
	assert.Equal(t, "Renamed", success.Username)
	assert.Equal(t, replacement.ID, success.UUID)

	c.write(&packet.LoginAcknowledged{})
	eventually(t, func() bool { return p.registry.Player("Renamed") != nil },
		"overridden identity never registered")
}

func TestLogin_VetoDisconnectsWithReason(t *testing.T) {
	p, fc := newTestProxy(t, withLobby)
	p.Events().Subscribe(&LoginEvent{}, 0, func(e event.Event) {
		e.(*LoginEvent).Deny("You are banned.")
	})

	statuses := make(chan LoginStatus, 4)
	p.Events().Subscribe(&DisconnectEvent{}, 0, func(e event.Event) {
		statuses <- e.(*DisconnectEvent).LoginStatus()
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")

	assert.Equal(t, "You are banned.", c.expectDisconnect())

	eventually(t, func() bool { return p.PlayerCount() == 0 }, "vetoed player must never stay registered")
	assert.Empty(t, fc.connected())

	select {
	case status := <-statuses:
		assert.Equal(t, CanceledByProxyLoginStatus, status)
	case <-time.After(testTimeout):
		t.Fatal("no disconnect notification")
	}
}

func TestLogin_AcknowledgementBeforeSuccessIsInvalid(t *testing.T) {
	p, _ := newTestProxy(t, withLobby)

	release := make(chan struct{})
	var releaseOnce sync.Once
	defer releaseOnce.Do(func() { close(release) })
	p.Events().Subscribe(&GameProfileRequestEvent{}, 0, func(event.Event) {
		<-release
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")
	// Jump the gun: acknowledge before login success could have been sent.
	c.write(&packet.LoginAcknowledged{})

	assert.Equal(t, msgInvalidPlayerData, c.expectDisconnect())

	releaseOnce.Do(func() { close(release) })
	eventually(t, func() bool { return p.PlayerCount() == 0 }, "nothing may stay registered")
}

func TestLogin_UnknownPacketDuringLoginIsFatal(t *testing.T) {
	p, _ := newTestProxy(t, withLobby)
	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)

	c.startLogin("Steve")

	pc := c.read()
	require.IsType(t, &packet.ServerLoginSuccess{}, pc.Packet)

	// A frame with an ID that has no business in the login state.
	_, err := c.c.Write([]byte{0x01, 0x7F})
	require.NoError(t, err)

	_, err = c.dec.ReadPacket()
	assert.Error(t, err, "the connection must be hard-closed")

	eventually(t, func() bool { return p.PlayerCount() == 0 }, "violating player must be unregistered")
}

func TestLogin_DuplicateIdentityRefused(t *testing.T) {
	p, fc := newTestProxy(t, withLobby)

	first := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	first.startLogin("Steve")
	require.IsType(t, &packet.ServerLoginSuccess{}, first.read().Packet)
	first.write(&packet.LoginAcknowledged{})
	eventually(t, func() bool { return len(fc.connected()) == 1 }, "first login never completed")

	second := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	second.startLogin("Steve")
	assert.Equal(t, msgAlreadyConnected, second.expectDisconnect())

	assert.Equal(t, 1, p.PlayerCount(), "the original session must survive")
	assert.Equal(t, []string{"lobby"}, fc.connected())
}

func TestLogin_NoAvailableServers(t *testing.T) {
	p, _ := newTestProxy(t, nil) // no servers configured
	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)

	c.startLogin("Steve")
	require.IsType(t, &packet.ServerLoginSuccess{}, c.read().Packet)
	c.write(&packet.LoginAcknowledged{})

	c.dec.SetState(protocol.StateConfig)
	assert.Equal(t, msgNoAvailableServers, c.expectDisconnect())

	eventually(t, func() bool { return p.PlayerCount() == 0 }, "player must be torn down")
}

func TestLogin_BackendDialFailureDisconnects(t *testing.T) {
	p, fc := newTestProxy(t, withLobby)
	fc.err = errors.New("connection refused")

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")
	require.IsType(t, &packet.ServerLoginSuccess{}, c.read().Packet)
	c.write(&packet.LoginAcknowledged{})

	c.dec.SetState(protocol.StateConfig)
	assert.Equal(t, msgUnableToConnect, c.expectDisconnect())

	eventually(t, func() bool { return p.PlayerCount() == 0 }, "player must be torn down")
}

func TestLogin_ChooseInitialServerOverride(t *testing.T) {
	p, fc := newTestProxy(t, func(cfg *config.Config) {
		cfg.Servers = map[string]string{
			"lobby":     "127.0.0.1:25566",
			"minigames": "127.0.0.1:25567",
		}
		cfg.Try = []string{"lobby"}
	})
	p.Events().Subscribe(&PlayerChooseInitialServerEvent{}, 0, func(e event.Event) {
		e.(*PlayerChooseInitialServerEvent).SetInitialServer(p.Server("minigames"))
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")
	require.IsType(t, &packet.ServerLoginSuccess{}, c.read().Packet)
	c.write(&packet.LoginAcknowledged{})

	eventually(t, func() bool { return len(fc.connected()) == 1 }, "backend never dialed")
	assert.Equal(t, []string{"minigames"}, fc.connected())
}

func TestLogin_ForcedHostRoutesByVirtualHost(t *testing.T) {
	p, fc := newTestProxy(t, func(cfg *config.Config) {
		cfg.Servers = map[string]string{
			"lobby":     "127.0.0.1:25566",
			"minigames": "127.0.0.1:25567",
		}
		cfg.Try = []string{"lobby"}
		cfg.ForcedHosts = map[string][]string{
			"play.example.com": {"minigames"},
		}
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve") // dials virtual host play.example.com
	require.IsType(t, &packet.ServerLoginSuccess{}, c.read().Packet)
	c.write(&packet.LoginAcknowledged{})

	eventually(t, func() bool { return len(fc.connected()) == 1 }, "backend never dialed")
	assert.Equal(t, []string{"minigames"}, fc.connected())
}

// brokenProvider mimics a misconfigured extension: it claims the
// permissions-setup slot but builds no checker.
type brokenProvider struct{}

func (brokenProvider) Name() string                                  { return "broken" }
func (brokenProvider) CreateFunc(permission.Subject) permission.Func { return nil }

func TestLogin_BrokenPermissionProviderFallsBack(t *testing.T) {
	p, fc := newTestProxy(t, withLobby)
	p.Events().Subscribe(&PermissionsSetupEvent{}, 0, func(e event.Event) {
		e.(*PermissionsSetupEvent).SetProvider(brokenProvider{})
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")

	require.IsType(t, &packet.ServerLoginSuccess{}, c.read().Packet,
		"a broken provider must never fail the login")
	c.write(&packet.LoginAcknowledged{})

	eventually(t, func() bool { return len(fc.connected()) == 1 }, "backend never dialed")

	player := p.registry.Player("Steve")
	require.NotNil(t, player)
	assert.Equal(t, permission.Undefined, player.PermissionValue("server.command"),
		"the default checker must answer for the player")
	assert.False(t, player.HasPermission("server.command"))
}

func TestLogin_ClientGoneDuringLoginHook(t *testing.T) {
	p, _ := newTestProxy(t, withLobby)

	entered := make(chan struct{})
	release := make(chan struct{})
	p.Events().Subscribe(&LoginEvent{}, 0, func(event.Event) {
		close(entered)
		<-release
	})

	statuses := make(chan LoginStatus, 4)
	p.Events().Subscribe(&DisconnectEvent{}, 0, func(e event.Event) {
		statuses <- e.(*DisconnectEvent).LoginStatus()
	})

	c := dialTestProxy(t, p, protocol.Minecraft1_20_2)
	c.startLogin("Steve")

	select {
	case <-entered:
	case <-time.After(testTimeout):
		t.Fatal("login hook never fired")
	}

	// The client gives up while the hook is still deliberating. Wait for
	// the connection teardown to report before letting the hook resume,
	// so the resumption observes a dead connection.
	require.NoError(t, c.c.Close())
	select {
	case status := <-statuses:
		assert.Equal(t, CanceledByUserLoginStatus, status)
	case <-time.After(testTimeout):
		t.Fatal("connection teardown was never reported")
	}
	close(release)

	select {
	case status := <-statuses:
		assert.Equal(t, CanceledByUserBeforeCompleteLoginStatus, status,
			"the abandoned login must be reported distinctly")
	case <-time.After(testTimeout):
		t.Fatal("abandoned login was never reported")
	}
	assert.Equal(t, 0, p.PlayerCount())
}

func TestAuthSessionHandler_ReconcileKey(t *testing.T) {
	p, _ := newTestProxy(t, nil)
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		_ = clientSide.Close()
		_ = serverSide.Close()
	})
	conn := newConn(p, serverSide)

	newPlayer := func(key *profile.IdentifiedKey) *connectedPlayer {
		prof, err := profile.NewOffline("Steve")
		require.NoError(t, err)
		return newConnectedPlayer(p, conn, prof, "", false, key)
	}
	newHandler := func(prof profile.GameProfile) *authSessionHandler {
		return newAuthSessionHandler(&loginInbound{conn: conn}, prof, false)
	}

	t.Run("nil key passes", func(t *testing.T) {
		player := newPlayer(nil)
		h := newHandler(player.GameProfile())
		assert.True(t, h.reconcileKey(player, player.ID()))
	})

	t.Run("unbound key binds to the player", func(t *testing.T) {
		key := profile.NewIdentifiedKey([]byte("pub"), []byte("sig"), time.Now().Add(time.Hour))
		player := newPlayer(key)
		h := newHandler(player.GameProfile())

		assert.True(t, h.reconcileKey(player, player.ID()))

		holder := key.SignatureHolder()
		require.NotNil(t, holder)
		assert.Equal(t, player.ID(), *holder)
	})

	t.Run("foreign binding is tolerated with a warning", func(t *testing.T) {
		key := profile.NewIdentifiedKey([]byte("pub"), []byte("sig"), time.Now().Add(time.Hour))
		other := profile.OfflinePlayerUUID("Alex")
		require.True(t, key.AddHolder(other))

		player := newPlayer(key)
		h := newHandler(player.GameProfile())

		assert.True(t, h.reconcileKey(player, player.ID()),
			"a holder mismatch degrades signing, it does not abort the login")

		holder := key.SignatureHolder()
		require.NotNil(t, holder)
		assert.Equal(t, other, *holder, "reconciliation must not rebind the key")
	})

	t.Run("contested bind is tolerated offline", func(t *testing.T) {
		player := newPlayer(nil)
		h := newHandler(player.GameProfile())

		assert.True(t, h.reconcileKeyHolder(contestedKey{}, player.ID(), player.ID()),
			"unverified credentials make a lost bind a warning, not a kick")
		assert.False(t, conn.Closed())
	})
}

// contestedKey reports unbound but refuses every bind, the shape a
// shared or replayed key has when another session binds it first.
type contestedKey struct{}

func (contestedKey) SignatureHolder() *uuid.UUID { return nil }
func (contestedKey) AddHolder(uuid.UUID) bool    { return false }

func TestAuthSessionHandler_ContestedBindIsFatalOnline(t *testing.T) {
	p, _ := newTestProxy(t, nil)
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		_ = clientSide.Close()
		_ = serverSide.Close()
	})
	conn := newConn(p, serverSide)
	conn.enc.SetState(protocol.StateLogin)

	prof, err := profile.NewOffline("Steve")
	require.NoError(t, err)
	h := newAuthSessionHandler(&loginInbound{conn: conn}, prof, true)

	reasons := make(chan string, 1)
	go func() {
		dec := packet.NewDecoder(clientSide, packet.Clientbound, protocol.Minecraft1_20_2)
		dec.SetState(protocol.StateLogin)
		pc, err := dec.ReadPacket()
		if err != nil {
			return
		}
		if d, ok := pc.Packet.(*packet.Disconnect); ok {
			reasons <- d.Reason
		}
	}()

	assert.False(t, h.reconcileKeyHolder(contestedKey{}, prof.ID, prof.ID),
		"a lost bind under verified credentials must halt the handshake")

	select {
	case reason := <-reasons:
		assert.Equal(t, msgInvalidPublicKey, reason)
	case <-time.After(testTimeout):
		t.Fatal("no disconnect was sent")
	}
	assert.True(t, conn.Closed())
}

func TestConnectedPlayer_TeardownIsIdempotent(t *testing.T) {
	p, _ := newTestProxy(t, nil)
	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() {
		_ = clientSide.Close()
		_ = serverSide.Close()
	})
	conn := newConn(p, serverSide)

	statuses := make(chan LoginStatus, 4)
	p.Events().Subscribe(&DisconnectEvent{}, 0, func(e event.Event) {
		statuses <- e.(*DisconnectEvent).LoginStatus()
	})

	prof, err := profile.NewOffline("Steve")
	require.NoError(t, err)
	player := newConnectedPlayer(p, conn, prof, "", false, nil)
	require.True(t, p.registry.Register(player))

	player.teardown()
	player.teardown()

	assert.Equal(t, 0, p.PlayerCount())

	select {
	case status := <-statuses:
		assert.Equal(t, SuccessfulLoginStatus, status)
	case <-time.After(testTimeout):
		t.Fatal("no disconnect notification")
	}
	select {
	case status := <-statuses:
		t.Fatalf("teardown notified twice: %s", status)
	case <-time.After(100 * time.Millisecond):
	}
}
