/*
Package chat contains the real-time direct-message delivery core.

This file defines the Manager struct, the entry point for upgraded connections.
It authenticates each connection, runs its session loop, and tracks live clients for shutdown.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"dmchat/internal/app/message"
	"dmchat/internal/pkg/logx"
)

const (
	// time allowed for resolving a credential before the connection is refused.
	resolveTimeout = 5 * time.Second

	// default time allowed for persisting one inbound message.
	defaultPersistTimeout = 5 * time.Second
)

// MessageStore persists inbound messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, arg message.New) (message.Message, error)
}

// Options tunes session behaviour.
type Options struct {
	// PresenceEvents enables user_online and user_offline broadcasts.
	PresenceEvents bool

	// PongWait is how long a silent peer is tolerated before its session ends.
	PongWait time.Duration

	// PersistTimeout bounds each message insert.
	PersistTimeout time.Duration
}

// Manager owns the registry and dispatcher and runs one session per authenticated connection.
type Manager struct {
	registry   *Registry
	dispatcher *Dispatcher
	resolver   *Resolver
	messages   MessageStore
	opts       Options

	// mu protects clients and closing.
	mu      sync.Mutex
	clients map[*Client]struct{}
	closing bool

	// wg tracks running sessions so Shutdown can wait for their terminal release.
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	logger zerolog.Logger
	now    func() time.Time
}

// NewManager constructs a Manager with its own Registry and Dispatcher.
func NewManager(resolver *Resolver, messages MessageStore, opts Options) *Manager {
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}

	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		registry:   registry,
		dispatcher: NewDispatcher(registry),
		resolver:   resolver,
		messages:   messages,
		opts:       opts,
		clients:    make(map[*Client]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logx.Component("Manager"),
		now:        time.Now,
	}

	if opts.PresenceEvents {
		// A session dropped by a failed write never releases its own entry, so announce it here
		registry.OnEvict(func(userID int64) {
			registry.Broadcast(PresenceEvent(TypeUserOffline, userID), userID)
		})
	}

	return m
}

// Registry returns the connection registry shared by all sessions.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Dispatcher returns the dispatcher used for delivering persisted messages.
func (m *Manager) Dispatcher() *Dispatcher {
	return m.dispatcher
}

// Serve authenticates conn with credential and runs its session until the connection ends.
// It blocks for the lifetime of the session and always leaves conn closed.
func (m *Manager) Serve(conn *websocket.Conn, credential string) {
	client := NewClient(conn)

	if m.isClosing() {
		client.CloseWith(websocket.CloseGoingAway, "server shutting down")
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, resolveTimeout)
	u, err := m.resolver.Resolve(ctx, credential)
	cancel()

	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("reason", FailureReason(err)).
			Str("conn_id", client.ID.String()).
			Msg("Connection refused")
		client.CloseWith(websocket.ClosePolicyViolation, "authentication failed")
		return
	}

	if !m.track(client) {
		client.CloseWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer m.untrack(client)

	newSession(m, client, u).run()
}

func (m *Manager) isClosing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closing
}

// track records a live client. It returns false once shutdown has begun.
func (m *Manager) track(c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closing {
		return false
	}

	m.clients[c] = struct{}{}
	m.wg.Add(1)
	return true
}

func (m *Manager) untrack(c *Client) {
	m.mu.Lock()
	delete(m.clients, c)
	m.mu.Unlock()

	m.wg.Done()
}

// Shutdown closes every live session with a going-away close code and waits
// for their session loops to finish, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info().Msg("Shutting down Manager...")

	m.mu.Lock()
	m.closing = true
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	m.cancel()

	for _, c := range clients {
		c.CloseWith(websocket.CloseGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Int("closed_sessions", len(clients)).Msg("Manager shutdown complete.")
		return nil

	case <-ctx.Done():
		m.logger.Warn().Int("remaining_sessions", m.registry.Len()).Msg("Manager shutdown timed out.")
		return ctx.Err()
	}
}
