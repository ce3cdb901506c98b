/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const DefaultMaxPlayers = 8

// SessionConfig is shared by every session a Manager creates.
type SessionConfig struct {
	Game           Config
	MaxPlayers     int
	ReceiveTimeout time.Duration
	Logger         zerolog.Logger
}

// Session is one game instance, addressed by its key, together with the
// connections playing it.
type Session struct {
	key        string
	maxPlayers int
	timeout    time.Duration
	log        zerolog.Logger

	game      *Game
	publisher *Publisher

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	lastActive time.Time
}

// NewSession creates a session. Every event is published to the session's
// connections first and then passed to each of observers in order.
func NewSession(key string, cfg SessionConfig, observers ...Observer) *Session {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}

	log := cfg.Logger.With().Str("session", key).Logger()
	cfg.Game.Logger = log

	s := &Session{
		key:        key,
		maxPlayers: cfg.MaxPlayers,
		timeout:    cfg.ReceiveTimeout,
		log:        log,
		publisher:  NewPublisher(log),
		lastActive: time.Now(),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.game = New(cfg.Game, func(e Event) {
		s.publisher.Publish(e)
		for _, o := range observers {
			o(e)
		}
	})

	return s
}

func (s *Session) Key() string {
	return s.key
}

func (s *Session) Game() *Game {
	return s.game
}

func (s *Session) Joinable() bool {
	return s.game.Joinable(s.maxPlayers)
}

// HandleConnection admits conn to the session and serves it until it leaves
// or disconnects. A connection arriving after the session filled up or
// started receives a GameFullEvent and is not registered.
func (s *Session) HandleConnection(ctx context.Context, conn Conn) error {
	s.touch()
	defer s.touch()

	id, err := s.game.Admit(s.maxPlayers)
	if err != nil {
		s.log.Info().Err(err).Msg("rejecting connection")
		if sendErr := conn.Send(Payload{"event": "GameFullEvent", "game-id": s.key}); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}

	s.publisher.AddSubscriber(id, conn)

	log := s.log.With().Int("player", id).Logger()
	log.Debug().Msg("connection accepted")

	err = NewDispatcher(s.ctx, s.game, conn, id, s.timeout, s.log).Run(ctx)
	if err == nil {
		log.Debug().Msg("player left")
		return nil
	}

	// A dropped connection is a leave.
	if rmErr := s.game.RemovePlayer(id); rmErr != nil {
		s.publisher.RemoveSubscriber(id)
	}

	if errors.Is(err, ErrConnClosed) || errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Msg("connection ended")
		return nil
	}

	log.Warn().Err(err).Msg("connection dropped")

	return err
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// idleSince reports when the session last had activity, or the zero time if
// it still has connections or a round in flight.
func (s *Session) idleSince() time.Time {
	if s.publisher.Subscribers() > 0 || s.game.Playing() {
		return time.Time{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastActive
}

func (s *Session) close() {
	s.cancel()
}

// Manager maps session keys to sessions, creating them on first use.
type Manager struct {
	cfg       SessionConfig
	observers func(key string) []Observer
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates a Manager. observers, if not nil, supplies extra
// observers for every new session.
func NewManager(cfg SessionConfig, observers func(key string) []Observer) *Manager {
	return &Manager{
		cfg:       cfg,
		observers: observers,
		log:       cfg.Logger,
		sessions:  map[string]*Session{},
	}
}

// Session returns the session for key, creating it if needed.
func (m *Manager) Session(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		return s
	}

	var extra []Observer
	if m.observers != nil {
		extra = m.observers(key)
	}

	s := NewSession(key, m.cfg, extra...)
	m.sessions[key] = s

	m.log.Info().Str("session", key).Msg("session created")

	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(key string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	return s, ok
}

// Keys returns the keys of all live sessions, sorted.
func (m *Manager) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// Reap removes sessions that have been idle for longer than timeout and
// returns how many were removed.
func (m *Manager) Reap(now time.Time, timeout time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.sessions {
		since := s.idleSince()
		if since.IsZero() || now.Sub(since) < timeout {
			continue
		}

		s.close()
		delete(m.sessions, key)
		removed++

		m.log.Info().Str("session", key).Msg("idle session removed")
	}

	return removed
}

// RunReaper calls Reap every interval until ctx is done. A non-positive
// timeout disables reaping.
func (m *Manager) RunReaper(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	interval := timeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Reap(time.Now(), timeout)
		case <-ctx.Done():
			return
		}
	}
}

// Close cancels every session's rounds.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		s.close()
	}
}
