package quiplash_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/quipbox/games/quiplash"
)

// chanConn is an in-memory Conn driven by a test acting as the client.
type chanConn struct {
	in     chan quiplash.Message
	out    chan quiplash.Payload
	closed chan struct{}
	once   sync.Once
}

func newChanConn() *chanConn {
	return &chanConn{
		in:     make(chan quiplash.Message, 16),
		out:    make(chan quiplash.Payload, 512),
		closed: make(chan struct{}),
	}
}

func (c *chanConn) Send(p quiplash.Payload) error {
	select {
	case <-c.closed:
		return quiplash.ErrConnClosed
	case c.out <- p:
		return nil
	}
}

func (c *chanConn) Receive(timeout time.Duration) (quiplash.Message, error) {
	select {
	case <-c.closed:
		return quiplash.Message{}, quiplash.ErrConnClosed
	case m := <-c.in:
		return m, nil
	case <-time.After(timeout):
		return quiplash.Message{}, quiplash.ErrReceiveTimeout
	}
}

func (c *chanConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// await reads payloads until one with the given event name arrives.
func (c *chanConn) await(t *testing.T, event string) quiplash.Payload {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-c.out:
			if p["event"] == event {
				return p
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

// awaitAck reads payloads until the next acknowledgement.
func (c *chanConn) awaitAck(t *testing.T) {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-c.out:
			if p["status"] == "ok" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for ack")
			return
		}
	}
}

type client struct {
	conn *chanConn
	id   int
	done chan error
}

func testSessionConfig() quiplash.SessionConfig {
	return quiplash.SessionConfig{
		Game: quiplash.Config{
			Prompts:         []string{"first", "second", "third", "fourth"},
			ResponseTimeout: 5 * time.Second,
			VoteTimeout:     5 * time.Second,
			Seed:            99,
		},
		ReceiveTimeout: 10 * time.Millisecond,
		Logger:         zerolog.Nop(),
	}
}

// connect serves a new connection on s and names its player.
func connect(t *testing.T, s *quiplash.Session, name string) *client {
	t.Helper()

	c := &client{conn: newChanConn(), done: make(chan error, 1)}
	go func() {
		c.done <- s.HandleConnection(context.Background(), c.conn)
	}()

	c.conn.in <- quiplash.Message{Type: quiplash.MessageNickname, Content: name}
	join := c.conn.await(t, "PlayerJoinEvent")
	c.conn.awaitAck(t)

	c.id = join["player_num"].(int)

	return c
}

func (c *client) disconnect(t *testing.T) error {
	t.Helper()

	_ = c.conn.Close()
	select {
	case err := <-c.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("connection handler did not return")
		return nil
	}
}

// play answers and votes until the scoreboard arrives.
func (c *client) play(t *testing.T) quiplash.Payload {
	deadline := time.After(10 * time.Second)
	for {
		select {
		case p := <-c.conn.out:
			switch p["event"] {
			case "DistributePromptEvent":
				c.conn.in <- quiplash.Message{
					Type:      quiplash.MessageResponses,
					PlayerNum: c.id,
					Prompt0ID: p["prompt_0_id"].(int),
					Prompt1ID: p["prompt_1_id"].(int),
					Response0: fmt.Sprintf("%d says one", c.id),
					Response1: fmt.Sprintf("%d says two", c.id),
				}
			case "BeginPromptVotingEvent":
				c.conn.in <- quiplash.Message{
					Type:      quiplash.MessageVote,
					PlayerNum: c.id,
					PromptID:  p["prompt_id"].(int),
					Vote:      0,
				}
			case "ScoreboardEvent":
				return p
			}
		case <-deadline:
			t.Error("round did not finish")
			return nil
		}
	}
}

func TestSessionPlaysFullRound(t *testing.T) {
	m := quiplash.NewManager(testSessionConfig(), nil)
	defer m.Close()

	s := m.Session("abcd")

	clients := []*client{
		connect(t, s, "ada"),
		connect(t, s, "bob"),
		connect(t, s, "cy"),
	}
	require.True(t, s.Game().IsVIP(clients[0].id))

	clients[0].conn.in <- quiplash.Message{Type: quiplash.MessageStart}

	boards := make([]quiplash.Payload, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			boards[i] = c.play(t)
		}()
	}
	wg.Wait()

	for _, b := range boards {
		require.NotNil(t, b)
		assert.Equal(t, boards[0], b)
	}

	points := boards[0]["points_in_order"].([]int)
	names := boards[0]["names_in_order"].([]string)
	assert.Len(t, names, 3)

	// One voter per prompt, always for the first answer: 1000 plus a 500
	// quiplash bonus to the first author of each of the three prompts.
	total := 0
	for i, p := range points {
		total += p
		if i > 0 {
			assert.LessOrEqual(t, p, points[i-1])
		}
	}
	assert.Equal(t, 4500, total)

	assert.Eventually(t, func() bool { return !s.Game().Playing() }, 5*time.Second, 10*time.Millisecond)
	st := s.Game().Status()
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, quiplash.PhaseScoreboard, st.Phase)
	assert.False(t, s.Joinable())

	for _, c := range clients {
		assert.NoError(t, c.disconnect(t))
	}
	assert.Empty(t, s.Game().Status().Players)
}

func TestSessionRejectsAfterStart(t *testing.T) {
	m := quiplash.NewManager(testSessionConfig(), nil)
	defer m.Close()

	s := m.Session("late")
	g := s.Game()
	for _, name := range []string{"ada", "bob", "cy"} {
		require.NoError(t, g.AcceptPlayer(g.RegisterConnection(), name))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.StartRound(ctx))

	conn := newChanConn()
	err := s.HandleConnection(context.Background(), conn)

	assert.ErrorIs(t, err, quiplash.ErrSessionFull)
	assert.Equal(t, quiplash.Payload{"event": "GameFullEvent", "game-id": "late"}, <-conn.out)
}

func TestSessionRejectsWhenFull(t *testing.T) {
	cfg := testSessionConfig()
	cfg.MaxPlayers = 1
	s := quiplash.NewSession("tiny", cfg)

	first := connect(t, s, "ada")

	conn := newChanConn()
	assert.ErrorIs(t, s.HandleConnection(context.Background(), conn), quiplash.ErrSessionFull)
	assert.Equal(t, "GameFullEvent", (<-conn.out)["event"])

	assert.NoError(t, first.disconnect(t))
	assert.True(t, s.Joinable())
}

func TestSessionDisconnectIsLeave(t *testing.T) {
	s := quiplash.NewSession("drop", testSessionConfig())

	ada := connect(t, s, "ada")
	bob := connect(t, s, "bob")

	require.NoError(t, ada.disconnect(t))

	vip := bob.conn.await(t, "PlayerVIPEvent")
	assert.Equal(t, bob.id, vip["player_num"])

	leave := bob.conn.await(t, "PlayerLeaveEvent")
	assert.Equal(t, ada.id, leave["player_num"])
	assert.True(t, s.Game().IsVIP(bob.id))

	require.NoError(t, bob.disconnect(t))
}

func TestSessionExplicitLeave(t *testing.T) {
	s := quiplash.NewSession("bye", testSessionConfig())

	ada := connect(t, s, "ada")
	ada.conn.in <- quiplash.Message{Type: quiplash.MessageLeave, PlayerNum: ada.id}

	select {
	case err := <-ada.done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("connection handler did not return")
	}
	assert.Empty(t, s.Game().Status().Players)
}

func TestManagerSessions(t *testing.T) {
	var mu sync.Mutex
	seen := map[string][]string{}

	m := quiplash.NewManager(testSessionConfig(), func(key string) []quiplash.Observer {
		return []quiplash.Observer{func(e quiplash.Event) {
			mu.Lock()
			defer mu.Unlock()
			seen[key] = append(seen[key], e.Name())
		}}
	})
	defer m.Close()

	_, ok := m.Lookup("zz")
	assert.False(t, ok)

	b := m.Session("bb")
	a := m.Session("aa")
	assert.Same(t, b, m.Session("bb"))
	assert.Equal(t, []string{"aa", "bb"}, m.Keys())
	assert.Equal(t, "aa", a.Key())

	g := a.Game()
	require.NoError(t, g.AcceptPlayer(g.RegisterConnection(), "ada"))

	mu.Lock()
	assert.Equal(t, []string{"PlayerVIPEvent", "PlayerJoinEvent", "PlayerNicknameEvent"}, seen["aa"])
	assert.Empty(t, seen["bb"])
	mu.Unlock()
}

func TestManagerReap(t *testing.T) {
	m := quiplash.NewManager(testSessionConfig(), nil)
	defer m.Close()

	m.Session("idle")
	busy := m.Session("busy")
	c := connect(t, busy, "ada")

	assert.Zero(t, m.Reap(time.Now(), time.Hour))
	assert.Equal(t, 1, m.Reap(time.Now().Add(2*time.Hour), time.Hour))
	assert.Equal(t, []string{"busy"}, m.Keys())

	require.NoError(t, c.disconnect(t))
	assert.Equal(t, 1, m.Reap(time.Now().Add(2*time.Hour), time.Hour))
	assert.Empty(t, m.Keys())
}
