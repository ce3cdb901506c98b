/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package quiplash runs quiplash-style party game sessions: players join over
// persistent connections, answer paired prompts, vote on each other's answers,
// and collect points round by round.
//
// A Game owns all session state and reports every transition to a single
// Observer. A Publisher turns those events into per-connection payloads, and a
// Dispatcher turns inbound connection messages into Game calls.
package quiplash

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMinPlayers      = 3
	DefaultResponseTimeout = 60 * time.Second
	DefaultVoteTimeout     = 15 * time.Second
	DefaultResponsesPause  = 2 * time.Second
	DefaultResultsPause    = 5 * time.Second

	maxPlayerID = 10000
)

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseResponding Phase = "responding"
	PhaseVoting     Phase = "voting"
	PhaseScoreboard Phase = "scoreboard"
)

// Config controls a single Game. Zero values fall back to the defaults above.
type Config struct {
	// Prompts is the pool prompt texts are drawn from each round.
	Prompts []string

	MinPlayers int

	ResponseTimeout time.Duration
	VoteTimeout     time.Duration

	// ResponsesPause is the gap between the response window closing and
	// voting opening. ResultsPause follows each prompt's results and the
	// scoreboard, giving clients time to animate.
	ResponsesPause time.Duration
	ResultsPause   time.Duration

	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64

	Logger zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Prompts == nil {
		c.Prompts = DefaultPrompts()
	}
	if c.MinPlayers <= 0 {
		c.MinPlayers = DefaultMinPlayers
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = DefaultResponseTimeout
	}
	if c.VoteTimeout <= 0 {
		c.VoteTimeout = DefaultVoteTimeout
	}
	if c.ResponsesPause < 0 {
		c.ResponsesPause = 0
	}
	if c.ResultsPause < 0 {
		c.ResultsPause = 0
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// Game is the round state machine of one session. All methods are safe for
// concurrent use. Events are delivered to the observer while the game lock is
// held, so the observer must not call back into the Game.
type Game struct {
	cfg      Config
	log      zerolog.Logger
	observer Observer

	mu      sync.Mutex
	rng     *rand.Rand
	pending PlayerList
	active  PlayerList
	prompts PromptList

	// names remembers every accepted nickname so results can still name
	// players that left mid-round.
	names map[int]string

	round   int
	phase   Phase
	playing bool
	started bool
	voting  int

	responses *barrier
	votes     *barrier
}

func New(cfg Config, observer Observer) *Game {
	cfg = cfg.withDefaults()
	if observer == nil {
		observer = func(Event) {}
	}

	return &Game{
		cfg:       cfg,
		log:       cfg.Logger,
		observer:  observer,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		names:     map[int]string{},
		round:     1,
		phase:     PhaseLobby,
		voting:    -1,
		responses: newBarrier(),
		votes:     newBarrier(),
	}
}

func (g *Game) emit(e Event) {
	g.log.Debug().Str("event", e.Name()).Msg("emit")
	g.observer(e)
}

// RegisterConnection creates a pending player with a fresh id that is not
// used by any pending or active player.
func (g *Game) RegisterConnection() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.registerLocked()
}

// Admit registers a connection if the session has not started and has fewer
// than maxPlayers active players.
func (g *Game) Admit(maxPlayers int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.active.Len(); g.started || n >= maxPlayers {
		return 0, fmt.Errorf("%w: %d of %d players, started=%t", ErrSessionFull, n, maxPlayers, g.started)
	}

	return g.registerLocked(), nil
}

func (g *Game) registerLocked() int {
	id := g.rng.Intn(maxPlayerID) + 1
	for g.pending.Has(id) || g.active.Has(id) {
		id = g.rng.Intn(maxPlayerID) + 1
	}

	_ = g.pending.Append(newPlayer(id))
	g.log.Debug().Int("player", id).Msg("connection registered")

	return id
}

// AcceptPlayer names a pending player and moves them into the active list.
// The first active player becomes VIP.
func (g *Game) AcceptPlayer(playerID int, name string) error {
	name = strings.TrimSpace(name)

	g.mu.Lock()
	defer g.mu.Unlock()

	if name == "" {
		return fmt.Errorf("%w: empty nickname from player %d", ErrPlayerNickname, playerID)
	}

	if g.active.HasName(name) {
		g.emit(NicknameAlreadyExistsEvent{PlayerNum: playerID})
		return fmt.Errorf("%w: %q", ErrNameInUse, name)
	}

	if g.active.Has(playerID) {
		return fmt.Errorf("%w: player %d already has a nickname", ErrPlayerNickname, playerID)
	}
	if g.playing {
		return fmt.Errorf("%w: player %d cannot join mid-round", ErrRoundInProgress, playerID)
	}

	player, err := g.pending.Remove(playerID)
	if err != nil {
		return err
	}

	player.Name = name
	g.names[playerID] = name

	if g.active.Len() == 0 {
		player.IsVIP = true
		g.emit(PlayerVIPEvent{PlayerNum: playerID})
	}

	_ = g.active.Append(player)

	g.emit(PlayerJoinEvent{PlayerNum: playerID})
	g.emit(PlayerNicknameEvent{PlayerNum: playerID, Nickname: name})

	g.log.Info().Int("player", playerID).Str("name", name).Bool("vip", player.IsVIP).Msg("player joined")

	return nil
}

// RemovePlayer drops a pending or active player. If they were VIP the role
// passes to the next active player in list order.
func (g *Game) RemovePlayer(playerID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	list := &g.active
	player, err := g.active.ByID(playerID)
	if err != nil {
		list = &g.pending
		if player, err = g.pending.ByID(playerID); err != nil {
			return err
		}
	}

	if player.IsVIP {
		g.handleVIPLeaveLocked(player)
	}

	_, _ = list.Remove(playerID)

	g.emit(PlayerLeaveEvent{PlayerNum: playerID})
	g.log.Info().Int("player", playerID).Str("name", player.Name).Msg("player left")

	// The expected totals of any open window just shrank.
	g.responses.notify()
	g.votes.notify()

	return nil
}

func (g *Game) handleVIPLeaveLocked(leaving *Player) {
	g.emit(VIPLeaveEvent{PlayerNum: leaving.ID})
	leaving.IsVIP = false

	for _, p := range g.active.All() {
		if p.ID == leaving.ID {
			continue
		}
		p.IsVIP = true
		g.emit(PlayerVIPEvent{PlayerNum: p.ID})
		g.log.Info().Int("player", p.ID).Str("name", p.Name).Msg("vip reassigned")
		return
	}
}

// StartRound checks that a round can begin and runs it in the background.
func (g *Game) StartRound(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.playing {
		return ErrRoundInProgress
	}
	if n := g.active.Len(); n < g.cfg.MinPlayers {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, g.cfg.MinPlayers, n)
	}
	if n := g.active.Len(); len(g.cfg.Prompts) < n {
		return fmt.Errorf("%w: %d prompts for %d players", ErrNotEnoughPrompts, len(g.cfg.Prompts), n)
	}

	g.playing = true
	g.started = true

	go g.playRound(ctx)

	return nil
}

// ReceiveResponse stores one answer from one author.
func (g *Game) ReceiveResponse(r PromptResponse) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	prompt, err := g.responsePromptLocked(r)
	if err != nil {
		return err
	}
	if err := prompt.ReceiveResponse(r); err != nil {
		return err
	}

	g.responses.add(1)

	return nil
}

// ReceiveResponses stores both of a player's answers, or neither.
func (g *Game) ReceiveResponses(playerID int, rs [2]PromptResponse) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active.Has(playerID) {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, playerID)
	}
	if rs[0].PromptID == rs[1].PromptID {
		return fmt.Errorf("%w: both responses target prompt %d", ErrPlayerResponse, rs[0].PromptID)
	}

	var prompts [2]*Prompt
	for i, r := range rs {
		if r.PlayerID != playerID {
			return fmt.Errorf("%w: response from player %d in message of player %d", ErrPlayerMismatch, r.PlayerID, playerID)
		}
		prompt, err := g.responsePromptLocked(r)
		if err != nil {
			return err
		}
		if err := prompt.checkResponse(r); err != nil {
			return err
		}
		prompts[i] = prompt
	}

	for i, r := range rs {
		_ = prompts[i].ReceiveResponse(r)
	}

	g.emit(PlayerResponseEvent{PlayerNum: playerID})
	g.responses.add(len(rs))

	return nil
}

func (g *Game) responsePromptLocked(r PromptResponse) (*Prompt, error) {
	if g.phase != PhaseResponding {
		return nil, fmt.Errorf("%w: not accepting responses during %s", ErrPlayerResponse, g.phase)
	}
	prompt, err := g.prompts.ByID(r.PromptID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlayerResponse, err)
	}
	return prompt, nil
}

// ReceiveVote stores a vote on the prompt currently open for voting.
func (g *Game) ReceiveVote(v VoteResponse) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	voter, err := g.active.ByID(v.PlayerID)
	if err != nil {
		return err
	}
	if g.phase != PhaseVoting || g.voting < 0 {
		return fmt.Errorf("%w: not accepting votes during %s", ErrPlayerVote, g.phase)
	}
	prompt, err := g.prompts.ByID(v.PromptID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPlayerVote, err)
	}
	if prompt.ID != g.voting {
		return fmt.Errorf("%w: prompt %d is not open for voting", ErrPlayerVote, prompt.ID)
	}
	if err := prompt.ReceiveVote(v); err != nil {
		return err
	}

	g.emit(PlayerVoteEvent{Nickname: voter.Name, Vote: v.Vote})
	g.votes.add(1)

	return nil
}

// IsVIP reports whether playerID is the active VIP.
func (g *Game) IsVIP(playerID int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.active.ByID(playerID)
	return err == nil && p.IsVIP
}

// Joinable reports whether a new connection may enter the session.
func (g *Game) Joinable(maxPlayers int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return !g.started && g.active.Len() < maxPlayers
}

func (g *Game) Playing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.playing
}

// PlayerStatus is a read-only view of one active player.
type PlayerStatus struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
	Wins   int    `json:"wins"`
	VIP    bool   `json:"vip"`
}

// Status is a read-only snapshot of a game.
type Status struct {
	Round   int            `json:"round"`
	Phase   Phase          `json:"phase"`
	Playing bool           `json:"playing"`
	Started bool           `json:"started"`
	Pending int            `json:"pending"`
	Players []PlayerStatus `json:"players"`
}

func (g *Game) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	players := make([]PlayerStatus, 0, g.active.Len())
	for _, p := range g.active.All() {
		players = append(players, PlayerStatus{
			ID:     p.ID,
			Name:   p.Name,
			Points: p.Points,
			Wins:   p.Wins,
			VIP:    p.IsVIP,
		})
	}

	return Status{
		Round:   g.round,
		Phase:   g.phase,
		Playing: g.playing,
		Started: g.started,
		Pending: g.pending.Len(),
		Players: players,
	}
}
