/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Publisher fans game events out to the connections of a session.
type Publisher struct {
	log zerolog.Logger

	mu    sync.Mutex
	conns map[int]Conn
}

func NewPublisher(log zerolog.Logger) *Publisher {
	return &Publisher{
		log:   log,
		conns: map[int]Conn{},
	}
}

func (p *Publisher) AddSubscriber(playerID int, conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conns[playerID] = conn
}

// RemoveSubscriber drops a connection from the registry and reports whether
// it was present.
func (p *Publisher) RemoveSubscriber(playerID int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.conns[playerID]
	delete(p.conns, playerID)

	return ok
}

func (p *Publisher) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.conns)
}

// Publish renders e and sends it to every connection it targets. It is an
// Observer.
func (p *Publisher) Publish(e Event) {
	if leave, ok := e.(PlayerLeaveEvent); ok {
		p.RemoveSubscriber(leave.PlayerNum)
	}

	payload := Render(e)

	targets := p.targets(e)
	for _, t := range targets {
		if err := t.conn.Send(payload); err != nil {
			p.log.Warn().Err(err).Int("player", t.id).Str("event", e.Name()).Msg("send failed")
		}
	}
}

type target struct {
	id   int
	conn Conn
}

// targets snapshots the connections that should receive e, in ascending
// player id order.
func (p *Publisher) targets(e Event) []target {
	p.mu.Lock()
	defer p.mu.Unlock()

	only := func(id int) []target {
		if c, ok := p.conns[id]; ok {
			return []target{{id, c}}
		}
		return nil
	}

	var skip [2]int
	switch e := e.(type) {
	case PlayerJoinEvent:
		return only(e.PlayerNum)
	case PlayerVIPEvent:
		return only(e.PlayerNum)
	case DistributePromptEvent:
		return only(e.PlayerNum)
	case NicknameAlreadyExistsEvent:
		return only(e.PlayerNum)
	case VIPLeaveEvent:
		return nil
	case BeginPromptVotingEvent:
		skip = e.Authors
	}

	out := make([]target, 0, len(p.conns))
	for id, c := range p.conns {
		if id == skip[0] || id == skip[1] {
			continue
		}
		out = append(out, target{id, c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })

	return out
}

// Render converts an event to its wire payload.
func Render(e Event) Payload {
	m := Payload{"event": e.Name()}

	switch e := e.(type) {
	case PlayerJoinEvent:
		m["player_num"] = e.PlayerNum
	case PlayerLeaveEvent:
		m["player_num"] = e.PlayerNum
	case VIPLeaveEvent:
	case PlayerNicknameEvent:
		m["player_num"] = e.PlayerNum
		m["name"] = e.Nickname
	case PlayerResponseEvent:
		m["player_num"] = e.PlayerNum
	case PlayerVoteEvent:
		m["nickname"] = e.Nickname
		m["vote"] = e.Vote
	case PlayerVIPEvent:
		m["player_num"] = e.PlayerNum
	case RoundStartedEvent:
		m["round_num"] = e.RoundNum
	case DistributePromptEvent:
		m["player_num"] = e.PlayerNum
		m["prompt_0"] = e.Prompt0
		m["prompt_1"] = e.Prompt1
		m["prompt_0_id"] = e.Prompt0ID
		m["prompt_1_id"] = e.Prompt1ID
	case StopAnsweringPromptsEvent:
	case BeginVotingEvent:
		m["round"] = e.Round
	case BeginPromptVotingEvent:
		m["prompt"] = e.Prompt
		m["prompt_id"] = e.PromptID
		m["response_0"] = e.Responses[0]
		m["response_1"] = e.Responses[1]
	case ClientEndPromptVotingEvent:
		m["data"] = nil
	case EndPromptVotingEvent:
		m["player_0_name"] = e.Player0Name
		m["player_0_voter_names"] = nonNil(e.Player0VoterNames)
		m["player_0_points_awarded"] = e.Player0PointsAwarded
		m["player_1_name"] = e.Player1Name
		m["player_1_voter_names"] = nonNil(e.Player1VoterNames)
		m["player_1_points_awarded"] = e.Player1PointsAwarded
		m["tie"] = e.Tie
		m["winner"] = optional(e.Winner)
		m["quiplasher"] = optional(e.Quiplasher)
	case ScoreboardEvent:
		m["names_in_order"] = nonNil(e.NamesInOrder)
		m["points_in_order"] = nonNil(e.PointsInOrder)
	case NicknameAlreadyExistsEvent:
		m["data"] = nil
	}

	return m
}

func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
