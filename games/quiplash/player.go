/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"fmt"
	"sort"
)

// Player is a connected participant. A player starts out pending (no name)
// and becomes active once their nickname is accepted.
type Player struct {
	ID     int
	Name   string
	Points int
	Wins   int
	IsVIP  bool

	// CurrentPrompts holds the two prompts assigned for the running round.
	CurrentPrompts []*Prompt
}

func newPlayer(id int) *Player {
	return &Player{ID: id}
}

// PlayerList is an ordered set of players keyed by id.
type PlayerList struct {
	players []*Player
}

func (l *PlayerList) Len() int {
	return len(l.players)
}

// All returns the players in list order. The slice is a copy; the players
// are not.
func (l *PlayerList) All() []*Player {
	out := make([]*Player, len(l.players))
	copy(out, l.players)
	return out
}

func (l *PlayerList) Append(p *Player) error {
	if l.Has(p.ID) {
		return fmt.Errorf("%w: %d", ErrDuplicatePlayer, p.ID)
	}
	l.players = append(l.players, p)
	return nil
}

func (l *PlayerList) indexByID(id int) int {
	for i, p := range l.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (l *PlayerList) Has(id int) bool {
	return l.indexByID(id) >= 0
}

func (l *PlayerList) HasName(name string) bool {
	_, err := l.ByName(name)
	return err == nil
}

func (l *PlayerList) ByID(id int) (*Player, error) {
	i := l.indexByID(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	return l.players[i], nil
}

func (l *PlayerList) ByName(name string) (*Player, error) {
	for _, p := range l.players {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPlayerNotFound, name)
}

// Remove deletes the player with the given id, keeping the order of the rest.
func (l *PlayerList) Remove(id int) (*Player, error) {
	i := l.indexByID(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	p := l.players[i]
	l.players = append(l.players[:i], l.players[i+1:]...)
	return p, nil
}

// SortedByPoints returns the players ordered by points, highest first.
// Players with equal points keep their list order.
func (l *PlayerList) SortedByPoints() []*Player {
	out := l.All()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Points > out[j].Points
	})
	return out
}
