/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package stats

import (
	"context"
	"sync"
	"time"

	"github.com/Seednode/quipbox/games/quiplash"
	"github.com/rs/zerolog"
)

const recordTimeout = 5 * time.Second

// Recorder tallies the points and prompt wins of each round of one session
// and stores them when the scoreboard is shown.
type Recorder struct {
	store   Store
	session string
	log     zerolog.Logger

	mu    sync.Mutex
	round int
	tally map[string]*Standing
	order []string

	wg sync.WaitGroup
}

func NewRecorder(store Store, session string, log zerolog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		session: session,
		log:     log.With().Str("session", session).Logger(),
		round:   1,
		tally:   map[string]*Standing{},
	}
}

// Observe is a quiplash.Observer. Writes happen in the background because
// events are delivered while the game is locked.
func (r *Recorder) Observe(e quiplash.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := e.(type) {
	case quiplash.RoundStartedEvent:
		r.round = e.RoundNum
		r.tally = map[string]*Standing{}
		r.order = nil

	case quiplash.EndPromptVotingEvent:
		r.add(e.Player0Name, e.Player0PointsAwarded, e.Winner == e.Player0Name)
		r.add(e.Player1Name, e.Player1PointsAwarded, e.Winner == e.Player1Name)

	case quiplash.ScoreboardEvent:
		for _, name := range e.NamesInOrder {
			r.add(name, 0, false)
		}

		standings := make([]Standing, 0, len(r.order))
		for _, name := range r.order {
			standings = append(standings, *r.tally[name])
		}

		r.wg.Add(1)
		go r.flush(r.round, standings)

		r.tally = map[string]*Standing{}
		r.order = nil
	}
}

func (r *Recorder) add(name string, points int, won bool) {
	if name == "" {
		return
	}

	s, ok := r.tally[name]
	if !ok {
		s = &Standing{Name: name}
		r.tally[name] = s
		r.order = append(r.order, name)
	}

	s.Points += points
	if won {
		s.Wins++
	}
}

func (r *Recorder) flush(round int, standings []Standing) {
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.store.RecordRound(ctx, r.session, round, standings); err != nil {
		r.log.Error().Err(err).Int("round", round).Msg("could not record round results")
		return
	}

	r.log.Debug().Int("round", round).Int("players", len(standings)).Msg("round results recorded")
}

// Wait blocks until every pending write has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
