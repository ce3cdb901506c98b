/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"context"
	"errors"
	"time"
)

const distributeAttempts = 16

var errNoCandidate = errors.New("no prompt left for player")

// playRound drives one full round: prompts, responses, voting on every
// prompt, scoreboard. It returns once the scoreboard pause has elapsed.
func (g *Game) playRound(ctx context.Context) {
	defer g.finishRound()

	g.mu.Lock()
	round := g.round
	g.phase = PhaseResponding
	g.responses.reset()
	g.votes.reset()
	g.emit(RoundStartedEvent{RoundNum: round})
	err := g.distributePromptsLocked()
	g.mu.Unlock()

	log := g.log.With().Int("round", round).Logger()

	if err != nil {
		log.Error().Err(err).Msg("could not distribute prompts")
		return
	}

	if !g.responses.wait(ctx, g.allResponded, g.cfg.ResponseTimeout) {
		log.Info().Int("received", g.responses.received()).Msg("response window closed before all players answered")
	}

	g.mu.Lock()
	g.phase = PhaseVoting
	g.emit(StopAnsweringPromptsEvent{})
	g.mu.Unlock()

	if !sleep(ctx, g.cfg.ResponsesPause) {
		return
	}

	g.mu.Lock()
	g.emit(BeginVotingEvent{Round: round})
	prompts := g.prompts.All()
	g.mu.Unlock()

	for _, prompt := range prompts {
		g.mu.Lock()
		g.votes.reset()
		g.voting = prompt.ID
		g.emit(beginPromptVoting(prompt))
		g.mu.Unlock()

		if !g.votes.wait(ctx, g.allVoted, g.cfg.VoteTimeout) {
			log.Debug().Int("prompt", prompt.ID).Msg("vote window closed before all players voted")
		}

		g.mu.Lock()
		g.voting = -1
		g.emit(ClientEndPromptVotingEvent{})
		g.calculatePointsLocked(prompt)
		g.mu.Unlock()

		if !sleep(ctx, g.cfg.ResultsPause) {
			return
		}
	}

	g.mu.Lock()
	g.phase = PhaseScoreboard
	g.computeScoreboardLocked()
	g.round++
	g.mu.Unlock()

	log.Info().Msg("round complete")

	sleep(ctx, g.cfg.ResultsPause)
}

// finishRound discards the round's prompts and allows the next round to
// start.
func (g *Game) finishRound() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.prompts.Reset()
	for _, p := range g.active.All() {
		p.CurrentPrompts = nil
	}
	if g.phase != PhaseScoreboard {
		g.phase = PhaseLobby
	}
	g.voting = -1
	g.playing = false
}

// allResponded reports whether every active player has answered both of
// their prompts.
func (g *Game) allResponded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range g.active.All() {
		for _, prompt := range p.CurrentPrompts {
			if _, ok := prompt.Responses[p.ID]; !ok {
				return false
			}
		}
	}
	return true
}

// allVoted reports whether every active player who is not an author of the
// prompt open for voting has voted on it.
func (g *Game) allVoted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	prompt, err := g.prompts.ByID(g.voting)
	if err != nil {
		return true
	}

	for _, p := range g.active.All() {
		if !prompt.isAuthor(p.ID) && !prompt.HasVoted(p.ID) {
			return false
		}
	}
	return true
}

func beginPromptVoting(p *Prompt) BeginPromptVotingEvent {
	return BeginPromptVotingEvent{
		PromptID: p.ID,
		Prompt:   p.Text,
		Authors:  p.PlayerIDs,
		Responses: [2]string{
			p.Responses[p.PlayerIDs[0]],
			p.Responses[p.PlayerIDs[1]],
		},
	}
}

// DistributePrompts draws one prompt per active player and assigns every
// player exactly two of them, so that every prompt ends up with two authors.
func (g *Game) DistributePrompts() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.distributePromptsLocked()
}

func (g *Game) distributePromptsLocked() error {
	players := g.active.All()
	n := len(players)
	if n < 2 {
		return ErrNotEnoughPlayers
	}
	if len(g.cfg.Prompts) < n {
		return ErrNotEnoughPrompts
	}

	texts := make([]string, n)
	for i, j := range g.rng.Perm(len(g.cfg.Prompts))[:n] {
		texts[i] = g.cfg.Prompts[j]
	}

	var authors [][]int
	var err error
	for attempt := 0; attempt < distributeAttempts; attempt++ {
		if authors, err = g.pairAuthors(players, n); err == nil {
			break
		}
	}
	if err != nil {
		return err
	}

	g.prompts.Reset()
	for _, p := range players {
		p.CurrentPrompts = nil
	}

	for i, text := range texts {
		prompt := NewPrompt(i, text, [2]int{authors[i][0], authors[i][1]})
		g.prompts.Append(prompt)

		for _, id := range prompt.PlayerIDs {
			p, _ := g.active.ByID(id)
			p.CurrentPrompts = append(p.CurrentPrompts, prompt)
		}
	}

	for _, p := range players {
		g.emit(DistributePromptEvent{
			PlayerNum: p.ID,
			Prompt0:   p.CurrentPrompts[0].Text,
			Prompt1:   p.CurrentPrompts[1].Text,
			Prompt0ID: p.CurrentPrompts[0].ID,
			Prompt1ID: p.CurrentPrompts[1].ID,
		})
	}

	g.log.Debug().Int("prompts", n).Msg("prompts distributed")

	return nil
}

// pairAuthors visits players in random order and gives each two distinct
// prompts with a free author slot. While some prompt has no author yet, only
// unauthored prompts are eligible.
func (g *Game) pairAuthors(players []*Player, n int) ([][]int, error) {
	authors := make([][]int, n)

	order := g.rng.Perm(len(players))
	for _, idx := range order {
		id := players[idx].ID
		for picks := 0; picks < 2; picks++ {
			candidates := promptCandidates(authors, id)
			if len(candidates) == 0 {
				return nil, errNoCandidate
			}
			choice := candidates[g.rng.Intn(len(candidates))]
			authors[choice] = append(authors[choice], id)
		}
	}

	return authors, nil
}

func promptCandidates(authors [][]int, playerID int) []int {
	emptyLeft := false
	for _, ids := range authors {
		if len(ids) == 0 {
			emptyLeft = true
			break
		}
	}

	var out []int
	for i, ids := range authors {
		if len(ids) >= 2 || contains(ids, playerID) {
			continue
		}
		if emptyLeft && len(ids) != 0 {
			continue
		}
		out = append(out, i)
	}
	return out
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// CalculatePoints scores a prompt for the current round and adds the points
// to both authors.
func (g *Game) CalculatePoints(prompt *Prompt) EndPromptVotingEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calculatePointsLocked(prompt)
}

func (g *Game) calculatePointsLocked(prompt *Prompt) EndPromptVotingEvent {
	v0, v1 := prompt.VoteCounts()
	award := scorePrompt(g.round, v0, v1)

	id0, id1 := prompt.PlayerIDs[0], prompt.PlayerIDs[1]
	e := EndPromptVotingEvent{
		Player0Name:          g.names[id0],
		Player0VoterNames:    g.voterNames(prompt.Votes[id0]),
		Player0PointsAwarded: award.points[0],
		Player1Name:          g.names[id1],
		Player1VoterNames:    g.voterNames(prompt.Votes[id1]),
		Player1PointsAwarded: award.points[1],
		Tie:                  award.tie,
	}
	if award.winner >= 0 {
		e.Winner = g.names[prompt.PlayerIDs[award.winner]]
	}
	if award.quiplash {
		e.Quiplasher = e.Winner
	}

	for i, id := range prompt.PlayerIDs {
		p, err := g.active.ByID(id)
		if err != nil {
			continue
		}
		p.Points += award.points[i]
		if award.winner == i {
			p.Wins++
		}
	}

	g.emit(e)

	return e
}

func (g *Game) voterNames(ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, g.names[id])
	}
	return names
}

type promptAward struct {
	points   [2]int
	tie      bool
	winner   int
	quiplash bool
}

// scorePrompt applies the scoring rule for a round. A tie pays both authors
// 500 per round. Otherwise each author gets their share of 1000 per round;
// a shutout adds a 500 per round quiplash bonus and a plain majority adds 100
// per round.
func scorePrompt(round, v0, v1 int) promptAward {
	total := v0 + v1
	if total == 0 || v0 == v1 {
		return promptAward{
			points: [2]int{500 * round, 500 * round},
			tie:    true,
			winner: -1,
		}
	}

	a := promptAward{
		points: [2]int{1000 * round * v0 / total, 1000 * round * v1 / total},
		winner: -1,
	}

	switch {
	case a.points[0] == 0:
		a.points[1] += 500 * round
		a.winner, a.quiplash = 1, true
	case a.points[1] == 0:
		a.points[0] += 500 * round
		a.winner, a.quiplash = 0, true
	case a.points[0] > a.points[1]:
		a.points[0] += 100 * round
		a.winner = 0
	case a.points[1] > a.points[0]:
		a.points[1] += 100 * round
		a.winner = 1
	}

	return a
}

// ComputeScoreboard emits the active players ordered by points.
func (g *Game) ComputeScoreboard() ScoreboardEvent {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.computeScoreboardLocked()
}

func (g *Game) computeScoreboardLocked() ScoreboardEvent {
	sorted := g.active.SortedByPoints()

	e := ScoreboardEvent{
		NamesInOrder:  make([]string, 0, len(sorted)),
		PointsInOrder: make([]int, 0, len(sorted)),
	}
	for _, p := range sorted {
		e.NamesInOrder = append(e.NamesInOrder, p.Name)
		e.PointsInOrder = append(e.PointsInOrder, p.Points)
	}

	g.emit(e)

	return e
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
