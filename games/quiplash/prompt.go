/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"fmt"
)

// PromptResponse carries one author's answer to one prompt.
type PromptResponse struct {
	PromptID int
	PlayerID int
	Response string
}

// VoteResponse carries one voter's choice between a prompt's two answers.
// Vote is 0 for the first author and 1 for the second.
type VoteResponse struct {
	PromptID int
	PlayerID int
	Vote     int
}

// Prompt is one prompt text assigned to exactly two authors for a round.
type Prompt struct {
	ID        int
	Text      string
	PlayerIDs [2]int

	// Responses maps author id to answer; an answer is never overwritten.
	Responses map[int]string

	// Votes maps author id to the ids of the players that voted for them,
	// in arrival order. Both authors are always present as keys.
	Votes map[int][]int
}

func NewPrompt(id int, text string, authors [2]int) *Prompt {
	return &Prompt{
		ID:        id,
		Text:      text,
		PlayerIDs: authors,
		Responses: map[int]string{},
		Votes: map[int][]int{
			authors[0]: {},
			authors[1]: {},
		},
	}
}

func (p *Prompt) isAuthor(playerID int) bool {
	return p.PlayerIDs[0] == playerID || p.PlayerIDs[1] == playerID
}

// ReceiveResponse records an author's answer.
func (p *Prompt) ReceiveResponse(r PromptResponse) error {
	if err := p.checkResponse(r); err != nil {
		return err
	}
	p.Responses[r.PlayerID] = r.Response
	return nil
}

func (p *Prompt) checkResponse(r PromptResponse) error {
	if !p.isAuthor(r.PlayerID) {
		return fmt.Errorf("%w: player %d is not assigned to prompt %d", ErrPlayerResponse, r.PlayerID, p.ID)
	}
	if _, ok := p.Responses[r.PlayerID]; ok {
		return fmt.Errorf("%w: player %d already answered prompt %d", ErrPlayerResponse, r.PlayerID, p.ID)
	}
	if r.PromptID != p.ID {
		return fmt.Errorf("%w: response for prompt %d sent to prompt %d", ErrPlayerResponse, r.PromptID, p.ID)
	}
	return nil
}

// ReceiveVote records a vote. Authors cannot vote on their own prompt and a
// voter may vote on a prompt only once.
func (p *Prompt) ReceiveVote(v VoteResponse) error {
	if v.PromptID != p.ID {
		return fmt.Errorf("%w: vote for prompt %d sent to prompt %d", ErrPlayerVote, v.PromptID, p.ID)
	}
	if p.isAuthor(v.PlayerID) {
		return fmt.Errorf("%w: player %d cannot vote on their own prompt", ErrPlayerVote, v.PlayerID)
	}
	if p.HasVoted(v.PlayerID) {
		return fmt.Errorf("%w: player %d already voted on prompt %d", ErrPlayerVote, v.PlayerID, p.ID)
	}
	if v.Vote != 0 && v.Vote != 1 {
		return fmt.Errorf("%w: vote must be 0 or 1, got %d", ErrPlayerVote, v.Vote)
	}

	author := p.PlayerIDs[v.Vote]
	p.Votes[author] = append(p.Votes[author], v.PlayerID)
	return nil
}

func (p *Prompt) HasVoted(playerID int) bool {
	for _, voters := range p.Votes {
		for _, id := range voters {
			if id == playerID {
				return true
			}
		}
	}
	return false
}

// VoteCounts returns the number of votes for each author, in PlayerIDs order.
func (p *Prompt) VoteCounts() (int, int) {
	return len(p.Votes[p.PlayerIDs[0]]), len(p.Votes[p.PlayerIDs[1]])
}

// PromptList holds the prompts of the current round in generation order.
type PromptList struct {
	prompts []*Prompt
}

func (l *PromptList) Len() int {
	return len(l.prompts)
}

func (l *PromptList) Append(p *Prompt) {
	l.prompts = append(l.prompts, p)
}

func (l *PromptList) All() []*Prompt {
	out := make([]*Prompt, len(l.prompts))
	copy(out, l.prompts)
	return out
}

func (l *PromptList) ByID(id int) (*Prompt, error) {
	for _, p := range l.prompts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrPromptNotFound, id)
}

func (l *PromptList) Reset() {
	l.prompts = nil
}
