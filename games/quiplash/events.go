/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

// Event is a state transition emitted by the game. The set of events is
// closed; every implementation lives in this file.
type Event interface {
	// Name is the wire discriminator sent as the "event" field.
	Name() string
	event()
}

// Observer receives every event a Game emits, in emission order.
type Observer func(Event)

type PlayerJoinEvent struct {
	PlayerNum int
}

type PlayerLeaveEvent struct {
	PlayerNum int
}

type VIPLeaveEvent struct {
	PlayerNum int
}

type PlayerNicknameEvent struct {
	PlayerNum int
	Nickname  string
}

type PlayerResponseEvent struct {
	PlayerNum int
}

type PlayerVoteEvent struct {
	Nickname string
	Vote     int
}

type PlayerVIPEvent struct {
	PlayerNum int
}

type RoundStartedEvent struct {
	RoundNum int
}

// DistributePromptEvent tells one player which two prompts to answer.
type DistributePromptEvent struct {
	PlayerNum int
	Prompt0   string
	Prompt1   string
	Prompt0ID int
	Prompt1ID int
}

type StopAnsweringPromptsEvent struct{}

type BeginVotingEvent struct {
	Round int
}

// BeginPromptVotingEvent opens voting on one prompt. It is a snapshot; later
// changes to the prompt are not reflected.
type BeginPromptVotingEvent struct {
	PromptID  int
	Prompt    string
	Authors   [2]int
	Responses [2]string
}

type ClientEndPromptVotingEvent struct{}

// EndPromptVotingEvent reports the outcome of one prompt. Winner and
// Quiplasher are empty when there was no winner or no quiplash.
type EndPromptVotingEvent struct {
	Player0Name          string
	Player0VoterNames    []string
	Player0PointsAwarded int

	Player1Name          string
	Player1VoterNames    []string
	Player1PointsAwarded int

	Tie        bool
	Winner     string
	Quiplasher string
}

type ScoreboardEvent struct {
	NamesInOrder  []string
	PointsInOrder []int
}

type NicknameAlreadyExistsEvent struct {
	PlayerNum int
}

func (PlayerJoinEvent) Name() string            { return "PlayerJoinEvent" }
func (PlayerLeaveEvent) Name() string           { return "PlayerLeaveEvent" }
func (VIPLeaveEvent) Name() string              { return "VIPLeaveEvent" }
func (PlayerNicknameEvent) Name() string        { return "PlayerNicknameEvent" }
func (PlayerResponseEvent) Name() string        { return "PlayerResponseEvent" }
func (PlayerVoteEvent) Name() string            { return "PlayerVoteEvent" }
func (PlayerVIPEvent) Name() string             { return "PlayerVIPEvent" }
func (RoundStartedEvent) Name() string          { return "RoundStartedEvent" }
func (DistributePromptEvent) Name() string      { return "DistributePromptEvent" }
func (StopAnsweringPromptsEvent) Name() string  { return "StopAnsweringPrompts" }
func (BeginVotingEvent) Name() string           { return "BeginVotingEvent" }
func (BeginPromptVotingEvent) Name() string     { return "BeginPromptVotingEvent" }
func (ClientEndPromptVotingEvent) Name() string { return "ClientEndPromptVotingEvent" }
func (EndPromptVotingEvent) Name() string       { return "EndPromptVotingEvent" }
func (ScoreboardEvent) Name() string            { return "ScoreboardEvent" }
func (NicknameAlreadyExistsEvent) Name() string { return "NicknameAlreadyExistsEvent" }

func (PlayerJoinEvent) event()            {}
func (PlayerLeaveEvent) event()           {}
func (VIPLeaveEvent) event()              {}
func (PlayerNicknameEvent) event()        {}
func (PlayerResponseEvent) event()        {}
func (PlayerVoteEvent) event()            {}
func (PlayerVIPEvent) event()             {}
func (RoundStartedEvent) event()          {}
func (DistributePromptEvent) event()      {}
func (StopAnsweringPromptsEvent) event()  {}
func (BeginVotingEvent) event()           {}
func (BeginPromptVotingEvent) event()     {}
func (ClientEndPromptVotingEvent) event() {}
func (EndPromptVotingEvent) event()       {}
func (ScoreboardEvent) event()            {}
func (NicknameAlreadyExistsEvent) event() {}
