/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

// Error is a sentinel error raised by the game engine and its transport.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrNameInUse        Error = "nickname already in use"
	ErrPlayerNotFound   Error = "player not found"
	ErrDuplicatePlayer  Error = "duplicate player id"
	ErrPromptNotFound   Error = "prompt not found"
	ErrPlayerResponse   Error = "invalid prompt response"
	ErrPlayerVote       Error = "invalid vote"
	ErrPlayerNickname   Error = "invalid nickname request"
	ErrNotEnoughPlayers Error = "not enough players to start a round"
	ErrNotEnoughPrompts Error = "prompt pool is smaller than the player count"
	ErrRoundInProgress  Error = "a round is already in progress"
	ErrNotVIP           Error = "only the VIP may start a round"
	ErrPlayerMismatch   Error = "message player does not match connection"
	ErrSessionFull      Error = "session is full or already started"

	ErrReceiveTimeout   Error = "receive timed out"
	ErrConnClosed       Error = "connection closed"
	ErrMalformedMessage Error = "malformed message"
)
