/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"time"
)

// Payload is a flat JSON object sent to a client.
type Payload map[string]any

// Ack is sent on a connection after a message has been applied.
func Ack() Payload {
	return Payload{"status": "ok"}
}

// Message is one inbound client message. Only the fields relevant to Type are
// set.
type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	PlayerNum int    `json:"player_num,omitempty"`
	Prompt0ID int    `json:"prompt_0_id,omitempty"`
	Prompt1ID int    `json:"prompt_1_id,omitempty"`
	Response0 string `json:"response_0,omitempty"`
	Response1 string `json:"response_1,omitempty"`
	PromptID  int    `json:"prompt_id,omitempty"`
	Vote      int    `json:"vote,omitempty"`
}

const (
	MessageStart     = "start"
	MessageNickname  = "nickname"
	MessageResponses = "responses"
	MessageVote      = "vote"
	MessageLeave     = "leave"
)

// Conn is one client's bidirectional message channel.
//
// Receive returns ErrReceiveTimeout when nothing arrived within timeout,
// ErrConnClosed once the peer is gone, and ErrMalformedMessage when a frame
// could not be decoded.
//
//go:generate mockgen -package=mocks -destination=mocks/mock_conn.go github.com/Seednode/quipbox/games/quiplash Conn
type Conn interface {
	Send(p Payload) error
	Receive(timeout time.Duration) (Message, error)
	Close() error
}
