/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package quiplash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const DefaultReceiveTimeout = time.Second

// Dispatcher reads one connection's messages and applies them to a Game.
type Dispatcher struct {
	game     *Game
	conn     Conn
	playerID int
	timeout  time.Duration
	log      zerolog.Logger

	// roundCtx outlives the connection; a round keeps running if the VIP
	// who started it disconnects.
	roundCtx context.Context
}

func NewDispatcher(roundCtx context.Context, game *Game, conn Conn, playerID int, timeout time.Duration, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}

	return &Dispatcher{
		game:     game,
		conn:     conn,
		playerID: playerID,
		timeout:  timeout,
		log:      log.With().Int("player", playerID).Logger(),
		roundCtx: roundCtx,
	}
}

// Run processes messages until the player leaves, the connection closes, a
// malformed message arrives, or ctx is done. It returns nil only after an
// explicit leave.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := d.conn.Receive(d.timeout)
		switch {
		case errors.Is(err, ErrReceiveTimeout):
			continue
		case err != nil:
			return err
		}

		left, err := d.handle(msg)
		if errors.Is(err, errUnknownMessage) {
			continue
		}
		if err != nil {
			d.log.Warn().Err(err).Str("type", msg.Type).Msg("message rejected")
			continue
		}

		if err := d.conn.Send(Ack()); err != nil {
			return fmt.Errorf("%w: %w", ErrConnClosed, err)
		}

		if left {
			return nil
		}
	}
}

// handle applies one message. It reports whether the player left.
func (d *Dispatcher) handle(msg Message) (bool, error) {
	switch msg.Type {
	case MessageStart:
		if !d.game.IsVIP(d.playerID) {
			return false, fmt.Errorf("%w: player %d", ErrNotVIP, d.playerID)
		}
		return false, d.game.StartRound(d.roundCtx)

	case MessageNickname:
		return false, d.game.AcceptPlayer(d.playerID, msg.Content)

	case MessageResponses:
		if err := d.checkSender(msg); err != nil {
			return false, err
		}
		return false, d.game.ReceiveResponses(d.playerID, [2]PromptResponse{
			{PromptID: msg.Prompt0ID, PlayerID: msg.PlayerNum, Response: msg.Response0},
			{PromptID: msg.Prompt1ID, PlayerID: msg.PlayerNum, Response: msg.Response1},
		})

	case MessageVote:
		if err := d.checkSender(msg); err != nil {
			return false, err
		}
		return false, d.game.ReceiveVote(VoteResponse{
			PromptID: msg.PromptID,
			PlayerID: msg.PlayerNum,
			Vote:     msg.Vote,
		})

	case MessageLeave:
		if err := d.checkSender(msg); err != nil {
			return false, err
		}
		if err := d.game.RemovePlayer(d.playerID); err != nil {
			return false, err
		}
		return true, nil
	}

	d.log.Debug().Str("type", msg.Type).Msg("ignoring unknown message type")

	return false, errUnknownMessage
}

var errUnknownMessage = errors.New("unknown message type")

func (d *Dispatcher) checkSender(msg Message) error {
	if msg.PlayerNum != d.playerID {
		return fmt.Errorf("%w: message for player %d on connection of player %d", ErrPlayerMismatch, msg.PlayerNum, d.playerID)
	}
	return nil
}
