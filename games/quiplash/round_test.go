package quiplash

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, seed int64, players int, observer Observer) (*Game, []int) {
	t.Helper()

	g := New(Config{
		Prompts:         testPrompts(20),
		Seed:            seed,
		ResponseTimeout: 2 * time.Second,
		VoteTimeout:     2 * time.Second,
		Logger:          zerolog.Nop(),
	}, observer)

	ids := make([]int, 0, players)
	for i := 0; i < players; i++ {
		id := g.RegisterConnection()
		require.NoError(t, g.AcceptPlayer(id, fmt.Sprintf("player%d", i)))
		ids = append(ids, id)
	}

	return g, ids
}

func TestScorePrompt(t *testing.T) {
	tests := []struct {
		name     string
		round    int
		v0, v1   int
		points   [2]int
		tie      bool
		winner   int
		quiplash bool
	}{
		{"no votes", 1, 0, 0, [2]int{500, 500}, true, -1, false},
		{"even split", 3, 2, 2, [2]int{1500, 1500}, true, -1, false},
		{"shutout in round two", 2, 3, 0, [2]int{3000, 0}, false, 0, true},
		{"shutout for second author", 1, 0, 1, [2]int{0, 1500}, false, 1, true},
		{"majority in round one", 1, 2, 1, [2]int{766, 333}, false, 0, false},
		{"majority for second author", 1, 1, 2, [2]int{333, 766}, false, 1, false},
		{"share rounds down to zero", 1, 1, 1001, [2]int{0, 1499}, false, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scorePrompt(tt.round, tt.v0, tt.v1)

			assert.Equal(t, tt.points, a.points)
			assert.Equal(t, tt.tie, a.tie)
			assert.Equal(t, tt.winner, a.winner)
			assert.Equal(t, tt.quiplash, a.quiplash)
		})
	}
}

func TestDistributePrompts(t *testing.T) {
	for players := 3; players <= DefaultMaxPlayers; players++ {
		for seed := int64(1); seed <= 25; seed++ {
			t.Run(fmt.Sprintf("%d players seed %d", players, seed), func(t *testing.T) {
				log := &eventLog{}
				g, ids := newTestGame(t, seed, players, log.observe)
				log.reset()

				require.NoError(t, g.DistributePrompts())

				prompts := g.prompts.All()
				require.Len(t, prompts, players)

				texts := map[string]bool{}
				assigned := map[int]int{}
				for i, p := range prompts {
					assert.Equal(t, i, p.ID)
					assert.NotEqual(t, p.PlayerIDs[0], p.PlayerIDs[1])
					assert.False(t, texts[p.Text], "prompt text %q drawn twice", p.Text)
					texts[p.Text] = true
					assigned[p.PlayerIDs[0]]++
					assigned[p.PlayerIDs[1]]++
				}

				for _, id := range ids {
					assert.Equal(t, 2, assigned[id])

					p, err := g.active.ByID(id)
					require.NoError(t, err)
					require.Len(t, p.CurrentPrompts, 2)
					assert.NotEqual(t, p.CurrentPrompts[0].ID, p.CurrentPrompts[1].ID)
				}

				dist := eventsOf[DistributePromptEvent](log)
				require.Len(t, dist, players)
				for _, e := range dist {
					p, err := g.active.ByID(e.PlayerNum)
					require.NoError(t, err)
					assert.Equal(t, p.CurrentPrompts[0].ID, e.Prompt0ID)
					assert.Equal(t, p.CurrentPrompts[1].Text, e.Prompt1)
				}
			})
		}
	}
}

func TestPromptCandidatesPreferUnauthored(t *testing.T) {
	authors := [][]int{{1}, {}, {2}, {}}

	assert.Equal(t, []int{1, 3}, promptCandidates(authors, 5))

	authors = [][]int{{1}, {2, 3}, {2}}
	assert.Equal(t, []int{0}, promptCandidates(authors, 2))
}

func TestReceiveResponsesIsAllOrNothing(t *testing.T) {
	g, ids := newTestGame(t, 3, 3, nil)
	require.NoError(t, g.DistributePrompts())
	g.phase = PhaseResponding

	p, err := g.active.ByID(ids[0])
	require.NoError(t, err)
	own := p.CurrentPrompts

	var other *Prompt
	for _, prompt := range g.prompts.All() {
		if !prompt.isAuthor(ids[0]) {
			other = prompt
		}
	}
	require.NotNil(t, other)

	err = g.ReceiveResponses(ids[0], [2]PromptResponse{
		{PromptID: own[0].ID, PlayerID: ids[0], Response: "fine"},
		{PromptID: other.ID, PlayerID: ids[0], Response: "not mine"},
	})
	assert.ErrorIs(t, err, ErrPlayerResponse)
	assert.Empty(t, own[0].Responses, "first response must not be stored")

	err = g.ReceiveResponses(ids[0], [2]PromptResponse{
		{PromptID: own[0].ID, PlayerID: ids[0], Response: "a"},
		{PromptID: own[0].ID, PlayerID: ids[0], Response: "b"},
	})
	assert.ErrorIs(t, err, ErrPlayerResponse)

	err = g.ReceiveResponses(ids[0], [2]PromptResponse{
		{PromptID: own[0].ID, PlayerID: ids[1], Response: "a"},
		{PromptID: own[1].ID, PlayerID: ids[1], Response: "b"},
	})
	assert.ErrorIs(t, err, ErrPlayerMismatch)

	require.NoError(t, g.ReceiveResponses(ids[0], [2]PromptResponse{
		{PromptID: own[0].ID, PlayerID: ids[0], Response: "a"},
		{PromptID: own[1].ID, PlayerID: ids[0], Response: "b"},
	}))
	assert.Equal(t, 2, g.responses.received())

	err = g.ReceiveResponses(ids[0], [2]PromptResponse{
		{PromptID: own[0].ID, PlayerID: ids[0], Response: "again"},
		{PromptID: own[1].ID, PlayerID: ids[0], Response: "again"},
	})
	assert.ErrorIs(t, err, ErrPlayerResponse)
	assert.Equal(t, "a", own[0].Responses[ids[0]])
}

func TestReceiveVoteOnlyForOpenPrompt(t *testing.T) {
	log := &eventLog{}
	g, ids := newTestGame(t, 5, 4, log.observe)
	require.NoError(t, g.DistributePrompts())

	prompts := g.prompts.All()
	g.phase = PhaseVoting
	g.voting = prompts[1].ID

	var voter int
	for _, id := range ids {
		if !prompts[1].isAuthor(id) {
			voter = id
			break
		}
	}

	err := g.ReceiveVote(VoteResponse{PromptID: prompts[0].ID, PlayerID: voter, Vote: 0})
	assert.ErrorIs(t, err, ErrPlayerVote)

	err = g.ReceiveVote(VoteResponse{PromptID: 99, PlayerID: voter, Vote: 0})
	assert.ErrorIs(t, err, ErrPlayerVote)
	assert.ErrorIs(t, err, ErrPromptNotFound)

	err = g.ReceiveVote(VoteResponse{PromptID: prompts[1].ID, PlayerID: prompts[1].PlayerIDs[0], Vote: 1})
	assert.ErrorIs(t, err, ErrPlayerVote)

	err = g.ReceiveVote(VoteResponse{PromptID: prompts[1].ID, PlayerID: 424242, Vote: 1})
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	log.reset()
	require.NoError(t, g.ReceiveVote(VoteResponse{PromptID: prompts[1].ID, PlayerID: voter, Vote: 1}))

	name := g.names[voter]
	assert.Equal(t, []Event{PlayerVoteEvent{Nickname: name, Vote: 1}}, log.events)
	assert.Equal(t, 1, g.votes.received())
}

func TestCalculatePoints(t *testing.T) {
	log := &eventLog{}
	g, ids := newTestGame(t, 9, 3, log.observe)
	log.reset()

	ada, bob, cy := ids[0], ids[1], ids[2]
	prompt := NewPrompt(0, "x", [2]int{ada, bob})
	require.NoError(t, prompt.ReceiveVote(VoteResponse{PromptID: 0, PlayerID: cy, Vote: 0}))

	e := g.CalculatePoints(prompt)

	assert.Equal(t, EndPromptVotingEvent{
		Player0Name:          "player0",
		Player0VoterNames:    []string{"player2"},
		Player0PointsAwarded: 1500,
		Player1Name:          "player1",
		Player1VoterNames:    []string{},
		Player1PointsAwarded: 0,
		Winner:               "player0",
		Quiplasher:           "player0",
	}, e)
	assert.Equal(t, []Event{e}, log.events)

	p, err := g.active.ByID(ada)
	require.NoError(t, err)
	assert.Equal(t, 1500, p.Points)
	assert.Equal(t, 1, p.Wins)
}

func TestCalculatePointsAfterAuthorLeft(t *testing.T) {
	g, ids := newTestGame(t, 9, 3, nil)

	prompt := NewPrompt(0, "x", [2]int{ids[0], ids[1]})
	require.NoError(t, prompt.ReceiveVote(VoteResponse{PromptID: 0, PlayerID: ids[2], Vote: 1}))
	require.NoError(t, g.RemovePlayer(ids[1]))

	e := g.CalculatePoints(prompt)

	assert.Equal(t, "player1", e.Player1Name)
	assert.Equal(t, "player1", e.Quiplasher)
	assert.Equal(t, 1500, e.Player1PointsAwarded)
}

func TestComputeScoreboard(t *testing.T) {
	g, ids := newTestGame(t, 1, 4, nil)

	points := []int{500, 2000, 500, 1000}
	for i, id := range ids {
		p, err := g.active.ByID(id)
		require.NoError(t, err)
		p.Points = points[i]
	}

	e := g.ComputeScoreboard()

	assert.Equal(t, []string{"player1", "player3", "player0", "player2"}, e.NamesInOrder)
	assert.Equal(t, []int{2000, 1000, 500, 500}, e.PointsInOrder)
}

// driveRound answers and votes on behalf of every player as events arrive and
// returns the events of the round once the scoreboard is out.
func driveRound(t *testing.T, g *Game, events <-chan Event, vote int) []Event {
	t.Helper()

	var seen []Event
	deadline := time.After(5 * time.Second)

	for {
		select {
		case e := <-events:
			seen = append(seen, e)

			switch e := e.(type) {
			case DistributePromptEvent:
				go func() {
					_ = g.ReceiveResponses(e.PlayerNum, [2]PromptResponse{
						{PromptID: e.Prompt0ID, PlayerID: e.PlayerNum, Response: "zero"},
						{PromptID: e.Prompt1ID, PlayerID: e.PlayerNum, Response: "one"},
					})
				}()
			case BeginPromptVotingEvent:
				for _, st := range g.snapshotPlayers() {
					if st == e.Authors[0] || st == e.Authors[1] {
						continue
					}
					go func(id int) {
						_ = g.ReceiveVote(VoteResponse{PromptID: e.PromptID, PlayerID: id, Vote: vote})
					}(st)
				}
			case ScoreboardEvent:
				return seen
			}
		case <-deadline:
			t.Fatalf("round did not finish, saw %d events", len(seen))
		}
	}
}

func (g *Game) snapshotPlayers() []int {
	var ids []int
	for _, p := range g.Status().Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestPlayRound(t *testing.T) {
	events := make(chan Event, 512)
	g, ids := newTestGame(t, 11, 4, func(e Event) { events <- e })
	drain(events)

	start := time.Now()
	require.NoError(t, g.StartRound(context.Background()))
	assert.ErrorIs(t, g.StartRound(context.Background()), ErrRoundInProgress)

	seen := driveRound(t, g, events, 0)

	assert.Less(t, time.Since(start), 2*time.Second, "round should end early once everyone answered and voted")

	var names []string
	for _, e := range seen {
		names = append(names, e.Name())
	}
	assert.Equal(t, "RoundStartedEvent", names[0])
	assert.Contains(t, names, "StopAnsweringPrompts")
	assert.Contains(t, names, "BeginVotingEvent")

	var ends []EndPromptVotingEvent
	for _, e := range seen {
		if end, ok := e.(EndPromptVotingEvent); ok {
			ends = append(ends, end)
		}
	}
	require.Len(t, ends, len(ids))

	// Two voters per prompt, both for the first author.
	total := 0
	for _, end := range ends {
		assert.Equal(t, 1500, end.Player0PointsAwarded)
		assert.Equal(t, 0, end.Player1PointsAwarded)
		assert.Equal(t, end.Player0Name, end.Quiplasher)
		assert.Len(t, end.Player0VoterNames, 2)
		total += end.Player0PointsAwarded
	}

	board := seen[len(seen)-1].(ScoreboardEvent)
	sum := 0
	for i, pts := range board.PointsInOrder {
		sum += pts
		if i > 0 {
			assert.LessOrEqual(t, pts, board.PointsInOrder[i-1])
		}
	}
	assert.Equal(t, total, sum)

	require.Eventually(t, func() bool { return !g.Playing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, g.Status().Round)
	assert.False(t, g.Joinable(DefaultMaxPlayers))
}

func TestPlayRoundTimesOut(t *testing.T) {
	events := make(chan Event, 512)
	g := New(Config{
		Prompts:         testPrompts(5),
		Seed:            3,
		ResponseTimeout: 30 * time.Millisecond,
		VoteTimeout:     10 * time.Millisecond,
		Logger:          zerolog.Nop(),
	}, func(e Event) { events <- e })
	for _, name := range []string{"ada", "bob", "cy"} {
		require.NoError(t, g.AcceptPlayer(g.RegisterConnection(), name))
	}
	drain(events)

	require.NoError(t, g.StartRound(context.Background()))

	var board ScoreboardEvent
	var prompts []BeginPromptVotingEvent
	deadline := time.After(5 * time.Second)
wait:
	for {
		select {
		case e := <-events:
			switch e := e.(type) {
			case BeginPromptVotingEvent:
				prompts = append(prompts, e)
			case ScoreboardEvent:
				board = e
				break wait
			}
		case <-deadline:
			t.Fatal("round did not finish")
		}
	}

	require.Len(t, prompts, 3)
	for _, p := range prompts {
		assert.Equal(t, [2]string{"", ""}, p.Responses)
	}

	// Every prompt is a 0-0 tie, and every player wrote two of them.
	assert.Equal(t, []int{1000, 1000, 1000}, board.PointsInOrder)
	assert.Equal(t, []string{"ada", "bob", "cy"}, board.NamesInOrder)
}

func TestPlayRoundCancelled(t *testing.T) {
	g, _ := newTestGame(t, 2, 3, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, g.StartRound(ctx))
	cancel()

	require.Eventually(t, func() bool { return !g.Playing() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, g.Status().Round)
	assert.Equal(t, PhaseLobby, g.Status().Phase)
}

func drain(events chan Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}

// next reads events until one of type T arrives.
func next[T Event](t *testing.T, events <-chan Event) T {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if v, ok := e.(T); ok {
				return v
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

// quiet fails if an event of type T arrives within d.
func quiet[T Event](t *testing.T, events <-chan Event, d time.Duration) {
	t.Helper()

	deadline := time.After(d)
	for {
		select {
		case e := <-events:
			if _, ok := e.(T); ok {
				t.Fatalf("unexpected %s", e.Name())
			}
		case <-deadline:
			return
		}
	}
}

func answer(g *Game, e DistributePromptEvent) error {
	return g.ReceiveResponses(e.PlayerNum, [2]PromptResponse{
		{PromptID: e.Prompt0ID, PlayerID: e.PlayerNum, Response: "zero"},
		{PromptID: e.Prompt1ID, PlayerID: e.PlayerNum, Response: "one"},
	})
}

// startRound starts a round and returns the prompts handed to each player.
func startRound(t *testing.T, g *Game, events <-chan Event) map[int]DistributePromptEvent {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, g.StartRound(ctx))

	n := len(g.Status().Players)
	dist := map[int]DistributePromptEvent{}
	for len(dist) < n {
		e := next[DistributePromptEvent](t, events)
		dist[e.PlayerNum] = e
	}
	return dist
}

func TestResponseWindowWaitsAfterAnsweredPlayerLeaves(t *testing.T) {
	events := make(chan Event, 512)
	g, ids := newTestGame(t, 21, 3, func(e Event) { events <- e })
	dist := startRound(t, g, events)

	require.NoError(t, answer(g, dist[ids[0]]))
	require.NoError(t, g.RemovePlayer(ids[0]))
	require.NoError(t, answer(g, dist[ids[1]]))

	quiet[StopAnsweringPromptsEvent](t, events, 100*time.Millisecond)
	assert.Equal(t, PhaseResponding, g.Status().Phase)

	require.NoError(t, answer(g, dist[ids[2]]))
	next[StopAnsweringPromptsEvent](t, events)
}

// openVoting answers for every player and returns the first prompt opened
// for voting together with its eligible voters.
func openVoting(t *testing.T, g *Game, events <-chan Event, ids []int) (BeginPromptVotingEvent, []int) {
	t.Helper()

	dist := startRound(t, g, events)
	for _, id := range ids {
		require.NoError(t, answer(g, dist[id]))
	}

	open := next[BeginPromptVotingEvent](t, events)

	var voters []int
	for _, id := range ids {
		if id != open.Authors[0] && id != open.Authors[1] {
			voters = append(voters, id)
		}
	}
	return open, voters
}

func TestVoteWindowWaitsAfterVoterLeaves(t *testing.T) {
	events := make(chan Event, 512)
	g, ids := newTestGame(t, 22, 5, func(e Event) { events <- e })
	open, voters := openVoting(t, g, events, ids)
	require.Len(t, voters, 3)

	require.NoError(t, g.ReceiveVote(VoteResponse{PromptID: open.PromptID, PlayerID: voters[0], Vote: 0}))
	require.NoError(t, g.ReceiveVote(VoteResponse{PromptID: open.PromptID, PlayerID: voters[1], Vote: 1}))
	require.NoError(t, g.RemovePlayer(voters[1]))

	quiet[ClientEndPromptVotingEvent](t, events, 100*time.Millisecond)

	require.NoError(t, g.ReceiveVote(VoteResponse{PromptID: open.PromptID, PlayerID: voters[2], Vote: 0}))

	end := next[EndPromptVotingEvent](t, events)
	assert.Len(t, end.Player0VoterNames, 2)
	assert.Len(t, end.Player1VoterNames, 1)
}

func TestVoteWindowWaitsAfterAuthorLeaves(t *testing.T) {
	events := make(chan Event, 512)
	g, ids := newTestGame(t, 23, 4, func(e Event) { events <- e })
	open, voters := openVoting(t, g, events, ids)
	require.Len(t, voters, 2)

	require.NoError(t, g.RemovePlayer(open.Authors[0]))
	require.NoError(t, g.ReceiveVote(VoteResponse{PromptID: open.PromptID, PlayerID: voters[0], Vote: 1}))

	quiet[ClientEndPromptVotingEvent](t, events, 100*time.Millisecond)

	require.NoError(t, g.ReceiveVote(VoteResponse{PromptID: open.PromptID, PlayerID: voters[1], Vote: 1}))
	next[ClientEndPromptVotingEvent](t, events)
}

func TestLateResponsesRejectedAfterWindowCloses(t *testing.T) {
	events := make(chan Event, 512)
	g := New(Config{
		Prompts:         testPrompts(5),
		Seed:            4,
		ResponseTimeout: 20 * time.Millisecond,
		ResponsesPause:  time.Hour,
		Logger:          zerolog.Nop(),
	}, func(e Event) { events <- e })
	for _, name := range []string{"ada", "bob", "cy"} {
		require.NoError(t, g.AcceptPlayer(g.RegisterConnection(), name))
	}
	drain(events)

	dist := startRound(t, g, events)
	next[StopAnsweringPromptsEvent](t, events)

	for _, e := range dist {
		assert.ErrorIs(t, answer(g, e), ErrPlayerResponse)
	}
	assert.Equal(t, PhaseVoting, g.Status().Phase)
}
