package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

func TestSubmitMoveTurnEnding(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")
	require.Equal(t, "alice", s.CurrentTurnWallet)
	require.Equal(t, 1, s.TurnNumber)

	f.clock.Add(5 * time.Second)
	res, err := f.move(s.RoomID, "alice", `"e2e4"`, "m1", 0)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.True(t, res.TurnSwitched)
	assert.Equal(t, 2, res.TurnNumber)

	s = f.session(t, s.RoomID)
	assert.Equal(t, "bob", s.CurrentTurnWallet)
	assert.Equal(t, 2, s.TurnNumber)
	require.NotNil(t, s.TurnStartedAt)
	assert.True(t, s.TurnStartedAt.Equal(f.clock.Now()))
	assert.Equal(t, 1, s.MoveCount)
}

func TestSubmitMoveIntermediateKeepsTurn(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeCasual, "alice", "bob")
	started := *s.TurnStartedAt

	f.clock.Add(time.Second)
	res, err := f.move(s.RoomID, "alice", `{"endsTurn":false,"jump":[1,2]}`, "", 0)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.False(t, res.TurnSwitched)
	assert.Equal(t, 1, res.TurnNumber)

	s = f.session(t, s.RoomID)
	assert.Equal(t, "alice", s.CurrentTurnWallet)
	assert.True(t, s.TurnStartedAt.Equal(started))
	assert.JSONEq(t, `{"endsTurn":false,"jump":[1,2]}`, string(s.AuxState))
	assert.Equal(t, 1, s.MoveCount)

	res, err = f.move(s.RoomID, "alice", `{"jump":[2,3]}`, "", 0)
	require.NoError(t, err)
	assert.True(t, res.TurnSwitched)
	s = f.session(t, s.RoomID)
	assert.Empty(t, s.AuxState)
	assert.Equal(t, "bob", s.CurrentTurnWallet)
}

func TestSubmitMoveIdempotent(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")

	first, err := f.move(s.RoomID, "alice", `"a"`, "dup-1", 0)
	require.NoError(t, err)
	after := f.session(t, s.RoomID)

	second, err := f.move(s.RoomID, "alice", `"a"`, "dup-1", 0)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))

	again := f.session(t, s.RoomID)
	assert.Equal(t, after.Revision, again.Revision)
	assert.Equal(t, 1, again.MoveCount)
	assert.Equal(t, "bob", again.CurrentTurnWallet)
}

func TestSubmitMoveJournalScopedToWallet(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")

	_, err := f.move(s.RoomID, "alice", `"a"`, "shared-1", 0)
	require.NoError(t, err)

	_, err = f.move(s.RoomID, "mallory", `"a"`, "shared-1", 0)
	requireCode(t, models.CodeNotAParticipant, err)

	res, err := f.move(s.RoomID, "bob", `"b"`, "shared-1", 0)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, 2, f.session(t, s.RoomID).MoveCount)
}

func TestSubmitMoveJournalReplayAfterFinish(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")

	first, err := f.move(s.RoomID, "alice", `{"result":"win"}`, "win-1", 0)
	require.NoError(t, err)
	assert.True(t, first.Finished)

	replay, err := f.move(s.RoomID, "alice", `{"result":"win"}`, "win-1", 0)
	require.NoError(t, err)
	assert.Equal(t, first, replay)

	_, err = f.move(s.RoomID, "alice", `"late"`, "win-2", 0)
	requireCode(t, models.CodeSessionFinished, err)
}

func TestSubmitMoveJournalBounded(t *testing.T) {
	s := &models.GameSession{}
	for i := range MoveJournalSize + 10 {
		journal(s, fmt.Sprintf("m%d", i), models.MoveResult{Applied: true, TurnNumber: i})
	}
	assert.Len(t, s.AppliedMoves, MoveJournalSize)
	assert.Len(t, s.MoveJournal, MoveJournalSize)
	_, ok := s.AppliedMoves["m0"]
	assert.False(t, ok)
	assert.Equal(t, "m10", s.MoveJournal[0])
}

func TestSubmitMoveRejections(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")

	_, err := f.move(s.RoomID, "bob", `"x"`, "", 0)
	requireCode(t, models.CodeTurnMismatch, err)

	_, err = f.move(s.RoomID, "alice", `"x"`, "", 3)
	requireCode(t, models.CodeTurnMismatch, err)

	_, err = f.move(s.RoomID, "alice", `"x"`, "", 1)
	require.NoError(t, err)

	_, err = f.move(s.RoomID, "alice", `"x"`, "", 1)
	requireCode(t, models.CodeStaleMove, err)
	_, err = f.move(s.RoomID, "bob", `"x"`, "", 1)
	requireCode(t, models.CodeStaleMove, err)

	_, err = f.move(s.RoomID, "mallory", `"x"`, "", 0)
	requireCode(t, models.CodeNotAParticipant, err)

	_, err = f.move(s.RoomID, "bob", `{"result":"nope"}`, "", 0)
	requireCode(t, models.CodeInvalidInput, err)

	after := f.session(t, s.RoomID)
	assert.Equal(t, 1, after.MoveCount)
	assert.Equal(t, 2, after.TurnNumber)
}

func TestSubmitMoveInputErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.move("", "alice", `"x"`, "", 0)
	requireCode(t, models.CodeInvalidInput, err)
	_, err = f.move("ROOM22", "", `"x"`, "", 0)
	requireCode(t, models.CodeInvalidInput, err)
	_, err = f.move("ROOM22", "alice", `{bad`, "", 0)
	requireCode(t, models.CodeInvalidInput, err)
	_, err = f.move("ROOM22", "alice", ``, "", 0)
	requireCode(t, models.CodeInvalidInput, err)
	_, err = f.move("ROOM22", "alice", `"x"`, "", 0)
	requireCode(t, models.CodeRoomNotFound, err)
}

func TestSubmitMoveWaitingRoom(t *testing.T) {
	f := newFixture(t)
	s, _, err := f.c.CreateRoom(context.Background(), CreateRoomRequest{
		Creator: "alice", Mode: models.ModeCasual, MaxPlayers: 2, TurnTimeSeconds: 30,
	})
	require.NoError(t, err)
	_, err = f.move(s.RoomID, "alice", `"x"`, "", 0)
	requireCode(t, models.CodeSessionNotActive, err)
}

func TestSubmitMoveDraw(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModePrivate, "alice", "bob")
	res, err := f.move(s.RoomID, "alice", `{"result":"draw"}`, "", 0)
	require.NoError(t, err)
	assert.True(t, res.Finished)

	s = f.session(t, s.RoomID)
	assert.Equal(t, models.StatusFinished, s.Status)
	assert.Equal(t, models.ReasonDraw, s.WinReason)
	assert.Empty(t, s.Winner)
	assert.Empty(t, s.CurrentTurnWallet)
	assert.Nil(t, s.TurnStartedAt)
	assert.NotNil(t, s.FinishedAt)
}

func TestSubmitMoveResetsMisses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")

	f.clock.Add(64 * time.Second)
	_, err := f.c.SkipTurn(ctx, EscalationRequest{RoomID: s.RoomID, Reporter: "bob", Lapsed: "alice", TurnNumber: 1})
	require.NoError(t, err)
	require.Equal(t, 1, f.session(t, s.RoomID).MissedTurns["alice"])

	_, err = f.move(s.RoomID, "bob", `"b"`, "", 0)
	require.NoError(t, err)
	_, err = f.move(s.RoomID, "alice", `"a"`, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, f.session(t, s.RoomID).MissedTurns["alice"])
}

func TestSubmitMoveRosterResync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()
	require.NoError(t, f.store.Create(ctx, &models.GameSession{
		RoomID:            "LAGGED",
		Mode:              models.ModeRanked,
		Status:            models.StatusActive,
		MaxPlayers:        2,
		Participants:      []string{"alice", "pending-seat"},
		CurrentTurnWallet: "pending-seat",
		TurnStartedAt:     &now,
		TurnTimeSeconds:   60,
		TurnNumber:        2,
		MissedTurns:       map[string]int{"alice": 0, "pending-seat": 0},
	}))
	f.roster.Set("LAGGED", "alice", "bob")

	res, err := f.move("LAGGED", "bob", `"b"`, "", 0)
	require.NoError(t, err)
	assert.True(t, res.TurnSwitched)
	assert.EqualValues(t, 1, f.roster.calls.Load())

	s := f.session(t, "LAGGED")
	assert.Equal(t, []string{"alice", "bob"}, s.Participants)
	assert.Equal(t, "alice", s.CurrentTurnWallet)
	assert.NotContains(t, s.MissedTurns, "pending-seat")
}

func TestSubmitMoveRosterResyncOnce(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")
	f.roster.Set(s.RoomID, "alice", "bob")

	_, err := f.move(s.RoomID, "mallory", `"x"`, "", 0)
	requireCode(t, models.CodeNotAParticipant, err)
	assert.EqualValues(t, 1, f.roster.calls.Load())

	// roster knows the wallet but has no stale seat to give it
	f.roster.Set(s.RoomID, "alice", "bob", "mallory")
	_, err = f.move(s.RoomID, "mallory", `"x"`, "", 0)
	requireCode(t, models.CodeNotAParticipant, err)
	assert.EqualValues(t, 2, f.roster.calls.Load())
}

// Two wallets race on the same turn: the store serializes them and only
// the holder's move can land.
func TestSubmitMoveConcurrentSameTurn(t *testing.T) {
	for round := range 20 {
		f := newFixture(t)
		s := f.activeRoom(t, models.ModeRanked, "alice", "bob")
		for i := range 4 {
			wallet := s.Participants[i%2]
			_, err := f.move(s.RoomID, wallet, `"w"`, "", 0)
			require.NoError(t, err)
		}
		require.Equal(t, 5, f.session(t, s.RoomID).TurnNumber)

		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, 2)
		results := make([]models.MoveResult, 2)
		for i, w := range []string{"alice", "bob"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				results[i], errs[i] = f.move(s.RoomID, w, `"race"`, fmt.Sprintf("race-%d-%s", round, w), 5)
			}()
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0], "the turn-5 holder must win")
		assert.True(t, results[0].TurnSwitched)
		assert.Contains(t, []models.Code{models.CodeStaleMove, models.CodeTurnMismatch}, models.CodeOf(errs[1]))
		assert.Equal(t, 6, f.session(t, s.RoomID).TurnNumber)
	}
}

func TestSubmitMoveLoserAfterWinnerIsStale(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeRanked, "alice", "bob")
	_, err := f.move(s.RoomID, "alice", `"x"`, "", 1)
	require.NoError(t, err)
	_, err = f.move(s.RoomID, "bob", `"x"`, "", 1)
	requireCode(t, models.CodeStaleMove, err)
}

func TestSubmitMoveMutualExclusion(t *testing.T) {
	f := newFixture(t)
	s := f.activeRoom(t, models.ModeCasual, "alice", "bob", "carol")

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for i := range 60 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := s.Participants[i%3]
			if _, err := f.move(s.RoomID, w, `"m"`, "", 0); err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	final := f.session(t, s.RoomID)
	assert.Equal(t, applied, final.MoveCount)
	assert.Equal(t, 1+applied, final.TurnNumber)
	assert.Equal(t, final.Participants[applied%3], final.CurrentTurnWallet)
}
