package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusWaiting.CanTransition(StatusActive))
	assert.True(t, StatusWaiting.CanTransition(StatusCancelled))
	assert.True(t, StatusActive.CanTransition(StatusFinished))
	assert.False(t, StatusActive.CanTransition(StatusWaiting))
	assert.False(t, StatusFinished.CanTransition(StatusActive))
	assert.False(t, StatusCancelled.CanTransition(StatusWaiting))

	for _, s := range []GameStatus{StatusFinished, StatusCancelled, StatusVoid} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, StatusActive.Terminal())
}

func TestModes(t *testing.T) {
	assert.True(t, ModeRanked.RequiresQuorum())
	assert.True(t, ModePrivate.Staked())
	assert.False(t, ModeCasual.RequiresQuorum())
	assert.False(t, ModeFree.Staked())
	assert.False(t, GameMode("tournament").Valid())
	assert.False(t, ReasonDraw.Settleable())
	assert.True(t, ReasonTimeout.Settleable())
}

func TestSessionHelpers(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &GameSession{
		Status:            StatusActive,
		MaxPlayers:        3,
		Participants:      []string{"alice", "bob", "carol"},
		CurrentTurnWallet: "carol",
		TurnStartedAt:     &start,
		TurnTimeSeconds:   60,
		ReadyFlags:        map[string]bool{"alice": true, "mallory": true},
	}

	assert.Equal(t, "alice", s.NextAfter("carol"))
	assert.Equal(t, "carol", s.NextAfter("bob"))
	assert.Empty(t, s.NextAfter("mallory"))
	assert.True(t, s.IsTurnOf("carol"))
	assert.False(t, s.IsTurnOf(""))
	assert.True(t, s.Full())

	d, ok := s.Deadline()
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Minute), d)
	s.TurnTimeSeconds = 0
	_, ok = s.Deadline()
	assert.False(t, ok)

	acc := s.Acceptances()
	assert.Equal(t, Acceptances{AcceptedCount: 1, RequiredCount: 3}, acc, "unseated ready flags do not count")
}

func TestQuorumIndependentOfSeatCount(t *testing.T) {
	for _, n := range []int{2, 4} {
		s := &GameSession{MaxPlayers: n, ReadyFlags: map[string]bool{}}
		for i := range n {
			w := fmt.Sprintf("w%d", i)
			s.Participants = append(s.Participants, w)
			assert.False(t, s.Acceptances().BothAccepted)
			s.ReadyFlags[w] = true
		}
		assert.True(t, s.Acceptances().BothAccepted, "n=%d", n)
	}
}

func TestCloneIsDeep(t *testing.T) {
	start := time.Now()
	s := &GameSession{
		Participants:  []string{"alice"},
		MissedTurns:   map[string]int{"alice": 1},
		ReadyFlags:    map[string]bool{"alice": true},
		AppliedMoves:  map[string]MoveResult{"m1": {Applied: true}},
		MoveJournal:   []string{"m1"},
		AuxState:      json.RawMessage(`{"a":1}`),
		TurnStartedAt: &start,
	}
	c := s.Clone()
	c.Participants[0] = "bob"
	c.MissedTurns["alice"] = 9
	c.ReadyFlags["alice"] = false
	c.AppliedMoves["m2"] = MoveResult{}
	c.MoveJournal[0] = "x"
	c.AuxState[0] = '['
	*c.TurnStartedAt = start.Add(time.Hour)

	assert.Equal(t, "alice", s.Participants[0])
	assert.Equal(t, 1, s.MissedTurns["alice"])
	assert.True(t, s.ReadyFlags["alice"])
	assert.Len(t, s.AppliedMoves, 1)
	assert.Equal(t, "m1", s.MoveJournal[0])
	assert.Equal(t, `{"a":1}`, string(s.AuxState))
	assert.Equal(t, start, *s.TurnStartedAt)
}

func TestErrorCodes(t *testing.T) {
	err := fmt.Errorf("apply: %w", Errorf(CodeStaleMove, "turn %d", 4))
	assert.Equal(t, CodeStaleMove, CodeOf(err))
	assert.ErrorIs(t, err, NewError(CodeStaleMove))
	assert.NotErrorIs(t, err, NewError(CodeTurnMismatch))
	assert.Equal(t, "stale_move: turn 4", errors.Unwrap(err).Error())
	assert.Equal(t, "room_full", NewError(CodeRoomFull).Error())

	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))

	assert.Equal(t, ClassInput, CodeInvalidInput.Class())
	assert.Equal(t, ClassConsistency, CodeNotAParticipant.Class())
	assert.Equal(t, ClassTransient, CodeStoreUnavailable.Class())
	assert.Equal(t, ClassTerminal, CodeInstructionMissing.Class())
	assert.Equal(t, ClassUnknown, Code("from_the_future").Class())
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := SessionToken{ExpiresAt: exp}
	assert.False(t, tok.Expired(exp.Add(-time.Nanosecond)))
	assert.True(t, tok.Expired(exp))
}
