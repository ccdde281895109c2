package models

import (
	"encoding/json"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// GameSession is the single source of truth for one room.
// It is never deleted; finished sessions double as the audit trail.
type GameSession struct {
	RoomID            string          `json:"roomId"`
	Mode              GameMode        `json:"mode"`
	Status            GameStatus      `json:"status"`
	MaxPlayers        int             `json:"maxPlayers"`
	Participants      []string        `json:"participants"`
	CurrentTurnWallet string          `json:"currentTurnWallet,omitempty"`
	TurnStartedAt     *time.Time      `json:"turnStartedAt,omitempty"`
	TurnTimeSeconds   int             `json:"turnTimeSeconds"`
	TurnNumber        int             `json:"turnNumber"`
	MissedTurns       map[string]int  `json:"missedTurns,omitempty"`
	ReadyFlags        map[string]bool `json:"readyFlags,omitempty"`
	Winner            string          `json:"winner,omitempty"`
	WinReason         WinReason       `json:"winReason,omitempty"`
	StakeAmount       decimal.Decimal `json:"stakeAmount"`

	AuxState     json.RawMessage       `json:"auxState,omitempty"` // latest intermediate move payload
	MoveCount    int                   `json:"moveCount"`
	AppliedMoves map[string]MoveResult `json:"appliedMoves,omitempty"`
	MoveJournal  []string              `json:"moveJournal,omitempty"` // clientMoveId insertion order

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Revision   int64      `json:"revision"`
}

// Acceptances is the quorum view derived from server state only
type Acceptances struct {
	AcceptedCount int  `json:"acceptedCount"`
	RequiredCount int  `json:"requiredCount"`
	BothAccepted  bool `json:"bothAccepted"`
}

// IsParticipant checks roster membership
func (s *GameSession) IsParticipant(wallet string) bool {
	return wallet != "" && slices.Contains(s.Participants, wallet)
}

// Full reports whether every seat is taken
func (s *GameSession) Full() bool {
	return len(s.Participants) >= s.MaxPlayers
}

// IsTurnOf reports whether wallet currently holds the turn
func (s *GameSession) IsTurnOf(wallet string) bool {
	return s.Status == StatusActive && wallet != "" && s.CurrentTurnWallet == wallet
}

// NextAfter returns the participant that follows wallet in seating order.
// Returns "" when wallet is not seated.
func (s *GameSession) NextAfter(wallet string) string {
	i := slices.Index(s.Participants, wallet)
	if i < 0 || len(s.Participants) == 0 {
		return ""
	}
	return s.Participants[(i+1)%len(s.Participants)]
}

// Deadline is the instant the open turn lapses, grace excluded.
// ok is false when there is no open timed turn.
func (s *GameSession) Deadline() (deadline time.Time, ok bool) {
	if s.TurnStartedAt == nil || s.TurnTimeSeconds <= 0 {
		return time.Time{}, false
	}
	return s.TurnStartedAt.Add(time.Duration(s.TurnTimeSeconds) * time.Second), true
}

// Acceptances counts ready flags of seated participants against MaxPlayers
func (s *GameSession) Acceptances() Acceptances {
	accepted := 0
	for _, p := range s.Participants {
		if s.ReadyFlags[p] {
			accepted++
		}
	}
	return Acceptances{
		AcceptedCount: accepted,
		RequiredCount: s.MaxPlayers,
		BothAccepted:  s.MaxPlayers > 0 && accepted >= s.MaxPlayers,
	}
}

// Clone returns a deep copy safe to mutate
func (s *GameSession) Clone() *GameSession {
	c := *s
	c.Participants = slices.Clone(s.Participants)
	c.MissedTurns = maps.Clone(s.MissedTurns)
	c.ReadyFlags = maps.Clone(s.ReadyFlags)
	c.AppliedMoves = maps.Clone(s.AppliedMoves)
	c.MoveJournal = slices.Clone(s.MoveJournal)
	c.AuxState = slices.Clone(s.AuxState)
	if s.TurnStartedAt != nil {
		t := *s.TurnStartedAt
		c.TurnStartedAt = &t
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
