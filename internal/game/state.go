package game

import (
	"time"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// Transitions on a session copy held under the record lock. Each one keeps
// CurrentTurnWallet, TurnStartedAt and TurnNumber moving together.

// startMatch activates a full room and hands turn 1 to the first seat
func startMatch(s *models.GameSession, now time.Time) {
	s.Status = models.StatusActive
	s.MissedTurns = make(map[string]int, len(s.Participants))
	for _, p := range s.Participants {
		s.MissedTurns[p] = 0
	}
	s.TurnNumber = 0
	assignTurn(s, s.Participants[0], now)
	s.UpdatedAt = now
}

// assignTurn hands the turn to wallet and opens a new turn number
func assignTurn(s *models.GameSession, wallet string, now time.Time) {
	t := now
	s.CurrentTurnWallet = wallet
	s.TurnStartedAt = &t
	s.TurnNumber++
	s.AuxState = nil
}

// finish closes the match. An empty winner with reason draw is a drawn match.
func finish(s *models.GameSession, winner string, reason models.WinReason, now time.Time) {
	t := now
	s.Status = models.StatusFinished
	s.Winner = winner
	s.WinReason = reason
	s.CurrentTurnWallet = ""
	s.TurnStartedAt = nil
	s.FinishedAt = &t
	s.UpdatedAt = now
}

// clearMisses resets the consecutive lapse count of wallet
func clearMisses(s *models.GameSession, wallet string) {
	if s.MissedTurns == nil {
		s.MissedTurns = make(map[string]int)
	}
	s.MissedTurns[wallet] = 0
}

// lapsed reports whether the open turn is past its deadline plus grace
func lapsed(s *models.GameSession, now time.Time) bool {
	deadline, ok := s.Deadline()
	if !ok {
		return false
	}
	return now.After(deadline.Add(Grace))
}

// ready marks wallet as having accepted the rules
func ready(s *models.GameSession, wallet string) {
	if s.ReadyFlags == nil {
		s.ReadyFlags = make(map[string]bool)
	}
	s.ReadyFlags[wallet] = true
}

// canStart reports whether a waiting room has its full roster and quorum
func canStart(s *models.GameSession) bool {
	return s.Status == models.StatusWaiting && s.Full() && s.Acceptances().BothAccepted
}

// journalKey scopes a client move id to the wallet that sent it
func journalKey(wallet, clientMoveID string) string {
	if clientMoveID == "" {
		return ""
	}
	return wallet + "/" + clientMoveID
}

// journal records the result of an applied move under key, evicting the
// oldest entries past MoveJournalSize
func journal(s *models.GameSession, key string, r models.MoveResult) {
	if key == "" {
		return
	}
	if s.AppliedMoves == nil {
		s.AppliedMoves = make(map[string]models.MoveResult)
	}
	s.AppliedMoves[key] = r
	s.MoveJournal = append(s.MoveJournal, key)
	for len(s.MoveJournal) > MoveJournalSize {
		delete(s.AppliedMoves, s.MoveJournal[0])
		s.MoveJournal = s.MoveJournal[1:]
	}
}

// statusError maps a non-active status to the code reported to movers
func statusError(s *models.GameSession) error {
	if s.Status.Terminal() {
		return models.Errorf(models.CodeSessionFinished, "room %s is %s", s.RoomID, s.Status)
	}
	return models.Errorf(models.CodeSessionNotActive, "room %s is %s", s.RoomID, s.Status)
}
