package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// QuorumState is the readiness state of one participant's view of a room
type QuorumState string

const (
	QuorumNotIdentified  QuorumState = "not_identified"
	QuorumAwaitingAccept QuorumState = "awaiting_accept"
	QuorumBothReady      QuorumState = "both_ready"
)

// QuorumStateOf derives the gate state for wallet from server state only
func QuorumStateOf(s *models.GameSession, wallet string) QuorumState {
	if wallet == "" || !s.IsParticipant(wallet) {
		return QuorumNotIdentified
	}
	if s.Status != models.StatusWaiting || s.Acceptances().BothAccepted {
		return QuorumBothReady
	}
	return QuorumAwaitingAccept
}

// AcceptRules marks wallet ready. It is idempotent: repeated calls leave the
// count unchanged. When the last required acceptance lands on a full room
// the match starts and turn 1 goes to the first seat.
func (c *Coordinator) AcceptRules(ctx context.Context, roomID, wallet string) (models.Acceptances, error) {
	if roomID == "" || wallet == "" {
		return models.Acceptances{}, models.Errorf(models.CodeInvalidInput, "roomId and wallet required")
	}

	started := false
	s, err := c.update(ctx, roomID, func(s *models.GameSession) error {
		if !s.IsParticipant(wallet) {
			return models.Errorf(models.CodeNotAParticipant, "%s is not seated in %s", wallet, s.RoomID)
		}
		switch s.Status {
		case models.StatusWaiting:
		case models.StatusActive:
			return errUnchanged
		default:
			return statusError(s)
		}
		if s.ReadyFlags[wallet] && !canStart(s) {
			return errUnchanged
		}
		ready(s, wallet)
		if canStart(s) {
			startMatch(s, c.clock.Now())
			started = true
		}
		return nil
	})
	if err != nil {
		return models.Acceptances{}, err
	}
	if started {
		c.metrics.MatchStarted(string(s.Mode))
		c.log.Info("quorum reached, match started", logging.Room(roomID),
			zap.String("first", s.CurrentTurnWallet), zap.Int("players", len(s.Participants)))
	}
	return s.Acceptances(), nil
}
