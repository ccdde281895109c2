package game

import (
	"context"
	"encoding/json"
	"slices"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// MoveRequest is one submission to the move gateway. TurnNumber is the turn
// the client believes it is playing; 0 means the current turn.
type MoveRequest struct {
	RoomID       string
	Wallet       string
	MoveData     json.RawMessage
	ClientMoveID string
	TurnNumber   int
}

// SubmitMove applies a move atomically against concurrent submissions for
// the same room. A move whose ClientMoveID was already applied returns the
// recorded result without touching the session. A not_a_participant
// rejection triggers one roster resynchronization and a single retry.
func (c *Coordinator) SubmitMove(ctx context.Context, req MoveRequest) (models.MoveResult, error) {
	if err := validateMove(req); err != nil {
		c.metrics.Move(string(models.CodeOf(err)))
		return models.MoveResult{}, err
	}

	res, err := c.applyMove(ctx, req)
	if models.CodeOf(err) == models.CodeNotAParticipant && c.resyncRoster(ctx, req.RoomID, req.Wallet) {
		res, err = c.applyMove(ctx, req)
	}
	c.metrics.Move(string(models.CodeOf(err)))
	return res, err
}

func validateMove(req MoveRequest) error {
	if req.RoomID == "" {
		return models.Errorf(models.CodeInvalidInput, "roomId required")
	}
	if req.Wallet == "" {
		return models.Errorf(models.CodeInvalidInput, "wallet required")
	}
	if len(req.MoveData) == 0 || !json.Valid(req.MoveData) {
		return models.Errorf(models.CodeInvalidInput, "moveData must be valid JSON")
	}
	if req.TurnNumber < 0 {
		return models.Errorf(models.CodeInvalidInput, "turnNumber must not be negative")
	}
	return nil
}

func (c *Coordinator) applyMove(ctx context.Context, req MoveRequest) (models.MoveResult, error) {
	var result models.MoveResult
	key := journalKey(req.Wallet, req.ClientMoveID)
	_, err := c.update(ctx, req.RoomID, func(s *models.GameSession) error {
		if key != "" {
			if prior, ok := s.AppliedMoves[key]; ok {
				result = prior
				return errUnchanged
			}
		}
		if s.Status != models.StatusActive {
			return statusError(s)
		}
		if !s.IsParticipant(req.Wallet) {
			return models.Errorf(models.CodeNotAParticipant, "%s is not seated in %s", req.Wallet, s.RoomID)
		}
		if req.TurnNumber != 0 && req.TurnNumber < s.TurnNumber {
			return models.Errorf(models.CodeStaleMove, "turn %d already closed, current %d", req.TurnNumber, s.TurnNumber)
		}
		if req.TurnNumber > s.TurnNumber {
			return models.Errorf(models.CodeTurnMismatch, "turn %d has not started, current %d", req.TurnNumber, s.TurnNumber)
		}
		if s.CurrentTurnWallet != req.Wallet {
			return models.Errorf(models.CodeTurnMismatch, "turn %d belongs to %s", s.TurnNumber, s.CurrentTurnWallet)
		}

		move := models.Move{
			ClientMoveID: req.ClientMoveID,
			Wallet:       req.Wallet,
			MoveData:     req.MoveData,
			TurnNumber:   s.TurnNumber,
		}
		verdict, err := c.rules.Evaluate(s, move)
		if err != nil {
			return err
		}

		now := c.clock.Now()
		s.MoveCount++
		clearMisses(s, req.Wallet)
		result = models.MoveResult{Applied: true}
		switch {
		case verdict.Outcome != nil && verdict.Outcome.Draw:
			finish(s, "", models.ReasonDraw, now)
			result.Finished = true
		case verdict.Outcome != nil:
			finish(s, verdict.Outcome.Winner, models.ReasonNormal, now)
			result.Finished = true
		case verdict.TurnEnding:
			assignTurn(s, s.NextAfter(req.Wallet), now)
			result.TurnSwitched = true
		default:
			s.AuxState = append(json.RawMessage(nil), req.MoveData...)
		}
		result.TurnNumber = s.TurnNumber
		journal(s, key, result)
		return nil
	})
	if err != nil {
		return models.MoveResult{}, err
	}
	return result, nil
}

// resyncRoster merges the authoritative roster into the session when it
// knows wallet. Seats the store holds for wallets the roster does not know
// are replaced in order; a waiting room also takes new joiners up to
// MaxPlayers. Reports whether a retry is worthwhile.
func (c *Coordinator) resyncRoster(ctx context.Context, roomID, wallet string) bool {
	if c.roster == nil {
		return false
	}
	log := c.log.With(logging.Room(roomID), logging.Wallet(wallet))
	authoritative, err := c.roster.Participants(ctx, roomID)
	if err != nil {
		log.Warn("roster resync failed", zap.Error(err))
		return false
	}
	if !slices.Contains(authoritative, wallet) {
		return false
	}
	c.metrics.Resync()

	seated := false
	_, err = c.update(ctx, roomID, func(s *models.GameSession) error {
		if s.IsParticipant(wallet) {
			seated = true
			return errUnchanged
		}
		var missing []string
		for _, w := range authoritative {
			if !s.IsParticipant(w) {
				missing = append(missing, w)
			}
		}
		for i, p := range s.Participants {
			if len(missing) == 0 {
				break
			}
			if slices.Contains(authoritative, p) {
				continue
			}
			replacement := missing[0]
			missing = missing[1:]
			s.Participants[i] = replacement
			if s.CurrentTurnWallet == p {
				s.CurrentTurnWallet = replacement
			}
			if s.MissedTurns != nil {
				s.MissedTurns[replacement] = s.MissedTurns[p]
				delete(s.MissedTurns, p)
			}
			if s.ReadyFlags != nil {
				s.ReadyFlags[replacement] = s.ReadyFlags[p]
				delete(s.ReadyFlags, p)
			}
		}
		if s.Status == models.StatusWaiting {
			for len(missing) > 0 && !s.Full() {
				s.Participants = append(s.Participants, missing[0])
				if !s.Mode.RequiresQuorum() {
					ready(s, missing[0])
				}
				missing = missing[1:]
			}
		}
		if !s.IsParticipant(wallet) {
			return errUnchanged
		}
		seated = true
		log.Info("roster resynchronized", zap.Strings("participants", s.Participants))
		return nil
	})
	if err != nil {
		log.Warn("roster merge failed", zap.Error(err))
		return false
	}
	return seated
}
