package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// EscalationKind is the remedy requested for a lapsed turn
type EscalationKind string

const (
	EscalateSkip    EscalationKind = "skip"
	EscalateForfeit EscalationKind = "forfeit"
)

// EscalationRequest reports that Lapsed let turn TurnNumber run out.
// Reporter is the observing participant. TurnNumber 0 addresses the
// current turn.
type EscalationRequest struct {
	RoomID     string
	Reporter   string
	Lapsed     string
	TurnNumber int
}

// EscalationResult is the outcome of an accepted escalation
type EscalationResult struct {
	TurnSwitched bool   `json:"turnSwitched,omitempty"`
	TurnNumber   int    `json:"turnNumber"`
	MissedTurns  int    `json:"missedTurns"`
	Finished     bool   `json:"finished,omitempty"`
	Winner       string `json:"winner,omitempty"`
}

// SkipTurn records a miss for the lapsed holder and passes the turn on.
// The server clock decides whether the deadline plus grace has passed.
func (c *Coordinator) SkipTurn(ctx context.Context, req EscalationRequest) (EscalationResult, error) {
	return c.escalate(ctx, req, EscalateSkip)
}

// ForfeitTurn ends the match once the lapsed holder reaches MaxMisses;
// the next seat after the lapsed wallet wins with reason timeout.
func (c *Coordinator) ForfeitTurn(ctx context.Context, req EscalationRequest) (EscalationResult, error) {
	return c.escalate(ctx, req, EscalateForfeit)
}

func (c *Coordinator) escalate(ctx context.Context, req EscalationRequest, kind EscalationKind) (EscalationResult, error) {
	res, err := c.applyEscalation(ctx, req, kind)
	c.metrics.Escalation(string(kind), string(models.CodeOf(err)))
	if err != nil {
		return EscalationResult{}, err
	}
	c.log.Info("turn escalated", logging.Room(req.RoomID), zap.String("kind", string(kind)),
		logging.Wallet(req.Lapsed), zap.Int("misses", res.MissedTurns), zap.Bool("finished", res.Finished))
	return res, nil
}

func (c *Coordinator) applyEscalation(ctx context.Context, req EscalationRequest, kind EscalationKind) (EscalationResult, error) {
	if req.RoomID == "" || req.Reporter == "" || req.Lapsed == "" || req.TurnNumber < 0 {
		return EscalationResult{}, models.Errorf(models.CodeInvalidInput, "roomId, reporter and lapsed wallet required")
	}
	if req.Reporter == req.Lapsed {
		return EscalationResult{}, models.Errorf(models.CodeInvalidInput, "a participant cannot escalate their own turn")
	}

	var res EscalationResult
	_, err := c.update(ctx, req.RoomID, func(s *models.GameSession) error {
		if s.Status != models.StatusActive {
			return statusError(s)
		}
		if !s.IsParticipant(req.Reporter) {
			return models.Errorf(models.CodeNotAParticipant, "%s is not seated in %s", req.Reporter, s.RoomID)
		}
		if s.CurrentTurnWallet != req.Lapsed || (req.TurnNumber != 0 && req.TurnNumber != s.TurnNumber) {
			return models.Errorf(models.CodeStaleMove, "turn %d by %s is no longer open", req.TurnNumber, req.Lapsed)
		}
		now := c.clock.Now()
		if !lapsed(s, now) {
			return models.Errorf(models.CodeNotTimedOut, "turn %d has not lapsed", s.TurnNumber)
		}

		misses := s.MissedTurns[req.Lapsed] + 1
		if kind == EscalateForfeit && misses < c.opts.MaxMisses {
			return models.Errorf(models.CodeForfeitNotReached, "%s has %d of %d misses", req.Lapsed, misses, c.opts.MaxMisses)
		}
		if s.MissedTurns == nil {
			s.MissedTurns = make(map[string]int)
		}
		s.MissedTurns[req.Lapsed] = misses
		res.MissedTurns = misses

		if kind == EscalateForfeit {
			winner := s.NextAfter(req.Lapsed)
			finish(s, winner, models.ReasonTimeout, now)
			res.Finished = true
			res.Winner = winner
		} else {
			assignTurn(s, s.NextAfter(req.Lapsed), now)
			res.TurnSwitched = true
		}
		res.TurnNumber = s.TurnNumber
		return nil
	})
	return res, err
}
