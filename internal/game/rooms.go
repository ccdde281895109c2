package game

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// CreateRoomRequest describes a new room
type CreateRoomRequest struct {
	Creator         string
	Mode            models.GameMode
	MaxPlayers      int
	TurnTimeSeconds int
	Stake           decimal.Decimal
}

// CreateRoom opens a waiting room with the creator in the first seat
func (c *Coordinator) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.GameSession, models.SessionToken, error) {
	if err := validateCreate(req); err != nil {
		return nil, models.SessionToken{}, err
	}
	now := c.clock.Now()
	s := &models.GameSession{
		Mode:            req.Mode,
		Status:          models.StatusWaiting,
		MaxPlayers:      req.MaxPlayers,
		Participants:    []string{req.Creator},
		TurnTimeSeconds: req.TurnTimeSeconds,
		StakeAmount:     req.Stake,
		ReadyFlags:      map[string]bool{},
		MissedTurns:     map[string]int{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !req.Mode.RequiresQuorum() {
		ready(s, req.Creator)
	}
	if err := createWithUniqueCode(ctx, c.sessions, s); err != nil {
		return nil, models.SessionToken{}, err
	}
	tok, err := c.issueToken(ctx, s.RoomID, req.Creator)
	if err != nil {
		return nil, models.SessionToken{}, err
	}
	c.log.Info("room created", logging.Room(s.RoomID), zap.String("mode", string(s.Mode)),
		zap.Int("maxPlayers", s.MaxPlayers))
	c.notify.SessionChanged(s)
	return s, tok, nil
}

func validateCreate(req CreateRoomRequest) error {
	switch {
	case req.Creator == "":
		return models.Errorf(models.CodeInvalidInput, "creator required")
	case !req.Mode.Valid():
		return models.Errorf(models.CodeInvalidInput, "unknown mode %q", req.Mode)
	case req.MaxPlayers < MinPlayers || req.MaxPlayers > MaxPlayers:
		return models.Errorf(models.CodeInvalidInput, "maxPlayers must be between %d and %d", MinPlayers, MaxPlayers)
	case req.TurnTimeSeconds < 0:
		return models.Errorf(models.CodeInvalidInput, "turnTimeSeconds must not be negative")
	case req.Stake.IsNegative():
		return models.Errorf(models.CodeInvalidInput, "stake must not be negative")
	case req.Mode.Staked() && !req.Stake.IsPositive():
		return models.Errorf(models.CodeInvalidInput, "%s rooms need a stake", req.Mode)
	case !req.Mode.Staked() && !req.Stake.IsZero():
		return models.Errorf(models.CodeInvalidInput, "%s rooms cannot carry a stake", req.Mode)
	}
	return nil
}

// JoinRoom seats wallet in a waiting room and issues its session token.
// A wallet already seated gets a new token only when token is a live token
// for that seat. Casual and free rooms start as soon as the last seat fills.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID, wallet, token string) (*models.GameSession, models.SessionToken, error) {
	if roomID == "" || wallet == "" {
		return nil, models.SessionToken{}, models.Errorf(models.CodeInvalidInput, "roomId and wallet required")
	}
	started, seated := false, false
	s, err := c.update(ctx, roomID, func(s *models.GameSession) error {
		if s.IsParticipant(wallet) {
			seated = true
			return errUnchanged
		}
		if s.Status != models.StatusWaiting {
			return statusError(s)
		}
		if s.Full() {
			return models.Errorf(models.CodeRoomFull, "room %s has %d seats", s.RoomID, s.MaxPlayers)
		}
		s.Participants = append(s.Participants, wallet)
		if !s.Mode.RequiresQuorum() {
			ready(s, wallet)
		}
		if canStart(s) {
			startMatch(s, c.clock.Now())
			started = true
		}
		return nil
	})
	if err != nil {
		return nil, models.SessionToken{}, err
	}
	if seated {
		if err := c.Authorize(ctx, token, roomID, wallet); err != nil {
			return nil, models.SessionToken{}, err
		}
	}
	if started {
		c.metrics.MatchStarted(string(s.Mode))
	}
	tok, err := c.issueToken(ctx, roomID, wallet)
	if err != nil {
		return nil, models.SessionToken{}, err
	}
	return s, tok, nil
}

// Resign ends an active match; the next seat after the resigning wallet wins
func (c *Coordinator) Resign(ctx context.Context, roomID, wallet string) (*models.GameSession, error) {
	if roomID == "" || wallet == "" {
		return nil, models.Errorf(models.CodeInvalidInput, "roomId and wallet required")
	}
	return c.update(ctx, roomID, func(s *models.GameSession) error {
		if s.Status != models.StatusActive {
			return statusError(s)
		}
		if !s.IsParticipant(wallet) {
			return models.Errorf(models.CodeNotAParticipant, "%s is not seated in %s", wallet, s.RoomID)
		}
		finish(s, s.NextAfter(wallet), models.ReasonResign, c.clock.Now())
		return nil
	})
}

// CancelRoom cancels a waiting room. Only the creator may cancel.
func (c *Coordinator) CancelRoom(ctx context.Context, roomID, wallet string) (*models.GameSession, error) {
	if roomID == "" || wallet == "" {
		return nil, models.Errorf(models.CodeInvalidInput, "roomId and wallet required")
	}
	return c.update(ctx, roomID, func(s *models.GameSession) error {
		if len(s.Participants) == 0 || s.Participants[0] != wallet {
			return models.Errorf(models.CodeUnauthorized, "only the creator may cancel %s", s.RoomID)
		}
		if s.Status == models.StatusCancelled {
			return errUnchanged
		}
		if s.Status != models.StatusWaiting {
			return statusError(s)
		}
		s.Status = models.StatusCancelled
		return nil
	})
}

// CancelStale cancels every waiting room created before cutoff and reports
// how many were cancelled
func (c *Coordinator) CancelStale(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := c.sessions.RoomIDs(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		cancelled := false
		_, err := c.update(ctx, id, func(s *models.GameSession) error {
			if s.Status != models.StatusWaiting || !s.CreatedAt.Before(cutoff) {
				return errUnchanged
			}
			s.Status = models.StatusCancelled
			cancelled = true
			return nil
		})
		if err != nil {
			c.log.Warn("stale room sweep failed", logging.Room(id), zap.Error(err))
			continue
		}
		if cancelled {
			n++
		}
	}
	return n, nil
}

func (c *Coordinator) issueToken(ctx context.Context, roomID, wallet string) (models.SessionToken, error) {
	tok := models.SessionToken{
		Token:     uuid.NewString(),
		RoomID:    roomID,
		Wallet:    wallet,
		ExpiresAt: c.clock.Now().Add(c.opts.TokenTTL),
	}
	if err := c.tokens.PutToken(ctx, tok); err != nil {
		return models.SessionToken{}, err
	}
	return tok, nil
}

// Authorize checks that token was issued for wallet in roomID and is live
func (c *Coordinator) Authorize(ctx context.Context, token, roomID, wallet string) error {
	if token == "" {
		return models.Errorf(models.CodeUnauthorized, "session token required")
	}
	t, err := c.tokens.GetToken(ctx, token)
	if err != nil {
		return err
	}
	if t.Expired(c.clock.Now()) {
		return models.Errorf(models.CodeUnauthorized, "session token expired")
	}
	if t.RoomID != roomID || (wallet != "" && t.Wallet != wallet) {
		return models.Errorf(models.CodeUnauthorized, "session token not valid for this seat")
	}
	return nil
}

// PurgeTokens drops expired session tokens
func (c *Coordinator) PurgeTokens(ctx context.Context) (int, error) {
	return c.tokens.PurgeTokens(ctx, c.clock.Now())
}

// SeatOf returns the seat index of wallet or -1
func SeatOf(s *models.GameSession, wallet string) int {
	return slices.Index(s.Participants, wallet)
}
