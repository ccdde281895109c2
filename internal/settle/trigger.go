// Package settle fires the win settlement of a finished match from the
// observer side. The local guard only saves calls; the server receipt is
// what keeps a payout from happening twice.
package settle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/api"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/client"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// DrawSentinel is the winner value that marks a drawn match
const DrawSentinel = "draw"

// DefaultGuardSize bounds how many fired rooms the guard remembers
const DefaultGuardSize = 1024

var (
	// ErrDraw is returned for drawn matches; they take the refund path
	ErrDraw = errors.New("settle: draws are refunded, not settled")
	// ErrNoWinner is returned when no winner could be resolved
	ErrNoWinner = errors.New("settle: no winner")
)

// Settler is the settlement RPC. *client.Client implements it.
type Settler interface {
	Settle(ctx context.Context, req api.SettleRequest) (api.SettleResponse, error)
}

var _ Settler = (*client.Client)(nil)

// Roles maps symbolic roles ("home", "away", "me", "opponent", "white"...)
// to wallets
type Roles map[string]string

// ResolveWinner turns a raw wallet, a role from roles, or the draw
// sentinel into the wallet to settle for
func ResolveWinner(winner string, roles Roles) (string, error) {
	w := strings.TrimSpace(winner)
	switch {
	case w == "":
		return "", ErrNoWinner
	case strings.EqualFold(w, DrawSentinel):
		return "", ErrDraw
	}
	if wallet, ok := roles[strings.ToLower(w)]; ok {
		if wallet == "" {
			return "", fmt.Errorf("%w: role %q is unassigned", ErrNoWinner, w)
		}
		return wallet, nil
	}
	return w, nil
}

type guardKey struct {
	roomID string
	winner string
}

// Trigger fires settlement once per (room, winner)
type Trigger struct {
	api   Settler
	guard *lru.Cache[guardKey, struct{}]
	group singleflight.Group
	log   *zap.Logger
}

// NewTrigger creates a trigger remembering up to size fired rooms
func NewTrigger(s Settler, size int, log *zap.Logger) (*Trigger, error) {
	if size <= 0 {
		size = DefaultGuardSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	guard, err := lru.New[guardKey, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("settlement guard: %w", err)
	}
	return &Trigger{api: s, guard: guard, log: log}, nil
}

// OnTerminal is called whenever an observer sees the session. It settles
// the first time a finished staked match is seen for a resolved winner and
// reports whether it fired. declared overrides the recorded winner and may
// be a role from roles; "" uses the session's winner.
func (t *Trigger) OnTerminal(ctx context.Context, s *api.SessionView, declared string, roles Roles) (api.SettleResponse, bool, error) {
	if s == nil || s.Status != models.StatusFinished || !s.Mode.Staked() {
		return api.SettleResponse{}, false, nil
	}
	if s.WinReason == models.ReasonDraw {
		return api.SettleResponse{}, false, ErrDraw
	}
	if declared == "" {
		declared = s.Winner
	}
	winner, err := ResolveWinner(declared, roles)
	if err != nil {
		return api.SettleResponse{}, false, err
	}

	if found, _ := t.guard.ContainsOrAdd(guardKey{s.RoomID, winner}, struct{}{}); found {
		return api.SettleResponse{}, false, nil
	}
	res, err := t.settle(ctx, s.RoomID, winner, s.WinReason)
	return res, true, err
}

// Retry re-invokes settlement on request, regardless of the guard. There
// is no automatic retry: a failed automatic attempt waits for this.
func (t *Trigger) Retry(ctx context.Context, roomID, winner string, reason models.WinReason, roles Roles) (api.SettleResponse, error) {
	w, err := ResolveWinner(winner, roles)
	if err != nil {
		return api.SettleResponse{}, err
	}
	t.guard.Add(guardKey{roomID, w}, struct{}{})
	return t.settle(ctx, roomID, w, reason)
}

func (t *Trigger) settle(ctx context.Context, roomID, winner string, reason models.WinReason) (api.SettleResponse, error) {
	log := t.log.With(logging.Room(roomID), logging.Wallet(winner))
	v, err, shared := t.group.Do(roomID+"\x00"+winner, func() (any, error) {
		return t.api.Settle(ctx, api.SettleRequest{RoomID: roomID, WinnerWallet: winner, Reason: reason})
	})
	res, _ := v.(api.SettleResponse)
	switch {
	case err != nil:
		log.Warn("settlement failed", zap.String("code", string(models.CodeOf(err))),
			zap.Bool("transport", client.IsTransport(err)), zap.Error(err))
	case res.AlreadySettled || res.AlreadyClosed:
		log.Info("settlement already done", zap.Bool("alreadyClosed", res.AlreadyClosed), zap.Bool("shared", shared))
	default:
		log.Info("settled", zap.String("signature", res.Signature), zap.Bool("shared", shared))
	}
	return res, err
}
