package game

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/payout"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/store"
)

var bpsDivisor = decimal.NewFromInt(10_000)

// Settle pays the pot of a finished staked match to its recorded winner.
// A room is paid at most once: the receipt is claimed as pending before the
// payer is called, and later calls observe it and report alreadySettled.
func (c *Coordinator) Settle(ctx context.Context, roomID, winner string, reason models.WinReason) (models.SettleResult, error) {
	res, err := c.settle(ctx, roomID, winner, reason)
	c.metrics.Settlement(string(models.ReceiptWin), settlementOutcome(res, err))
	return res, err
}

func (c *Coordinator) settle(ctx context.Context, roomID, winner string, reason models.WinReason) (models.SettleResult, error) {
	if roomID == "" || winner == "" {
		return models.SettleResult{}, models.Errorf(models.CodeInvalidInput, "roomId and winnerWallet required")
	}
	if !reason.Settleable() {
		return models.SettleResult{}, models.Errorf(models.CodeInvalidInput, "reason must be normal, resign or timeout")
	}
	log := c.log.With(logging.Room(roomID))

	if res, done, err := c.observeReceipt(ctx, roomID, models.ReceiptWin, winner); done || err != nil {
		return res, err
	}

	s, err := c.sessions.Get(ctx, roomID)
	if err != nil {
		return models.SettleResult{}, err
	}
	switch {
	case !s.Mode.Staked():
		return models.SettleResult{}, models.Errorf(models.CodeNotStaked, "%s rooms are not settled", s.Mode)
	case s.Status != models.StatusFinished:
		return models.SettleResult{}, models.Errorf(models.CodeNotFinished, "room %s is %s", roomID, s.Status)
	case s.WinReason == models.ReasonDraw:
		return models.SettleResult{}, models.Errorf(models.CodeDrawNotSettleable, "drawn rooms are refunded")
	case s.Winner != winner:
		return models.SettleResult{}, models.Errorf(models.CodeWinnerMismatch, "room %s was not won by %s", roomID, winner)
	}
	if reason != s.WinReason {
		log.Warn("settle reason differs from recorded reason, settling recorded",
			zap.String("requested", string(reason)), zap.String("recorded", string(s.WinReason)))
	}

	pot := s.StakeAmount.Mul(decimal.NewFromInt(int64(len(s.Participants))))
	fee := pot.Mul(decimal.NewFromInt(int64(c.opts.FeeBps))).Div(bpsDivisor)
	order := payout.Order{
		RoomID: roomID,
		Winner: s.Winner,
		Reason: string(s.WinReason),
		Amount: pot.Sub(fee),
		Fee:    fee,
	}

	existing, claimed, err := c.receipts.Claim(ctx, models.SettlementReceipt{
		RoomID:    roomID,
		Kind:      models.ReceiptWin,
		Winner:    s.Winner,
		Reason:    s.WinReason,
		Amount:    order.Amount,
		CreatedAt: c.clock.Now(),
	})
	if err != nil {
		return models.SettleResult{}, err
	}
	if !claimed {
		if err := checkWinner(existing, winner); err != nil {
			return models.SettleResult{}, err
		}
		return receiptResult(existing)
	}

	sig, err := c.pay(ctx, func(ctx context.Context) (string, error) { return c.payout().Payout(ctx, order) })
	return c.finishReceipt(ctx, log, roomID, models.ReceiptWin, sig, err)
}

// RefundDraw returns every stake of a drawn staked match. It is kept apart
// from Settle: a refund pays everyone back while a settlement pays one
// winner, and each has its own receipt.
func (c *Coordinator) RefundDraw(ctx context.Context, roomID string) (models.SettleResult, error) {
	res, err := c.refundDraw(ctx, roomID)
	c.metrics.Settlement(string(models.ReceiptRefund), settlementOutcome(res, err))
	return res, err
}

func (c *Coordinator) refundDraw(ctx context.Context, roomID string) (models.SettleResult, error) {
	if roomID == "" {
		return models.SettleResult{}, models.Errorf(models.CodeInvalidInput, "roomId required")
	}
	log := c.log.With(logging.Room(roomID))

	if res, done, err := c.observeReceipt(ctx, roomID, models.ReceiptRefund, ""); done || err != nil {
		return res, err
	}

	s, err := c.sessions.Get(ctx, roomID)
	if err != nil {
		return models.SettleResult{}, err
	}
	switch {
	case !s.Mode.Staked():
		return models.SettleResult{}, models.Errorf(models.CodeNotStaked, "%s rooms are not refunded", s.Mode)
	case s.Status != models.StatusFinished:
		return models.SettleResult{}, models.Errorf(models.CodeNotFinished, "room %s is %s", roomID, s.Status)
	case s.WinReason != models.ReasonDraw:
		return models.SettleResult{}, models.Errorf(models.CodeNotADraw, "room %s ended by %s", roomID, s.WinReason)
	}

	order := payout.RefundOrder{
		RoomID:       roomID,
		Participants: append([]string(nil), s.Participants...),
		Stake:        s.StakeAmount,
	}
	existing, claimed, err := c.receipts.Claim(ctx, models.SettlementReceipt{
		RoomID:    roomID,
		Kind:      models.ReceiptRefund,
		Reason:    models.ReasonDraw,
		Amount:    s.StakeAmount.Mul(decimal.NewFromInt(int64(len(s.Participants)))),
		CreatedAt: c.clock.Now(),
	})
	if err != nil {
		return models.SettleResult{}, err
	}
	if !claimed {
		return receiptResult(existing)
	}

	sig, err := c.pay(ctx, func(ctx context.Context) (string, error) { return c.payout().Refund(ctx, order) })
	return c.finishReceipt(ctx, log, roomID, models.ReceiptRefund, sig, err)
}

// observeReceipt short-circuits when a receipt already exists. A win
// receipt only answers for the wallet it paid.
func (c *Coordinator) observeReceipt(ctx context.Context, roomID string, kind models.ReceiptKind, winner string) (models.SettleResult, bool, error) {
	r, err := c.receipts.Receipt(ctx, roomID, kind)
	if errors.Is(err, store.ErrNoReceipt) {
		return models.SettleResult{}, false, nil
	}
	if err != nil {
		return models.SettleResult{}, false, err
	}
	if err := checkWinner(r, winner); err != nil {
		return models.SettleResult{}, true, err
	}
	res, err := receiptResult(r)
	return res, true, err
}

func checkWinner(r models.SettlementReceipt, winner string) error {
	if r.Kind == models.ReceiptWin && r.Winner != winner {
		return models.Errorf(models.CodeWinnerMismatch, "room %s was not won by %s", r.RoomID, winner)
	}
	return nil
}

// receiptResult reports a stored receipt as an idempotent success, or
// settlement_in_progress while its payout is unconfirmed
func receiptResult(r models.SettlementReceipt) (models.SettleResult, error) {
	if r.State != models.ReceiptDone {
		return models.SettleResult{}, models.Errorf(models.CodeSettlementInProgress, "room %s %s payout pending", r.RoomID, r.Kind)
	}
	res := models.SettleResult{Success: true, Signature: r.Signature, AlreadyClosed: r.AlreadyClosed}
	if r.Kind == models.ReceiptRefund {
		res.AlreadyRefunded = true
	} else {
		res.AlreadySettled = true
	}
	return res, nil
}

// pay runs a payer call detached from the caller's cancellation
func (c *Coordinator) pay(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	return fn(context.WithoutCancel(ctx))
}

func (c *Coordinator) payout() payout.Payer {
	if c.payer == nil {
		return unavailablePayer{}
	}
	return c.payer
}

// finishReceipt turns the payer's answer into a completed receipt or
// releases the claim so the attempt can be repeated
func (c *Coordinator) finishReceipt(ctx context.Context, log *zap.Logger, roomID string, kind models.ReceiptKind, sig string, payErr error) (models.SettleResult, error) {
	ctx = context.WithoutCancel(ctx)
	closed := false
	switch {
	case payErr == nil:
	case errors.Is(payErr, payout.ErrAccountClosed):
		closed = true
	default:
		if err := c.receipts.Release(ctx, roomID, kind); err != nil {
			log.Error("release settlement claim", zap.String("kind", string(kind)), zap.Error(err))
		}
		if errors.Is(payErr, payout.ErrUnavailable) {
			return models.SettleResult{}, models.Errorf(models.CodeInstructionMissing, "%s payout is not available yet", kind)
		}
		log.Warn("payout failed", zap.String("kind", string(kind)), zap.Error(payErr))
		return models.SettleResult{}, models.Errorf(models.CodePayoutFailed, "%s payout: %v", kind, payErr)
	}

	r, err := c.receipts.Complete(ctx, roomID, kind, sig, closed)
	if err != nil {
		// The payout went through; the claim stays pending and blocks a
		// second payout until an operator completes it.
		log.Error("payout sent but receipt not completed", zap.String("kind", string(kind)),
			zap.String("signature", sig), zap.Error(err))
		return models.SettleResult{}, err
	}
	log.Info("settled", zap.String("kind", string(kind)), zap.String("signature", r.Signature),
		zap.Bool("alreadyClosed", r.AlreadyClosed))
	return models.SettleResult{Success: true, Signature: r.Signature, AlreadyClosed: r.AlreadyClosed}, nil
}

func settlementOutcome(res models.SettleResult, err error) string {
	switch {
	case err != nil:
		return string(models.CodeOf(err))
	case res.AlreadySettled || res.AlreadyRefunded:
		return "already_settled"
	case res.AlreadyClosed:
		return "already_closed"
	default:
		return ""
	}
}

type unavailablePayer struct{}

func (unavailablePayer) Payout(context.Context, payout.Order) (string, error) {
	return "", payout.ErrUnavailable
}

func (unavailablePayer) Refund(context.Context, payout.RefundOrder) (string, error) {
	return "", payout.ErrUnavailable
}
