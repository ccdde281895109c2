// Package payout is the port to the external settlement authority. It only
// carries an order and returns a signature; transaction construction is
// someone else's job.
package payout

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountClosed means a previous call already completed the payout
	// and the escrow account no longer exists
	ErrAccountClosed = errors.New("escrow account already closed")

	// ErrUnavailable means the required settlement capability does not exist
	ErrUnavailable = errors.New("settlement instruction unavailable")
)

// Order is a win payout request
type Order struct {
	RoomID string          `json:"roomId"`
	Winner string          `json:"winner"`
	Reason string          `json:"reason"`
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
}

// RefundOrder returns each stake of a drawn match
type RefundOrder struct {
	RoomID       string          `json:"roomId"`
	Participants []string        `json:"participants"`
	Stake        decimal.Decimal `json:"stake"`
}

// Payer executes payouts and returns an external signature
type Payer interface {
	Payout(ctx context.Context, o Order) (string, error)
	Refund(ctx context.Context, o RefundOrder) (string, error)
}
