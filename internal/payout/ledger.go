package payout

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LedgerPayer records payouts in process and signs them with random ids.
// Paying the same room twice reports ErrAccountClosed the way an escrow
// program does once its account is drained.
type LedgerPayer struct {
	mu       sync.Mutex
	paid     map[string]string
	refunded map[string]string
	orders   []Order
	refunds  []RefundOrder

	// RefundDisabled makes Refund report ErrUnavailable
	RefundDisabled bool
}

// NewLedgerPayer creates an empty payer
func NewLedgerPayer() *LedgerPayer {
	return &LedgerPayer{paid: make(map[string]string), refunded: make(map[string]string)}
}

// Payout implements Payer
func (p *LedgerPayer) Payout(ctx context.Context, o Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, done := p.paid[o.RoomID]; done {
		return "", ErrAccountClosed
	}
	sig := uuid.NewString()
	p.paid[o.RoomID] = sig
	p.orders = append(p.orders, o)
	return sig, nil
}

// Refund implements Payer
func (p *LedgerPayer) Refund(ctx context.Context, o RefundOrder) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RefundDisabled {
		return "", ErrUnavailable
	}
	if _, done := p.refunded[o.RoomID]; done {
		return "", ErrAccountClosed
	}
	sig := uuid.NewString()
	p.refunded[o.RoomID] = sig
	p.refunds = append(p.refunds, o)
	return sig, nil
}

// Orders returns every executed payout
func (p *LedgerPayer) Orders() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Order(nil), p.orders...)
}

// Refunds returns every executed refund
func (p *LedgerPayer) Refunds() []RefundOrder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]RefundOrder(nil), p.refunds...)
}
