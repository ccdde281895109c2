package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptKind separates win payouts from draw refunds
type ReceiptKind string

const (
	ReceiptWin    ReceiptKind = "win"
	ReceiptRefund ReceiptKind = "refund"
)

// ReceiptState tracks a claimed settlement until the payout is confirmed
type ReceiptState string

const (
	ReceiptPending ReceiptState = "pending"
	ReceiptDone    ReceiptState = "done"
)

// SettlementReceipt is the durable marker preventing a second payout
type SettlementReceipt struct {
	RoomID        string          `json:"roomId"`
	Kind          ReceiptKind     `json:"kind"`
	State         ReceiptState    `json:"state"`
	Winner        string          `json:"winner,omitempty"`
	Reason        WinReason       `json:"reason,omitempty"`
	Signature     string          `json:"signature,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	AlreadyClosed bool            `json:"alreadyClosed,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// SettleResult is the settlement response shape
type SettleResult struct {
	Success         bool   `json:"success"`
	Signature       string `json:"signature,omitempty"`
	AlreadySettled  bool   `json:"alreadySettled,omitempty"`
	AlreadyClosed   bool   `json:"alreadyClosed,omitempty"`
	AlreadyRefunded bool   `json:"alreadyRefunded,omitempty"`
	Error           Code   `json:"error,omitempty"`
}
