package store

import (
	"context"
	"errors"
	"time"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// ErrNoReceipt is returned when no settlement receipt exists for a room and kind
var ErrNoReceipt = errors.New("receipt not found")

// UpdateFunc mutates a private copy of the session while the record lock is held.
// Returning an error discards the copy; nothing is written.
type UpdateFunc func(s *models.GameSession) error

// SessionStore is the facade over the transactionally consistent session record.
// Update is the only mutation path for existing rooms and is serialized per room.
type SessionStore interface {
	Create(ctx context.Context, s *models.GameSession) error
	Get(ctx context.Context, roomID string) (*models.GameSession, error)
	Update(ctx context.Context, roomID string, fn UpdateFunc) (*models.GameSession, error)
	RoomIDs(ctx context.Context) ([]string, error)
}

// TokenStore keeps server-issued session tokens
type TokenStore interface {
	PutToken(ctx context.Context, t models.SessionToken) error
	GetToken(ctx context.Context, token string) (models.SessionToken, error)
	PurgeTokens(ctx context.Context, now time.Time) (int, error)
}

// ReceiptStore is the durable settlement ledger. A receipt is claimed as
// pending before any payout and completed once the payout is confirmed.
type ReceiptStore interface {
	// Claim inserts r as pending unless a receipt for (RoomID, Kind) exists.
	// When it exists, the stored receipt is returned with claimed=false.
	Claim(ctx context.Context, r models.SettlementReceipt) (existing models.SettlementReceipt, claimed bool, err error)
	Complete(ctx context.Context, roomID string, kind models.ReceiptKind, signature string, closed bool) (models.SettlementReceipt, error)
	Release(ctx context.Context, roomID string, kind models.ReceiptKind) error
	Receipt(ctx context.Context, roomID string, kind models.ReceiptKind) (models.SettlementReceipt, error)
}

func notFound(roomID string) error {
	return models.Errorf(models.CodeRoomNotFound, "room %s", roomID)
}

func unavailable(op string, err error) error {
	return &unavailableError{op: op, err: err}
}

type unavailableError struct {
	op  string
	err error
}

func (e *unavailableError) Error() string { return "store " + e.op + ": " + e.err.Error() }
func (e *unavailableError) Unwrap() []error {
	return []error{e.err, models.NewError(models.CodeStoreUnavailable)}
}
