package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
)

// receiptRow is the persisted settlement receipt. The composite primary key
// makes a second claim for the same room and kind a no-op insert.
type receiptRow struct {
	RoomID        string          `gorm:"primaryKey;size:32"`
	Kind          string          `gorm:"primaryKey;size:16"`
	State         string          `gorm:"size:16;not null"`
	Winner        string          `gorm:"size:128"`
	Reason        string          `gorm:"size:16"`
	Signature     string          `gorm:"size:256"`
	Amount        decimal.Decimal `gorm:"type:text"`
	AlreadyClosed bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (receiptRow) TableName() string { return "settlement_receipts" }

func (r receiptRow) receipt() models.SettlementReceipt {
	return models.SettlementReceipt{
		RoomID:        r.RoomID,
		Kind:          models.ReceiptKind(r.Kind),
		State:         models.ReceiptState(r.State),
		Winner:        r.Winner,
		Reason:        models.WinReason(r.Reason),
		Signature:     r.Signature,
		Amount:        r.Amount,
		AlreadyClosed: r.AlreadyClosed,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// Ledger is a ReceiptStore backed by SQL through gorm
type Ledger struct {
	db *gorm.DB
}

// OpenLedger opens a sqlite database at dsn and migrates the receipts table
func OpenLedger(dsn string) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return NewLedger(db)
}

// NewLedger wraps an open gorm handle
func NewLedger(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&receiptRow{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Close releases the database handle
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Claim inserts a pending receipt unless one exists
func (l *Ledger) Claim(ctx context.Context, r models.SettlementReceipt) (models.SettlementReceipt, bool, error) {
	row := receiptRow{
		RoomID: r.RoomID,
		Kind:   string(r.Kind),
		State:  string(models.ReceiptPending),
		Winner: r.Winner,
		Reason: string(r.Reason),
		Amount: r.Amount,
	}
	res := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return models.SettlementReceipt{}, false, unavailable("claim", res.Error)
	}
	if res.RowsAffected == 1 {
		return row.receipt(), true, nil
	}
	existing, err := l.Receipt(ctx, r.RoomID, r.Kind)
	if err != nil {
		return models.SettlementReceipt{}, false, err
	}
	return existing, false, nil
}

// Complete marks a pending receipt as done
func (l *Ledger) Complete(ctx context.Context, roomID string, kind models.ReceiptKind, signature string, closed bool) (models.SettlementReceipt, error) {
	err := l.db.WithContext(ctx).Model(&receiptRow{}).
		Where("room_id = ? AND kind = ? AND state = ?", roomID, string(kind), string(models.ReceiptPending)).
		Updates(map[string]any{
			"state":          string(models.ReceiptDone),
			"signature":      signature,
			"already_closed": closed,
			"updated_at":     time.Now(),
		}).Error
	if err != nil {
		return models.SettlementReceipt{}, unavailable("complete", err)
	}
	return l.Receipt(ctx, roomID, kind)
}

// Release removes a pending claim
func (l *Ledger) Release(ctx context.Context, roomID string, kind models.ReceiptKind) error {
	err := l.db.WithContext(ctx).
		Where("room_id = ? AND kind = ? AND state = ?", roomID, string(kind), string(models.ReceiptPending)).
		Delete(&receiptRow{}).Error
	if err != nil {
		return unavailable("release", err)
	}
	return nil
}

// Receipt loads the receipt for a room and kind
func (l *Ledger) Receipt(ctx context.Context, roomID string, kind models.ReceiptKind) (models.SettlementReceipt, error) {
	var row receiptRow
	err := l.db.WithContext(ctx).
		Where("room_id = ? AND kind = ?", roomID, string(kind)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SettlementReceipt{}, ErrNoReceipt
	}
	if err != nil {
		return models.SettlementReceipt{}, unavailable("receipt", err)
	}
	return row.receipt(), nil
}
