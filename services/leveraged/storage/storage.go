package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leverageloop/native/devnet"
)

var (
	// ErrDSNRequired is returned when no database DSN is configured.
	ErrDSNRequired = errors.New("leveraged storage: dsn required")
	ErrNotFound    = errors.New("leveraged storage: receipt not found")
)

// Receipt is one deposit transaction as served by the daemon. Payload holds
// the full JSON cycle result including the call trace.
type Receipt struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TxHash     string    `gorm:"size:64;index"`
	Height     uint64    `gorm:"index"`
	Sender     string    `gorm:"size:128;index"`
	Amount     string    `gorm:"size:80"`
	Calls      int
	Loops      int
	Redeposits int
	Phase      string `gorm:"size:32"`
	StopReason string `gorm:"size:128"`
	Reverted   bool   `gorm:"index"`
	Error      string
	Payload    []byte
	CreatedAt  time.Time
}

// Store persists receipts in a sqlite database through gorm.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to dsn and migrates the receipts table.
func Open(dsn string) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrDSNRequired
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Receipt{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record stores the outcome of a deposit. result may carry a reverted receipt,
// in which case cause is the error the transaction failed with.
func (s *Store) Record(ctx context.Context, sender, amount string, result *devnet.CycleResult, cause error) (*Receipt, error) {
	if result == nil || result.Receipt == nil {
		return nil, fmt.Errorf("leveraged storage: receipt required")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode receipt: %w", err)
	}
	rec := &Receipt{
		ID:         uuid.New(),
		TxHash:     result.Receipt.Hash,
		Height:     result.Receipt.Height,
		Sender:     sender,
		Amount:     amount,
		Calls:      len(result.Receipt.Trace),
		Loops:      result.Loops,
		Redeposits: result.Redeposits,
		Phase:      result.PhaseName,
		StopReason: result.StopReason,
		Reverted:   result.Receipt.Reverted,
		Error:      result.Receipt.Error,
		Payload:    payload,
		CreatedAt:  s.now().UTC(),
	}
	if cause != nil && rec.Error == "" {
		rec.Error = cause.Error()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert receipt: %w", err)
	}
	return rec, nil
}

// Get loads a receipt by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	var rec Receipt
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load receipt: %w", err)
	}
	return &rec, nil
}

// ListBySender returns the newest receipts of sender first.
func (s *Store) ListBySender(ctx context.Context, sender string, limit int) ([]Receipt, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var out []Receipt
	err := s.db.WithContext(ctx).
		Where("sender = ?", sender).
		Order("height DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return out, nil
}
