// Package archive persists every payment the poller observes, so history
// survives the backend's short recent-payments window.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"dispen-agua-admin/internal/backend"
	"dispen-agua-admin/internal/model"
)

// Store defines the archive operations.
type Store interface {
	// RecordPayments upserts a polled batch and returns the ids of
	// payments newly seen as approved-but-undispensed, i.e. the ones the
	// operator should be alerted about.
	RecordPayments(ctx context.Context, payments []backend.Payment) ([]int64, error)
	// ListRecent returns archived payments, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.PaymentRecord, error)
	// Get returns one archived payment.
	Get(ctx context.Context, id int64) (*model.PaymentRecord, error)
	// DB exposes the underlying handle for collaborators that manage
	// their own tables (push subscriptions).
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed archive store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// RecordPayments applies one polled batch transactionally. Records are keyed
// by the backend's payment id; an existing record is refreshed in place, a
// new one inserted. The transition into approved-and-undispensed is latched
// via the Notified flag so each payment triggers at most one alert.
func (s *gormStore) RecordPayments(ctx context.Context, payments []backend.Payment) ([]int64, error) {
	if len(payments) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var notifyIDs []int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range payments {
			var existing model.PaymentRecord
			err := tx.First(&existing, p.ID).Error

			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				rec := recordFromPayment(p, now)
				if rec.Estado == "approved" && !rec.Dispensado {
					rec.Notified = true
					notifyIDs = append(notifyIDs, rec.ID)
				}
				if err := tx.Create(&rec).Error; err != nil {
					return fmt.Errorf("failed to archive payment %d: %w", p.ID, err)
				}
			case err != nil:
				return fmt.Errorf("failed to look up payment %d: %w", p.ID, err)
			default:
				rec := recordFromPayment(p, existing.FirstSeenAt)
				rec.Notified = existing.Notified
				rec.UpdatedAt = now
				if rec.Estado == "approved" && !rec.Dispensado && !existing.Notified {
					rec.Notified = true
					notifyIDs = append(notifyIDs, rec.ID)
				}
				if err := tx.Save(&rec).Error; err != nil {
					return fmt.Errorf("failed to update archived payment %d: %w", p.ID, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notifyIDs, nil
}

func (s *gormStore) ListRecent(ctx context.Context, limit int) ([]model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []model.PaymentRecord
	err := s.db.WithContext(ctx).
		Order("paid_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *gormStore) Get(ctx context.Context, id int64) (*model.PaymentRecord, error) {
	var rec model.PaymentRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func recordFromPayment(p backend.Payment, firstSeen time.Time) model.PaymentRecord {
	return model.PaymentRecord{
		ID:          p.ID,
		MPPaymentID: p.MPPaymentID,
		Estado:      p.Estado,
		Monto:       p.Monto,
		SlotID:      p.SlotID,
		Producto:    p.Producto,
		DeviceID:    p.DeviceID,
		PaidAt:      p.CreatedAt,
		Dispensado:  p.Dispensado,
		FirstSeenAt: firstSeen,
		UpdatedAt:   firstSeen,
	}
}
