package model

import "time"

// PaymentRecord is the locally archived copy of a backend payment. The
// backend only serves a short recent window, so every payment observed by
// the poller is upserted here, keyed by the backend's id.
type PaymentRecord struct {
	ID          int64   `gorm:"primaryKey"` // Backend payment id
	MPPaymentID string  `gorm:"size:64;index"`
	Estado      string  `gorm:"size:32;not null"`
	Monto       float64 `gorm:"not null"`
	SlotID      int
	Producto    string `gorm:"size:256"`
	DeviceID    string `gorm:"size:64;index"`
	PaidAt      time.Time
	Dispensado  bool `gorm:"not null"`

	// Notified is set once a pending-dispense alert has been dispatched
	// for this payment, so the operator is pinged at most once.
	Notified bool `gorm:"not null"`

	FirstSeenAt time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}
