package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Subscriptions receive every pending-dispense alert; there is no
// per-dispenser filtering in a single-operator installation.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
