package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"dispen-agua-admin/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// alertPayload is what subscribed browsers receive for a pending dispense.
type alertPayload struct {
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	PaymentID int64   `json:"payment_id"`
	Producto  string  `json:"producto"`
	Monto     float64 `json:"monto"`
	DeviceID  string  `json:"device_id"`
}

// WorkerPool manages a pool of workers dispatching pending-dispense alerts.
type WorkerPool struct {
	size    int
	jobs    chan int64
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool. Jobs are archived payment ids.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case paymentID := <-wp.jobs:
			log.Printf("Worker %d processing payment %d", id, paymentID)
			wp.sendAlertsForPayment(ctx, paymentID)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(paymentID int64) {
	wp.jobs <- paymentID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

// SetSender swaps the push transport; tests inject a fake here.
func (wp *WorkerPool) SetSender(s Sender) {
	wp.sender = s
}

// sendAlertsForPayment loads the archived payment and pings every subscribed
// browser about the pending dispense.
func (wp *WorkerPool) sendAlertsForPayment(ctx context.Context, paymentID int64) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for payment %d: %v", paymentID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var rec model.PaymentRecord
	if err := wp.db.WithContext(ctx).First(&rec, paymentID).Error; err != nil {
		log.Printf("Error fetching archived payment %d: %v", paymentID, err)
		return
	}

	payload, err := json.Marshal(alertPayload{
		Title:     "Pago aprobado sin dispensar",
		Body:      fmt.Sprintf("Pago #%d (%s) aprobado, el equipo %s no dispensó.", rec.ID, rec.Producto, rec.DeviceID),
		PaymentID: rec.ID,
		Producto:  rec.Producto,
		Monto:     rec.Monto,
		DeviceID:  rec.DeviceID,
	})
	if err != nil {
		log.Printf("Error marshaling alert for payment %d: %v", paymentID, err)
		return
	}

	log.Printf("Sending %d alerts for payment %d", len(subscriptions), paymentID)
	for _, sub := range subscriptions {
		wp.sendAlert(ctx, sub, payload)
	}
}

// sendAlert sends a single web push notification.
func (wp *WorkerPool) sendAlert(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending alert to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
