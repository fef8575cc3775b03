package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dispen-agua-admin/internal/archive"
	"dispen-agua-admin/internal/backend"
	"dispen-agua-admin/internal/model"
	"dispen-agua-admin/internal/notification"
	"dispen-agua-admin/internal/session"
)

// countingSender records every push sent and answers 201.
type countingSender struct {
	mu    sync.Mutex
	sent  []notificationCall
	calls int32
}

type notificationCall struct {
	endpoint string
	payload  []byte
}

func (s *countingSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	s.mu.Lock()
	s.sent = append(s.sent, notificationCall{endpoint: sub.Endpoint, payload: payload})
	s.mu.Unlock()
	atomic.AddInt32(&s.calls, 1)
	return &http.Response{
		StatusCode: http.StatusCreated,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}, nil
}

// TestPendingDispenseLifecycle drives a payment from approved-but-undispensed
// through the full pipeline: poll, archive, alert once, then observe the
// dispense without a second alert.
func TestPendingDispenseLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:lifecycle?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()
	require.NoError(t, testDB.AutoMigrate(&model.PaymentRecord{}, &model.PushSubscription{}))

	store := archive.NewGormStore(testDB)
	require.NoError(t, testDB.Create(&model.PushSubscription{
		Endpoint: "https://push.example/operator", P256DH: "k", Auth: "a",
	}).Error)

	sender := &countingSender{}
	pool := notification.NewWorkerPool(2, testDB, &webpush.Options{})
	pool.SetSender(sender)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	// Fake vending backend. The payment starts undispensed and flips to
	// dispensed after the first alert goes out.
	var dispensed atomic.Bool
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-admin-secret") != "s3cr3t" {
			http.Error(w, "secreto inválido", http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/api/dispensers":
			json.NewEncoder(w).Encode([]backend.Dispenser{{ID: 7, DeviceID: "dev-7", Nombre: "Entrada"}})
		case "/api/productos":
			json.NewEncoder(w).Encode([]backend.Product{})
		case "/api/pagos":
			json.NewEncoder(w).Encode([]backend.Payment{{
				ID: 5, MPPaymentID: "mp-5", Estado: "approved", Monto: 100,
				Producto: "Agua fría", DeviceID: "dev-7",
				Dispensado: dispensed.Load(), CreatedAt: time.Now(),
			}})
		case "/api/config":
			json.NewEncoder(w).Encode(map[string]string{"mp_mode": "test"})
		case "/api/mp/oauth/status":
			json.NewEncoder(w).Encode(backend.OAuthStatus{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	sessions := session.NewManager(upstream.URL, time.Second, 10, 25*time.Millisecond)
	defer sessions.Shutdown()
	sessions.OnPayments = func(ctx context.Context, batch []backend.Payment) {
		notify, err := store.RecordPayments(ctx, batch)
		if err != nil {
			t.Errorf("RecordPayments: %v", err)
			return
		}
		for _, id := range notify {
			pool.Dispatch(id)
		}
	}

	token, err := sessions.Login(context.Background(), "s3cr3t")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Step 1: the undispensed payment is archived and alerted exactly once.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&sender.calls) >= 1
	}, 3*time.Second, 25*time.Millisecond, "no alert went out")

	rec, err := store.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, rec.Notified)
	assert.False(t, rec.Dispensado)

	sender.mu.Lock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "https://push.example/operator", sender.sent[0].endpoint)
	assert.Contains(t, string(sender.sent[0].payload), "dev-7")
	sender.mu.Unlock()

	// Step 2: the machine dispenses; the archive follows on the next poll.
	dispensed.Store(true)
	require.Eventually(t, func() bool {
		rec, err := store.Get(context.Background(), 5)
		return err == nil && rec.Dispensado
	}, 3*time.Second, 25*time.Millisecond, "archive never observed the dispense")

	// A handful of further polls must not re-alert.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&sender.calls), "alert fired more than once")

	records, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "mp-5", records[0].MPPaymentID)
}
