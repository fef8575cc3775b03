package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dispen-agua-admin/internal/model"
)

// fakeSender is a test implementation of the Sender interface.
type fakeSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *fakeSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PaymentRecord{}, &model.PushSubscription{}))
	return db
}

func TestWorkerPoolDispatch(t *testing.T) {
	wp := NewWorkerPool(1, newTestDB(t), &webpush.Options{})

	wp.Dispatch(123)

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(123), job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerSendsPendingDispenseAlert(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	require.NoError(t, db.Create(&model.PaymentRecord{
		ID: 5, Estado: "approved", Monto: 100, Producto: "Agua fría", DeviceID: "dev-7",
	}).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://example.com/push", P256DH: "k", Auth: "a",
	}).Error)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.SetSender(&fakeSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			assert.Equal(t, "https://example.com/push", sub.Endpoint)

			var alert alertPayload
			require.NoError(t, json.Unmarshal(payload, &alert))
			assert.Equal(t, int64(5), alert.PaymentID)
			assert.Equal(t, "Agua fría", alert.Producto)
			assert.Contains(t, alert.Body, "dev-7")

			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(5)
	wg.Wait()
}

func TestWorkerDeletesExpiredSubscription(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	require.NoError(t, db.Create(&model.PaymentRecord{ID: 6, Estado: "approved"}).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://example.com/expired", P256DH: "k", Auth: "a",
	}).Error)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.SetSender(&fakeSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			defer wg.Done()
			return &http.Response{
				StatusCode: http.StatusGone,
				Body:       io.NopCloser(bytes.NewBufferString("")),
			}, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(6)
	wg.Wait()

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.PushSubscription{}).Count(&count)
		return count == 0
	}, time.Second, 10*time.Millisecond, "expired subscription should be deleted")
}
