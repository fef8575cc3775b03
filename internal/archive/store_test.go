package archive

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dispen-agua-admin/internal/backend"
	"dispen-agua-admin/internal/model"
)

// newTestStore opens an isolated in-memory sqlite database.
func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PaymentRecord{}, &model.PushSubscription{}))
	return NewGormStore(db)
}

func TestRecordPaymentsNotifiesPendingDispenseOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []backend.Payment{
		{ID: 5, MPPaymentID: "mp-5", Estado: "approved", Monto: 100, Producto: "Agua", DeviceID: "dev-7", Dispensado: false, CreatedAt: time.Now()},
		{ID: 6, Estado: "approved", Dispensado: true, CreatedAt: time.Now()},
		{ID: 7, Estado: "pending", Dispensado: false, CreatedAt: time.Now()},
	}

	notify, err := s.RecordPayments(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, notify, "only approved-and-undispensed payments alert")

	// The same batch polled again must not re-alert.
	notify, err = s.RecordPayments(ctx, batch)
	require.NoError(t, err)
	assert.Empty(t, notify)

	rec, err := s.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, rec.Notified)
	assert.Equal(t, "mp-5", rec.MPPaymentID)
}

func TestRecordPaymentsLatchesTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// First seen pending: no alert.
	notify, err := s.RecordPayments(ctx, []backend.Payment{{ID: 9, Estado: "pending"}})
	require.NoError(t, err)
	assert.Empty(t, notify)

	// Transition into approved-and-undispensed: alert once.
	notify, err = s.RecordPayments(ctx, []backend.Payment{{ID: 9, Estado: "approved"}})
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, notify)

	// Dispense eventually succeeds; the record follows, still no re-alert.
	notify, err = s.RecordPayments(ctx, []backend.Payment{{ID: 9, Estado: "approved", Dispensado: true}})
	require.NoError(t, err)
	assert.Empty(t, notify)

	rec, err := s.Get(ctx, 9)
	require.NoError(t, err)
	assert.True(t, rec.Dispensado)
}

func TestListRecentNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	var batch []backend.Payment
	for i := 1; i <= 5; i++ {
		batch = append(batch, backend.Payment{
			ID:         int64(i),
			Estado:     "approved",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			Dispensado: true,
		})
	}
	_, err := s.RecordPayments(ctx, batch)
	require.NoError(t, err)

	records, err := s.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(5), records[0].ID)
	assert.Equal(t, int64(4), records[1].ID)
	assert.Equal(t, int64(3), records[2].ID)
}

func TestRecordPaymentsEmptyBatch(t *testing.T) {
	s := newTestStore(t)
	notify, err := s.RecordPayments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, notify)
}
