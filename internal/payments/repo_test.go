package payments

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/migrate"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	require.NoError(t, migrate.RunEmbedded(context.Background(), sqlDB, "sqlite3", "up"))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func samplePayment(id, orderID string, created time.Time) *Payment {
	return &Payment{
		ID:             id,
		OrderID:        orderID,
		Amount:         decimal.RequireFromString("150.50"),
		DestinationKey: "loja@email.com",
		Description:    "Compra #001",
		Status:         enums.PaymentStatusPending,
		QRPayload:      BuildQRPayload(decimal.RequireFromString("150.50"), "loja@email.com", "Loja Mock"),
		QRCodeImage:    QRCodeImage(id),
		RecipientName:  "Loja Mock",
		Metadata:       map[string]any{"platform": "mock"},
		CreatedAt:      created,
		ExpiresAt:      created.Add(time.Hour),
	}
}

func TestStoreContract(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": NewRepository(setupPaymentsTestDB(t)),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			second := samplePayment("pix_b", "PED001", base.Add(time.Minute))
			first := samplePayment("pix_a", "PED001", base)
			require.NoError(t, store.Create(ctx, second))
			require.NoError(t, store.Create(ctx, first))

			err := store.Create(ctx, samplePayment("pix_a", "PED009", base))
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

			got, err := store.FindByID(ctx, "pix_a")
			require.NoError(t, err)
			assert.Equal(t, "PED001", got.OrderID)
			assert.True(t, decimal.RequireFromString("150.50").Equal(got.Amount))
			assert.Equal(t, enums.PaymentStatusPending, got.Status)
			assert.True(t, base.Equal(got.CreatedAt))
			assert.True(t, base.Add(time.Hour).Equal(got.ExpiresAt))
			assert.Equal(t, "mock", got.Metadata["platform"])
			assert.Nil(t, got.UpdatedAt)

			byOrder, err := store.FindByOrder(ctx, "PED001")
			require.NoError(t, err)
			assert.Equal(t, "pix_a", byOrder.ID)

			_, err = store.FindByOrder(ctx, "PED404")
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
			_, err = store.FindByID(ctx, "pix_missing")
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

			updatedAt := base.Add(5 * time.Minute)
			got.Status = enums.PaymentStatusCompleted
			got.UpdatedAt = &updatedAt
			require.NoError(t, store.Save(ctx, got))

			reloaded, err := store.FindByID(ctx, "pix_a")
			require.NoError(t, err)
			assert.Equal(t, enums.PaymentStatusCompleted, reloaded.Status)
			require.NotNil(t, reloaded.UpdatedAt)
			assert.True(t, updatedAt.Equal(*reloaded.UpdatedAt))

			missing := samplePayment("pix_missing", "PED001", base)
			err = store.Save(ctx, missing)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

			all, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "pix_a", all[0].ID)
			assert.Equal(t, "pix_b", all[1].ID)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	payment := samplePayment("pix_a", "PED001", time.Now().UTC())
	require.NoError(t, store.Create(ctx, payment))

	payment.Status = enums.PaymentStatusFailed
	got, err := store.FindByID(ctx, "pix_a")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, got.Status)

	got.Status = enums.PaymentStatusCanceled
	again, err := store.FindByID(ctx, "pix_a")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, again.Status)
}

func TestServiceOnSQLStores(t *testing.T) {
	conn := setupPaymentsTestDB(t)
	h := newHarnessWithStore(t, NewRepository(conn), orders.NewRepository(conn), 0.1)
	ctx := context.Background()
	h.subscribe(t, "https://a.example")

	order := h.createOrder(t, "1500.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, time.Minute)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Minute)
	got, err := h.svc.GetPaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)
	assert.Equal(t, enums.PaymentStatusExpired, got.Status)

	updated, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, updated.Status)
	assert.Equal(t, 1, h.log.Len())
}
