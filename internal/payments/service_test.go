package payments

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/internal/settlement"
	"github.com/angelmondragon/pixmock-backend/internal/webhooks"
	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recordingScheduler keeps submitted tasks until the test runs them.
type recordingScheduler struct {
	mu     sync.Mutex
	tasks  map[string]settlement.Task
	delays map[string]time.Duration
	order  []string
}

func newRecordingScheduler() *recordingScheduler {
	return &recordingScheduler{tasks: map[string]settlement.Task{}, delays: map[string]time.Duration{}}
}

func (r *recordingScheduler) Submit(ctx context.Context, key string, delay time.Duration, task settlement.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[key]; ok {
		return settlement.ErrAlreadyScheduled
	}
	r.tasks[key] = task
	r.delays[key] = delay
	r.order = append(r.order, key)
	return nil
}

func (r *recordingScheduler) run(t *testing.T, key string) {
	t.Helper()
	r.mu.Lock()
	task, ok := r.tasks[key]
	r.mu.Unlock()
	require.True(t, ok, "no task for %s", key)
	task(context.Background())
}

func (r *recordingScheduler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

type okTransport struct{}

func (okTransport) Deliver(context.Context, webhooks.Subscription, []byte, string) (int, error) {
	return 200, nil
}

type harness struct {
	svc       Service
	orders    orders.Service
	store     Store
	clock     *clock.Manual
	scheduler *recordingScheduler
	registry  *webhooks.Registry
	log       *webhooks.DeliveryLog
}

func newHarness(t *testing.T, outcomeDraws ...float64) *harness {
	t.Helper()
	return newHarnessWithStore(t, NewMemoryStore(), orders.NewMemoryStore(), outcomeDraws...)
}

func newHarnessWithStore(t *testing.T, store Store, orderStore orders.Store, outcomeDraws ...float64) *harness {
	t.Helper()
	return buildHarness(t, store, orderStore, nil, outcomeDraws...)
}

// buildHarness wires a payment service over real collaborators. wrap, when
// set, decorates the order lifecycle the payment service sees.
func buildHarness(t *testing.T, store Store, orderStore orders.Store, wrap func(orders.Service) OrderLifecycle, outcomeDraws ...float64) *harness {
	t.Helper()
	clk := clock.NewManual(testNow)
	if len(outcomeDraws) == 0 {
		outcomeDraws = []float64{0.1}
	}
	orderSvc, err := orders.NewService(orders.ServiceParams{Store: orderStore, Clock: clk})
	require.NoError(t, err)

	registry := webhooks.NewRegistry(clk)
	log := webhooks.NewDeliveryLog()
	dispatcher, err := webhooks.NewDispatcher(webhooks.DispatcherParams{
		Registry:  registry,
		Log:       log,
		Transport: okTransport{},
		Clock:     clk,
	})
	require.NoError(t, err)

	sim, err := settlement.NewSimulator(settlement.DefaultConfig(), clock.NewSequence(outcomeDraws, nil))
	require.NoError(t, err)
	scheduler := newRecordingScheduler()

	var lifecycle OrderLifecycle = orderSvc
	if wrap != nil {
		lifecycle = wrap(orderSvc)
	}

	svc, err := NewService(ServiceParams{
		Store:     store,
		Orders:    lifecycle,
		Notifier:  dispatcher,
		Scheduler: scheduler,
		Settler:   sim,
		Clock:     clk,
		Random:    clock.NewSequence(nil, []int{1, 0}),
		Logger:    logger.Nop(),
		Config: config.PaymentsConfig{
			DefaultTTL:      time.Hour,
			RecipientNames:  []string{"Loja Online LTDA", "Servicos Digitais ME"},
			DestinationKeys: []string{"loja@email.com", "11999999999"},
		},
	})
	require.NoError(t, err)
	return &harness{
		svc:       svc,
		orders:    orderSvc,
		store:     store,
		clock:     clk,
		scheduler: scheduler,
		registry:  registry,
		log:       log,
	}
}

func (h *harness) createOrder(t *testing.T, price string) *orders.Order {
	t.Helper()
	order, err := h.orders.CreateOrder(context.Background(), orders.CreateOrderInput{
		Customer: map[string]any{"name": "Joao Silva"},
		LineItems: []orders.LineItem{{
			ProductID: "prod_001",
			Name:      "Smartphone XYZ",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString(price),
		}},
	})
	require.NoError(t, err)
	return order
}

func (h *harness) subscribe(t *testing.T, urls ...string) {
	t.Helper()
	for _, url := range urls {
		_, err := h.registry.Register(context.Background(), url, "")
		require.NoError(t, err)
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestOrderToPaidScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	order := h.createOrder(t, "1500.00")
	assert.True(t, decimal.RequireFromString("1500.00").Equal(order.TotalAmount))
	assert.Equal(t, enums.OrderStatusCreated, order.Status)

	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Equal(t, payment.CreatedAt.Add(3600*time.Second), payment.ExpiresAt)
	assert.Regexp(t, `^pix_[0-9a-f]{16}$`, payment.ID)
	assert.True(t, order.TotalAmount.Equal(payment.Amount))
	assert.Equal(t, "data:image/png;base64,MOCK_QR_CODE_"+payment.ID, payment.QRCodeImage)
	assert.Equal(t, "Servicos Digitais ME", payment.RecipientName)
	assert.Equal(t, "loja@email.com", payment.DestinationKey)
	assert.Equal(t, 1, h.scheduler.count())

	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, got.Status)
	require.NotNil(t, got.PaymentID)
	assert.Equal(t, payment.ID, *got.PaymentID)

	completed, err := h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusCompleted, true)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, completed.Status)
	require.NotNil(t, completed.UpdatedAt)

	got, err = h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)

	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusFailed, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	got, err = h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)
	stored, err := h.svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, stored.Status)
}

func TestFailedPaymentBroadcastsToEverySubscription(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.subscribe(t, "https://a.example/hook", "https://b.example/hook")

	order := h.createOrder(t, "99.90")
	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusFailed, true)
	require.NoError(t, err)

	entries := h.log.List()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, payment.ID, entry.PaymentID)
		assert.Equal(t, enums.PaymentStatusFailed, entry.Status)
	}

	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, got.Status)
}

func TestTerminalPaymentRejectsUpdatesWithoutOverride(t *testing.T) {
	for _, terminal := range []enums.PaymentStatus{
		enums.PaymentStatusCompleted,
		enums.PaymentStatusFailed,
		enums.PaymentStatusExpired,
		enums.PaymentStatusCanceled,
	} {
		t.Run(string(terminal), func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.subscribe(t, "https://a.example")
			order := h.createOrder(t, "10.00")
			payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
			require.NoError(t, err)
			_, err = h.svc.SetStatus(ctx, payment.ID, terminal, true)
			require.NoError(t, err)
			logged := h.log.Len()

			for _, next := range enums.PaymentStatuses() {
				_, err := h.svc.SetStatus(ctx, payment.ID, next, false)
				assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "status %s", next)
			}
			stored, err := h.store.FindByID(ctx, payment.ID)
			require.NoError(t, err)
			assert.Equal(t, terminal, stored.Status)
			assert.Equal(t, logged, h.log.Len())
		})
	}
}

func TestOverrideMayLeaveTerminalState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusFailed, true)
	require.NoError(t, err)
	updated, err := h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusCompleted, true)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, updated.Status)

	// the order was already canceled and stays canceled
	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, got.Status)
}

func TestSetStatusValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.SetStatus(ctx, "pix_missing", enums.PaymentStatusCompleted, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.SetStatus(ctx, "pix_missing", enums.PaymentStatus("refunded"), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreatePaymentIsIdempotentPerOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")

	first, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)
	h.clock.Advance(time.Minute)
	second, err := h.svc.CreatePayment(ctx, order.ID, 2*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ExpiresAt, second.ExpiresAt)
	all, err := h.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, 1, h.scheduler.count())

	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, *got.PaymentID)
}

func TestConcurrentCreatePaymentForSameOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")

	const n = 16
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
			if assert.NoError(t, err) {
				ids[i] = payment.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	all, err := h.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCreatePaymentErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.CreatePayment(ctx, "ped_missing", 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	order := h.createOrder(t, "10.00")
	_, err = h.orders.SetStatus(ctx, order.ID, enums.OrderStatusCanceled)
	require.NoError(t, err)
	_, err = h.svc.CreatePayment(ctx, order.ID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	all, err := h.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, h.scheduler.count())
}

// closingOrders cancels the order right before the attach, the way an admin
// override racing payment creation would.
type closingOrders struct {
	orders.Service
}

func (c closingOrders) AttachPayment(ctx context.Context, orderID, paymentID string) (*orders.Order, error) {
	if _, err := c.Service.SetStatus(ctx, orderID, enums.OrderStatusCanceled); err != nil {
		return nil, err
	}
	return c.Service.AttachPayment(ctx, orderID, paymentID)
}

func TestCreatePaymentRefusedByClosingOrderLeavesNoPayment(t *testing.T) {
	h := buildHarness(t, NewMemoryStore(), orders.NewMemoryStore(), func(svc orders.Service) OrderLifecycle {
		return closingOrders{Service: svc}
	})
	ctx := context.Background()
	h.subscribe(t, "https://a.example")
	order := h.createOrder(t, "10.00")

	_, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	all, err := h.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, h.scheduler.count())
	assert.Zero(t, h.log.Len())

	_, err = h.svc.GetPaymentByOrder(ctx, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PaymentID)
	assert.Equal(t, enums.OrderStatusCanceled, got.Status)
}

type failingCreateStore struct {
	Store
}

func (failingCreateStore) Create(context.Context, *Payment) error {
	return pkgerrors.New(pkgerrors.CodeInternal, "disk full")
}

func TestCreatePaymentStoreFailureIsNotSettled(t *testing.T) {
	h := newHarnessWithStore(t, failingCreateStore{Store: NewMemoryStore()}, orders.NewMemoryStore())
	ctx := context.Background()
	order := h.createOrder(t, "10.00")

	_, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal), "got %v", err)
	assert.Zero(t, h.scheduler.count())
	assert.Zero(t, h.log.Len())

	// the binding is permanent, so a retry reports the broken reference
	_, err = h.svc.CreatePayment(ctx, order.ID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestLazyExpirationPropagatesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.subscribe(t, "https://a.example", "https://b.example")
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, time.Minute)
	require.NoError(t, err)

	// exactly at expires_at the payment is still payable
	h.clock.Advance(time.Minute)
	got, err := h.svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, got.Status)
	assert.Zero(t, h.log.Len())

	h.clock.Advance(time.Second)
	got, err = h.svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, got.Status)
	assert.Equal(t, 2, h.log.Len())

	stored, err := h.store.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, stored.Status)

	updatedOrder, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, updatedOrder.Status)
	orderUpdatedAt := *updatedOrder.UpdatedAt

	h.clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		got, err = h.svc.GetPayment(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, enums.PaymentStatusExpired, got.Status)
		got, err = h.svc.GetPaymentByOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ID, got.ID)
	}
	assert.Equal(t, 2, h.log.Len())
	again, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, orderUpdatedAt, *again.UpdatedAt)
}

func TestLazyExpirationViaOrderLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")
	_, err := h.svc.CreatePayment(ctx, order.ID, time.Second)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Second)
	got, err := h.svc.GetPaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, got.Status)
}

func TestGetPaymentByOrderNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")

	_, err := h.svc.GetPaymentByOrder(ctx, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.GetPaymentByOrder(ctx, "ped_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.svc.GetPayment(ctx, "pix_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeliveriesMatchSubscriptionsAtChangeTime(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	h.subscribe(t, "https://a.example")
	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusPending, true)
	require.NoError(t, err)
	assert.Equal(t, 1, h.log.Len())

	h.subscribe(t, "https://b.example", "https://c.example")
	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusCompleted, false)
	require.NoError(t, err)
	assert.Equal(t, 4, h.log.Len())

	// later subscriptions do not receive earlier changes
	entries := h.log.List()
	assert.Equal(t, "https://a.example", entries[0].SubscriptionURL)
	assert.Equal(t, enums.PaymentStatusPending, entries[0].Status)
}

func TestSettlementTaskResolvesPendingPayment(t *testing.T) {
	h := newHarness(t, 0.75)
	ctx := context.Background()
	h.subscribe(t, "https://a.example")
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	delay := h.scheduler.delays[payment.ID]
	assert.GreaterOrEqual(t, delay, settlement.DefaultMinDelay)
	assert.LessOrEqual(t, delay, settlement.DefaultMaxDelay)

	h.scheduler.run(t, payment.ID)

	got, err := h.svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, got.Status)
	assert.Equal(t, 1, h.log.Len())
	updated, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, updated.Status)
}

func TestSettlementTaskSkipsDecidedPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.subscribe(t, "https://a.example")
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusCanceled, true)
	require.NoError(t, err)
	require.Equal(t, 1, h.log.Len())

	h.scheduler.run(t, payment.ID)

	got, err := h.svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCanceled, got.Status)
	assert.Equal(t, 1, h.log.Len())
}

func TestSettlementTaskExpiresOverduePayment(t *testing.T) {
	h := newHarness(t, 0.1)
	ctx := context.Background()
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, time.Second)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	h.scheduler.run(t, payment.ID)

	stored, err := h.store.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusExpired, stored.Status)
}

func TestConcurrentTerminalTransitionsHaveOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.subscribe(t, "https://a.example", "https://b.example")
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, time.Minute)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Minute)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	statuses := []enums.PaymentStatus{enums.PaymentStatusCompleted, enums.PaymentStatusFailed, enums.PaymentStatusCanceled}
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 3 {
				// a read racing the writers may be the one that expires it
				_, _ = h.svc.GetPayment(ctx, payment.ID)
				return
			}
			_, err := h.svc.SetStatus(ctx, payment.ID, statuses[i%4], false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
				conflicts++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, successes, 1)
	assert.Equal(t, 23, successes+conflicts)
	// exactly one transition happened overall, so one broadcast
	assert.Equal(t, 2, h.log.Len())
	stored, err := h.store.FindByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.IsTerminal())
}

func TestStandalonePayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.subscribe(t, "https://a.example")

	_, err := h.svc.CreateStandalonePayment(ctx, StandalonePaymentInput{Amount: decimal.Zero})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.CreateStandalonePayment(ctx, StandalonePaymentInput{
		Amount:         decimal.RequireFromString("0.004"),
		DestinationKey: "loja@email.com",
		Description:    "Pedido PED009",
		OrderID:        "PED009",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	// references an order bound to another payment
	order := h.createOrder(t, "10.00")
	bound, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	payment, err := h.svc.CreateStandalonePayment(ctx, StandalonePaymentInput{
		Amount:         decimal.RequireFromString("150.50"),
		DestinationKey: "loja@email.com",
		Description:    "Compra #001",
		OrderID:        order.ID,
		TTL:            30 * time.Minute,
		Metadata:       map[string]any{"platform": "mock"},
		RecipientName:  "Loja Mock",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Equal(t, testNow.Add(30*time.Minute), payment.ExpiresAt)
	assert.Equal(t, BuildQRPayload(decimal.RequireFromString("150.50"), "loja@email.com", "Loja Mock"), payment.QRPayload)
	assert.Equal(t, 2, h.scheduler.count())

	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusCompleted, false)
	require.NoError(t, err)
	assert.Equal(t, 1, h.log.Len())

	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, got.Status)
	assert.Equal(t, bound.ID, *got.PaymentID)

	byOrder, err := h.svc.GetPaymentByOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bound.ID, byOrder.ID)
}

func TestStandalonePaymentForUnknownOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	payment, err := h.svc.CreateStandalonePayment(ctx, StandalonePaymentInput{
		Amount:         decimal.RequireFromString("89.90"),
		DestinationKey: "11999999999",
		Description:    "Assinatura mensal",
		OrderID:        "PED002",
	})
	require.NoError(t, err)

	byOrder, err := h.svc.GetPaymentByOrder(ctx, "PED002")
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byOrder.ID)

	// order lookup misses are ignored during propagation
	_, err = h.svc.SetStatus(ctx, payment.ID, enums.PaymentStatusFailed, false)
	require.NoError(t, err)
}

func TestConfirmExternally(t *testing.T) {
	h := newHarness(t, 0.1)
	ctx := context.Background()
	h.subscribe(t, "https://a.example")
	order := h.createOrder(t, "10.00")
	payment, err := h.svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	confirmed, err := h.svc.ConfirmExternally(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, confirmed.Status)
	assert.Equal(t, 1, h.log.Len())

	again, err := h.svc.ConfirmExternally(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, again.Status)
	assert.Equal(t, 1, h.log.Len())

	got, err := h.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, got.Status)

	_, err = h.svc.ConfirmExternally(ctx, "pix_missing")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSettlementThroughRealPool(t *testing.T) {
	clk := clock.NewManual(testNow)
	orderSvc, err := orders.NewService(orders.ServiceParams{Store: orders.NewMemoryStore(), Clock: clk})
	require.NoError(t, err)
	registry := webhooks.NewRegistry(clk)
	log := webhooks.NewDeliveryLog()
	dispatcher, err := webhooks.NewDispatcher(webhooks.DispatcherParams{Registry: registry, Log: log, Transport: okTransport{}, Clock: clk})
	require.NoError(t, err)
	pool, err := settlement.NewPool(settlement.PoolParams{Clock: clk, Logger: logger.Nop()})
	require.NoError(t, err)
	sim, err := settlement.NewSimulator(settlement.DefaultConfig(), clock.NewSequence([]float64{0.5}, nil))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Store:     NewMemoryStore(),
		Orders:    orderSvc,
		Notifier:  dispatcher,
		Scheduler: pool,
		Settler:   sim,
		Clock:     clk,
		Random:    clock.NewRandom(7),
	})
	require.NoError(t, err)

	ctx := context.Background()
	order, err := orderSvc.CreateOrder(ctx, orders.CreateOrderInput{LineItems: []orders.LineItem{{
		ProductID: "p", Name: "n", Quantity: 2, UnitPrice: decimal.RequireFromString("5.00"),
	}}})
	require.NoError(t, err)
	payment, err := svc.CreatePayment(ctx, order.ID, 0)
	require.NoError(t, err)

	pool.Wait()

	got, err := svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, got.Status)
	paid, err := orderSvc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	require.NoError(t, pool.Shutdown(ctx))
}
