package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/internal/settlement"
	"github.com/angelmondragon/pixmock-backend/internal/webhooks"
	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/ids"
	"github.com/angelmondragon/pixmock-backend/pkg/keylock"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/angelmondragon/pixmock-backend/pkg/metrics"
)

const DefaultTTL = time.Hour

// Triggers label what caused a status change in logs and metrics.
const (
	TriggerSettlement = "settlement"
	TriggerExpiration = "lazy_expiration"
	TriggerUpdate     = "update"
	TriggerOverride   = "override"
	TriggerExternal   = "external_confirmation"
)

// OrderLifecycle is the part of the order service payments depend on.
type OrderLifecycle interface {
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	AttachPayment(ctx context.Context, orderID, paymentID string) (*orders.Order, error)
	ApplyPaymentOutcome(ctx context.Context, orderID string, status enums.PaymentStatus) (*orders.Order, error)
}

// Notifier broadcasts a status change to webhook subscribers.
type Notifier interface {
	Dispatch(ctx context.Context, n webhooks.Notification) []webhooks.DeliveryLogEntry
}

// Scheduler runs one delayed task per key.
type Scheduler interface {
	Submit(ctx context.Context, key string, delay time.Duration, task settlement.Task) error
}

// Settler draws settlement latency and outcome.
type Settler interface {
	Delay() time.Duration
	Outcome() enums.PaymentStatus
}

// Service owns the payment store and every payment status change.
type Service interface {
	CreatePayment(ctx context.Context, orderID string, ttl time.Duration) (*Payment, error)
	CreateStandalonePayment(ctx context.Context, input StandalonePaymentInput) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID string) (*Payment, error)
	SetStatus(ctx context.Context, id string, status enums.PaymentStatus, override bool) (*Payment, error)
	ConfirmExternally(ctx context.Context, id string) (*Payment, error)
	List(ctx context.Context) ([]Payment, error)
}

// ServiceParams groups the payment service dependencies.
type ServiceParams struct {
	Store     Store
	Orders    OrderLifecycle
	Notifier  Notifier
	Scheduler Scheduler
	Settler   Settler
	Clock     clock.Clock
	Random    clock.Random
	Logger    *logger.Logger
	Metrics   *metrics.GatewayMetrics
	Config    config.PaymentsConfig
}

type service struct {
	store     Store
	orders    OrderLifecycle
	notifier  Notifier
	scheduler Scheduler
	settler   Settler
	clock     clock.Clock
	random    clock.Random
	logg      *logger.Logger
	metrics   *metrics.GatewayMetrics
	cfg       config.PaymentsConfig
	locks     *keylock.Locker
}

// NewService builds the payment lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("payments store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("webhook notifier required")
	}
	if params.Scheduler == nil {
		return nil, fmt.Errorf("settlement scheduler required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settlement simulator required")
	}
	if params.Random == nil {
		return nil, fmt.Errorf("random source required")
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Config.DefaultTTL <= 0 {
		params.Config.DefaultTTL = DefaultTTL
	}
	if len(params.Config.RecipientNames) == 0 {
		params.Config.RecipientNames = []string{"Loja Online LTDA"}
	}
	if len(params.Config.DestinationKeys) == 0 {
		params.Config.DestinationKeys = []string{"loja@email.com"}
	}
	return &service{
		store:     params.Store,
		orders:    params.Orders,
		notifier:  params.Notifier,
		scheduler: params.Scheduler,
		settler:   params.Settler,
		clock:     params.Clock,
		random:    params.Random,
		logg:      params.Logger,
		metrics:   params.Metrics,
		cfg:       params.Config,
		locks:     keylock.New(),
	}, nil
}

func orderLockKey(id string) string   { return "order:" + id }
func paymentLockKey(id string) string { return "payment:" + id }

func (s *service) CreatePayment(ctx context.Context, orderID string, ttl time.Duration) (*Payment, error) {
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	unlock := s.locks.Lock(orderLockKey(orderID))
	defer unlock()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.HasPayment() {
		existing, err := s.store.FindByID(ctx, *order.PaymentID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is bound to an unknown payment").
					WithDetails(map[string]any{"order_id": orderID, "payment_id": *order.PaymentID})
			}
			return nil, err
		}
		return existing, nil
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is closed").
			WithDetails(map[string]any{"order_id": orderID, "status": order.Status})
	}

	now := s.clock.Now()
	recipient := s.pick(s.cfg.RecipientNames)
	destination := s.pick(s.cfg.DestinationKeys)
	payment := &Payment{
		ID:             ids.NewPaymentID(),
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		DestinationKey: destination,
		Description:    fmt.Sprintf("Payment for order %s", order.ID),
		Status:         enums.PaymentStatusPending,
		RecipientName:  recipient,
		QRPayload:      BuildQRPayload(order.TotalAmount, destination, recipient),
		Metadata:       map[string]any{"order_id": order.ID, "customer_id": order.CustomerID},
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	payment.QRCodeImage = QRCodeImage(payment.ID)
	ctx = s.logg.WithPaymentID(s.logg.WithOrderID(ctx, order.ID), payment.ID)

	// The order may close between the read above and the attach. Binding first
	// means a refused payment is never stored. Readers that follow the new
	// order binding wait on the payment lock until the payment exists.
	unlockPayment := s.locks.Lock(paymentLockKey(payment.ID))
	defer unlockPayment()
	if _, err := s.orders.AttachPayment(ctx, order.ID, payment.ID); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, payment); err != nil {
		s.logg.Error(ctx, "order bound to a payment that could not be stored", err)
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "amount", payment.Amount.String()), "payment created")
	s.scheduleSettlement(ctx, payment.ID)
	return payment, nil
}

func (s *service) CreateStandalonePayment(ctx context.Context, input StandalonePaymentInput) (*Payment, error) {
	if err := validateStandalone(input); err != nil {
		return nil, err
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	createdAt := s.clock.Now()
	if input.CreatedAt != nil {
		createdAt = input.CreatedAt.UTC()
	}
	recipient := strings.TrimSpace(input.RecipientName)
	if recipient == "" {
		recipient = s.pick(s.cfg.RecipientNames)
	}
	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	amount := input.Amount.Round(2)
	destination := strings.TrimSpace(input.DestinationKey)

	payment := &Payment{
		ID:             ids.NewPaymentID(),
		OrderID:        strings.TrimSpace(input.OrderID),
		Amount:         amount,
		DestinationKey: destination,
		Description:    strings.TrimSpace(input.Description),
		Status:         enums.PaymentStatusPending,
		RecipientName:  recipient,
		QRPayload:      BuildQRPayload(amount, destination, recipient),
		Metadata:       metadata,
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(ttl),
	}
	payment.QRCodeImage = QRCodeImage(payment.ID)

	if err := s.store.Create(ctx, payment); err != nil {
		return nil, err
	}
	ctx = s.logg.WithPaymentID(ctx, payment.ID)
	s.logg.Info(s.logg.WithField(ctx, "amount", payment.Amount.String()), "standalone payment created")
	s.scheduleSettlement(ctx, payment.ID)
	return payment, nil
}

// GetPayment evaluates expiry before answering: a pending payment read after
// expires_at is expired and propagated right here. This read path is what
// resolves payments whose settlement task never ran.
func (s *service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	unlock := s.locks.Lock(paymentLockKey(id))
	defer unlock()

	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expireIfOverdue(ctx, payment)
}

func (s *service) GetPaymentByOrder(ctx context.Context, orderID string) (*Payment, error) {
	paymentID := ""
	order, err := s.orders.GetOrder(ctx, orderID)
	switch {
	case err == nil && order.HasPayment():
		paymentID = *order.PaymentID
	case err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil, err
	default:
		// standalone payments only reference the order id
		found, err := s.store.FindByOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		paymentID = found.ID
	}
	return s.GetPayment(ctx, paymentID)
}

func (s *service) SetStatus(ctx context.Context, id string, status enums.PaymentStatus, override bool) (*Payment, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status").
			WithDetails(map[string]any{"status": status})
	}
	unlock := s.locks.Lock(paymentLockKey(id))
	defer unlock()

	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status.IsTerminal() && !override {
		return nil, errTerminal(payment)
	}
	trigger := TriggerUpdate
	if override {
		trigger = TriggerOverride
	}
	return s.transition(ctx, payment, status, trigger)
}

// ConfirmExternally simulates the PSP calling back early: a pending payment
// gets its outcome drawn now; anything else is returned as is.
func (s *service) ConfirmExternally(ctx context.Context, id string) (*Payment, error) {
	unlock := s.locks.Lock(paymentLockKey(id))
	defer unlock()

	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	payment, err = s.expireIfOverdue(ctx, payment)
	if err != nil || payment.Status != enums.PaymentStatusPending {
		return payment, err
	}
	outcome := s.settler.Outcome()
	s.metrics.IncSettlement(outcome.String())
	return s.transition(ctx, payment, outcome, TriggerExternal)
}

func (s *service) List(ctx context.Context) ([]Payment, error) {
	return s.store.List(ctx)
}

// settle runs when a settlement task wakes. Errors stay here: the payment is
// left pending and the next read expires it.
func (s *service) settle(ctx context.Context, id string) {
	ctx = s.logg.WithPaymentID(ctx, id)
	unlock := s.locks.Lock(paymentLockKey(id))
	defer unlock()

	payment, err := s.store.FindByID(ctx, id)
	if err != nil {
		s.logg.Error(ctx, "settlement could not load payment", err)
		return
	}
	if payment.Overdue(s.clock.Now()) {
		if _, err := s.expireIfOverdue(ctx, payment); err != nil {
			s.logg.Error(ctx, "settlement could not expire payment", err)
		}
		return
	}
	if payment.Status != enums.PaymentStatusPending {
		s.logg.Debug(s.logg.WithField(ctx, "payment_status", payment.Status), "settlement skipped, outcome already decided")
		return
	}

	outcome := s.settler.Outcome()
	s.metrics.IncSettlement(outcome.String())
	if _, err := s.transition(ctx, payment, outcome, TriggerSettlement); err != nil {
		s.logg.Error(ctx, "settlement failed", err)
	}
}

func (s *service) scheduleSettlement(ctx context.Context, id string) {
	delay := s.settler.Delay()
	s.metrics.ObserveSettlementDelay(delay)
	err := s.scheduler.Submit(ctx, id, delay, func(taskCtx context.Context) {
		s.settle(taskCtx, id)
	})
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "settlement not scheduled; payment resolves on expiry")
		return
	}
	s.logg.Debug(s.logg.WithField(ctx, "settlement_delay", delay.String()), "settlement scheduled")
}

// expireIfOverdue must be called with the payment lock held.
func (s *service) expireIfOverdue(ctx context.Context, payment *Payment) (*Payment, error) {
	if !payment.Overdue(s.clock.Now()) {
		return payment, nil
	}
	return s.transition(ctx, payment, enums.PaymentStatusExpired, TriggerExpiration)
}

// transition persists status and runs the downstream effects before
// returning. It must be called with the payment lock held.
func (s *service) transition(ctx context.Context, payment *Payment, status enums.PaymentStatus, trigger string) (*Payment, error) {
	now := s.clock.Now()
	previous := payment.Status
	payment.Status = status
	payment.UpdatedAt = &now
	if err := s.store.Save(ctx, payment); err != nil {
		return nil, err
	}
	s.metrics.IncTransition(status.String(), trigger)

	ctx = s.logg.WithFields(s.logg.WithPaymentID(ctx, payment.ID), map[string]any{
		"previous_status": previous,
		"payment_status":  status,
		"trigger":         trigger,
	})
	s.logg.Info(ctx, "payment status changed")

	s.propagateToOrder(ctx, payment)
	s.notifier.Dispatch(ctx, webhooks.Notification{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Status:    payment.Status,
		Amount:    payment.Amount,
		UpdatedAt: now,
	})
	return payment, nil
}

// propagateToOrder updates the order bound to payment. Standalone payments
// reference orders they are not bound to; those are left alone.
func (s *service) propagateToOrder(ctx context.Context, payment *Payment) {
	if payment.OrderID == "" {
		return
	}
	order, err := s.orders.GetOrder(ctx, payment.OrderID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Debug(ctx, "payment references no known order")
			return
		}
		s.logg.Error(ctx, "could not load order for payment outcome", err)
		return
	}
	if order.PaymentID == nil || *order.PaymentID != payment.ID {
		return
	}
	if _, err := s.orders.ApplyPaymentOutcome(ctx, order.ID, payment.Status); err != nil {
		s.logg.Error(ctx, "could not apply payment outcome to order", err)
	}
}

func (s *service) pick(options []string) string {
	return options[s.random.Intn(len(options))]
}

func errTerminal(p *Payment) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "payment already in a terminal state").
		WithDetails(map[string]any{"payment_id": p.ID, "status": p.Status})
}

func validateStandalone(input StandalonePaymentInput) error {
	var problems []map[string]any
	switch {
	case !input.Amount.IsPositive():
		problems = append(problems, map[string]any{"field": "amount", "reason": "must be greater than zero"})
	case !input.Amount.Equal(input.Amount.Round(2)):
		problems = append(problems, map[string]any{"field": "amount", "reason": "must have at most 2 decimal places"})
	}
	if strings.TrimSpace(input.DestinationKey) == "" {
		problems = append(problems, map[string]any{"field": "destination_key", "reason": "is required"})
	}
	if strings.TrimSpace(input.Description) == "" {
		problems = append(problems, map[string]any{"field": "description", "reason": "is required"})
	}
	if strings.TrimSpace(input.OrderID) == "" {
		problems = append(problems, map[string]any{"field": "order_id", "reason": "is required"})
	}
	if input.TTL < 0 {
		problems = append(problems, map[string]any{"field": "ttl", "reason": "must not be negative"})
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment").WithDetails(problems)
	}
	return nil
}
