package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/ids"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

// Service owns the order store and every order status change.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	AttachPayment(ctx context.Context, orderID, paymentID string) (*Order, error)
	ApplyPaymentOutcome(ctx context.Context, orderID string, status enums.PaymentStatus) (*Order, error)
	SetStatus(ctx context.Context, orderID string, status enums.OrderStatus) (*Order, error)
	List(ctx context.Context) ([]Order, error)
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Store  Store
	Clock  clock.Clock
	Logger *logger.Logger
}

type service struct {
	store Store
	clock clock.Clock
	logg  *logger.Logger
}

// NewService builds the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("orders store required")
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &service{
		store: params.Store,
		clock: params.Clock,
		logg:  params.Logger,
	}, nil
}

// paymentOutcomeToOrder maps a payment status to the order status it implies.
// PENDING is absent: it never moves the order.
var paymentOutcomeToOrder = map[enums.PaymentStatus]enums.OrderStatus{
	enums.PaymentStatusCompleted: enums.OrderStatusPaid,
	enums.PaymentStatusFailed:    enums.OrderStatusCanceled,
	enums.PaymentStatusExpired:   enums.OrderStatusCanceled,
	enums.PaymentStatusCanceled:  enums.OrderStatusCanceled,
}

// OrderStatusForPayment returns the order status implied by a payment status.
func OrderStatusForPayment(status enums.PaymentStatus) (enums.OrderStatus, bool) {
	next, ok := paymentOutcomeToOrder[status]
	return next, ok
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if err := validateLineItems(input.LineItems); err != nil {
		return nil, err
	}

	total := input.LineItems[0].Subtotal()
	for _, item := range input.LineItems[1:] {
		total = total.Add(item.Subtotal())
	}

	createdAt := s.clock.Now()
	if input.CreatedAt != nil {
		createdAt = input.CreatedAt.UTC()
	}
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		customerID = ids.NewCustomerID()
	}
	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	customer := input.Customer
	if customer == nil {
		customer = map[string]any{}
	}

	order := &Order{
		ID:              ids.NewOrderID(),
		CustomerID:      customerID,
		Customer:        customer,
		LineItems:       append([]LineItem(nil), input.LineItems...),
		TotalAmount:     total.Round(moneyPlaces),
		Status:          enums.OrderStatusCreated,
		ShippingAddress: input.ShippingAddress,
		Metadata:        metadata,
		CreatedAt:       createdAt,
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, order.ID)
	s.logg.Info(s.logg.WithField(ctx, "total_amount", order.TotalAmount.String()), "order created")
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.store.FindByID(ctx, id)
}

func (s *service) AttachPayment(ctx context.Context, orderID, paymentID string) (*Order, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	now := s.clock.Now()
	order, err := s.store.Update(ctx, orderID, func(o *Order) error {
		if o.HasPayment() {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a payment").
				WithDetails(map[string]any{"order_id": o.ID, "payment_id": *o.PaymentID})
		}
		if o.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is closed").
				WithDetails(map[string]any{"order_id": o.ID, "status": o.Status})
		}
		id := paymentID
		o.PaymentID = &id
		if o.Status == enums.OrderStatusCreated {
			o.Status = enums.OrderStatusAwaitingPayment
		}
		o.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithPaymentID(s.logg.WithOrderID(ctx, orderID), paymentID), "payment attached to order")
	return order, nil
}

func (s *service) ApplyPaymentOutcome(ctx context.Context, orderID string, status enums.PaymentStatus) (*Order, error) {
	next, moves := OrderStatusForPayment(status)
	now := s.clock.Now()
	changed := false
	order, err := s.store.Update(ctx, orderID, func(o *Order) error {
		if !moves || o.Status.IsTerminal() {
			return errNoChange
		}
		o.Status = next
		o.UpdatedAt = &now
		changed = true
		return nil
	})
	if errors.Is(err, errNoChange) {
		return s.store.FindByID(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}
	if changed {
		ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, orderID), map[string]any{
			"payment_status": status,
			"order_status":   next,
		})
		s.logg.Info(ctx, "order status derived from payment")
	}
	return order, nil
}

func (s *service) SetStatus(ctx context.Context, orderID string, status enums.OrderStatus) (*Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": status})
	}
	now := s.clock.Now()
	order, err := s.store.Update(ctx, orderID, func(o *Order) error {
		o.Status = status
		o.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Warn(s.logg.WithField(s.logg.WithOrderID(ctx, orderID), "order_status", status), "order status overridden")
	return order, nil
}

func (s *service) List(ctx context.Context) ([]Order, error) {
	return s.store.List(ctx)
}

// errNoChange aborts an Update without saving.
var errNoChange = errors.New("orders: no change")

// moneyPlaces is the precision of every stored amount. Unit prices are held to
// it so the order total is the exact sum of its line items.
const moneyPlaces = 2

func validateLineItems(items []LineItem) error {
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	var problems []map[string]any
	for i, item := range items {
		if item.Quantity <= 0 {
			problems = append(problems, map[string]any{"index": i, "field": "quantity", "reason": "must be greater than zero"})
		}
		switch {
		case !item.UnitPrice.IsPositive():
			problems = append(problems, map[string]any{"index": i, "field": "unit_price", "reason": "must be greater than zero"})
		case !item.UnitPrice.Equal(item.UnitPrice.Round(moneyPlaces)):
			problems = append(problems, map[string]any{"index": i, "field": "unit_price", "reason": "must have at most 2 decimal places"})
		}
	}
	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid line items").WithDetails(problems)
	}
	return nil
}
