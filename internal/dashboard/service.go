package dashboard

import (
	"context"
	"fmt"

	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/internal/payments"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// Summary is the aggregate view served by GET /dashboard.
type Summary struct {
	TotalPayments      int                         `json:"total_payments"`
	TotalOrders        int                         `json:"total_orders"`
	PaymentStatusCount map[enums.PaymentStatus]int `json:"payment_status_count"`
	OrderStatusCount   map[enums.OrderStatus]int   `json:"order_status_count"`
	TotalProcessed     decimal.Decimal             `json:"total_processed"`
	WebhooksConfigured int                         `json:"webhooks_configured"`
	WebhooksSent       int                         `json:"webhooks_sent"`
}

// Totals is the lighter count used by the health endpoint.
type Totals struct {
	Payments int `json:"total_payments"`
	Orders   int `json:"total_orders"`
}

type PaymentLister interface {
	List(ctx context.Context) ([]payments.Payment, error)
}

type OrderLister interface {
	List(ctx context.Context) ([]orders.Order, error)
}

type SubscriptionCounter interface {
	Count() int
}

type DeliveryCounter interface {
	Len() int
}

// Service computes read-only aggregates over the stores.
type Service interface {
	Summary(ctx context.Context) (*Summary, error)
	Totals(ctx context.Context) (*Totals, error)
}

type ServiceParams struct {
	Payments      PaymentLister
	Orders        OrderLister
	Subscriptions SubscriptionCounter
	Deliveries    DeliveryCounter
}

type service struct {
	payments      PaymentLister
	orders        OrderLister
	subscriptions SubscriptionCounter
	deliveries    DeliveryCounter
}

func NewService(params ServiceParams) (Service, error) {
	if params.Payments == nil {
		return nil, fmt.Errorf("payment lister required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order lister required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription counter required")
	}
	if params.Deliveries == nil {
		return nil, fmt.Errorf("delivery counter required")
	}
	return &service{
		payments:      params.Payments,
		orders:        params.Orders,
		subscriptions: params.Subscriptions,
		deliveries:    params.Deliveries,
	}, nil
}

// Summary reports statuses as stored. Pending payments past their expiry
// count as pending until something reads them.
func (s *service) Summary(ctx context.Context) (*Summary, error) {
	paymentList, err := s.payments.List(ctx)
	if err != nil {
		return nil, err
	}
	orderList, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalPayments:      len(paymentList),
		TotalOrders:        len(orderList),
		PaymentStatusCount: map[enums.PaymentStatus]int{},
		OrderStatusCount:   map[enums.OrderStatus]int{},
		TotalProcessed:     decimal.Zero,
		WebhooksConfigured: s.subscriptions.Count(),
		WebhooksSent:       s.deliveries.Len(),
	}
	for _, p := range paymentList {
		summary.PaymentStatusCount[p.Status]++
		if p.Status == enums.PaymentStatusCompleted {
			summary.TotalProcessed = summary.TotalProcessed.Add(p.Amount)
		}
	}
	for _, o := range orderList {
		summary.OrderStatusCount[o.Status]++
	}
	return summary, nil
}

func (s *service) Totals(ctx context.Context) (*Totals, error) {
	paymentList, err := s.payments.List(ctx)
	if err != nil {
		return nil, err
	}
	orderList, err := s.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	return &Totals{Payments: len(paymentList), Orders: len(orderList)}, nil
}
