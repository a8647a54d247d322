package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/internal/payments"
	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// OrderCreator is the slice of the order service seeding needs.
type OrderCreator interface {
	CreateOrder(ctx context.Context, input orders.CreateOrderInput) (*orders.Order, error)
}

// PaymentCreator is the slice of the payment service seeding needs.
type PaymentCreator interface {
	CreateStandalonePayment(ctx context.Context, input payments.StandalonePaymentInput) (*payments.Payment, error)
	SetStatus(ctx context.Context, id string, status enums.PaymentStatus, override bool) (*payments.Payment, error)
}

type Params struct {
	Orders   OrderCreator
	Payments PaymentCreator
	Clock    clock.Clock
	Random   clock.Random
	Logger   *logger.Logger
}

// Result lists what Run created.
type Result struct {
	Orders   []*orders.Order
	Payments []*payments.Payment
}

type demoPayment struct {
	amount      string
	key         string
	description string
	orderRef    string
	status      enums.PaymentStatus
}

func demoOrders() []orders.CreateOrderInput {
	electronics, books, stationery := "Eletronicos", "Livros", "Papelaria"
	return []orders.CreateOrderInput{
		{
			Customer: map[string]any{"name": "Joao Silva", "email": "joao@email.com", "phone": "11999999999"},
			LineItems: []orders.LineItem{
				{ProductID: "prod_001", Name: "Smartphone XYZ", Quantity: 1, UnitPrice: decimal.RequireFromString("1500.00"), Category: &electronics},
			},
			ShippingAddress: map[string]any{
				"street":   "Rua das Flores, 123",
				"city":     "Sao Paulo",
				"state":    "SP",
				"zip_code": "01234-567",
			},
			Metadata: map[string]any{"source": "demo_seed"},
		},
		{
			Customer: map[string]any{"name": "Maria Santos", "email": "maria@email.com", "phone": "11888888888"},
			LineItems: []orders.LineItem{
				{ProductID: "prod_002", Name: "Livro Python Avancado", Quantity: 2, UnitPrice: decimal.RequireFromString("89.90"), Category: &books},
				{ProductID: "prod_003", Name: "Caneta Esferografica", Quantity: 5, UnitPrice: decimal.RequireFromString("2.50"), Category: &stationery},
			},
			Metadata: map[string]any{"source": "demo_seed"},
		},
	}
}

var demoPayments = []demoPayment{
	{amount: "150.50", key: "loja@email.com", description: "Compra #001", orderRef: "PED001", status: enums.PaymentStatusCompleted},
	{amount: "89.90", key: "11999999999", description: "Assinatura mensal", orderRef: "PED002", status: enums.PaymentStatusPending},
}

// Run creates two demo orders and two standalone payments, each backdated by
// one to 24 hours. Standalone payments keep their one hour expiry, so the
// pending one usually reads back as expired.
func Run(ctx context.Context, params Params) (*Result, error) {
	if params.Orders == nil || params.Payments == nil {
		return nil, fmt.Errorf("seed requires order and payment services")
	}
	if params.Random == nil {
		return nil, fmt.Errorf("seed requires a random source")
	}
	if params.Clock == nil {
		params.Clock = clock.System()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}

	backdate := func() *time.Time {
		ts := params.Clock.Now().Add(-time.Duration(params.Random.Intn(24)+1) * time.Hour)
		return &ts
	}

	result := &Result{}
	for _, input := range demoOrders() {
		input.CreatedAt = backdate()
		order, err := params.Orders.CreateOrder(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("seed order: %w", err)
		}
		result.Orders = append(result.Orders, order)
	}

	for _, demo := range demoPayments {
		payment, err := params.Payments.CreateStandalonePayment(ctx, payments.StandalonePaymentInput{
			Amount:         decimal.RequireFromString(demo.amount),
			DestinationKey: demo.key,
			Description:    demo.description,
			OrderID:        demo.orderRef,
			TTL:            time.Hour,
			Metadata:       map[string]any{"platform": "mock"},
			RecipientName:  "Loja Mock",
			CreatedAt:      backdate(),
		})
		if err != nil {
			return nil, fmt.Errorf("seed payment %s: %w", demo.orderRef, err)
		}
		if demo.status != enums.PaymentStatusPending {
			payment, err = params.Payments.SetStatus(ctx, payment.ID, demo.status, true)
			if err != nil {
				return nil, fmt.Errorf("seed payment %s status: %w", demo.orderRef, err)
			}
		}
		result.Payments = append(result.Payments, payment)
	}

	params.Logger.Info(params.Logger.WithFields(ctx, map[string]any{
		"orders":   len(result.Orders),
		"payments": len(result.Payments),
	}), "demo data seeded")
	return result, nil
}
