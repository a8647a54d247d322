package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pixmock-backend/api/responses"
	"github.com/angelmondragon/pixmock-backend/api/validators"
	"github.com/angelmondragon/pixmock-backend/internal/orders"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

type lineItemRequest struct {
	ProductID string          `json:"product_id" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gt=0"`
	Category  *string         `json:"category,omitempty"`
}

type createOrderRequest struct {
	CustomerID      string            `json:"customer_id"`
	Customer        map[string]any    `json:"customer" validate:"required"`
	Items           []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress map[string]any    `json:"shipping_address"`
	Metadata        map[string]any    `json:"metadata"`
}

func (req createOrderRequest) toInput() orders.CreateOrderInput {
	items := make([]orders.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.LineItem{
			ProductID: validators.SanitizeString(item.ProductID, 64),
			Name:      validators.SanitizeString(item.Name, 255),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Category:  item.Category,
		})
	}
	return orders.CreateOrderInput{
		CustomerID:      validators.SanitizeString(req.CustomerID, 64),
		Customer:        req.Customer,
		LineItems:       items,
		ShippingAddress: req.ShippingAddress,
		Metadata:        req.Metadata,
	}
}

// OrderCreate opens an order in CREATED with its total computed server side.
func OrderCreate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.CreateOrder(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		order, err := svc.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// OrderSimulateStatus is the administrative override: it sets any status
// without transition checks and does not touch the bound payment.
func OrderSimulateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		status, err := enums.ParseOrderStatus(chi.URLParam(r, "status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order status").
				WithDetails(map[string]any{"status": chi.URLParam(r, "status")}))
			return
		}

		order, err := svc.SetStatus(r.Context(), chi.URLParam(r, "orderId"), status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
