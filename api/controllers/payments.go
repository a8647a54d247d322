package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/pixmock-backend/api/responses"
	"github.com/angelmondragon/pixmock-backend/api/validators"
	"github.com/angelmondragon/pixmock-backend/internal/payments"
	"github.com/angelmondragon/pixmock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

const maxTTLSeconds = 7 * 24 * 60 * 60

type createPaymentRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	DestinationKey string          `json:"destination_key" validate:"required"`
	Description    string          `json:"description" validate:"required,max=140"`
	OrderID        string          `json:"order_id" validate:"required"`
	TTLSeconds     *int            `json:"ttl_seconds" validate:"omitempty,gte=1,max=604800"`
	RecipientName  string          `json:"recipient_name"`
	Metadata       map[string]any  `json:"metadata"`
}

func (req createPaymentRequest) toInput() payments.StandalonePaymentInput {
	var ttl time.Duration
	if req.TTLSeconds != nil {
		ttl = time.Duration(*req.TTLSeconds) * time.Second
	}
	return payments.StandalonePaymentInput{
		Amount:         req.Amount,
		DestinationKey: validators.SanitizeString(req.DestinationKey, 77),
		Description:    validators.SanitizeString(req.Description, 140),
		OrderID:        validators.SanitizeString(req.OrderID, 64),
		TTL:            ttl,
		Metadata:       req.Metadata,
		RecipientName:  validators.SanitizeString(req.RecipientName, 64),
	}
}

func paymentServiceUnavailable(w http.ResponseWriter, r *http.Request, logg *logger.Logger) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
}

// PaymentCreateForOrder returns the order's payment, creating it on first call.
// An optional ttl_seconds query parameter overrides the default expiry.
func PaymentCreateForOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentServiceUnavailable(w, r, logg)
			return
		}

		ttlSeconds, err := validators.ParseQueryInt(r, "ttl_seconds", 0, 1, maxTTLSeconds)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID := chi.URLParam(r, "orderId")
		ctx := logg.WithOrderID(r.Context(), orderID)
		payment, err := svc.CreatePayment(ctx, orderID, time.Duration(ttlSeconds)*time.Second)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentCreateStandalone(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentServiceUnavailable(w, r, logg)
			return
		}

		var payload createPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.CreateStandalonePayment(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, payment)
	}
}

func PaymentDetail(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentServiceUnavailable(w, r, logg)
			return
		}

		paymentID := chi.URLParam(r, "paymentId")
		ctx := logg.WithPaymentID(r.Context(), paymentID)
		payment, err := svc.GetPayment(ctx, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

func PaymentByOrder(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentServiceUnavailable(w, r, logg)
			return
		}

		orderID := chi.URLParam(r, "orderId")
		ctx := logg.WithOrderID(r.Context(), orderID)
		payment, err := svc.GetPaymentByOrder(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// PaymentConfirm simulates the PSP calling back before the settlement delay.
func PaymentConfirm(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentServiceUnavailable(w, r, logg)
			return
		}

		paymentID := chi.URLParam(r, "paymentId")
		ctx := logg.WithPaymentID(r.Context(), paymentID)
		payment, err := svc.ConfirmExternally(ctx, paymentID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// PaymentSimulateStatus is the administrative override. It may leave a
// terminal state and still propagates to the order and webhooks.
func PaymentSimulateStatus(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			paymentServiceUnavailable(w, r, logg)
			return
		}

		raw := chi.URLParam(r, "status")
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment status").
				WithDetails(map[string]any{"status": raw}))
			return
		}

		paymentID := chi.URLParam(r, "paymentId")
		ctx := logg.WithPaymentID(r.Context(), paymentID)
		payment, err := svc.SetStatus(ctx, paymentID, status, true)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}
