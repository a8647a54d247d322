package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/pixmock-backend/api/responses"
	"github.com/angelmondragon/pixmock-backend/api/validators"
	"github.com/angelmondragon/pixmock-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

// SubscriptionRegistry is the webhook registry surface the API exposes.
type SubscriptionRegistry interface {
	Register(ctx context.Context, url, secret string) (*webhooks.Subscription, error)
	List(ctx context.Context) []webhooks.Subscription
	Delete(ctx context.Context, id string) error
}

type DeliveryLogReader interface {
	List() []webhooks.DeliveryLogEntry
}

type registerWebhookRequest struct {
	URL    string `json:"url" validate:"required,url"`
	Secret string `json:"secret"`
}

func WebhookRegister(registry SubscriptionRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook registry unavailable"))
			return
		}

		var payload registerWebhookRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := registry.Register(r.Context(), validators.SanitizeString(payload.URL, 2048), payload.Secret)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

func WebhookList(registry SubscriptionRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook registry unavailable"))
			return
		}
		responses.WriteSuccess(w, registry.List(r.Context()))
	}
}

func WebhookDelete(registry SubscriptionRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook registry unavailable"))
			return
		}
		if err := registry.Delete(r.Context(), chi.URLParam(r, "subscriptionId")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// WebhookLogs lists every delivery attempt in append order.
func WebhookLogs(log DeliveryLogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if log == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "delivery log unavailable"))
			return
		}
		responses.WriteSuccess(w, log.List())
	}
}
