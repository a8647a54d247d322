package controllers

import (
	"net/http"

	"github.com/angelmondragon/pixmock-backend/api/responses"
	"github.com/angelmondragon/pixmock-backend/internal/dashboard"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

func Dashboard(svc dashboard.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard unavailable"))
			return
		}
		summary, err := svc.Summary(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
