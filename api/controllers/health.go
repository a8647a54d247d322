package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/pixmock-backend/api/responses"
	"github.com/angelmondragon/pixmock-backend/internal/dashboard"
	"github.com/angelmondragon/pixmock-backend/pkg/clock"
	"github.com/angelmondragon/pixmock-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/pixmock-backend/pkg/errors"
	"github.com/angelmondragon/pixmock-backend/pkg/logger"
)

const envHeader = "X-PixMock-Env"

// Pinger is any dependency the readiness endpoint checks.
type Pinger interface {
	Ping(context.Context) error
}

type healthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	TotalPayments int       `json:"total_payments"`
	TotalOrders   int       `json:"total_orders"`
	Environment   string    `json:"environment"`
}

// Health reports liveness with store totals and the environment label.
func Health(cfg *config.Config, totals dashboard.Service, clk clock.Clock, logg *logger.Logger) http.HandlerFunc {
	if clk == nil {
		clk = clock.System()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		resp := healthResponse{Status: "healthy", Timestamp: clk.Now(), Environment: cfg.App.Env}
		if totals != nil {
			t, err := totals.Totals(r.Context())
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.TotalPayments = t.Payments
			resp.TotalOrders = t.Orders
		}
		responses.WriteSuccess(w, resp)
	}
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings each configured dependency. Nil entries are skipped so the
// memory store without redis is always ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
					WithDetails(map[string]any{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
