package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/marketsideco/marketside-backend/api/responses"
	"github.com/marketsideco/marketside-backend/pkg/config"
	pkgerrors "github.com/marketsideco/marketside-backend/pkg/errors"
	"github.com/marketsideco/marketside-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is the readiness probe surface shared by the backing stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Marketside-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the backing stores so orchestrators only route traffic
// to instances that can actually serve.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Marketside-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").
						WithDetails(map[string]any{"dependency": name}))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
