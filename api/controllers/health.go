package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/orderrecon/api/responses"
	"github.com/angelmondragon/orderrecon/pkg/config"
	pkgerrors "github.com/angelmondragon/orderrecon/pkg/errors"
	"github.com/angelmondragon/orderrecon/pkg/logger"
)

const envHeader = "X-OrderRecon-Env"

type pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessCheck names a dependency probed by /health/ready.
type ReadinessCheck struct {
	Name   string
	Pinger pinger
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every configured dependency and reports 503 on the first failure.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		statuses := make(map[string]string, len(checks)+1)
		for _, check := range checks {
			if check.Pinger == nil {
				continue
			}
			if err := check.Pinger.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable").
						WithDetails(map[string]any{"dependency": check.Name}))
				return
			}
			statuses[check.Name] = "ok"
		}
		statuses["status"] = "ready"
		responses.WriteSuccess(w, statuses)
	}
}
